package clip

import "strings"

// Status represents the lifecycle of a clip job.
type Status string

const (
	StatusPending            Status = "pending"
	StatusGenerating         Status = "generating"
	StatusScoring            Status = "scoring"
	StatusRegenerating       Status = "regenerating"
	StatusAccepted           Status = "accepted"
	StatusAcceptedLowQuality Status = "accepted_with_low_quality"
	StatusFailed             Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusGenerating,
	StatusScoring,
	StatusRegenerating,
	StatusAccepted,
	StatusAcceptedLowQuality,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusAccepted:           {},
	StatusAcceptedLowQuality: {},
	StatusFailed:             {},
}

// Artifact-bearing statuses: a job holds an artifact reference exactly while
// it sits in one of these.
var artifactStatuses = map[Status]struct{}{
	StatusScoring:            {},
	StatusRegenerating:       {},
	StatusAccepted:           {},
	StatusAcceptedLowQuality: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends a job's lifecycle.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// CarriesArtifact reports whether a job in this status holds an artifact
// reference.
func (s Status) CarriesArtifact() bool {
	_, ok := artifactStatuses[s]
	return ok
}

// Label returns a human-readable form of the status for CLI presentation.
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}
