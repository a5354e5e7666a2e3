package clip

// Quality rubric dimensions. Temporal dimensions describe consistency across
// frames, frame-wise dimensions describe individual frame quality, and the
// alignment dimension measures prompt adherence.
const (
	DimSubjectConsistency    = "subject_consistency"
	DimBackgroundConsistency = "background_consistency"
	DimMotionSmoothness      = "motion_smoothness"
	DimDynamicDegree         = "dynamic_degree"
	DimAestheticQuality      = "aesthetic_quality"
	DimImagingQuality        = "imaging_quality"
	DimObjectAlignment       = "object_alignment"
	DimOverallAlignment      = "overall_alignment"
)

const (
	weightTemporal  = 0.40
	weightFrameWise = 0.35
	weightAlignment = 0.25
)

var temporalDimensions = []string{
	DimSubjectConsistency,
	DimBackgroundConsistency,
	DimMotionSmoothness,
	DimDynamicDegree,
}

var frameWiseDimensions = []string{
	DimAestheticQuality,
	DimImagingQuality,
	DimObjectAlignment,
}

// AllDimensions returns every rubric dimension in canonical order.
func AllDimensions() []string {
	dims := make([]string, 0, len(temporalDimensions)+len(frameWiseDimensions)+1)
	dims = append(dims, temporalDimensions...)
	dims = append(dims, frameWiseDimensions...)
	dims = append(dims, DimOverallAlignment)
	return dims
}

// QualityScoreSet maps rubric dimensions to scores in [0,100]. Treated as
// immutable once computed.
type QualityScoreSet map[string]float64

// NeutralScores returns the fallback score set used when the quality model is
// unavailable: 50 on every dimension.
func NeutralScores() QualityScoreSet {
	scores := make(QualityScoreSet, 8)
	for _, dim := range AllDimensions() {
		scores[dim] = 50
	}
	return scores
}

// Clamped returns a copy with every score forced into [0,100].
func (s QualityScoreSet) Clamped() QualityScoreSet {
	out := make(QualityScoreSet, len(s))
	for dim, score := range s {
		out[dim] = clampScore(score)
	}
	return out
}

// Overall computes the weighted aggregate score:
//
//	0.40*mean(temporal) + 0.35*mean(frame-wise) + 0.25*alignment
//
// When a dimension group is entirely absent, the result is renormalized by
// the sum of the weights actually present so it stays in [0,100] under
// partial degradation. An empty set yields 0.
func (s QualityScoreSet) Overall() float64 {
	var weighted, weightMass float64

	if mean, ok := meanOf(s, temporalDimensions); ok {
		weighted += weightTemporal * mean
		weightMass += weightTemporal
	}
	if mean, ok := meanOf(s, frameWiseDimensions); ok {
		weighted += weightFrameWise * mean
		weightMass += weightFrameWise
	}
	if alignment, ok := s[DimOverallAlignment]; ok {
		weighted += weightAlignment * clampScore(alignment)
		weightMass += weightAlignment
	}

	if weightMass == 0 {
		return 0
	}
	return weighted / weightMass
}

func meanOf(s QualityScoreSet, dims []string) (float64, bool) {
	var sum float64
	var count int
	for _, dim := range dims {
		if score, ok := s[dim]; ok {
			sum += clampScore(score)
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
