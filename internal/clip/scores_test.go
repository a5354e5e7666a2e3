package clip

import (
	"math"
	"testing"
)

func TestOverallFullRubric(t *testing.T) {
	scores := QualityScoreSet{
		DimSubjectConsistency:    90,
		DimBackgroundConsistency: 90,
		DimMotionSmoothness:      90,
		DimDynamicDegree:         90,
		DimAestheticQuality:      80,
		DimImagingQuality:        80,
		DimObjectAlignment:       80,
		DimOverallAlignment:      60,
	}
	want := 0.40*90 + 0.35*80 + 0.25*60
	if got := scores.Overall(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("Overall() = %v, want %v", got, want)
	}
}

func TestOverallRenormalizesMissingGroups(t *testing.T) {
	cases := []struct {
		name   string
		scores QualityScoreSet
		want   float64
	}{
		{
			"alignment only",
			QualityScoreSet{DimOverallAlignment: 70},
			70,
		},
		{
			"temporal only",
			QualityScoreSet{DimSubjectConsistency: 60, DimMotionSmoothness: 80},
			70,
		},
		{
			"no alignment",
			QualityScoreSet{DimSubjectConsistency: 100, DimAestheticQuality: 100},
			100,
		},
		{
			"single frame-wise dimension",
			QualityScoreSet{DimImagingQuality: 42},
			42,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scores.Overall(); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Overall() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverallStaysInRangeForEverySingleDimension(t *testing.T) {
	for _, dim := range AllDimensions() {
		for _, value := range []float64{-10, 0, 50, 100, 250} {
			scores := QualityScoreSet{dim: value}
			got := scores.Overall()
			if got < 0 || got > 100 {
				t.Fatalf("Overall() = %v out of range for %s=%v", got, dim, value)
			}
		}
	}
}

func TestOverallEmptySet(t *testing.T) {
	if got := (QualityScoreSet{}).Overall(); got != 0 {
		t.Fatalf("empty set Overall() = %v, want 0", got)
	}
}

func TestNeutralScores(t *testing.T) {
	scores := NeutralScores()
	if len(scores) != 8 {
		t.Fatalf("expected 8 dimensions, got %d", len(scores))
	}
	if got := scores.Overall(); math.Abs(got-50) > 1e-9 {
		t.Fatalf("neutral Overall() = %v, want 50", got)
	}
}

func TestClampedBoundsScores(t *testing.T) {
	scores := QualityScoreSet{DimImagingQuality: -5, DimOverallAlignment: 140}.Clamped()
	if scores[DimImagingQuality] != 0 {
		t.Fatalf("negative score not clamped: %v", scores[DimImagingQuality])
	}
	if scores[DimOverallAlignment] != 100 {
		t.Fatalf("oversized score not clamped: %v", scores[DimOverallAlignment])
	}
}
