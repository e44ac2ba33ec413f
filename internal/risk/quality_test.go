package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func orderedScores(origins ...Origin) []FactorScore {
	out := make([]FactorScore, len(AllFactors))
	for i, f := range AllFactors {
		o := OriginReal
		if i < len(origins) {
			o = origins[i]
		}
		out[i] = FactorScore{Factor: f, Value: 5, Origin: o}
	}
	return out
}

func allOrigin(o Origin) []Origin {
	out := make([]Origin, len(AllFactors))
	for i := range out {
		out[i] = o
	}
	return out
}

func TestAssessQualityAllDefaults(t *testing.T) {
	dq, confidence := AssessQuality(orderedScores(allOrigin(OriginDefault)...), nil, QualityOptions{}, testNow)
	assert.Equal(t, QualityLow, dq.Level)
	assert.Equal(t, 0, dq.CompletionPercentage)
	assert.Equal(t, AllFactors, dq.MissingFactors)
	assert.Equal(t, MinConfidence, confidence)
}

func TestAssessQualityTiers(t *testing.T) {
	opts := QualityOptions{HighSampleDensity: 50, StalenessThreshold: 24 * time.Hour}
	tests := []struct {
		name       string
		defaults   int
		level      QualityLevel
		completion int
		confidence int
	}{
		{"all real", 0, QualityHigh, 100, 80},
		{"one default", 1, QualityHigh, 91, 80},
		{"three defaults", 3, QualityMedium, 73, 70},
		{"five defaults", 5, QualityLow, 55, 60},
		{"six defaults", 6, QualityLow, 45, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origins := allOrigin(OriginReal)
			for i := 0; i < tt.defaults; i++ {
				origins[i] = OriginDefault
			}
			dq, confidence := AssessQuality(orderedScores(origins...), nil, opts, testNow)
			assert.Equal(t, tt.level, dq.Level)
			assert.Equal(t, tt.completion, dq.CompletionPercentage)
			assert.Equal(t, tt.confidence, confidence)
			assert.Len(t, dq.MissingFactors, tt.defaults)
		})
	}
}

func TestAssessQualityEstimatedCountsAsData(t *testing.T) {
	dq, _ := AssessQuality(orderedScores(allOrigin(OriginEstimated)...), nil, QualityOptions{}, testNow)
	assert.Equal(t, 100, dq.CompletionPercentage)
	assert.Empty(t, dq.MissingFactors)
}

func TestAssessQualityAncillaryBonuses(t *testing.T) {
	opts := QualityOptions{HighSampleDensity: 50, StalenessThreshold: 24 * time.Hour}
	fresh := testNow.Add(-2 * time.Hour)
	stale := testNow.Add(-48 * time.Hour)

	t.Run("capped at maximum", func(t *testing.T) {
		status := &CollectionStatus{SamplePoints: 120, LastCollectedAt: &fresh}
		_, confidence := AssessQuality(orderedScores(), status, opts, testNow)
		assert.Equal(t, MaxConfidence, confidence)
	})

	t.Run("stale data earns no freshness bonus", func(t *testing.T) {
		status := &CollectionStatus{SamplePoints: 10, LastCollectedAt: &stale}
		origins := allOrigin(OriginReal)
		origins[0], origins[1], origins[2] = OriginDefault, OriginDefault, OriginDefault
		_, confidence := AssessQuality(orderedScores(origins...), status, opts, testNow)
		assert.Equal(t, 70, confidence)
	})

	t.Run("dense fresh samples lift a sparse route", func(t *testing.T) {
		status := &CollectionStatus{SamplePoints: 80, LastCollectedAt: &fresh}
		_, confidence := AssessQuality(orderedScores(allOrigin(OriginDefault)...), status, opts, testNow)
		assert.Equal(t, 50, confidence)
	})
}

func TestAssessQualityMonotonicInDefaults(t *testing.T) {
	fresh := testNow.Add(-time.Hour)
	status := &CollectionStatus{SamplePoints: 100, LastCollectedAt: &fresh}
	opts := QualityOptions{HighSampleDensity: 50, StalenessThreshold: 24 * time.Hour}

	origins := allOrigin(OriginReal)
	prevCompletion, prevConfidence := 101, 101
	for i := 0; i <= len(origins); i++ {
		if i > 0 {
			origins[i-1] = OriginDefault
		}
		dq, confidence := AssessQuality(orderedScores(origins...), status, opts, testNow)
		if dq.CompletionPercentage >= prevCompletion {
			t.Fatalf("completion did not decrease with %d defaults: %d", i, dq.CompletionPercentage)
		}
		if confidence > prevConfidence {
			t.Fatalf("confidence rose with %d defaults: %d > %d", i, confidence, prevConfidence)
		}
		prevCompletion, prevConfidence = dq.CompletionPercentage, confidence
	}
}

func TestAssessQualityReportsCollectedCategories(t *testing.T) {
	status := &CollectionStatus{SucceededCategories: []string{"roadConditions", "weatherConditions"}, TotalCategories: 11}
	dq, _ := AssessQuality(orderedScores(), status, QualityOptions{}, testNow)
	assert.Equal(t, []string{"roadConditions", "weatherConditions"}, dq.CollectedCategories)
	assert.Equal(t, 11, dq.TotalCategories)

	dq, _ = AssessQuality(orderedScores(), nil, QualityOptions{}, testNow)
	assert.Nil(t, dq.CollectedCategories)
	assert.Zero(t, dq.TotalCategories)
}
