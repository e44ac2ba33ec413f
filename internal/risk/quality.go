package risk

import (
	"math"
	"time"
)

// QualityLevel summarises how much of an assessment rests on real data.
type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

const (
	MinConfidence = 30
	MaxConfidence = 95

	baseConfidence = 50
)

// CollectionStatus is the data-quality signal reported by the collection
// layer for a route. Nil means the signal was unavailable.
type CollectionStatus struct {
	SucceededCategories []string   `json:"succeeded_categories,omitempty"`
	TotalCategories     int        `json:"total_categories"`
	SamplePoints        int        `json:"sample_points"`
	LastCollectedAt     *time.Time `json:"last_collected_at,omitempty"`
}

// DataQuality describes factor completeness for one assessment.
type DataQuality struct {
	Level                QualityLevel `json:"level"`
	CompletionPercentage int          `json:"completion_percentage"`
	MissingFactors       []FactorID   `json:"missing_factors"`

	// Collection-layer view of the same route, copied from the status when
	// one was reported.
	CollectedCategories []string `json:"collected_categories,omitempty"`
	TotalCategories     int      `json:"total_categories,omitempty"`
}

// QualityOptions tunes the ancillary confidence bonuses.
type QualityOptions struct {
	HighSampleDensity  int
	StalenessThreshold time.Duration
}

// AssessQuality derives data quality and confidence from factor origins and
// the optional collection status. It never fails.
func AssessQuality(scores []FactorScore, status *CollectionStatus, opts QualityOptions, now time.Time) (DataQuality, int) {
	dq := DataQuality{MissingFactors: []FactorID{}}
	supplied := 0
	for _, s := range scores {
		if s.Origin == OriginDefault {
			dq.MissingFactors = append(dq.MissingFactors, s.Factor)
			continue
		}
		supplied++
	}

	var ratio float64
	if len(scores) > 0 {
		ratio = float64(supplied) / float64(len(scores)) * 100
	}
	dq.CompletionPercentage = int(math.Round(ratio))

	switch {
	case ratio >= 90:
		dq.Level = QualityHigh
	case ratio >= 70:
		dq.Level = QualityMedium
	default:
		dq.Level = QualityLow
	}

	confidence := baseConfidence
	switch {
	case ratio >= 90:
		confidence += 30
	case ratio >= 70:
		confidence += 20
	case ratio >= 50:
		confidence += 10
	default:
		confidence -= 20
	}

	if status != nil {
		dq.CollectedCategories = append([]string(nil), status.SucceededCategories...)
		dq.TotalCategories = status.TotalCategories
		if opts.HighSampleDensity > 0 && status.SamplePoints >= opts.HighSampleDensity {
			confidence += 10
		}
		if status.LastCollectedAt != nil && opts.StalenessThreshold > 0 &&
			now.Sub(*status.LastCollectedAt) < opts.StalenessThreshold {
			confidence += 10
		}
	}

	if confidence < MinConfidence {
		confidence = MinConfidence
	}
	if confidence > MaxConfidence {
		confidence = MaxConfidence
	}
	return dq, confidence
}
