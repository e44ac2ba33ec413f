package risk

import (
	"time"

	"github.com/google/uuid"
)

// RiskAssessment is the result of one engine run. It is built once and not
// modified afterwards; callers decide whether to persist it.
type RiskAssessment struct {
	RouteID            uuid.UUID      `json:"route_id"`
	FactorScores       []FactorScore  `json:"factor_scores"`
	TotalWeightedScore float64        `json:"total_weighted_score"`
	RiskGrade          Grade          `json:"risk_grade"`
	RiskLevel          string         `json:"risk_level"`
	TopRiskFactors     []RankedFactor `json:"top_risk_factors"`
	Recommendations    []string       `json:"recommendations"`
	Narrative          string         `json:"narrative"`
	DataQuality        DataQuality    `json:"data_quality"`
	ConfidenceLevel    int            `json:"confidence_level"`
	CalculatedAt       time.Time      `json:"calculated_at"`
}

// BatchResult is one route's entry in a batch run.
type BatchResult struct {
	RouteID    string          `json:"route_id"`
	Success    bool            `json:"success"`
	Assessment *RiskAssessment `json:"assessment,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func newAssessment(routeID uuid.UUID, agg AggregateResult, band GradeBand, dq DataQuality, confidence int,
	policy *WeightPolicy, calculatedAt time.Time) *RiskAssessment {
	scores := make([]FactorScore, len(agg.Scores))
	for i, s := range agg.Scores {
		s.Value = round2(s.Value)
		scores[i] = s
	}
	top := TopRiskFactors(agg.Scores, policy)
	return &RiskAssessment{
		RouteID:            routeID,
		FactorScores:       scores,
		TotalWeightedScore: round2(agg.Total),
		RiskGrade:          band.Grade,
		RiskLevel:          band.Level,
		TopRiskFactors:     top,
		Recommendations:    Recommendations(agg.Total, agg.Scores, policy),
		Narrative:          Narrative(band, agg.Total, top),
		DataQuality:        dq,
		ConfidenceLevel:    confidence,
		CalculatedAt:       calculatedAt,
	}
}
