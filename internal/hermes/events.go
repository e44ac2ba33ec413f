package hermes

import "time"

type RouteAssessedEvent struct {
	RouteID            string    `json:"route_id"`
	TotalWeightedScore float64   `json:"total_weighted_score"`
	RiskGrade          string    `json:"risk_grade"`
	RiskLevel          string    `json:"risk_level"`
	ConfidenceLevel    int       `json:"confidence_level"`
	MissingFactors     []string  `json:"missing_factors,omitempty"`
	Trigger            string    `json:"trigger"`
	CalculatedAt       time.Time `json:"calculated_at"`
}

type DataUpdatedEvent struct {
	RouteID    string    `json:"route_id"`
	Categories []string  `json:"categories,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type BatchCompletedEvent struct {
	Requested int       `json:"requested"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}
