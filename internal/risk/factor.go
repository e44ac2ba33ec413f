package risk

import (
	"fmt"
	"math"
)

// FactorID identifies one of the eleven risk categories.
type FactorID string

const (
	RoadConditions    FactorID = "roadConditions"
	AccidentProne     FactorID = "accidentProne"
	SharpTurns        FactorID = "sharpTurns"
	BlindSpots        FactorID = "blindSpots"
	TwoWayTraffic     FactorID = "twoWayTraffic"
	TrafficDensity    FactorID = "trafficDensity"
	WeatherConditions FactorID = "weatherConditions"
	EmergencyServices FactorID = "emergencyServices"
	NetworkCoverage   FactorID = "networkCoverage"
	Amenities         FactorID = "amenities"
	SecurityIssues    FactorID = "securityIssues"
)

// AllFactors lists every factor in canonical order. Ranking ties and
// missing-factor lists follow this order.
var AllFactors = []FactorID{
	RoadConditions,
	AccidentProne,
	SharpTurns,
	BlindSpots,
	TwoWayTraffic,
	TrafficDensity,
	WeatherConditions,
	EmergencyServices,
	NetworkCoverage,
	Amenities,
	SecurityIssues,
}

var factorLabels = map[FactorID]string{
	RoadConditions:    "Road Conditions",
	AccidentProne:     "Accident-Prone Areas",
	SharpTurns:        "Sharp Turns",
	BlindSpots:        "Blind Spots",
	TwoWayTraffic:     "Two-Way Traffic",
	TrafficDensity:    "Traffic Density",
	WeatherConditions: "Weather Conditions",
	EmergencyServices: "Emergency Services",
	NetworkCoverage:   "Network Coverage",
	Amenities:         "Amenities",
	SecurityIssues:    "Security Issues",
}

// Label returns the human readable category name.
func (f FactorID) Label() string {
	if l, ok := factorLabels[f]; ok {
		return l
	}
	return string(f)
}

// Valid reports whether f is one of the known factors.
func (f FactorID) Valid() bool {
	_, ok := factorLabels[f]
	return ok
}

// ParseFactorID converts a wire name into a FactorID.
func ParseFactorID(s string) (FactorID, error) {
	f := FactorID(s)
	if !f.Valid() {
		return "", fmt.Errorf("unknown factor %q", s)
	}
	return f, nil
}

// Origin records where a factor value came from.
type Origin string

const (
	OriginReal      Origin = "REAL"
	OriginEstimated Origin = "ESTIMATED"
	OriginDefault   Origin = "DEFAULT"
)

const (
	MinFactorValue     = 1.0
	MaxFactorValue     = 10.0
	NeutralFactorValue = 5.0
)

// FactorScore is one calculator's output. Detail is carried through for
// explanation only and is never read by the aggregator.
type FactorScore struct {
	Factor FactorID               `json:"factor"`
	Value  float64                `json:"value"`
	Origin Origin                 `json:"origin"`
	Detail map[string]interface{} `json:"detail,omitempty"`
}

// DefaultScore is the neutral fallback used when no data is available.
func DefaultScore(f FactorID, reason string) FactorScore {
	return FactorScore{
		Factor: f,
		Value:  NeutralFactorValue,
		Origin: OriginDefault,
		Detail: map[string]interface{}{"reason": reason},
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// round2 rounds to two decimal places for display.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
