package risk

import (
	"fmt"
	"sort"
	"strings"
)

const (
	topFactorCount       = 5
	narrativeFactorCount = 3

	criticalOverallScore  = 8.0
	factorGuidanceTrigger = 7.0
)

// RankedFactor is a factor score annotated with its configured weight.
type RankedFactor struct {
	Factor FactorID `json:"factor"`
	Label  string   `json:"label"`
	Value  float64  `json:"value"`
	Weight int      `json:"weight"`
	Origin Origin   `json:"origin"`
}

const overallAdvisory = "Reconsider this route or the timing of travel: overall risk is critical. Seek an alternative or postpone non-essential journeys."

var baselineRecommendations = []string{
	"Agree a communication protocol with check-in times before departure.",
	"Carry an emergency kit with first aid, water, torch and a charged power bank.",
}

var factorGuidance = map[FactorID]string{
	RoadConditions:    "Inspect tyres, brakes and suspension before departure and reduce speed on damaged surfaces.",
	AccidentProne:     "Slow down and stay alert through known accident hotspots on this route.",
	SharpTurns:        "Brake before entering curves and avoid overtaking on winding sections.",
	BlindSpots:        "Use the horn at blind corners and keep well to your lane where visibility is limited.",
	TwoWayTraffic:     "Keep safe following distances and overtake only with clear sight of oncoming traffic.",
	TrafficDensity:    "Travel outside peak hours where possible and allow extra time for congestion.",
	WeatherConditions: "Monitor the weather forecast before and during the trip and delay travel in severe conditions.",
	EmergencyServices: "Note the nearest hospitals and emergency contacts along the route before setting off.",
	NetworkCoverage:   "Download offline maps and share your itinerary; expect stretches without mobile signal.",
	Amenities:         "Refuel and take supplies at every opportunity; services are sparse along this route.",
	SecurityIssues:    "Avoid stopping in isolated areas, travel in daylight and keep doors locked.",
}

// rankFactors orders scores by value descending, breaking ties by canonical
// factor order so the result is deterministic.
func rankFactors(scores []FactorScore, policy *WeightPolicy) []RankedFactor {
	order := make(map[FactorID]int, len(AllFactors))
	for i, f := range AllFactors {
		order[f] = i
	}
	ranked := make([]RankedFactor, 0, len(scores))
	for _, s := range scores {
		ranked = append(ranked, RankedFactor{
			Factor: s.Factor,
			Label:  s.Factor.Label(),
			Value:  round2(s.Value),
			Weight: policy.Weight(s.Factor),
			Origin: s.Origin,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return order[ranked[i].Factor] < order[ranked[j].Factor]
	})
	return ranked
}

// TopRiskFactors returns the five highest scoring factors.
func TopRiskFactors(scores []FactorScore, policy *WeightPolicy) []RankedFactor {
	ranked := rankFactors(scores, policy)
	if len(ranked) > topFactorCount {
		ranked = ranked[:topFactorCount]
	}
	return ranked
}

// Narrative renders the one paragraph explanation of an assessment.
func Narrative(band GradeBand, total float64, top []RankedFactor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This route is rated %s (grade %s) with a weighted risk score of %.2f out of 10.",
		band.Level, band.Grade, round2(total))
	n := narrativeFactorCount
	if len(top) < n {
		n = len(top)
	}
	if n > 0 {
		parts := make([]string, 0, n)
		for _, f := range top[:n] {
			parts = append(parts, fmt.Sprintf("%s (%.1f)", f.Label, f.Value))
		}
		fmt.Fprintf(&b, " The main contributors are %s.", joinList(parts))
	}
	return b.String()
}

func joinList(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

// Recommendations builds the ordered advisory list: the overall advisory,
// then per-factor guidance in ranked order, then the baseline items. The
// result never contains duplicates.
func Recommendations(total float64, scores []FactorScore, policy *WeightPolicy) []string {
	var out []string
	if total >= criticalOverallScore {
		out = append(out, overallAdvisory)
	}
	raw := make(map[FactorID]float64, len(scores))
	for _, s := range scores {
		if v, ok := raw[s.Factor]; !ok || s.Value > v {
			raw[s.Factor] = s.Value
		}
	}
	for _, f := range rankFactors(scores, policy) {
		if raw[f.Factor] <= factorGuidanceTrigger {
			continue
		}
		if g, ok := factorGuidance[f.Factor]; ok {
			out = append(out, g)
		}
	}
	out = append(out, baselineRecommendations...)
	return dedupe(out)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
