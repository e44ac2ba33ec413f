package risk

import "math"

// AggregateResult is the weighted composite of a set of factor scores.
type AggregateResult struct {
	// Total keeps full precision; round it only for display.
	Total float64
	// Scores holds one entry per policy factor in canonical order, with
	// neutral defaults filled in for factors that were not supplied.
	Scores []FactorScore
	// Missing lists factors that had no score at all.
	Missing []FactorID
}

// Aggregate combines factor scores with the weight policy:
//
//	total = Σ value_f × weight_f / 100
//
// Factors absent from scores contribute the neutral default. A supplied value
// outside [1,10] means a calculator failed to clamp and is reported rather
// than coerced.
func Aggregate(scores map[FactorID]FactorScore, policy *WeightPolicy) (AggregateResult, error) {
	var res AggregateResult
	var weighted float64
	for _, f := range policy.Factors() {
		s, ok := scores[f]
		if !ok {
			s = DefaultScore(f, "calculator did not run")
			res.Missing = append(res.Missing, f)
		}
		if math.IsNaN(s.Value) || s.Value < MinFactorValue || s.Value > MaxFactorValue {
			return AggregateResult{}, invariantErrorf("factor %s value %v outside [1,10]", f, s.Value)
		}
		weighted += s.Value * float64(policy.Weight(f))
		res.Scores = append(res.Scores, s)
	}
	res.Total = weighted / 100
	if res.Total < minCompositeScore || res.Total > maxCompositeScore {
		return AggregateResult{}, invariantErrorf("composite score %v outside [0,10]", res.Total)
	}
	return res, nil
}
