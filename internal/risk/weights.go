package risk

// WeightSet defines the relative importance of each factor in integer percent.
// All weights must sum to exactly 100.
type WeightSet struct {
	RoadConditions    int
	AccidentProne     int
	SharpTurns        int
	BlindSpots        int
	TwoWayTraffic     int
	TrafficDensity    int
	WeatherConditions int
	EmergencyServices int
	NetworkCoverage   int
	Amenities         int
	SecurityIssues    int
}

// DefaultWeights returns the standard weight distribution.
func DefaultWeights() WeightSet {
	return WeightSet{
		RoadConditions:    20,
		AccidentProne:     15,
		SharpTurns:        10,
		BlindSpots:        10,
		TwoWayTraffic:     10,
		TrafficDensity:    15,
		WeatherConditions: 5,
		EmergencyServices: 5,
		NetworkCoverage:   5,
		Amenities:         2,
		SecurityIssues:    3,
	}
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() int {
	total := 0
	for _, v := range w.asMap() {
		total += v
	}
	return total
}

func (w WeightSet) asMap() map[FactorID]int {
	return map[FactorID]int{
		RoadConditions:    w.RoadConditions,
		AccidentProne:     w.AccidentProne,
		SharpTurns:        w.SharpTurns,
		BlindSpots:        w.BlindSpots,
		TwoWayTraffic:     w.TwoWayTraffic,
		TrafficDensity:    w.TrafficDensity,
		WeatherConditions: w.WeatherConditions,
		EmergencyServices: w.EmergencyServices,
		NetworkCoverage:   w.NetworkCoverage,
		Amenities:         w.Amenities,
		SecurityIssues:    w.SecurityIssues,
	}
}

// WeightPolicy is a validated, read-only weight table. It is safe to share
// between goroutines.
type WeightPolicy struct {
	weights map[FactorID]int
}

// NewWeightPolicy validates w and returns a policy. Weights must be
// non-negative and sum to exactly 100.
func NewWeightPolicy(w WeightSet) (*WeightPolicy, error) {
	m := w.asMap()
	for _, f := range AllFactors {
		if v := m[f]; v < 0 {
			return nil, configErrorf("negative weight %d for %s", v, f)
		}
	}
	if total := w.Sum(); total != 100 {
		return nil, configErrorf("weights sum to %d, must sum to 100", total)
	}
	return &WeightPolicy{weights: m}, nil
}

// DefaultPolicy returns the policy built from DefaultWeights.
func DefaultPolicy() *WeightPolicy {
	p, err := NewWeightPolicy(DefaultWeights())
	if err != nil {
		panic(err)
	}
	return p
}

// Weight returns the percentage weight for f.
func (p *WeightPolicy) Weight(f FactorID) int {
	return p.weights[f]
}

// Factors returns the factors covered by the policy in canonical order.
func (p *WeightPolicy) Factors() []FactorID {
	out := make([]FactorID, 0, len(AllFactors))
	for _, f := range AllFactors {
		if _, ok := p.weights[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Weights returns a copy of the weight table keyed by factor.
func (p *WeightPolicy) Weights() map[FactorID]int {
	out := make(map[FactorID]int, len(p.weights))
	for k, v := range p.weights {
		out[k] = v
	}
	return out
}
