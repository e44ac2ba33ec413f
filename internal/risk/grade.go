package risk

import (
	"math"
	"sort"
)

// Grade is a letter grade. Later letters are worse.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeBand maps a contiguous score range to a grade. Max is inclusive; Min
// is exclusive except for the lowest band, which starts at 0 inclusive.
type GradeBand struct {
	Grade Grade   `json:"grade"`
	Level string  `json:"level"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

const (
	minCompositeScore = 0.0
	maxCompositeScore = 10.0
)

// DefaultBands returns the standard five-band table.
func DefaultBands() []GradeBand {
	return []GradeBand{
		{Grade: GradeA, Level: "Very Low Risk", Min: 0, Max: 2},
		{Grade: GradeB, Level: "Low Risk", Min: 2, Max: 4},
		{Grade: GradeC, Level: "Medium Risk", Min: 4, Max: 6},
		{Grade: GradeD, Level: "High Risk", Min: 6, Max: 8},
		{Grade: GradeF, Level: "Critical Risk", Min: 8, Max: 10},
	}
}

// GradeTable is a validated band table partitioning [0,10].
type GradeTable struct {
	bands []GradeBand
}

// NewGradeTable sorts and validates bands. The bands must start at 0, end at
// 10 and meet edge to edge with no gaps or overlaps.
func NewGradeTable(bands []GradeBand) (*GradeTable, error) {
	if len(bands) == 0 {
		return nil, configErrorf("no grade bands")
	}
	sorted := make([]GradeBand, len(bands))
	copy(sorted, bands)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	if sorted[0].Min != minCompositeScore {
		return nil, configErrorf("lowest band starts at %.2f, must start at 0", sorted[0].Min)
	}
	if last := sorted[len(sorted)-1]; last.Max != maxCompositeScore {
		return nil, configErrorf("highest band ends at %.2f, must end at 10", last.Max)
	}
	seen := make(map[Grade]bool, len(sorted))
	for i, b := range sorted {
		if b.Grade == "" || b.Level == "" {
			return nil, configErrorf("band %d has no grade or level", i)
		}
		if seen[b.Grade] {
			return nil, configErrorf("grade %s appears twice", b.Grade)
		}
		seen[b.Grade] = true
		if b.Max <= b.Min {
			return nil, configErrorf("band %s is empty: (%.2f, %.2f]", b.Grade, b.Min, b.Max)
		}
		if i > 0 {
			prev := sorted[i-1]
			if b.Min > prev.Max {
				return nil, configErrorf("gap between %s and %s: (%.2f, %.2f]", prev.Grade, b.Grade, prev.Max, b.Min)
			}
			if b.Min < prev.Max {
				return nil, configErrorf("bands %s and %s overlap", prev.Grade, b.Grade)
			}
		}
	}
	return &GradeTable{bands: sorted}, nil
}

// DefaultGradeTable returns the table built from DefaultBands.
func DefaultGradeTable() *GradeTable {
	t, err := NewGradeTable(DefaultBands())
	if err != nil {
		panic(err)
	}
	return t
}

// Classify returns the band containing score. Scores outside [0,10] are an
// invariant violation.
func (t *GradeTable) Classify(score float64) (GradeBand, error) {
	if score < minCompositeScore || score > maxCompositeScore || math.IsNaN(score) {
		return GradeBand{}, invariantErrorf("composite score %v outside [0,10]", score)
	}
	for i, b := range t.bands {
		if score > b.Max {
			continue
		}
		if score > b.Min || (i == 0 && score >= b.Min) {
			return b, nil
		}
	}
	return GradeBand{}, invariantErrorf("no grade band for score %v", score)
}

// Bands returns a copy of the band table in ascending order.
func (t *GradeTable) Bands() []GradeBand {
	out := make([]GradeBand, len(t.bands))
	copy(out, t.bands)
	return out
}
