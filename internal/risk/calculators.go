package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Calculator turns the raw supporting data for one factor into a score.
// Implementations are pure: the same input always yields the same score.
type Calculator interface {
	Factor() FactorID
	Calculate(raw json.RawMessage) (FactorScore, error)
}

// rule is one row of a calculator's adjustment table.
type rule[T any] struct {
	reason string
	delta  float64
	when   func(in *T) bool
}

type calculator[T any] struct {
	factor FactorID
	rules  []rule[T]

	// prepare inspects the decoded input. It reports whether any usable data
	// is present, the origin of that data and a delta from enum lookups.
	prepare func(in *T) (present bool, origin Origin, delta float64, reasons []string, err error)
}

func (c calculator[T]) Factor() FactorID { return c.factor }

func (c calculator[T]) Calculate(raw json.RawMessage) (FactorScore, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return DefaultScore(c.factor, "no data"), nil
	}
	var in T
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return FactorScore{}, fmt.Errorf("decode %s input: %w", c.factor, err)
	}

	present, origin, delta, reasons, err := c.prepare(&in)
	if err != nil {
		return FactorScore{}, fmt.Errorf("%s input: %w", c.factor, err)
	}
	if !present {
		return DefaultScore(c.factor, "no usable data"), nil
	}

	value := NeutralFactorValue + delta
	for _, r := range c.rules {
		if r.when(&in) {
			value += r.delta
			reasons = append(reasons, r.reason)
		}
	}
	if reasons == nil {
		reasons = []string{}
	}
	return FactorScore{
		Factor: c.factor,
		Value:  clamp(value, MinFactorValue, MaxFactorValue),
		Origin: origin,
		Detail: map[string]interface{}{
			"base":        NeutralFactorValue,
			"unclamped":   value,
			"adjustments": reasons,
		},
	}, nil
}

// lookup resolves an enum value against a delta table. An unknown value is
// malformed input rather than something to guess about.
func lookup(table map[string]float64, field, value string) (float64, string, error) {
	d, ok := table[value]
	if !ok {
		return 0, "", fmt.Errorf("unknown %s %q", field, value)
	}
	return d, fmt.Sprintf("%s=%s", field, value), nil
}

// ratePer normalises a count to occurrences per unit kilometres. Without a
// route length the count is taken as already normalised.
func ratePer(count int, lengthKm, unit float64) float64 {
	if lengthKm <= 0 {
		return float64(count)
	}
	return float64(count) / lengthKm * unit
}

func derefOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// DefaultCalculators returns one calculator per factor.
func DefaultCalculators() []Calculator {
	return []Calculator{
		roadConditionsCalculator(),
		accidentProneCalculator(),
		sharpTurnsCalculator(),
		blindSpotsCalculator(),
		twoWayTrafficCalculator(),
		trafficDensityCalculator(),
		weatherConditionsCalculator(),
		emergencyServicesCalculator(),
		networkCoverageCalculator(),
		amenitiesCalculator(),
		securityIssuesCalculator(),
	}
}

// --- Road conditions ---

type RoadConditionsInput struct {
	SurfaceQuality  string   `json:"surface_quality"`
	HasConstruction bool     `json:"has_construction"`
	PotholesPerKm   *float64 `json:"potholes_per_km,omitempty"`
	UnpavedPercent  *float64 `json:"unpaved_percent,omitempty"`
}

var surfaceQualityDelta = map[string]float64{
	"good":     -2,
	"fair":     0,
	"poor":     2,
	"critical": 4,
}

func roadConditionsCalculator() Calculator {
	return calculator[RoadConditionsInput]{
		factor: RoadConditions,
		prepare: func(in *RoadConditionsInput) (bool, Origin, float64, []string, error) {
			if in.SurfaceQuality == "" {
				present := in.PotholesPerKm != nil || in.UnpavedPercent != nil || in.HasConstruction
				return present, OriginReal, 0, nil, nil
			}
			d, reason, err := lookup(surfaceQualityDelta, "surface_quality", in.SurfaceQuality)
			if err != nil {
				return false, "", 0, nil, err
			}
			return true, OriginReal, d, []string{reason}, nil
		},
		rules: []rule[RoadConditionsInput]{
			{"active construction", 3, func(in *RoadConditionsInput) bool { return in.HasConstruction }},
			{"more than 5 potholes per km", 1, func(in *RoadConditionsInput) bool { return derefOr(in.PotholesPerKm, 0) > 5 }},
			{"more than 20% unpaved", 1, func(in *RoadConditionsInput) bool { return derefOr(in.UnpavedPercent, 0) > 20 }},
		},
	}
}

// --- Accident-prone areas ---

type AccidentProneInput struct {
	AccidentCount  *int    `json:"accident_count,omitempty"`
	FatalAccidents int     `json:"fatal_accidents"`
	Hotspots       int     `json:"hotspots"`
	LengthKm       float64 `json:"length_km"`
}

func accidentRate(in *AccidentProneInput) float64 {
	if in.AccidentCount == nil {
		return 0
	}
	return ratePer(*in.AccidentCount, in.LengthKm, 100)
}

func accidentProneCalculator() Calculator {
	return calculator[AccidentProneInput]{
		factor: AccidentProne,
		prepare: func(in *AccidentProneInput) (bool, Origin, float64, []string, error) {
			return in.AccidentCount != nil, OriginReal, 0, nil, nil
		},
		rules: []rule[AccidentProneInput]{
			{"fewer than 1 accident per 100 km", -2, func(in *AccidentProneInput) bool { return accidentRate(in) < 1 }},
			{"at least 5 accidents per 100 km", 2, func(in *AccidentProneInput) bool {
				r := accidentRate(in)
				return r >= 5 && r < 10
			}},
			{"at least 10 accidents per 100 km", 3, func(in *AccidentProneInput) bool { return accidentRate(in) >= 10 }},
			{"fatal accidents recorded", 2, func(in *AccidentProneInput) bool { return in.FatalAccidents > 0 }},
			{"3 or more accident hotspots", 1, func(in *AccidentProneInput) bool { return in.Hotspots >= 3 }},
		},
	}
}

// --- Sharp turns ---

type SharpTurnsInput struct {
	TurnCount    *int    `json:"turn_count,omitempty"`
	HairpinCount int     `json:"hairpin_count"`
	LengthKm     float64 `json:"length_km"`
}

func turnRate(in *SharpTurnsInput) float64 {
	if in.TurnCount == nil {
		return 0
	}
	return ratePer(*in.TurnCount, in.LengthKm, 10)
}

func sharpTurnsCalculator() Calculator {
	return calculator[SharpTurnsInput]{
		factor: SharpTurns,
		prepare: func(in *SharpTurnsInput) (bool, Origin, float64, []string, error) {
			return in.TurnCount != nil, OriginReal, 0, nil, nil
		},
		rules: []rule[SharpTurnsInput]{
			{"fewer than 1 sharp turn per 10 km", -2, func(in *SharpTurnsInput) bool { return turnRate(in) < 1 }},
			{"at least 3 sharp turns per 10 km", 1, func(in *SharpTurnsInput) bool {
				r := turnRate(in)
				return r >= 3 && r < 6
			}},
			{"at least 6 sharp turns per 10 km", 3, func(in *SharpTurnsInput) bool { return turnRate(in) >= 6 }},
			{"hairpin bends", 1, func(in *SharpTurnsInput) bool { return in.HairpinCount >= 1 }},
			{"3 or more hairpin bends", 2, func(in *SharpTurnsInput) bool { return in.HairpinCount >= 3 }},
		},
	}
}

// --- Blind spots ---

type BlindSpotsInput struct {
	Count        *int    `json:"count,omitempty"`
	Critical     int     `json:"critical"`
	PoorLighting bool    `json:"poor_lighting"`
	LengthKm     float64 `json:"length_km"`
}

func blindSpotRate(in *BlindSpotsInput) float64 {
	if in.Count == nil {
		return 0
	}
	return ratePer(*in.Count, in.LengthKm, 10)
}

func blindSpotsCalculator() Calculator {
	return calculator[BlindSpotsInput]{
		factor: BlindSpots,
		prepare: func(in *BlindSpotsInput) (bool, Origin, float64, []string, error) {
			return in.Count != nil, OriginReal, 0, nil, nil
		},
		rules: []rule[BlindSpotsInput]{
			{"fewer than 0.5 blind spots per 10 km", -2, func(in *BlindSpotsInput) bool { return blindSpotRate(in) < 0.5 }},
			{"at least 2 blind spots per 10 km", 2, func(in *BlindSpotsInput) bool { return blindSpotRate(in) >= 2 }},
			{"critical blind spots", 2, func(in *BlindSpotsInput) bool { return in.Critical >= 1 }},
			{"poor lighting", 1, func(in *BlindSpotsInput) bool { return in.PoorLighting }},
		},
	}
}

// --- Two-way traffic ---

type TwoWayTrafficInput struct {
	UndividedPercent    *float64 `json:"undivided_percent,omitempty"`
	NarrowLanes         bool     `json:"narrow_lanes"`
	HeavyVehiclePercent float64  `json:"heavy_vehicle_percent"`
}

func twoWayTrafficCalculator() Calculator {
	undivided := func(in *TwoWayTrafficInput) float64 { return derefOr(in.UndividedPercent, 0) }
	return calculator[TwoWayTrafficInput]{
		factor: TwoWayTraffic,
		prepare: func(in *TwoWayTrafficInput) (bool, Origin, float64, []string, error) {
			return in.UndividedPercent != nil, OriginReal, 0, nil, nil
		},
		rules: []rule[TwoWayTrafficInput]{
			{"under 10% undivided carriageway", -2, func(in *TwoWayTrafficInput) bool { return undivided(in) < 10 }},
			{"at least 50% undivided carriageway", 2, func(in *TwoWayTrafficInput) bool {
				u := undivided(in)
				return u >= 50 && u < 80
			}},
			{"at least 80% undivided carriageway", 3, func(in *TwoWayTrafficInput) bool { return undivided(in) >= 80 }},
			{"narrow lanes", 1, func(in *TwoWayTrafficInput) bool { return in.NarrowLanes }},
			{"30% or more heavy vehicles", 1, func(in *TwoWayTrafficInput) bool { return in.HeavyVehiclePercent >= 30 }},
		},
	}
}

// --- Traffic density ---

type TrafficDensityInput struct {
	CongestionLevel string `json:"congestion_level"`
	PeakHourTravel  bool   `json:"peak_hour_travel"`

	// RoadClass is used to estimate congestion when no live level is known.
	RoadClass string `json:"road_class"`
}

var congestionDelta = map[string]float64{
	"low":      -2,
	"moderate": 0,
	"heavy":    2,
	"severe":   4,
}

var congestionByRoadClass = map[string]string{
	"highway":  "moderate",
	"urban":    "heavy",
	"rural":    "low",
	"mountain": "low",
}

func trafficDensityCalculator() Calculator {
	return calculator[TrafficDensityInput]{
		factor: TrafficDensity,
		prepare: func(in *TrafficDensityInput) (bool, Origin, float64, []string, error) {
			level, origin := in.CongestionLevel, OriginReal
			if level == "" {
				if in.RoadClass == "" {
					return false, "", 0, nil, nil
				}
				est, ok := congestionByRoadClass[in.RoadClass]
				if !ok {
					return false, "", 0, nil, fmt.Errorf("unknown road_class %q", in.RoadClass)
				}
				level, origin = est, OriginEstimated
			}
			d, reason, err := lookup(congestionDelta, "congestion_level", level)
			if err != nil {
				return false, "", 0, nil, err
			}
			return true, origin, d, []string{reason}, nil
		},
		rules: []rule[TrafficDensityInput]{
			{"peak-hour travel", 1, func(in *TrafficDensityInput) bool { return in.PeakHourTravel }},
		},
	}
}

// --- Weather conditions ---

type WeatherConditionsInput struct {
	Condition    string   `json:"condition"`
	VisibilityKm *float64 `json:"visibility_km,omitempty"`
	ActiveAlerts int      `json:"active_alerts"`

	// NightTimeRisk is the 0-10 risk of the planned travel window after dark.
	NightTimeRisk float64 `json:"night_time_risk"`
}

var weatherConditionDelta = map[string]float64{
	"clear":  -2,
	"cloudy": 0,
	"rain":   2,
	"fog":    3,
	"snow":   4,
	"storm":  4,
}

func weatherConditionsCalculator() Calculator {
	return calculator[WeatherConditionsInput]{
		factor: WeatherConditions,
		prepare: func(in *WeatherConditionsInput) (bool, Origin, float64, []string, error) {
			if in.Condition == "" {
				return in.VisibilityKm != nil, OriginReal, 0, nil, nil
			}
			d, reason, err := lookup(weatherConditionDelta, "condition", in.Condition)
			if err != nil {
				return false, "", 0, nil, err
			}
			return true, OriginReal, d, []string{reason}, nil
		},
		rules: []rule[WeatherConditionsInput]{
			{"visibility under 1 km", 2, func(in *WeatherConditionsInput) bool {
				return in.VisibilityKm != nil && *in.VisibilityKm < 1
			}},
			{"night-time risk above 7", 2, func(in *WeatherConditionsInput) bool { return in.NightTimeRisk > 7 }},
			{"active weather alerts", 1, func(in *WeatherConditionsInput) bool { return in.ActiveAlerts >= 1 }},
		},
	}
}

// --- Emergency services ---

type EmergencyServicesInput struct {
	NearestHospitalKm    *float64 `json:"nearest_hospital_km,omitempty"`
	NearestPoliceKm      *float64 `json:"nearest_police_km,omitempty"`
	AmbulanceResponseMin *float64 `json:"ambulance_response_min,omitempty"`
}

func emergencyServicesCalculator() Calculator {
	hospital := func(in *EmergencyServicesInput) float64 { return derefOr(in.NearestHospitalKm, 0) }
	return calculator[EmergencyServicesInput]{
		factor: EmergencyServices,
		prepare: func(in *EmergencyServicesInput) (bool, Origin, float64, []string, error) {
			return in.NearestHospitalKm != nil, OriginReal, 0, nil, nil
		},
		rules: []rule[EmergencyServicesInput]{
			{"hospital within 10 km", -2, func(in *EmergencyServicesInput) bool { return hospital(in) <= 10 }},
			{"nearest hospital over 30 km", 2, func(in *EmergencyServicesInput) bool {
				h := hospital(in)
				return h > 30 && h <= 60
			}},
			{"nearest hospital over 60 km", 3, func(in *EmergencyServicesInput) bool { return hospital(in) > 60 }},
			{"ambulance response over 30 minutes", 2, func(in *EmergencyServicesInput) bool {
				return derefOr(in.AmbulanceResponseMin, 0) > 30
			}},
			{"no police post within 25 km", 1, func(in *EmergencyServicesInput) bool {
				return in.NearestPoliceKm != nil && *in.NearestPoliceKm > 25
			}},
		},
	}
}

// --- Network coverage ---

type NetworkCoverageInput struct {
	CoveragePercent *float64 `json:"coverage_percent,omitempty"`
	DeadZones       int      `json:"dead_zones"`

	// Terrain is used to estimate coverage when no measurement is known.
	Terrain string `json:"terrain"`
}

var coverageByTerrain = map[string]float64{
	"plain":    85,
	"hilly":    65,
	"mountain": 40,
	"forest":   55,
	"desert":   50,
}

func networkCoverageCalculator() Calculator {
	return calculator[NetworkCoverageInput]{
		factor: NetworkCoverage,
		prepare: func(in *NetworkCoverageInput) (bool, Origin, float64, []string, error) {
			if in.CoveragePercent != nil {
				return true, OriginReal, 0, nil, nil
			}
			if in.Terrain == "" {
				return false, "", 0, nil, nil
			}
			est, ok := coverageByTerrain[in.Terrain]
			if !ok {
				return false, "", 0, nil, fmt.Errorf("unknown terrain %q", in.Terrain)
			}
			in.CoveragePercent = &est
			return true, OriginEstimated, 0, []string{"coverage estimated from terrain=" + in.Terrain}, nil
		},
		rules: []rule[NetworkCoverageInput]{
			{"coverage at least 90%", -2, func(in *NetworkCoverageInput) bool { return *in.CoveragePercent >= 90 }},
			{"coverage under 70%", 2, func(in *NetworkCoverageInput) bool {
				c := *in.CoveragePercent
				return c < 70 && c >= 40
			}},
			{"coverage under 40%", 4, func(in *NetworkCoverageInput) bool { return *in.CoveragePercent < 40 }},
			{"3 or more dead zones", 1, func(in *NetworkCoverageInput) bool { return in.DeadZones >= 3 }},
		},
	}
}

// --- Amenities ---

type AmenitiesInput struct {
	FuelStations   *int    `json:"fuel_stations,omitempty"`
	RestAreas      int     `json:"rest_areas"`
	Has24hServices bool    `json:"has_24h_services"`
	LengthKm       float64 `json:"length_km"`
}

func fuelRate(in *AmenitiesInput) float64 {
	if in.FuelStations == nil {
		return 0
	}
	return ratePer(*in.FuelStations, in.LengthKm, 100)
}

func amenitiesCalculator() Calculator {
	return calculator[AmenitiesInput]{
		factor: Amenities,
		prepare: func(in *AmenitiesInput) (bool, Origin, float64, []string, error) {
			return in.FuelStations != nil, OriginReal, 0, nil, nil
		},
		rules: []rule[AmenitiesInput]{
			{"3 or more fuel stations per 100 km", -1, func(in *AmenitiesInput) bool { return fuelRate(in) >= 3 }},
			{"fewer than 1 fuel station per 100 km", 2, func(in *AmenitiesInput) bool { return fuelRate(in) < 1 }},
			{"no rest areas", 1, func(in *AmenitiesInput) bool { return in.RestAreas == 0 }},
			{"no 24h services", 1, func(in *AmenitiesInput) bool { return !in.Has24hServices }},
		},
	}
}

// --- Security issues ---

type SecurityIssuesInput struct {
	IncidentCount     *int    `json:"incident_count,omitempty"`
	IsolatedStretches bool    `json:"isolated_stretches"`
	ActiveAdvisory    bool    `json:"active_advisory"`
	LengthKm          float64 `json:"length_km"`
}

func incidentRate(in *SecurityIssuesInput) float64 {
	if in.IncidentCount == nil {
		return 0
	}
	return ratePer(*in.IncidentCount, in.LengthKm, 100)
}

func securityIssuesCalculator() Calculator {
	return calculator[SecurityIssuesInput]{
		factor: SecurityIssues,
		prepare: func(in *SecurityIssuesInput) (bool, Origin, float64, []string, error) {
			return in.IncidentCount != nil, OriginReal, 0, nil, nil
		},
		rules: []rule[SecurityIssuesInput]{
			{"fewer than 1 incident per 100 km", -2, func(in *SecurityIssuesInput) bool { return incidentRate(in) < 1 }},
			{"at least 3 incidents per 100 km", 2, func(in *SecurityIssuesInput) bool {
				r := incidentRate(in)
				return r >= 3 && r < 8
			}},
			{"at least 8 incidents per 100 km", 4, func(in *SecurityIssuesInput) bool { return incidentRate(in) >= 8 }},
			{"isolated stretches", 1, func(in *SecurityIssuesInput) bool { return in.IsolatedStretches }},
			{"active security advisory", 2, func(in *SecurityIssuesInput) bool { return in.ActiveAdvisory }},
		},
	}
}
