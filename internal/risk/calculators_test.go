package risk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calculatorFor(t *testing.T, f FactorID) Calculator {
	t.Helper()
	for _, c := range DefaultCalculators() {
		if c.Factor() == f {
			return c
		}
	}
	t.Fatalf("no calculator for %s", f)
	return nil
}

func TestDefaultCalculatorsCoverEveryFactor(t *testing.T) {
	calcs := DefaultCalculators()
	require.Len(t, calcs, len(AllFactors))
	for i, c := range calcs {
		assert.Equal(t, AllFactors[i], c.Factor())
	}
}

func TestCalculators(t *testing.T) {
	tests := []struct {
		name   string
		factor FactorID
		input  string
		value  float64
		origin Origin
	}{
		{"road critical with construction", RoadConditions, `{"surface_quality":"critical","has_construction":true}`, 10, OriginReal},
		{"road good", RoadConditions, `{"surface_quality":"good"}`, 3, OriginReal},
		{"road potholes only", RoadConditions, `{"potholes_per_km":7.5}`, 6, OriginReal},
		{"accidents with fatality", AccidentProne, `{"accident_count":2,"fatal_accidents":1,"length_km":200}`, 7, OriginReal},
		{"accidents rare", AccidentProne, `{"accident_count":0,"length_km":120}`, 3, OriginReal},
		{"winding with hairpins", SharpTurns, `{"turn_count":12,"hairpin_count":3,"length_km":20}`, 10, OriginReal},
		{"few blind spots", BlindSpots, `{"count":1,"length_km":50}`, 3, OriginReal},
		{"blind spots critical and dark", BlindSpots, `{"count":5,"critical":1,"poor_lighting":true,"length_km":20}`, 10, OriginReal},
		{"undivided narrow road", TwoWayTraffic, `{"undivided_percent":85,"narrow_lanes":true}`, 9, OriginReal},
		{"divided highway", TwoWayTraffic, `{"undivided_percent":5}`, 3, OriginReal},
		{"traffic estimated from urban class", TrafficDensity, `{"road_class":"urban"}`, 7, OriginEstimated},
		{"traffic low", TrafficDensity, `{"congestion_level":"low"}`, 3, OriginReal},
		{"traffic severe at peak", TrafficDensity, `{"congestion_level":"severe","peak_hour_travel":true}`, 10, OriginReal},
		{"fog at night", WeatherConditions, `{"condition":"fog","night_time_risk":8}`, 10, OriginReal},
		{"clear weather", WeatherConditions, `{"condition":"clear"}`, 3, OriginReal},
		{"cloudy weather", WeatherConditions, `{"condition":"cloudy"}`, 5, OriginReal},
		{"hospital nearby", EmergencyServices, `{"nearest_hospital_km":5}`, 3, OriginReal},
		{"remote from all services", EmergencyServices, `{"nearest_hospital_km":70,"ambulance_response_min":45,"nearest_police_km":30}`, 10, OriginReal},
		{"coverage estimated from mountain terrain", NetworkCoverage, `{"terrain":"mountain"}`, 7, OriginEstimated},
		{"coverage strong", NetworkCoverage, `{"coverage_percent":95}`, 3, OriginReal},
		{"coverage poor with dead zones", NetworkCoverage, `{"coverage_percent":25,"dead_zones":4}`, 10, OriginReal},
		{"no amenities", Amenities, `{"fuel_stations":0,"rest_areas":0,"has_24h_services":false,"length_km":200}`, 9, OriginReal},
		{"well served", Amenities, `{"fuel_stations":8,"rest_areas":2,"has_24h_services":true,"length_km":100}`, 4, OriginReal},
		{"security advisory", SecurityIssues, `{"incident_count":10,"active_advisory":true,"length_km":100}`, 10, OriginReal},
		{"security quiet", SecurityIssues, `{"incident_count":0,"length_km":300}`, 3, OriginReal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := calculatorFor(t, tt.factor).Calculate(json.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.factor, score.Factor)
			assert.Equal(t, tt.value, score.Value)
			assert.Equal(t, tt.origin, score.Origin)
			assert.GreaterOrEqual(t, score.Value, MinFactorValue)
			assert.LessOrEqual(t, score.Value, MaxFactorValue)
		})
	}
}

func TestCalculatorClampRecordsUnclampedValue(t *testing.T) {
	score, err := calculatorFor(t, RoadConditions).Calculate(json.RawMessage(`{"surface_quality":"critical","has_construction":true}`))
	require.NoError(t, err)
	assert.Equal(t, MaxFactorValue, score.Value)
	assert.Equal(t, 12.0, score.Detail["unclamped"])
	assert.Equal(t, []string{"surface_quality=critical", "active construction"}, score.Detail["adjustments"])
}

func TestCalculatorsWithoutData(t *testing.T) {
	for _, c := range DefaultCalculators() {
		for _, input := range []string{"", "null", "{}"} {
			score, err := c.Calculate(json.RawMessage(input))
			require.NoError(t, err, "%s with %q", c.Factor(), input)
			assert.Equal(t, OriginDefault, score.Origin, "%s with %q", c.Factor(), input)
			assert.Equal(t, NeutralFactorValue, score.Value)
		}
	}
}

func TestCalculatorsRejectMalformedInput(t *testing.T) {
	tests := []struct {
		factor FactorID
		input  string
	}{
		{RoadConditions, `{"surface_quality":"excellent"}`},
		{RoadConditions, `{"surface_quality":`},
		{AccidentProne, `{"accident_count":"many"}`},
		{TrafficDensity, `{"road_class":"spaceway"}`},
		{WeatherConditions, `{"condition":"hail"}`},
		{NetworkCoverage, `{"terrain":"ocean"}`},
		{Amenities, `[1,2,3]`},
	}
	for _, tt := range tests {
		_, err := calculatorFor(t, tt.factor).Calculate(json.RawMessage(tt.input))
		assert.Error(t, err, "%s with %s", tt.factor, tt.input)
	}
}

func TestCalculatorsDeterministic(t *testing.T) {
	inputs := map[FactorID]string{
		TrafficDensity:  `{"road_class":"highway","peak_hour_travel":true}`,
		NetworkCoverage: `{"terrain":"forest","dead_zones":1}`,
		SharpTurns:      `{"turn_count":4,"length_km":10}`,
	}
	for f, in := range inputs {
		c := calculatorFor(t, f)
		first, err := c.Calculate(json.RawMessage(in))
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			again, err := c.Calculate(json.RawMessage(in))
			require.NoError(t, err)
			assert.Equal(t, first.Value, again.Value)
			assert.Equal(t, first.Origin, again.Origin)
		}
	}
}
