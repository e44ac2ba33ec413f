package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

func newTestServer(t *testing.T, known uuid.UUID) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	base := "/v1/routes/" + known.String()
	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer collector-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"route_id":"` + known.String() + `"}`))
	})
	mux.HandleFunc(base+"/factors/weatherConditions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"condition":"rain","active_alerts":1}`))
	})
	mux.HandleFunc(base+"/factors/securityIssues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	mux.HandleFunc(base+"/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total_categories":11,"sample_points":64,"last_collected_at":"2026-03-14T08:00:00Z"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientSupplier(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	srv := newTestServer(t, id)
	c := NewHTTPClient(srv.URL, "collector-token", time.Second)

	exists, err := c.RouteExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.RouteExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)

	raw, err := c.FactorData(ctx, id, risk.WeatherConditions)
	require.NoError(t, err)
	assert.JSONEq(t, `{"condition":"rain","active_alerts":1}`, string(raw))

	raw, err = c.FactorData(ctx, id, risk.Amenities)
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = c.FactorData(ctx, id, risk.SecurityIssues)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	st, err := c.CollectionStatus(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 64, st.SamplePoints)
	require.NotNil(t, st.LastCollectedAt)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), st.LastCollectedAt.UTC())
}

func TestHTTPClientUnauthorized(t *testing.T) {
	id := uuid.New()
	srv := newTestServer(t, id)
	c := NewHTTPClient(srv.URL, "", time.Second)

	_, err := c.RouteExists(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestHTTPClientFeedsEngine(t *testing.T) {
	id := uuid.New()
	srv := newTestServer(t, id)
	c := NewHTTPClient(srv.URL, "collector-token", time.Second)

	e, err := risk.NewEngine(risk.DefaultPolicy(), risk.DefaultGradeTable(), risk.DefaultCalculators(), c, risk.DefaultOptions(), nil)
	require.NoError(t, err)

	a, err := e.Assess(context.Background(), id)
	require.NoError(t, err)
	// Weather is the only factor with data; the upstream failure on security
	// issues degrades to the neutral default.
	assert.Equal(t, []risk.FactorID{
		risk.RoadConditions, risk.AccidentProne, risk.SharpTurns, risk.BlindSpots,
		risk.TwoWayTraffic, risk.TrafficDensity, risk.EmergencyServices,
		risk.NetworkCoverage, risk.Amenities, risk.SecurityIssues,
	}, a.DataQuality.MissingFactors)
	assert.Equal(t, 8.0, a.FactorScores[6].Value)
}
