package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func seedRoute(t *testing.T, s *MemoryStore, name string) uuid.UUID {
	t.Helper()
	r := &Route{Name: name, LengthKm: 120}
	require.NoError(t, s.UpsertRoute(context.Background(), r))
	require.NotEqual(t, uuid.Nil, r.ID)
	return r.ID
}

func TestMemoryStoreSupplier(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := seedRoute(t, s, "Coast road")

	exists, err := s.RouteExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.RouteExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)

	raw, err := s.FactorData(ctx, id, risk.RoadConditions)
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, s.PutFactorData(ctx, id, risk.RoadConditions, json.RawMessage(`{"surface_quality":"poor"}`)))
	raw, err = s.FactorData(ctx, id, risk.RoadConditions)
	require.NoError(t, err)
	assert.JSONEq(t, `{"surface_quality":"poor"}`, string(raw))

	err = s.PutFactorData(ctx, id, risk.FactorID("tolls"), json.RawMessage(`{}`))
	assert.Error(t, err)

	err = s.PutFactorData(ctx, uuid.New(), risk.Amenities, json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, risk.ErrRouteNotFound))

	st, err := s.CollectionStatus(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, st)

	now := time.Now()
	require.NoError(t, s.SetCollectionStatus(ctx, id, &risk.CollectionStatus{TotalCategories: 11, SamplePoints: 42, LastCollectedAt: &now}))
	st, err = s.CollectionStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 42, st.SamplePoints)
}

func TestMemoryStoreUpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := &Route{Name: "Pass"}
	require.NoError(t, s.UpsertRoute(ctx, r))
	created := r.CreatedAt

	r.Name = "Mountain pass"
	require.NoError(t, s.UpsertRoute(ctx, r))

	got, err := s.GetRoute(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mountain pass", got.Name)
	assert.Equal(t, created, got.CreatedAt)

	missing, err := s.GetRoute(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStoreSaveAssessmentLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := seedRoute(t, s, "Ring road")
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	applied, err := s.SaveAssessment(ctx, &risk.RiskAssessment{RouteID: id, TotalWeightedScore: 4.1, CalculatedAt: t0})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.SaveAssessment(ctx, &risk.RiskAssessment{RouteID: id, TotalWeightedScore: 6.3, CalculatedAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.True(t, applied)

	// An older result arriving late must not replace the newer snapshot.
	applied, err = s.SaveAssessment(ctx, &risk.RiskAssessment{RouteID: id, TotalWeightedScore: 2.0, CalculatedAt: t0.Add(-time.Minute)})
	require.NoError(t, err)
	assert.False(t, applied)

	latest, err := s.GetLatestAssessment(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 6.3, latest.TotalWeightedScore)
}

func TestMemoryStoreListStaleRoutes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	fresh := seedRoute(t, s, "fresh")
	old := seedRoute(t, s, "old")
	older := seedRoute(t, s, "older")
	never := seedRoute(t, s, "never")

	for id, at := range map[uuid.UUID]time.Time{
		fresh: cutoff.Add(time.Hour),
		old:   cutoff.Add(-time.Hour),
		older: cutoff.Add(-48 * time.Hour),
	} {
		_, err := s.SaveAssessment(ctx, &risk.RiskAssessment{RouteID: id, CalculatedAt: at})
		require.NoError(t, err)
	}

	ids, err := s.ListStaleRoutes(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{never, older, old}, ids)

	ids, err = s.ListStaleRoutes(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{never, older}, ids)
}

func TestMemoryStoreListStaleRoutesSkipsRecentAttempts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	failing := seedRoute(t, s, "failing")
	retried := seedRoute(t, s, "retried")
	healthy := seedRoute(t, s, "healthy")

	require.NoError(t, s.MarkAttempted(ctx, []uuid.UUID{failing, uuid.New()}, cutoff.Add(time.Minute)))
	require.NoError(t, s.MarkAttempted(ctx, []uuid.UUID{retried}, cutoff.Add(-time.Hour)))

	ids, err := s.ListStaleRoutes(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{healthy, retried}, ids)

	// An old snapshot with a newer failed attempt sorts by the attempt.
	older := seedRoute(t, s, "older")
	_, err = s.SaveAssessment(ctx, &risk.RiskAssessment{RouteID: older, CalculatedAt: cutoff.Add(-48 * time.Hour)})
	require.NoError(t, err)
	require.NoError(t, s.MarkAttempted(ctx, []uuid.UUID{older}, cutoff.Add(-30*time.Minute)))

	ids, err = s.ListStaleRoutes(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{healthy, retried, older}, ids)
}

func TestMemoryStoreDrivesEngine(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := seedRoute(t, s, "Valley road")
	require.NoError(t, s.PutFactorData(ctx, id, risk.WeatherConditions, json.RawMessage(`{"condition":"storm"}`)))

	e, err := risk.NewEngine(risk.DefaultPolicy(), risk.DefaultGradeTable(), risk.DefaultCalculators(), s, risk.DefaultOptions(), nil)
	require.NoError(t, err)

	a, err := e.Assess(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 9, a.DataQuality.CompletionPercentage)
	assert.Len(t, a.DataQuality.MissingFactors, 10)
}
