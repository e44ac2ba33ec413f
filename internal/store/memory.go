package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

// MemoryStore keeps everything in process memory. It is safe for concurrent
// use and intended for local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	routes      map[uuid.UUID]*Route
	factors     map[uuid.UUID]map[risk.FactorID]json.RawMessage
	status      map[uuid.UUID]*risk.CollectionStatus
	assessments map[uuid.UUID]*risk.RiskAssessment
	attempted   map[uuid.UUID]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:      make(map[uuid.UUID]*Route),
		factors:     make(map[uuid.UUID]map[risk.FactorID]json.RawMessage),
		status:      make(map[uuid.UUID]*risk.CollectionStatus),
		assessments: make(map[uuid.UUID]*risk.RiskAssessment),
		attempted:   make(map[uuid.UUID]time.Time),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) RouteExists(_ context.Context, routeID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.routes[routeID]
	return ok, nil
}

func (m *MemoryStore) FactorData(_ context.Context, routeID uuid.UUID, factor risk.FactorID) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.factors[routeID][factor]
	if !ok {
		return nil, nil
	}
	return append(json.RawMessage(nil), data...), nil
}

func (m *MemoryStore) CollectionStatus(_ context.Context, routeID uuid.UUID) (*risk.CollectionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[routeID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (m *MemoryStore) UpsertRoute(_ context.Context, route *Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if route.ID == uuid.Nil {
		route.ID = uuid.New()
	}
	now := time.Now().UTC()
	if existing, ok := m.routes[route.ID]; ok {
		route.CreatedAt = existing.CreatedAt
	} else {
		route.CreatedAt = now
	}
	route.UpdatedAt = now
	cp := *route
	m.routes[route.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRoute(_ context.Context, id uuid.UUID) (*Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) PutFactorData(_ context.Context, routeID uuid.UUID, factor risk.FactorID, data json.RawMessage) error {
	if !factor.Valid() {
		return fmt.Errorf("unknown factor %q", factor)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[routeID]; !ok {
		return fmt.Errorf("%w: %s", risk.ErrRouteNotFound, routeID)
	}
	if m.factors[routeID] == nil {
		m.factors[routeID] = make(map[risk.FactorID]json.RawMessage)
	}
	m.factors[routeID][factor] = append(json.RawMessage(nil), data...)
	return nil
}

func (m *MemoryStore) SetCollectionStatus(_ context.Context, routeID uuid.UUID, st *risk.CollectionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[routeID]; !ok {
		return fmt.Errorf("%w: %s", risk.ErrRouteNotFound, routeID)
	}
	cp := *st
	m.status[routeID] = &cp
	return nil
}

func (m *MemoryStore) SaveAssessment(_ context.Context, a *risk.RiskAssessment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.assessments[a.RouteID]; ok && cur.CalculatedAt.After(a.CalculatedAt) {
		return false, nil
	}
	m.assessments[a.RouteID] = a
	return true, nil
}

func (m *MemoryStore) GetLatestAssessment(_ context.Context, routeID uuid.UUID) (*risk.RiskAssessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assessments[routeID], nil
}

func (m *MemoryStore) MarkAttempted(_ context.Context, routeIDs []uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range routeIDs {
		if _, ok := m.routes[id]; ok {
			m.attempted[id] = at
		}
	}
	return nil
}

func (m *MemoryStore) ListStaleRoutes(_ context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type candidate struct {
		id      uuid.UUID
		at      time.Time
		created time.Time
	}
	var stale []candidate
	for id, r := range m.routes {
		var at time.Time
		if a, ok := m.assessments[id]; ok {
			if !a.CalculatedAt.Before(olderThan) {
				continue
			}
			at = a.CalculatedAt
		}
		if tried, ok := m.attempted[id]; ok {
			if !tried.Before(olderThan) {
				continue
			}
			if tried.After(at) {
				at = tried
			}
		}
		stale = append(stale, candidate{id: id, at: at, created: r.CreatedAt})
	}
	// Routes never assessed nor attempted carry a zero time and sort first.
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].at.Equal(stale[j].at) {
			return stale[i].at.Before(stale[j].at)
		}
		return stale[i].created.Before(stale[j].created)
	})

	if len(stale) > limit {
		stale = stale[:limit]
	}
	ids := make([]uuid.UUID, len(stale))
	for i, c := range stale {
		ids[i] = c.id
	}
	return ids, nil
}
