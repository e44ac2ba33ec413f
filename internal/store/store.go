package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

type Route struct {
	ID          uuid.UUID `json:"route_id"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	LengthKm    float64   `json:"length_km"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists routes, their collected factor documents and the latest
// assessment per route. It satisfies risk.Supplier so the engine can read
// factor data straight from it.
type Store interface {
	risk.Supplier

	UpsertRoute(ctx context.Context, route *Route) error
	GetRoute(ctx context.Context, id uuid.UUID) (*Route, error)

	PutFactorData(ctx context.Context, routeID uuid.UUID, factor risk.FactorID, data json.RawMessage) error
	SetCollectionStatus(ctx context.Context, routeID uuid.UUID, status *risk.CollectionStatus) error

	// SaveAssessment stores a as the route's latest snapshot unless a newer
	// one is already stored. It reports whether the write was applied.
	SaveAssessment(ctx context.Context, a *risk.RiskAssessment) (bool, error)
	GetLatestAssessment(ctx context.Context, routeID uuid.UUID) (*risk.RiskAssessment, error)

	// MarkAttempted records that a background recalculation was tried for
	// the routes at the given time, whether or not it produced a snapshot.
	MarkAttempted(ctx context.Context, routeIDs []uuid.UUID, at time.Time) error

	// ListStaleRoutes returns routes whose latest snapshot predates olderThan
	// or that were never assessed, oldest first. Routes attempted at or after
	// olderThan are left out so a route that keeps failing cannot starve the
	// rest.
	ListStaleRoutes(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error)

	Close() error
}
