package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

const schema = `
CREATE TABLE IF NOT EXISTS routerisk_routes (
	route_id    UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	origin      TEXT NOT NULL DEFAULT '',
	destination TEXT NOT NULL DEFAULT '',
	length_km   DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS routerisk_factor_data (
	route_id     UUID NOT NULL REFERENCES routerisk_routes(route_id) ON DELETE CASCADE,
	factor       TEXT NOT NULL,
	data         JSONB NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (route_id, factor)
);

CREATE TABLE IF NOT EXISTS routerisk_collection_status (
	route_id             UUID PRIMARY KEY REFERENCES routerisk_routes(route_id) ON DELETE CASCADE,
	succeeded_categories TEXT[] NOT NULL DEFAULT '{}',
	total_categories     INT NOT NULL DEFAULT 0,
	sample_points        INT NOT NULL DEFAULT 0,
	last_collected_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS routerisk_assessments (
	route_id             UUID PRIMARY KEY REFERENCES routerisk_routes(route_id) ON DELETE CASCADE,
	total_weighted_score DOUBLE PRECISION NOT NULL,
	risk_grade           TEXT NOT NULL,
	risk_level           TEXT NOT NULL,
	confidence_level     INT NOT NULL,
	payload              JSONB NOT NULL,
	calculated_at        TIMESTAMPTZ NOT NULL
);

ALTER TABLE routerisk_routes ADD COLUMN IF NOT EXISTS last_attempted_at TIMESTAMPTZ;

CREATE INDEX IF NOT EXISTS idx_routerisk_assessments_calculated_at
	ON routerisk_assessments (calculated_at);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) RouteExists(ctx context.Context, routeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM routerisk_routes WHERE route_id = $1)`, routeID,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) FactorData(ctx context.Context, routeID uuid.UUID, factor risk.FactorID) (json.RawMessage, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT data FROM routerisk_factor_data
		WHERE route_id = $1 AND factor = $2`, routeID, string(factor),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (s *PostgresStore) CollectionStatus(ctx context.Context, routeID uuid.UUID) (*risk.CollectionStatus, error) {
	st := &risk.CollectionStatus{}
	err := s.pool.QueryRow(ctx, `
		SELECT succeeded_categories, total_categories, sample_points, last_collected_at
		FROM routerisk_collection_status WHERE route_id = $1`, routeID,
	).Scan(&st.SucceededCategories, &st.TotalCategories, &st.SamplePoints, &st.LastCollectedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) UpsertRoute(ctx context.Context, route *Route) error {
	if route.ID == uuid.Nil {
		route.ID = uuid.New()
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO routerisk_routes (route_id, name, origin, destination, length_km)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (route_id) DO UPDATE SET
			name = EXCLUDED.name, origin = EXCLUDED.origin,
			destination = EXCLUDED.destination, length_km = EXCLUDED.length_km,
			updated_at = now()
		RETURNING created_at, updated_at`,
		route.ID, route.Name, route.Origin, route.Destination, route.LengthKm,
	).Scan(&route.CreatedAt, &route.UpdatedAt)
}

func (s *PostgresStore) GetRoute(ctx context.Context, id uuid.UUID) (*Route, error) {
	r := &Route{}
	err := s.pool.QueryRow(ctx, `
		SELECT route_id, name, origin, destination, length_km, created_at, updated_at
		FROM routerisk_routes WHERE route_id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.Origin, &r.Destination, &r.LengthKm, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) PutFactorData(ctx context.Context, routeID uuid.UUID, factor risk.FactorID, data json.RawMessage) error {
	if !factor.Valid() {
		return fmt.Errorf("unknown factor %q", factor)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO routerisk_factor_data (route_id, factor, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (route_id, factor) DO UPDATE SET
			data = EXCLUDED.data, collected_at = now()`,
		routeID, string(factor), []byte(data),
	)
	return err
}

func (s *PostgresStore) SetCollectionStatus(ctx context.Context, routeID uuid.UUID, st *risk.CollectionStatus) error {
	categories := st.SucceededCategories
	if categories == nil {
		categories = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO routerisk_collection_status
			(route_id, succeeded_categories, total_categories, sample_points, last_collected_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (route_id) DO UPDATE SET
			succeeded_categories = EXCLUDED.succeeded_categories,
			total_categories = EXCLUDED.total_categories,
			sample_points = EXCLUDED.sample_points,
			last_collected_at = EXCLUDED.last_collected_at`,
		routeID, categories, st.TotalCategories, st.SamplePoints, st.LastCollectedAt,
	)
	return err
}

func (s *PostgresStore) SaveAssessment(ctx context.Context, a *risk.RiskAssessment) (bool, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encode assessment: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO routerisk_assessments
			(route_id, total_weighted_score, risk_grade, risk_level, confidence_level, payload, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (route_id) DO UPDATE SET
			total_weighted_score = EXCLUDED.total_weighted_score,
			risk_grade = EXCLUDED.risk_grade,
			risk_level = EXCLUDED.risk_level,
			confidence_level = EXCLUDED.confidence_level,
			payload = EXCLUDED.payload,
			calculated_at = EXCLUDED.calculated_at
		WHERE routerisk_assessments.calculated_at <= EXCLUDED.calculated_at`,
		a.RouteID, a.TotalWeightedScore, string(a.RiskGrade), a.RiskLevel, a.ConfidenceLevel, payload, a.CalculatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetLatestAssessment(ctx context.Context, routeID uuid.UUID) (*risk.RiskAssessment, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM routerisk_assessments WHERE route_id = $1`, routeID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a := &risk.RiskAssessment{}
	if err := json.Unmarshal(payload, a); err != nil {
		return nil, fmt.Errorf("decode assessment for %s: %w", routeID, err)
	}
	return a, nil
}

func (s *PostgresStore) MarkAttempted(ctx context.Context, routeIDs []uuid.UUID, at time.Time) error {
	if len(routeIDs) == 0 {
		return nil
	}
	ids := make([]string, len(routeIDs))
	for i, id := range routeIDs {
		ids[i] = id.String()
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE routerisk_routes SET last_attempted_at = $2 WHERE route_id = ANY($1::uuid[])`,
		ids, at,
	)
	return err
}

func (s *PostgresStore) ListStaleRoutes(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT r.route_id
		FROM routerisk_routes r
		LEFT JOIN routerisk_assessments a ON a.route_id = r.route_id
		WHERE (a.route_id IS NULL OR a.calculated_at < $1)
		  AND (r.last_attempted_at IS NULL OR r.last_attempted_at < $1)
		ORDER BY GREATEST(a.calculated_at, r.last_attempted_at) ASC NULLS FIRST, r.created_at ASC
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
