package recalc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RouteRisk/internal/hermes"
	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
	"github.com/MikeSquared-Agency/RouteRisk/internal/store"
)

const (
	TriggerAPI        = "api"
	TriggerBatch      = "batch"
	TriggerSchedule   = "schedule"
	TriggerDataUpdate = "data_updated"
)

type Options struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchLimit int
	Now        func() time.Time
}

// Recalculator runs the engine, persists the latest snapshot per route and
// announces results on the event bus. It also keeps snapshots fresh in the
// background.
type Recalculator struct {
	engine *risk.Engine
	store  store.Store
	hermes hermes.Client
	opts   Options
	logger *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(e *risk.Engine, s store.Store, h hermes.Client, opts Options, logger *slog.Logger) *Recalculator {
	if opts.BatchLimit <= 0 || opts.BatchLimit > e.MaxBatchSize() {
		opts.BatchLimit = e.MaxBatchSize()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recalculator{
		engine: e,
		store:  s,
		hermes: h,
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start launches the stale sweep loop when an interval is configured.
func (r *Recalculator) Start(ctx context.Context) {
	if r.opts.Interval <= 0 {
		return
	}
	r.wg.Add(1)
	go r.sweepLoop(ctx)
}

func (r *Recalculator) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// SetupSubscriptions recalculates a route whenever the collection layer
// reports new data for it.
func (r *Recalculator) SetupSubscriptions(ctx context.Context) {
	if r.hermes == nil {
		return
	}
	if err := r.hermes.Subscribe(hermes.SubjectDataUpdated, func(subject string, data []byte) {
		r.handleDataUpdated(ctx, subject, data)
	}); err != nil {
		r.logger.Error("failed to subscribe", "subject", hermes.SubjectDataUpdated, "error", err)
	}
}

func (r *Recalculator) handleDataUpdated(ctx context.Context, subject string, data []byte) {
	raw, ok := hermes.RouteIDFromSubject(subject)
	if !ok {
		var evt hermes.DataUpdatedEvent
		if err := json.Unmarshal(data, &evt); err != nil || evt.RouteID == "" {
			r.logger.Warn("ignoring data update without route id", "subject", subject)
			return
		}
		raw = evt.RouteID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		r.logger.Warn("ignoring data update for malformed route id", "subject", subject, "route_id", raw)
		return
	}
	if _, _, err := r.Recalculate(ctx, id, TriggerDataUpdate); err != nil {
		r.logger.Warn("recalculation after data update failed", "route_id", id, "error", err)
	}
}

// Recalculate assesses one route and stores the result. The returned bool
// reports whether the snapshot was written; a newer stored snapshot wins.
func (r *Recalculator) Recalculate(ctx context.Context, routeID uuid.UUID, trigger string) (*risk.RiskAssessment, bool, error) {
	a, err := r.engine.Assess(ctx, routeID)
	if err != nil {
		return nil, false, err
	}
	applied, err := r.persist(ctx, a, trigger)
	return a, applied, err
}

// RecalculateBatch assesses each route independently and stores every
// successful result.
func (r *Recalculator) RecalculateBatch(ctx context.Context, routeIDs []string, trigger string) ([]risk.BatchResult, error) {
	results, err := r.engine.CalculateBatch(ctx, routeIDs)
	if err != nil {
		return nil, err
	}

	succeeded := 0
	for _, res := range results {
		if !res.Success {
			continue
		}
		succeeded++
		if _, err := r.persist(ctx, res.Assessment, trigger); err != nil {
			r.logger.Error("failed to store assessment", "route_id", res.RouteID, "error", err)
		}
	}

	r.publish(hermes.SubjectBatchDone, hermes.BatchCompletedEvent{
		Requested: len(routeIDs),
		Succeeded: succeeded,
		Failed:    len(routeIDs) - succeeded,
		Trigger:   trigger,
		Timestamp: r.opts.Now().UTC(),
	})
	return results, nil
}

func (r *Recalculator) persist(ctx context.Context, a *risk.RiskAssessment, trigger string) (bool, error) {
	applied, err := r.store.SaveAssessment(ctx, a)
	if err != nil {
		return false, fmt.Errorf("save assessment for %s: %w", a.RouteID, err)
	}
	if !applied {
		r.logger.Info("newer assessment already stored, skipping", "route_id", a.RouteID, "calculated_at", a.CalculatedAt)
		return false, nil
	}

	missing := make([]string, len(a.DataQuality.MissingFactors))
	for i, f := range a.DataQuality.MissingFactors {
		missing[i] = string(f)
	}
	r.publish(hermes.SubjectRouteAssessed(a.RouteID.String()), hermes.RouteAssessedEvent{
		RouteID:            a.RouteID.String(),
		TotalWeightedScore: a.TotalWeightedScore,
		RiskGrade:          string(a.RiskGrade),
		RiskLevel:          a.RiskLevel,
		ConfidenceLevel:    a.ConfidenceLevel,
		MissingFactors:     missing,
		Trigger:            trigger,
		CalculatedAt:       a.CalculatedAt,
	})
	return true, nil
}

func (r *Recalculator) publish(subject string, data interface{}) {
	if r.hermes == nil {
		return
	}
	if err := r.hermes.Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (r *Recalculator) sweepLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.SweepStale(ctx); err != nil {
				r.logger.Error("stale sweep failed", "error", err)
			}
		}
	}
}

// SweepStale recalculates one batch of routes whose snapshot is older than
// StaleAfter. It returns the number of routes it attempted.
func (r *Recalculator) SweepStale(ctx context.Context) (int, error) {
	cutoff := r.opts.Now().Add(-r.opts.StaleAfter)
	ids, err := r.store.ListStaleRoutes(ctx, cutoff, r.opts.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list stale routes: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// Record the attempt first so routes that keep failing back off for
	// StaleAfter instead of heading the queue on every sweep.
	if err := r.store.MarkAttempted(ctx, ids, r.opts.Now()); err != nil {
		return 0, fmt.Errorf("mark attempted: %w", err)
	}

	routeIDs := make([]string, len(ids))
	for i, id := range ids {
		routeIDs[i] = id.String()
	}
	r.logger.Info("recalculating stale routes", "count", len(routeIDs), "cutoff", cutoff)
	if _, err := r.RecalculateBatch(ctx, routeIDs, TriggerSchedule); err != nil {
		return 0, err
	}
	return len(routeIDs), nil
}
