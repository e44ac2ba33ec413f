package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Supplier provides the per-route inputs the engine consumes. FactorData
// returns nil when no data exists for a factor.
type Supplier interface {
	RouteExists(ctx context.Context, routeID uuid.UUID) (bool, error)
	FactorData(ctx context.Context, routeID uuid.UUID, factor FactorID) (json.RawMessage, error)
	CollectionStatus(ctx context.Context, routeID uuid.UUID) (*CollectionStatus, error)
}

// Options tunes engine behaviour outside the scoring tables.
type Options struct {
	FactorTimeout      time.Duration
	StalenessThreshold time.Duration
	HighSampleDensity  int
	MaxBatchSize       int
	BatchConcurrency   int
	Now                func() time.Time
}

// DefaultOptions returns the standard engine options.
func DefaultOptions() Options {
	return Options{
		FactorTimeout:      5 * time.Second,
		StalenessThreshold: 24 * time.Hour,
		HighSampleDensity:  50,
		MaxBatchSize:       10,
		BatchConcurrency:   4,
		Now:                time.Now,
	}
}

// Engine runs the multi-factor assessment. It holds no per-route state and
// may be shared by concurrent callers.
type Engine struct {
	policy      *WeightPolicy
	grades      *GradeTable
	calculators []Calculator
	supplier    Supplier
	opts        Options
	logger      *slog.Logger
}

// NewEngine wires the calculators, policy and band table together. It
// returns a ConfigurationError when the wiring is unusable.
func NewEngine(policy *WeightPolicy, grades *GradeTable, calculators []Calculator, supplier Supplier, opts Options, logger *slog.Logger) (*Engine, error) {
	if policy == nil {
		return nil, configErrorf("weight policy is required")
	}
	if grades == nil {
		return nil, configErrorf("grade table is required")
	}
	if supplier == nil {
		return nil, configErrorf("supplier is required")
	}
	seen := make(map[FactorID]bool, len(calculators))
	for _, c := range calculators {
		f := c.Factor()
		if !f.Valid() {
			return nil, configErrorf("calculator for unknown factor %q", f)
		}
		if seen[f] {
			return nil, configErrorf("duplicate calculator for %s", f)
		}
		seen[f] = true
	}

	def := DefaultOptions()
	if opts.FactorTimeout <= 0 {
		opts.FactorTimeout = def.FactorTimeout
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = def.MaxBatchSize
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = def.BatchConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		policy:      policy,
		grades:      grades,
		calculators: calculators,
		supplier:    supplier,
		opts:        opts,
		logger:      logger,
	}, nil
}

// Policy returns the engine's weight policy.
func (e *Engine) Policy() *WeightPolicy { return e.policy }

// Grades returns the engine's grade table.
func (e *Engine) Grades() *GradeTable { return e.grades }

// MaxBatchSize returns the largest batch CalculateBatch accepts.
func (e *Engine) MaxBatchSize() int { return e.opts.MaxBatchSize }

// CalculateRouteRisk assesses a single route identified by its string id.
func (e *Engine) CalculateRouteRisk(ctx context.Context, routeID string) (*RiskAssessment, error) {
	id, err := uuid.Parse(routeID)
	if err != nil {
		assessmentFailures.WithLabelValues("invalid_id").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidRouteID, routeID)
	}
	return e.Assess(ctx, id)
}

// Assess runs all calculators for the route, aggregates, grades and explains
// the result. Factor-level problems never fail the assessment.
func (e *Engine) Assess(ctx context.Context, routeID uuid.UUID) (*RiskAssessment, error) {
	start := time.Now()

	exists, err := e.supplier.RouteExists(ctx, routeID)
	if err != nil {
		assessmentFailures.WithLabelValues("supplier").Inc()
		return nil, fmt.Errorf("look up route %s: %w", routeID, err)
	}
	if !exists {
		assessmentFailures.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}

	scores := e.runCalculators(ctx, routeID)
	if err := ctx.Err(); err != nil {
		assessmentFailures.WithLabelValues("cancelled").Inc()
		return nil, err
	}

	status, err := e.supplier.CollectionStatus(ctx, routeID)
	if err != nil {
		e.logger.Warn("collection status unavailable", "route_id", routeID, "error", err)
		status = nil
	}

	agg, err := Aggregate(scores, e.policy)
	if err != nil {
		return nil, e.invariantFailure(routeID, err)
	}
	band, err := e.grades.Classify(agg.Total)
	if err != nil {
		return nil, e.invariantFailure(routeID, err)
	}

	now := e.opts.Now()
	dq, confidence := AssessQuality(agg.Scores, status, QualityOptions{
		HighSampleDensity:  e.opts.HighSampleDensity,
		StalenessThreshold: e.opts.StalenessThreshold,
	}, now)

	a := newAssessment(routeID, agg, band, dq, confidence, e.policy, now)

	assessmentsTotal.WithLabelValues(string(a.RiskGrade)).Inc()
	confidenceLevels.Observe(float64(a.ConfidenceLevel))
	assessmentDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("route assessed",
		"route_id", routeID,
		"score", a.TotalWeightedScore,
		"grade", a.RiskGrade,
		"confidence", a.ConfidenceLevel,
		"missing_factors", len(dq.MissingFactors),
	)
	return a, nil
}

func (e *Engine) invariantFailure(routeID uuid.UUID, err error) error {
	assessmentFailures.WithLabelValues("invariant").Inc()
	e.logger.Error("risk aggregation invariant violated", "route_id", routeID, "error", err)
	return err
}

// runCalculators fans the calculators out and waits for every one of them.
// Each goroutine writes only its own slot.
func (e *Engine) runCalculators(ctx context.Context, routeID uuid.UUID) map[FactorID]FactorScore {
	results := make([]FactorScore, len(e.calculators))
	var g errgroup.Group
	for i, c := range e.calculators {
		i, c := i, c
		g.Go(func() error {
			results[i] = e.runCalculator(ctx, routeID, c)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[FactorID]FactorScore, len(results))
	for _, s := range results {
		out[s.Factor] = s
	}
	return out
}

type fetchResult struct {
	raw json.RawMessage
	err error
}

func (e *Engine) runCalculator(ctx context.Context, routeID uuid.UUID, c Calculator) (score FactorScore) {
	f := c.Factor()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("factor calculator panicked", "route_id", routeID, "factor", f, "panic", r)
			factorDefaults.WithLabelValues(string(f), "panic").Inc()
			score = DefaultScore(f, "calculator failed")
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, e.opts.FactorTimeout)
	defer cancel()

	ch := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fetchResult{err: fmt.Errorf("factor fetch panicked: %v", r)}
			}
		}()
		raw, err := e.supplier.FactorData(fctx, routeID, f)
		ch <- fetchResult{raw: raw, err: err}
	}()

	var res fetchResult
	select {
	case res = <-ch:
	case <-fctx.Done():
		res.err = fctx.Err()
	}
	if res.err != nil {
		reason := "unavailable"
		if errors.Is(res.err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		e.logger.Warn("factor data unavailable", "route_id", routeID, "factor", f, "error", res.err)
		factorDefaults.WithLabelValues(string(f), reason).Inc()
		return DefaultScore(f, "data "+reason)
	}

	s, err := c.Calculate(res.raw)
	if err != nil {
		e.logger.Warn("invalid factor data", "route_id", routeID, "factor", f, "error", err)
		factorDefaults.WithLabelValues(string(f), "invalid_input").Inc()
		return DefaultScore(f, "invalid input")
	}
	if s.Origin == OriginDefault {
		factorDefaults.WithLabelValues(string(f), "no_data").Inc()
	}
	return s
}

// CalculateBatch assesses each route independently. A failing route yields
// an unsuccessful entry and never aborts the rest of the batch. Batches larger
// than MaxBatchSize are rejected outright.
func (e *Engine) CalculateBatch(ctx context.Context, routeIDs []string) ([]BatchResult, error) {
	if len(routeIDs) > e.opts.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d routes, max %d", ErrBatchTooLarge, len(routeIDs), e.opts.MaxBatchSize)
	}

	results := make([]BatchResult, len(routeIDs))
	var g errgroup.Group
	g.SetLimit(e.opts.BatchConcurrency)
	for i, rid := range routeIDs {
		i, rid := i, rid
		g.Go(func() error {
			a, err := e.CalculateRouteRisk(ctx, rid)
			if err != nil {
				results[i] = BatchResult{RouteID: rid, Success: false, Error: err.Error()}
				return nil
			}
			results[i] = BatchResult{RouteID: rid, Success: true, Assessment: a}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}
