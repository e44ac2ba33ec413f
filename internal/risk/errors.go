package risk

import (
	"errors"
	"fmt"
)

var (
	ErrRouteNotFound  = errors.New("route not found")
	ErrInvalidRouteID = errors.New("invalid route id")
	ErrBatchTooLarge  = errors.New("batch too large")
)

// ConfigurationError is returned when the weight policy or grade bands are
// unusable. The engine refuses to start with one.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "risk configuration: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// AggregationInvariantError signals a bug upstream of the aggregator, such as
// an unclamped calculator or a band table that misses a score.
type AggregationInvariantError struct {
	Reason string
}

func (e *AggregationInvariantError) Error() string {
	return "aggregation invariant violated: " + e.Reason
}

func invariantErrorf(format string, args ...interface{}) error {
	return &AggregationInvariantError{Reason: fmt.Sprintf(format, args...)}
}
