package resilience

import (
	"context"

	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/pkg/logger"
)

// FallbackFunc runs when the breaker is open or the wrapped call keeps failing.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback surfaces ErrCircuitOpen to the caller unchanged.
func NoopFallback(_ context.Context, _ error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// StaticFallback substitutes a fixed value when the circuit is open, for
// callers where a safe default exists (empty list, zero score).
func StaticFallback(defaultValue interface{}) FallbackFunc {
	return func(_ context.Context, err error) (interface{}, error) {
		logger.Warn("circuit breaker open, returning static fallback", zap.Error(err))
		return defaultValue, nil
	}
}

// GracefulDegradation still returns ErrCircuitOpen but records which
// dependency degraded, for callers that run their own fallback path.
func GracefulDegradation(serviceName string) FallbackFunc {
	return func(_ context.Context, err error) (interface{}, error) {
		logger.Warn("circuit breaker open, service degraded",
			zap.String("service", serviceName),
			zap.Error(err),
		)
		return nil, ErrCircuitOpen
	}
}
