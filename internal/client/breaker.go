package client

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/circuitbreaker"
	"github.com/kjstillabower/energy-forecast-service/internal/models"
	"github.com/kjstillabower/energy-forecast-service/internal/observability"
)

// ErrorCategoryCircuitOpen labels calls rejected without reaching the service.
const ErrorCategoryCircuitOpen ErrorCategory = "circuit_open"

// BreakerClient fails fast while the prediction service is considered down.
type BreakerClient struct {
	next    PredictionClient
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerClient wraps next. Only failures that point at an unhealthy service trip the
// breaker; rejected input and caller cancellation do not.
func NewBreakerClient(next PredictionClient, cfg circuitbreaker.Config, logger *zap.Logger) *BreakerClient {
	cfg.Trips = tripsBreaker
	userHook := cfg.OnStateChange
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		observability.PredictionAPICircuitState.Set(float64(to))
		logger.Warn("prediction service circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
		if userHook != nil {
			userHook(from, to)
		}
	}
	observability.PredictionAPICircuitState.Set(float64(circuitbreaker.StateClosed))
	return &BreakerClient{next: next, breaker: circuitbreaker.New(cfg)}
}

func (c *BreakerClient) Predict(ctx context.Context, f models.FeatureVector) (float64, error) {
	var kwh float64
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		kwh, err = c.next.Predict(ctx, f)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.PredictionAPIErrorsTotal.WithLabelValues(string(ErrorCategoryCircuitOpen)).Inc()
		return 0, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	}
	return kwh, err
}

// State exposes the breaker state.
func (c *BreakerClient) State() circuitbreaker.State {
	return c.breaker.State()
}

func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch CategorizeError(err) {
	case ErrorCategoryBadRequest, ErrorCategoryRateLimited:
		return false
	}
	return true
}
