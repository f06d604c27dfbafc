package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/pick-issue-service/pkg/logging"
	"github.com/wms-platform/pick-issue-service/pkg/metrics"
	"github.com/wms-platform/pick-issue-service/pkg/resilience"
)

// CircuitBreakerClient guards transactions with a circuit breaker so that a
// failing database turns into fast resilience.ErrCircuitOpen rejections
type CircuitBreakerClient struct {
	*InstrumentedClient
	cb *resilience.CircuitBreaker
}

// NewCircuitBreakerClient wraps client with a "mongodb" circuit breaker
func NewCircuitBreakerClient(client *InstrumentedClient, logger *logging.Logger, m *metrics.Metrics) *CircuitBreakerClient {
	var observer resilience.StateObserver
	if m != nil {
		observer = m
	}

	cfg := resilience.DefaultCircuitBreakerConfig("mongodb")
	return &CircuitBreakerClient{
		InstrumentedClient: client,
		cb:                 resilience.NewCircuitBreaker(cfg, logger.Logger, observer),
	}
}

// WithTransaction runs the transaction through the circuit breaker.
// Errors returned by fn that did not come from the database (not found,
// validation) abort the transaction without counting as breaker failures.
func (c *CircuitBreakerClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	var abortErr error

	err := c.cb.Execute(ctx, func(ctx context.Context) error {
		abortErr = nil
		txErr := c.InstrumentedClient.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			err := fn(sessCtx)
			if err != nil && !IsDriverError(err) {
				abortErr = err
			} else {
				abortErr = nil
			}
			return err
		})
		if abortErr != nil {
			return nil
		}
		return txErr
	})

	if abortErr != nil {
		return abortErr
	}
	return err
}

// HealthCheck pings through the circuit breaker
func (c *CircuitBreakerClient) HealthCheck(ctx context.Context) error {
	return c.cb.Execute(ctx, c.InstrumentedClient.HealthCheck)
}

// IsDriverError reports whether err originated in the driver or the server
func IsDriverError(err error) bool {
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded)
}
