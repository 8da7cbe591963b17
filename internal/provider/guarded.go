package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardConfig bounds outbound throughput and trips a circuit breaker after
// consecutive failures. Zero values disable the corresponding guard.
type GuardConfig struct {
	MaxRPS              float64
	Burst               int
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Guarded wraps a Provider with a token bucket and a circuit breaker.
type Guarded struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var _ Provider = (*Guarded)(nil)

func NewGuarded(inner Provider, cfg GuardConfig, logger *zap.Logger) (*Guarded, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: provider is required", domain.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Guarded{inner: inner}

	if cfg.MaxRPS > 0 {
		burst := max(cfg.Burst, 1)
		g.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}

	if cfg.ConsecutiveFailures > 0 {
		threshold := cfg.ConsecutiveFailures
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        inner.Name(),
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("provider circuit state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return g, nil
}

func (g *Guarded) Name() string   { return g.inner.Name() }
func (g *Guarded) MaxLength() int { return g.inner.MaxLength() }

func (g *Guarded) Send(ctx context.Context, text string) domain.DeliveryResult {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return failure(g.Name(), 0, "", &ProviderError{
				Message: "provider throughput wait aborted",
				Cause:   err,
			})
		}
	}

	if g.breaker == nil {
		return g.inner.Send(ctx, text)
	}

	var result domain.DeliveryResult
	_, err := g.breaker.Execute(func() (interface{}, error) {
		result = g.inner.Send(ctx, text)
		if result.Success {
			return nil, nil
		}
		if result.Err != nil {
			return nil, result.Err
		}
		return nil, errors.New(result.Detail)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return failure(g.Name(), 0, "", &ProviderError{
			Message: "provider circuit open",
			Cause:   err,
		})
	}

	return result
}

// State reports the breaker state, or closed when no breaker is configured.
func (g *Guarded) State() gobreaker.State {
	if g.breaker == nil {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}
