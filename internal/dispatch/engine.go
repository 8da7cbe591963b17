// Package dispatch decides, for one outgoing message, whether it may be sent
// now, through which provider and with what retry behavior.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/observability"
	"github.com/kursadbilgin/alert-dispatch/internal/provider"
	"github.com/kursadbilgin/alert-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/alert-dispatch/internal/schedule"
	"go.uber.org/zap"
)

const releaseTimeout = 5 * time.Second

// Recorder receives dispatch telemetry.
type Recorder interface {
	ObserveDispatch(result domain.DeliveryResult)
	ObserveProviderSend(provider string, duration time.Duration)
	IncRateLimited(limit string)
	IncRetryScheduled(provider string)
}

type Config struct {
	Registry *provider.Registry
	Limiter  *ratelimit.Limiter
	Schedule domain.Schedule
	Retry    domain.RetryPolicy
}

// Engine runs the window check, the rate check and the provider send with
// retries. It is safe for concurrent use; shared counters live in the
// limiter's store.
type Engine struct {
	registry *provider.Registry
	limiter  *ratelimit.Limiter
	gate     *schedule.Gate
	schedule domain.Schedule
	retry    domain.RetryPolicy

	logger  *zap.Logger
	metrics Recorder
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, logger *zap.Logger, metrics Recorder) (*Engine, error) {
	return newEngine(cfg, logger, metrics, time.Now, sleepContext)
}

func newEngine(
	cfg Config,
	logger *zap.Logger,
	metrics Recorder,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: provider registry is required", domain.ErrConfiguration)
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("%w: rate limiter is required", domain.ErrConfiguration)
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepContext
	}

	return &Engine{
		registry: cfg.Registry,
		limiter:  cfg.Limiter,
		// The gate shares the limiter's zone so window hours and counter
		// boundaries agree.
		gate:     schedule.NewGate(cfg.Limiter.Location()),
		schedule: cfg.Schedule,
		retry:    cfg.Retry,
		logger:   logger,
		metrics:  metrics,
		now:      nowFn,
		sleep:    sleepFn,
	}, nil
}

// Dispatch sends text once it has passed the window and rate checks. Every
// outcome, including rejections, is reported in the returned result.
func (e *Engine) Dispatch(ctx context.Context, text string, opts domain.SendOptions) domain.DeliveryResult {
	result := e.dispatch(ctx, text, opts)
	e.metrics.ObserveDispatch(result)

	// Callers log the outcome with their own context.
	observability.WithContextLogger(e.logger, ctx).Debug("dispatch finished", observability.ResultFields(result)...)
	return result
}

func (e *Engine) dispatch(ctx context.Context, text string, opts domain.SendOptions) domain.DeliveryResult {
	p, err := e.registry.Resolve(opts.Provider)
	if err != nil {
		return invalid(opts.Provider, err)
	}
	if err := validateText(text, p.MaxLength()); err != nil {
		return invalid(p.Name(), err)
	}
	if opts.Priority != "" && !opts.Priority.IsValid() {
		return invalid(p.Name(), fmt.Errorf("%w: invalid priority %q", domain.ErrValidation, opts.Priority))
	}

	window := e.schedule
	if opts.WindowOverride != nil {
		if err := opts.WindowOverride.Validate(); err != nil {
			return invalid(p.Name(), err)
		}
		window = *opts.WindowOverride
	}

	now := e.now()
	if !e.gate.IsAllowed(window, now, opts.ForceWindow) {
		result := domain.Failed(domain.FailureOutOfWindow, 0, describeWindow(window, now.In(e.gate.Location())))
		result.Provider = p.Name()
		return result
	}

	reservation, err := e.limiter.Reserve(ctx, now)
	if err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			e.metrics.IncRateLimited(limitLabel(err))
		}
		result := domain.Failed(domain.FailureRateLimited, 0, err.Error())
		result.Provider = p.Name()
		result.Err = err
		return result
	}

	result := e.sendWithRetry(ctx, p, text, opts.AllowRetry)
	if !result.Success {
		e.release(ctx, reservation)
	}
	return result
}

// sendWithRetry makes the initial send plus up to MaxAttempts retries. The
// gate and the limiter are not consulted again.
func (e *Engine) sendWithRetry(ctx context.Context, p provider.Provider, text string, allowRetry bool) domain.DeliveryResult {
	maxRetries := e.retry.MaxAttempts
	if !allowRetry {
		maxRetries = 0
	}

	attempt := 0
	for {
		attempt++

		started := e.now()
		result := p.Send(ctx, text)
		e.metrics.ObserveProviderSend(p.Name(), e.now().Sub(started))

		result.Provider = p.Name()
		result.AttemptsMade = attempt
		if result.Success {
			result.FailureReason = ""
			return result
		}

		if maxRetries == 0 {
			result.FailureReason = domain.FailureProviderError
			return result
		}
		if attempt > maxRetries {
			return exhausted(result, fmt.Sprintf("gave up after %d attempts", attempt))
		}

		delay := e.retry.Delay(attempt)
		if deadline, ok := ctx.Deadline(); ok && e.now().Add(delay).After(deadline) {
			return exhausted(result, fmt.Sprintf("next retry in %s would pass the deadline", delay))
		}

		e.metrics.IncRetryScheduled(p.Name())
		observability.WithContextLogger(e.logger, ctx).Debug("provider send failed, retrying",
			zap.String("provider", p.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(result.Err),
		)

		if err := e.sleep(ctx, delay); err != nil {
			return exhausted(result, fmt.Sprintf("retry wait aborted: %v", err))
		}
	}
}

func (e *Engine) release(ctx context.Context, reservation *ratelimit.Reservation) {
	// The caller's context may already be done; the slot must still go back.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := e.limiter.Release(releaseCtx, reservation); err != nil {
		observability.WithContextLogger(e.logger, ctx).Error("failed to release rate limit slot", zap.Error(err))
	}
}

// RateState returns the counters as they apply now along with the limits.
func (e *Engine) RateState(ctx context.Context) (domain.RateCounterState, domain.RateLimitConfig, error) {
	state, err := e.limiter.Snapshot(ctx, e.now())
	return state, e.limiter.Config(), err
}

func (e *Engine) Location() *time.Location {
	return e.gate.Location()
}

func (e *Engine) Providers() []string {
	return e.registry.Names()
}

func validateText(text string, maxLength int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message text is empty", domain.ErrValidation)
	}
	if n := utf8.RuneCountInString(text); maxLength > 0 && n > maxLength {
		return fmt.Errorf("%w: message has %d characters, limit is %d", domain.ErrValidation, n, maxLength)
	}
	return nil
}

func invalid(providerName string, err error) domain.DeliveryResult {
	result := domain.Failed(domain.FailureInvalidMessage, 0, err.Error())
	result.Provider = providerName
	result.Err = err
	return result
}

func exhausted(last domain.DeliveryResult, detail string) domain.DeliveryResult {
	last.FailureReason = domain.FailureMaxRetriesExceeded
	if last.Detail != "" {
		detail = detail + ": " + last.Detail
	}
	last.Detail = detail
	return last
}

func describeWindow(window domain.Schedule, local time.Time) string {
	detail := fmt.Sprintf("%s %02d:%02d is outside %02d:00-%02d:59",
		local.Weekday(), local.Hour(), local.Minute(), window.StartHour, window.EndHour)
	if len(window.AllowedWeekdays) > 0 {
		days := make([]string, 0, len(window.AllowedWeekdays))
		for _, d := range window.AllowedWeekdays {
			days = append(days, d.String()[:3])
		}
		detail += " on " + strings.Join(days, ",")
	}
	return detail
}

func limitLabel(err error) string {
	switch {
	case errors.Is(err, ratelimit.ErrTooSoon):
		return "interval"
	case errors.Is(err, ratelimit.ErrDailyLimitExceeded):
		return "daily"
	case errors.Is(err, ratelimit.ErrHourlyLimitExceeded):
		return "hourly"
	}
	return "unknown"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveDispatch(domain.DeliveryResult)     {}
func (nopRecorder) ObserveProviderSend(string, time.Duration) {}
func (nopRecorder) IncRateLimited(string)                     {}
func (nopRecorder) IncRetryScheduled(string)                  {}
