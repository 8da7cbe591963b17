package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

var (
	ErrRateLimited         = errors.New("rate limited")
	ErrTooSoon             = fmt.Errorf("%w: minimum interval between sends not elapsed", ErrRateLimited)
	ErrDailyLimitExceeded  = fmt.Errorf("%w: daily limit exceeded", ErrRateLimited)
	ErrHourlyLimitExceeded = fmt.Errorf("%w: hourly limit exceeded", ErrRateLimited)

	errNilMutator = errors.New("counter mutator is required")
)

// Check reports whether a send at now fits the limits. It never mutates state;
// call Rollover first so the counters belong to the current boundaries.
func Check(config domain.RateLimitConfig, state domain.RateCounterState, now time.Time) error {
	if config.MinInterval > 0 && !state.LastSendAt.IsZero() {
		if now.Sub(state.LastSendAt) < config.MinInterval {
			return ErrTooSoon
		}
	}
	if state.CountToday >= config.MaxPerDay {
		return ErrDailyLimitExceeded
	}
	if state.CountThisHour >= config.MaxPerHour {
		return ErrHourlyLimitExceeded
	}
	return nil
}

// Commit records one send at now.
func Commit(state *domain.RateCounterState, now time.Time) {
	state.CountToday++
	state.CountThisHour++
	state.LastSendAt = now
}

// Rollover resets counters whose stored boundary is not the boundary of now.
func Rollover(state *domain.RateCounterState, now time.Time, location *time.Location) {
	day := dayStart(now, location)
	if !state.DayStart.Equal(day) {
		state.DayStart = day
		state.CountToday = 0
	}

	hour := hourStart(now, location)
	if !state.HourStart.Equal(hour) {
		state.HourStart = hour
		state.CountThisHour = 0
	}
}

// Reservation is a committed slot that can be handed back with Release.
type Reservation struct {
	At             time.Time
	PrevLastSendAt time.Time
}

// Release reverts the counters taken by reservation, as long as they still
// belong to the same day and hour.
func Release(state *domain.RateCounterState, reservation Reservation, location *time.Location) {
	if state.DayStart.Equal(dayStart(reservation.At, location)) && state.CountToday > 0 {
		state.CountToday--
	}
	if state.HourStart.Equal(hourStart(reservation.At, location)) && state.CountThisHour > 0 {
		state.CountThisHour--
	}
	if state.LastSendAt.Equal(reservation.At) {
		state.LastSendAt = reservation.PrevLastSendAt
	}
}

// Limiter applies a RateLimitConfig to the state kept in a CounterStore.
type Limiter struct {
	store    CounterStore
	config   domain.RateLimitConfig
	location *time.Location
}

func NewLimiter(store CounterStore, config domain.RateLimitConfig, location *time.Location) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: counter store is required", domain.ErrConfiguration)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if location == nil {
		location = time.UTC
	}

	return &Limiter{
		store:    store,
		config:   config,
		location: location,
	}, nil
}

func (l *Limiter) Config() domain.RateLimitConfig {
	return l.config
}

// Location is the zone that defines day and hour boundaries.
func (l *Limiter) Location() *time.Location {
	return l.location
}

// Reserve checks the limits and commits a slot in one store transaction, so
// two concurrent callers cannot both pass a check only one should.
func (l *Limiter) Reserve(ctx context.Context, now time.Time) (*Reservation, error) {
	// Stores may keep microsecond precision only.
	now = now.Round(0).Truncate(time.Microsecond)

	var reservation *Reservation
	_, err := l.store.CommitAtomic(ctx, func(state *domain.RateCounterState) error {
		Rollover(state, now, l.location)
		if err := Check(l.config, *state, now); err != nil {
			return err
		}
		reservation = &Reservation{At: now, PrevLastSendAt: state.LastSendAt}
		Commit(state, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservation, nil
}

func (l *Limiter) Release(ctx context.Context, reservation *Reservation) error {
	if reservation == nil {
		return nil
	}

	_, err := l.store.CommitAtomic(ctx, func(state *domain.RateCounterState) error {
		Release(state, *reservation, l.location)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to release rate limit reservation: %w", err)
	}
	return nil
}

// Snapshot returns the stored state as it applies at now, without writing.
func (l *Limiter) Snapshot(ctx context.Context, now time.Time) (domain.RateCounterState, error) {
	state, err := l.store.Load(ctx)
	if err != nil {
		return domain.RateCounterState{}, fmt.Errorf("failed to load rate counters: %w", err)
	}
	Rollover(&state, now, l.location)
	return state, nil
}

func dayStart(t time.Time, location *time.Location) time.Time {
	local := t.In(location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
}

// hourStart works from the instant rather than the wall clock, so the two
// occurrences of a repeated hour at a DST fall-back stay distinct.
func hourStart(t time.Time, location *time.Location) time.Time {
	local := t.Round(0).In(location)
	sinceHour := time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return local.Add(-sinceHour)
}
