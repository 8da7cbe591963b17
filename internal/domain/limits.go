package domain

import (
	"fmt"
	"time"
)

// RateLimitConfig caps message volume per hour and per day and enforces a
// minimum spacing between consecutive sends.
type RateLimitConfig struct {
	MaxPerHour  int
	MaxPerDay   int
	MinInterval time.Duration
}

func (c RateLimitConfig) Validate() error {
	if c.MaxPerHour <= 0 {
		return fmt.Errorf("%w: max per hour must be positive", ErrValidation)
	}
	if c.MaxPerDay <= 0 {
		return fmt.Errorf("%w: max per day must be positive", ErrValidation)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("%w: min interval must not be negative", ErrValidation)
	}
	return nil
}

// RateCounterState is the persisted throughput state shared by all callers.
// DayStart and HourStart record the boundaries the counters belong to.
type RateCounterState struct {
	LastSendAt    time.Time `json:"lastSendAt"`
	CountToday    int       `json:"countToday"`
	CountThisHour int       `json:"countThisHour"`
	DayStart      time.Time `json:"dayStart"`
	HourStart     time.Time `json:"hourStart"`
}

// RetryPolicy controls how many times a failed provider send is retried and
// how long to wait between retries.
type RetryPolicy struct {
	MaxAttempts           int
	BaseDelay             time.Duration
	UseExponentialBackoff bool
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts must not be negative", ErrValidation)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("%w: base delay must not be negative", ErrValidation)
	}
	return nil
}

// Delay returns the wait before the given retry attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if !p.UseExponentialBackoff {
		return p.BaseDelay
	}
	return p.BaseDelay * time.Duration(attempt)
}
