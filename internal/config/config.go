package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

const (
	CounterStoreMemory   = "memory"
	CounterStoreRedis    = "redis"
	CounterStorePostgres = "postgres"
)

type Config struct {
	LogLevel        string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	APIPort         int    `env:"API_PORT,default=8080" validate:"min=1,max=65535"`
	Timezone        string `env:"TIMEZONE,default=UTC"`
	DefaultProvider string `env:"DEFAULT_PROVIDER,default=callmebot" validate:"oneof=callmebot whatsapp smsbridge webhook"`

	CounterStore string `env:"COUNTER_STORE,default=memory" validate:"oneof=memory redis postgres"`
	CounterName  string `env:"COUNTER_NAME,default=default" validate:"required,max=64"`
	DatabaseDSN  string `env:"DATABASE_DSN" validate:"required_if=CounterStore postgres"`
	RedisURL     string `env:"REDIS_URL" validate:"required_if=CounterStore redis"`

	RabbitMQURL       string `env:"RABBITMQ_URL"`
	AlertQueue        string `env:"ALERT_QUEUE,default=alerts.requests" validate:"required"`
	ResultQueue       string `env:"RESULT_QUEUE,default=alerts.results" validate:"required"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=4" validate:"min=1,max=256"`

	Window    Window
	RateLimit RateLimit
	Retry     Retry
	Providers Providers
}

type Window struct {
	StartHour    int      `env:"WINDOW_START_HOUR,default=8" validate:"min=0,max=23"`
	EndHour      int      `env:"WINDOW_END_HOUR,default=18" validate:"min=0,max=23,gtefield=StartHour"`
	Weekdays     Weekdays `env:"WINDOW_WEEKDAYS"`
	ProfilesFile string   `env:"WINDOW_PROFILES_FILE"`
}

type RateLimit struct {
	MaxPerHour    int `env:"RATE_MAX_PER_HOUR,default=50" validate:"min=1"`
	MaxPerDay     int `env:"RATE_MAX_PER_DAY,default=200" validate:"min=1"`
	MinIntervalMS int `env:"RATE_MIN_INTERVAL_MS,default=2000" validate:"min=0"`
}

type Retry struct {
	MaxAttempts int  `env:"RETRY_MAX_ATTEMPTS,default=3" validate:"min=0,max=10"`
	BaseDelayMS int  `env:"RETRY_BASE_DELAY_MS,default=5000" validate:"min=0"`
	Backoff     bool `env:"RETRY_BACKOFF,default=true"`
}

type Providers struct {
	TimeoutMS int `env:"PROVIDER_TIMEOUT_MS,default=10000" validate:"min=1"`

	MaxRPS                     float64 `env:"PROVIDER_MAX_RPS,default=0" validate:"min=0"`
	Burst                      int     `env:"PROVIDER_BURST,default=1" validate:"min=1"`
	BreakerConsecutiveFailures uint32  `env:"BREAKER_CONSECUTIVE_FAILURES,default=0"`
	BreakerOpenTimeoutMS       int     `env:"BREAKER_OPEN_TIMEOUT_MS,default=60000" validate:"min=0"`

	CallMeBotURL    string `env:"CALLMEBOT_URL"`
	CallMeBotPhone  string `env:"CALLMEBOT_PHONE"`
	CallMeBotAPIKey string `env:"CALLMEBOT_API_KEY"`

	WhatsAppURL   string `env:"WHATSAPP_URL"`
	WhatsAppToken string `env:"WHATSAPP_TOKEN"`
	WhatsAppTo    string `env:"WHATSAPP_TO"`

	SMSBridgeBaseURL    string `env:"SMSBRIDGE_BASE_URL"`
	SMSBridgeAccountSID string `env:"SMSBRIDGE_ACCOUNT_SID"`
	SMSBridgeAuthToken  string `env:"SMSBRIDGE_AUTH_TOKEN"`
	SMSBridgeFrom       string `env:"SMSBRIDGE_FROM"`
	SMSBridgeTo         string `env:"SMSBRIDGE_TO"`

	WebhookURL     string  `env:"WEBHOOK_URL"`
	WebhookHeaders Headers `env:"WEBHOOK_HEADERS"`
	WebhookSource  string  `env:"WEBHOOK_SOURCE,default=alert-dispatch"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to load config: %v", domain.ErrConfiguration, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %v", domain.ErrConfiguration, err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves TIMEZONE; it drives both the send window and the counter
// day/hour boundaries.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timezone %q: %v", domain.ErrConfiguration, c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Schedule() domain.Schedule {
	return domain.Schedule{
		StartHour:       c.Window.StartHour,
		EndHour:         c.Window.EndHour,
		AllowedWeekdays: []time.Weekday(c.Window.Weekdays),
	}
}

func (c *Config) RateLimitConfig() domain.RateLimitConfig {
	return domain.RateLimitConfig{
		MaxPerHour:  c.RateLimit.MaxPerHour,
		MaxPerDay:   c.RateLimit.MaxPerDay,
		MinInterval: time.Duration(c.RateLimit.MinIntervalMS) * time.Millisecond,
	}
}

func (c *Config) RetryPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxAttempts:           c.Retry.MaxAttempts,
		BaseDelay:             time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		UseExponentialBackoff: c.Retry.Backoff,
	}
}

// Weekdays parses a comma separated list of day names ("mon", "Tuesday") or
// numbers (0 = Sunday).
type Weekdays []time.Weekday

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func (w *Weekdays) UnmarshalEnvironmentValue(data string) error {
	var days Weekdays
	for _, part := range strings.Split(data, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if day, ok := weekdayNames[part]; ok {
			days = append(days, day)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, time.Weekday(n))
	}
	*w = days
	return nil
}

// Headers parses "Name=Value" pairs separated by commas.
type Headers map[string]string

func (h *Headers) UnmarshalEnvironmentValue(data string) error {
	headers := Headers{}
	var errs []error
	for _, pair := range strings.Split(data, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			errs = append(errs, fmt.Errorf("invalid header %q", pair))
			continue
		}
		headers[name] = strings.TrimSpace(value)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	*h = headers
	return nil
}
