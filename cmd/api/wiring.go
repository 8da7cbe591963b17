package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/config"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/handler"
	infraredis "github.com/kursadbilgin/alert-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/alert-dispatch/internal/provider"
	"github.com/kursadbilgin/alert-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/alert-dispatch/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const redisCounterKeyPrefix = "alert-dispatch:rate-counters:"

// newCounterStore picks the backing store for the shared rate counters.
func newCounterStore(
	ctx context.Context,
	cfg *config.Config,
	db *gorm.DB,
) (ratelimit.CounterStore, []handler.ReadinessCheck, func(), error) {
	noop := func() {}

	switch cfg.CounterStore {
	case config.CounterStoreRedis:
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("redis initialization failed: %w", err)
		}
		store, err := infraredis.NewCounterStore(rdb, redisCounterKeyPrefix+cfg.CounterName)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, noop, err
		}
		return store, []handler.ReadinessCheck{handler.RedisCheck(rdb)}, func() { _ = rdb.Close() }, nil

	case config.CounterStorePostgres:
		if db == nil {
			return nil, nil, noop, fmt.Errorf("%w: postgres counter store requires DATABASE_DSN", domain.ErrConfiguration)
		}
		store, err := repository.NewGormCounterStore(db, cfg.CounterName)
		if err != nil {
			return nil, nil, noop, err
		}
		return store, nil, noop, nil

	default:
		return ratelimit.NewMemoryStore(), nil, noop, nil
	}
}

// newRegistry builds every provider whose credentials are configured and
// wraps each with the shared throughput and breaker guards.
func newRegistry(cfg *config.Config, logger *zap.Logger) (*provider.Registry, error) {
	p := cfg.Providers
	client := resty.New()
	timeout := time.Duration(p.TimeoutMS) * time.Millisecond

	var providers []provider.Provider
	add := func(inner provider.Provider, err error) error {
		if err != nil {
			return err
		}
		guarded, err := provider.NewGuarded(inner, provider.GuardConfig{
			MaxRPS:              p.MaxRPS,
			Burst:               p.Burst,
			ConsecutiveFailures: p.BreakerConsecutiveFailures,
			OpenTimeout:         time.Duration(p.BreakerOpenTimeoutMS) * time.Millisecond,
		}, logger)
		if err != nil {
			return err
		}
		providers = append(providers, guarded)
		return nil
	}

	if p.CallMeBotPhone != "" || p.CallMeBotAPIKey != "" {
		if err := add(provider.NewCallMeBot(provider.CallMeBotConfig{
			URL:     p.CallMeBotURL,
			Phone:   p.CallMeBotPhone,
			APIKey:  p.CallMeBotAPIKey,
			Timeout: timeout,
		}, client)); err != nil {
			return nil, err
		}
	}

	if p.WhatsAppToken != "" || p.WhatsAppURL != "" {
		if err := add(provider.NewBusinessAPI(provider.BusinessAPIConfig{
			URL:     p.WhatsAppURL,
			Token:   p.WhatsAppToken,
			To:      p.WhatsAppTo,
			Timeout: timeout,
		}, client)); err != nil {
			return nil, err
		}
	}

	if p.SMSBridgeAccountSID != "" || p.SMSBridgeBaseURL != "" {
		if err := add(provider.NewSMSBridge(provider.SMSBridgeConfig{
			BaseURL:    p.SMSBridgeBaseURL,
			AccountSID: p.SMSBridgeAccountSID,
			AuthToken:  p.SMSBridgeAuthToken,
			From:       p.SMSBridgeFrom,
			To:         p.SMSBridgeTo,
			Timeout:    timeout,
		}, client)); err != nil {
			return nil, err
		}
	}

	if p.WebhookURL != "" {
		if err := add(provider.NewGenericWebhook(provider.WebhookConfig{
			URL:     p.WebhookURL,
			Headers: p.WebhookHeaders,
			Source:  p.WebhookSource,
			Timeout: timeout,
		}, client)); err != nil {
			return nil, err
		}
	}

	return provider.NewRegistry(cfg.DefaultProvider, providers...)
}
