package service

import (
	"context"
	"sync"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/format"
	"github.com/kursadbilgin/alert-dispatch/internal/queue"
)

type fakeDispatcher struct {
	dispatchFn  func(ctx context.Context, text string, opts domain.SendOptions) domain.DeliveryResult
	rateStateFn func(ctx context.Context) (domain.RateCounterState, domain.RateLimitConfig, error)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, text string, opts domain.SendOptions) domain.DeliveryResult {
	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, text, opts)
	}
	return domain.Succeeded("fake", 200, "ok")
}

func (f *fakeDispatcher) RateState(ctx context.Context) (domain.RateCounterState, domain.RateLimitConfig, error) {
	if f.rateStateFn != nil {
		return f.rateStateFn(ctx)
	}
	return domain.RateCounterState{}, domain.RateLimitConfig{}, nil
}

type fakeFormatter struct {
	formatFn func(kind format.Kind, data format.Data) (string, error)
}

func (f *fakeFormatter) Format(kind format.Kind, data format.Data) (string, error) {
	if f.formatFn != nil {
		return f.formatFn(kind, data)
	}
	return string(kind) + ": " + data.Message, nil
}

type fakePublisher struct {
	mu              sync.Mutex
	alerts          []queue.AlertMessage
	results         []queue.ResultEvent
	publishAlertFn  func(ctx context.Context, msg queue.AlertMessage) error
	publishResultFn func(ctx context.Context, event queue.ResultEvent) error
}

func (f *fakePublisher) PublishAlert(ctx context.Context, msg queue.AlertMessage) error {
	f.mu.Lock()
	f.alerts = append(f.alerts, msg)
	f.mu.Unlock()
	if f.publishAlertFn != nil {
		return f.publishAlertFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) PublishResult(ctx context.Context, event queue.ResultEvent) error {
	f.mu.Lock()
	f.results = append(f.results, event)
	f.mu.Unlock()
	if f.publishResultFn != nil {
		return f.publishResultFn(ctx, event)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeConsumer struct {
	consumeFn func(ctx context.Context, handler queue.AlertHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.AlertHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error { return nil }
