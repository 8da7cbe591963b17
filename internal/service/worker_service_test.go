package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/observability"
	"github.com/kursadbilgin/alert-dispatch/internal/queue"
	"go.uber.org/zap"
)

func TestWorkerServiceStartRunsConfiguredConsumers(t *testing.T) {
	t.Parallel()

	var started atomic.Int32
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, handler queue.AlertHandler) error {
			started.Add(1)
			<-ctx.Done()
			return nil
		},
	}

	worker, err := NewWorkerService(consumer, func(context.Context, queue.AlertMessage) error { return nil }, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for started.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := started.Load(); got != 3 {
		t.Fatalf("started consumers = %d, want 3", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}

func TestWorkerServiceStartStopsOnConsumerError(t *testing.T) {
	t.Parallel()

	consumeErr := errors.New("channel closed")
	var calls atomic.Int32
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, handler queue.AlertHandler) error {
			if calls.Add(1) == 1 {
				return consumeErr
			}
			<-ctx.Done()
			return nil
		},
	}

	worker, err := NewWorkerService(consumer, func(context.Context, queue.AlertMessage) error { return nil }, 2, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}

	if err := worker.Start(context.Background()); !errors.Is(err, consumeErr) {
		t.Fatalf("Start() error = %v, want %v", err, consumeErr)
	}
}

func TestWorkerServiceProcessMessage(t *testing.T) {
	t.Parallel()

	handlerErr := errors.New("persist failed")
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "handled", err: nil, wantErr: nil},
		{name: "handler error", err: handlerErr, wantErr: handlerErr},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got queue.AlertMessage
			handler := func(_ context.Context, msg queue.AlertMessage) error {
				got = msg
				return tt.err
			}
			worker, err := NewWorkerService(&fakeConsumer{}, handler, 1, zap.NewNop())
			if err != nil {
				t.Fatalf("NewWorkerService() error = %v", err)
			}
			worker.SetMetrics(observability.NewMetrics())

			err = worker.processMessage(context.Background(), queue.AlertMessage{ID: "msg-1", Text: "hi"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("processMessage() error = %v, want %v", err, tt.wantErr)
			}
			if got.ID != "msg-1" {
				t.Fatalf("handler got message %+v", got)
			}
		})
	}
}

func TestWorkerServiceRunsAlertServiceHandler(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	svc := newTestAlertService(t, &fakeDispatcher{}, nil, publisher)

	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, handler queue.AlertHandler) error {
			return handler(ctx, queue.AlertMessage{ID: "msg-7", Text: "backup finished"})
		},
	}
	worker, err := NewWorkerService(consumer, svc.HandleMessage, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}

	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(publisher.results) != 1 || publisher.results[0].RequestID != "msg-7" {
		t.Fatalf("published results = %+v", publisher.results)
	}
}

func TestNewWorkerServiceValidation(t *testing.T) {
	t.Parallel()

	handler := func(context.Context, queue.AlertMessage) error { return nil }
	if _, err := NewWorkerService(nil, handler, 1, nil); err == nil {
		t.Fatal("NewWorkerService(nil consumer) error = nil")
	}
	if _, err := NewWorkerService(&fakeConsumer{}, nil, 1, nil); err == nil {
		t.Fatal("NewWorkerService(nil handler) error = nil")
	}

	worker, err := NewWorkerService(&fakeConsumer{}, handler, 0, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}
	if worker.concurrency != minWorkerConcurrency {
		t.Fatalf("concurrency = %d, want %d", worker.concurrency, minWorkerConcurrency)
	}
}
