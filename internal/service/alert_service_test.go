package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/format"
	"github.com/kursadbilgin/alert-dispatch/internal/observability"
	"github.com/kursadbilgin/alert-dispatch/internal/queue"
	"github.com/kursadbilgin/alert-dispatch/internal/repository"
	"github.com/kursadbilgin/alert-dispatch/internal/schedule"
	"go.uber.org/zap"
)

type failingDeliveryRepo struct {
	repository.DeliveryRepository
	err error
}

func (r failingDeliveryRepo) Create(context.Context, *domain.Delivery) error {
	return r.err
}

func newTestAlertService(
	t *testing.T,
	dispatcher Dispatcher,
	deliveries repository.DeliveryRepository,
	publisher queue.Publisher,
) *AlertService {
	t.Helper()

	if deliveries == nil {
		deliveries = repository.NewMemoryDeliveryRepo()
	}
	svc, err := NewAlertService(dispatcher, &fakeFormatter{}, schedule.DefaultProfiles(), deliveries, publisher, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAlertService() error = %v", err)
	}

	ids := 0
	svc.newID = func() string {
		ids++
		return "id-" + strconv.Itoa(ids)
	}
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestAlertServiceSendText(t *testing.T) {
	t.Parallel()

	var gotText string
	var gotOpts domain.SendOptions
	var gotCorrelation string
	dispatcher := &fakeDispatcher{
		dispatchFn: func(ctx context.Context, text string, opts domain.SendOptions) domain.DeliveryResult {
			gotText = text
			gotOpts = opts
			gotCorrelation, _ = observability.CorrelationIDFromContext(ctx)
			return domain.Succeeded("callmebot", 200, "ok")
		},
	}
	repo := repository.NewMemoryDeliveryRepo()
	publisher := &fakePublisher{}
	svc := newTestAlertService(t, dispatcher, repo, publisher)

	delivery, err := svc.Send(context.Background(), SendRequest{
		RequestID:     "req-1",
		CorrelationID: "corr-1",
		Text:          "disk almost full",
		Priority:      domain.PriorityHigh,
		Provider:      "callmebot",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotText != "disk almost full" {
		t.Fatalf("dispatched text = %q, want raw text", gotText)
	}
	if gotOpts.Priority != domain.PriorityHigh || !gotOpts.AllowRetry || gotOpts.Provider != "callmebot" {
		t.Fatalf("dispatched opts = %+v", gotOpts)
	}
	if gotCorrelation != "corr-1" {
		t.Fatalf("correlation id in context = %q, want corr-1", gotCorrelation)
	}

	if !delivery.Success || delivery.Kind != kindMessage || delivery.CorrelationID != "corr-1" {
		t.Fatalf("delivery = %+v", delivery)
	}

	stored, err := repo.GetByID(context.Background(), delivery.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Content != "disk almost full" {
		t.Fatalf("stored content = %q", stored.Content)
	}

	if len(publisher.results) != 1 {
		t.Fatalf("published results = %d, want 1", len(publisher.results))
	}
	event := publisher.results[0]
	if event.DeliveryID != delivery.ID || event.RequestID != "req-1" || !event.Success {
		t.Fatalf("result event = %+v", event)
	}
}

func TestAlertServiceSendFormattedAlert(t *testing.T) {
	t.Parallel()

	var gotText string
	var gotOpts domain.SendOptions
	dispatcher := &fakeDispatcher{
		dispatchFn: func(_ context.Context, text string, opts domain.SendOptions) domain.DeliveryResult {
			gotText = text
			gotOpts = opts
			return domain.Succeeded("webhook", 200, "")
		},
	}
	svc := newTestAlertService(t, dispatcher, nil, nil)

	delivery, err := svc.Send(context.Background(), SendRequest{
		Kind:     format.KindCriticalError,
		Data:     format.Data{Message: "db down"},
		Priority: domain.PriorityLow,
		NoRetry:  true,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotText != "critical_error: db down" {
		t.Fatalf("dispatched text = %q", gotText)
	}
	if gotOpts.Priority != domain.PriorityCritical || !gotOpts.ForceWindow || gotOpts.AllowRetry {
		t.Fatalf("dispatched opts = %+v", gotOpts)
	}
	if delivery.Kind != "critical_error" || delivery.Priority != domain.PriorityCritical {
		t.Fatalf("delivery = %+v", delivery)
	}
	if delivery.CorrelationID == "" {
		t.Fatal("correlation id was not generated")
	}
}

func TestAlertServiceSendAppliesProfile(t *testing.T) {
	t.Parallel()

	var gotOpts domain.SendOptions
	dispatcher := &fakeDispatcher{
		dispatchFn: func(_ context.Context, _ string, opts domain.SendOptions) domain.DeliveryResult {
			gotOpts = opts
			return domain.Succeeded("fake", 200, "")
		},
	}
	svc := newTestAlertService(t, dispatcher, nil, nil)

	if _, err := svc.Send(context.Background(), SendRequest{Text: "hi", Profile: "Extended"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotOpts.WindowOverride == nil || gotOpts.WindowOverride.StartHour != 7 || gotOpts.WindowOverride.EndHour != 22 {
		t.Fatalf("window override = %+v, want extended 7-22", gotOpts.WindowOverride)
	}
}

func TestAlertServiceSendRecordsFailure(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{
		dispatchFn: func(context.Context, string, domain.SendOptions) domain.DeliveryResult {
			return domain.Failed(domain.FailureRateLimited, 0, "daily limit reached")
		},
	}
	repo := repository.NewMemoryDeliveryRepo()
	publisher := &fakePublisher{}
	svc := newTestAlertService(t, dispatcher, repo, publisher)

	delivery, err := svc.Send(context.Background(), SendRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if delivery.Success || delivery.FailureReason == nil || *delivery.FailureReason != domain.FailureRateLimited {
		t.Fatalf("delivery = %+v, want RATE_LIMITED", delivery)
	}
	if publisher.results[0].FailureReason != domain.FailureRateLimited {
		t.Fatalf("event reason = %s", publisher.results[0].FailureReason)
	}
}

func TestAlertServiceSendValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  SendRequest
	}{
		{name: "neither text nor kind", req: SendRequest{}},
		{name: "both text and kind", req: SendRequest{Text: "hi", Kind: format.KindAlert}},
		{name: "unknown profile", req: SendRequest{Text: "hi", Profile: "night"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dispatcher := &fakeDispatcher{
				dispatchFn: func(context.Context, string, domain.SendOptions) domain.DeliveryResult {
					t.Fatal("Dispatch must not be called")
					return domain.DeliveryResult{}
				},
			}
			svc := newTestAlertService(t, dispatcher, nil, nil)

			_, err := svc.Send(context.Background(), tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Send() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestAlertServiceSendFormatError(t *testing.T) {
	t.Parallel()

	svc := newTestAlertService(t, &fakeDispatcher{}, nil, nil)
	svc.formatter = &fakeFormatter{
		formatFn: func(format.Kind, format.Data) (string, error) {
			return "", domain.ErrValidation
		},
	}

	if _, err := svc.Send(context.Background(), SendRequest{Kind: format.KindReport}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Send() error = %v, want ErrValidation", err)
	}
}

func TestAlertServiceSendPersistFailure(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("db unavailable")
	publisher := &fakePublisher{}
	svc := newTestAlertService(t, &fakeDispatcher{}, failingDeliveryRepo{err: repoErr}, publisher)

	delivery, err := svc.Send(context.Background(), SendRequest{Text: "hi"})
	if !errors.Is(err, repoErr) {
		t.Fatalf("Send() error = %v, want %v", err, repoErr)
	}
	if delivery == nil || !delivery.Success {
		t.Fatalf("delivery = %+v, want the dispatched delivery", delivery)
	}
	if len(publisher.results) != 0 {
		t.Fatalf("published results = %d, want 0", len(publisher.results))
	}
}

func TestAlertServicePublishFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{
		publishResultFn: func(context.Context, queue.ResultEvent) error {
			return errors.New("broker down")
		},
	}
	svc := newTestAlertService(t, &fakeDispatcher{}, nil, publisher)

	if _, err := svc.Send(context.Background(), SendRequest{Text: "hi"}); err != nil {
		t.Fatalf("Send() error = %v, want nil", err)
	}
}

func TestAlertServiceEnqueue(t *testing.T) {
	t.Parallel()

	publisher := &fakePublisher{}
	svc := newTestAlertService(t, &fakeDispatcher{}, nil, publisher)

	id, err := svc.Enqueue(context.Background(), SendRequest{
		Kind:     format.KindAlert,
		Data:     format.Data{Message: "cpu high"},
		Priority: domain.PriorityUrgent,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if len(publisher.alerts) != 1 {
		t.Fatalf("published alerts = %d, want 1", len(publisher.alerts))
	}
	msg := publisher.alerts[0]
	if msg.ID != id || msg.Kind != format.KindAlert || msg.Priority != domain.PriorityUrgent || msg.CorrelationID == "" {
		t.Fatalf("alert message = %+v", msg)
	}
}

func TestAlertServiceEnqueueResolvesPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       SendRequest
		want      domain.Priority
		wantValue uint8
	}{
		{
			name:      "raw text without priority",
			req:       SendRequest{Text: "backup finished"},
			want:      domain.PriorityNormal,
			wantValue: 2,
		},
		{
			name:      "critical error without priority",
			req:       SendRequest{Kind: format.KindCriticalError, Data: format.Data{Message: "db down"}},
			want:      domain.PriorityCritical,
			wantValue: 4,
		},
		{
			name: "critical error ignores lower priority",
			req: SendRequest{
				Kind:     format.KindCriticalError,
				Data:     format.Data{Message: "db down"},
				Priority: domain.PriorityLow,
			},
			want:      domain.PriorityCritical,
			wantValue: 4,
		},
		{
			name:      "explicit priority on text",
			req:       SendRequest{Text: "disk 80%", Priority: domain.PriorityHigh},
			want:      domain.PriorityHigh,
			wantValue: 3,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			publisher := &fakePublisher{}
			svc := newTestAlertService(t, &fakeDispatcher{}, nil, publisher)

			if _, err := svc.Enqueue(context.Background(), tt.req); err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
			if len(publisher.alerts) != 1 {
				t.Fatalf("published alerts = %d, want 1", len(publisher.alerts))
			}
			got := publisher.alerts[0].Priority
			if got != tt.want {
				t.Fatalf("published priority = %q, want %q", got, tt.want)
			}
			if value := queue.PriorityValue(got); value != tt.wantValue {
				t.Fatalf("PriorityValue(%q) = %d, want %d", got, value, tt.wantValue)
			}
		})
	}
}

func TestAlertServiceEnqueueErrors(t *testing.T) {
	t.Parallel()

	svc := newTestAlertService(t, &fakeDispatcher{}, nil, nil)
	if _, err := svc.Enqueue(context.Background(), SendRequest{Text: "hi"}); !errors.Is(err, ErrQueueUnavailable) {
		t.Fatalf("Enqueue() without publisher error = %v, want ErrQueueUnavailable", err)
	}

	svc = newTestAlertService(t, &fakeDispatcher{}, nil, &fakePublisher{})
	if _, err := svc.Enqueue(context.Background(), SendRequest{Text: "hi", Profile: "night"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Enqueue() unknown profile error = %v, want ErrValidation", err)
	}

	brokerErr := errors.New("broker down")
	svc = newTestAlertService(t, &fakeDispatcher{}, nil, &fakePublisher{
		publishAlertFn: func(context.Context, queue.AlertMessage) error { return brokerErr },
	})
	if _, err := svc.Enqueue(context.Background(), SendRequest{Text: "hi"}); !errors.Is(err, brokerErr) {
		t.Fatalf("Enqueue() error = %v, want %v", err, brokerErr)
	}
}

func TestAlertServiceHandleMessage(t *testing.T) {
	t.Parallel()

	var gotOpts domain.SendOptions
	dispatcher := &fakeDispatcher{
		dispatchFn: func(_ context.Context, _ string, opts domain.SendOptions) domain.DeliveryResult {
			gotOpts = opts
			return domain.Failed(domain.FailureOutOfWindow, 0, "outside window")
		},
	}
	publisher := &fakePublisher{}
	svc := newTestAlertService(t, dispatcher, nil, publisher)

	err := svc.HandleMessage(context.Background(), queue.AlertMessage{
		ID:            "msg-1",
		CorrelationID: "corr-9",
		Text:          "nightly job done",
		ForceWindow:   true,
		Provider:      "webhook",
	})
	if err != nil {
		t.Fatalf("HandleMessage() error = %v, want nil for a failed send", err)
	}
	if !gotOpts.ForceWindow || gotOpts.Provider != "webhook" {
		t.Fatalf("dispatched opts = %+v", gotOpts)
	}
	if event := publisher.results[0]; event.RequestID != "msg-1" || event.CorrelationID != "corr-9" {
		t.Fatalf("result event = %+v", event)
	}
}

func TestAlertServiceQueries(t *testing.T) {
	t.Parallel()

	dispatcher := &fakeDispatcher{
		rateStateFn: func(context.Context) (domain.RateCounterState, domain.RateLimitConfig, error) {
			return domain.RateCounterState{CountToday: 3}, domain.RateLimitConfig{MaxPerDay: 200}, nil
		},
	}
	svc := newTestAlertService(t, dispatcher, nil, nil)

	delivery, err := svc.Send(context.Background(), SendRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got, err := svc.GetDelivery(context.Background(), delivery.ID)
	if err != nil || got.ID != delivery.ID {
		t.Fatalf("GetDelivery() = %+v, %v", got, err)
	}
	if _, err := svc.GetDelivery(context.Background(), " "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GetDelivery(blank) error = %v, want ErrValidation", err)
	}
	if _, err := svc.GetDelivery(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetDelivery(missing) error = %v, want ErrNotFound", err)
	}

	list, total, err := svc.ListDeliveries(context.Background(), repository.ListParams{})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("ListDeliveries() = %d/%d, %v", len(list), total, err)
	}

	from := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	if _, _, err := svc.ListDeliveries(context.Background(), repository.ListParams{From: &from, To: &to}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("ListDeliveries(from>to) error = %v, want ErrValidation", err)
	}

	status, err := svc.RateStatus(context.Background())
	if err != nil {
		t.Fatalf("RateStatus() error = %v", err)
	}
	if status.State.CountToday != 3 || status.Config.MaxPerDay != 200 {
		t.Fatalf("RateStatus() = %+v", status)
	}
}

func TestNewAlertServiceValidation(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryDeliveryRepo()
	if _, err := NewAlertService(nil, &fakeFormatter{}, nil, repo, nil, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("missing dispatcher error = %v", err)
	}
	if _, err := NewAlertService(&fakeDispatcher{}, nil, nil, repo, nil, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("missing formatter error = %v", err)
	}
	if _, err := NewAlertService(&fakeDispatcher{}, &fakeFormatter{}, nil, nil, nil, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("missing repository error = %v", err)
	}

	svc, err := NewAlertService(&fakeDispatcher{}, &fakeFormatter{}, nil, repo, nil, nil)
	if err != nil {
		t.Fatalf("NewAlertService() error = %v", err)
	}
	if len(svc.Profiles()) != len(schedule.DefaultProfiles()) {
		t.Fatalf("profiles = %v, want defaults", svc.Profiles().Names())
	}
}
