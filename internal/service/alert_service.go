package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/format"
	"github.com/kursadbilgin/alert-dispatch/internal/observability"
	"github.com/kursadbilgin/alert-dispatch/internal/queue"
	"github.com/kursadbilgin/alert-dispatch/internal/repository"
	"github.com/kursadbilgin/alert-dispatch/internal/schedule"
	"go.uber.org/zap"
)

const kindMessage = "message"

var ErrQueueUnavailable = errors.New("queue unavailable")

// Dispatcher is the part of the dispatch engine the service depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string, opts domain.SendOptions) domain.DeliveryResult
	RateState(ctx context.Context) (domain.RateCounterState, domain.RateLimitConfig, error)
}

type Formatter interface {
	Format(kind format.Kind, data format.Data) (string, error)
}

type AlertService struct {
	dispatcher Dispatcher
	formatter  Formatter
	profiles   schedule.Profiles
	deliveries repository.DeliveryRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// SendRequest is one dispatch request. Either Text or Kind must be set.
type SendRequest struct {
	RequestID     string
	CorrelationID string
	Text          string
	Kind          format.Kind
	Data          format.Data
	Priority      domain.Priority
	ForceWindow   bool
	NoRetry       bool
	Provider      string
	Profile       string
}

type RateStatus struct {
	State  domain.RateCounterState
	Config domain.RateLimitConfig
}

// NewAlertService wires the dispatch pipeline. publisher may be nil, in which
// case no outcome events are emitted and Enqueue is unavailable.
func NewAlertService(
	dispatcher Dispatcher,
	formatter Formatter,
	profiles schedule.Profiles,
	deliveries repository.DeliveryRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*AlertService, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: dispatcher is required", domain.ErrConfiguration)
	}
	if formatter == nil {
		return nil, fmt.Errorf("%w: formatter is required", domain.ErrConfiguration)
	}
	if deliveries == nil {
		return nil, fmt.Errorf("%w: delivery repository is required", domain.ErrConfiguration)
	}
	if profiles == nil {
		profiles = schedule.DefaultProfiles()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AlertService{
		dispatcher: dispatcher,
		formatter:  formatter,
		profiles:   profiles,
		deliveries: deliveries,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}, nil
}

// Send renders, dispatches and records one message. A returned delivery with
// Success false is a normal outcome; errors are reserved for invalid requests
// and persistence failures.
func (s *AlertService) Send(ctx context.Context, req SendRequest) (*domain.Delivery, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if req.CorrelationID == "" {
		req.CorrelationID = s.newID()
	}
	ctx = observability.WithCorrelationID(ctx, req.CorrelationID)
	logger := observability.WithContextLogger(s.logger, ctx)

	text, opts, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	result := s.dispatcher.Dispatch(ctx, text, opts)

	kind := kindMessage
	if req.Kind != "" {
		kind = req.Kind.String()
	}
	delivery := domain.NewDeliveryFromResult(s.newID(), text, opts.Priority, result, s.now().UTC())
	delivery.CorrelationID = req.CorrelationID
	delivery.Kind = kind

	fields := append([]zap.Field{
		zap.String("deliveryId", delivery.ID),
		zap.String("kind", kind),
	}, observability.ResultFields(result)...)
	if result.Success {
		logger.Info("message delivered", fields...)
	} else {
		logger.Warn("message not delivered", fields...)
	}

	if err := s.deliveries.Create(ctx, &delivery); err != nil {
		logger.Error("failed to record delivery",
			zap.String("deliveryId", delivery.ID),
			zap.Error(err),
		)
		return &delivery, fmt.Errorf("failed to record delivery: %w", err)
	}

	s.publishResult(ctx, logger, delivery, req.RequestID)

	return &delivery, nil
}

// Enqueue hands the request to the alert queue for asynchronous dispatch and
// returns the message id.
func (s *AlertService) Enqueue(ctx context.Context, req SendRequest) (string, error) {
	if s.publisher == nil {
		return "", ErrQueueUnavailable
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if req.CorrelationID == "" {
		req.CorrelationID = s.newID()
	}
	msg := queue.AlertMessage{
		ID:            s.newID(),
		CorrelationID: req.CorrelationID,
		Text:          req.Text,
		Kind:          req.Kind,
		Data:          req.Data,
		Priority:      baseSendOptions(req).Priority,
		ForceWindow:   req.ForceWindow,
		NoRetry:       req.NoRetry,
		Provider:      req.Provider,
		Profile:       req.Profile,
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if req.Profile != "" {
		if _, err := s.profiles.Lookup(req.Profile); err != nil {
			return "", err
		}
	}

	if err := s.publisher.PublishAlert(ctx, msg); err != nil {
		s.logger.Error("failed to publish alert",
			zap.String("messageId", msg.ID),
			zap.String("correlationId", msg.CorrelationID),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to publish alert: %w", err)
	}

	return msg.ID, nil
}

// HandleMessage dispatches one queued alert request.
func (s *AlertService) HandleMessage(ctx context.Context, msg queue.AlertMessage) error {
	_, err := s.Send(ctx, SendRequest{
		RequestID:     msg.ID,
		CorrelationID: msg.CorrelationID,
		Text:          msg.Text,
		Kind:          msg.Kind,
		Data:          msg.Data,
		Priority:      msg.Priority,
		ForceWindow:   msg.ForceWindow,
		NoRetry:       msg.NoRetry,
		Provider:      msg.Provider,
		Profile:       msg.Profile,
	})
	return err
}

func (s *AlertService) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: delivery id is required", domain.ErrValidation)
	}
	return s.deliveries.GetByID(ctx, id)
}

func (s *AlertService) ListDeliveries(ctx context.Context, params repository.ListParams) ([]domain.Delivery, int64, error) {
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, 0, fmt.Errorf("%w: from must not be after to", domain.ErrValidation)
	}
	return s.deliveries.List(ctx, params)
}

func (s *AlertService) RateStatus(ctx context.Context) (RateStatus, error) {
	state, cfg, err := s.dispatcher.RateState(ctx)
	if err != nil {
		return RateStatus{}, fmt.Errorf("failed to load rate counters: %w", err)
	}
	return RateStatus{State: state, Config: cfg}, nil
}

func (s *AlertService) Profiles() schedule.Profiles {
	return s.profiles
}

func (s *AlertService) prepare(req SendRequest) (string, domain.SendOptions, error) {
	hasText := strings.TrimSpace(req.Text) != ""
	if hasText == (req.Kind != "") {
		return "", domain.SendOptions{}, fmt.Errorf("%w: exactly one of text or kind is required", domain.ErrValidation)
	}

	text := req.Text
	if req.Kind != "" {
		rendered, err := s.formatter.Format(req.Kind, req.Data)
		if err != nil {
			return "", domain.SendOptions{}, err
		}
		text = rendered
	}

	opts := baseSendOptions(req)
	opts.ForceWindow = opts.ForceWindow || req.ForceWindow
	opts.AllowRetry = !req.NoRetry
	opts.Provider = req.Provider

	if req.Profile != "" {
		window, err := s.profiles.Lookup(req.Profile)
		if err != nil {
			return "", domain.SendOptions{}, err
		}
		opts.WindowOverride = &window
	}

	return text, opts, nil
}

// baseSendOptions resolves the kind defaults and the caller's priority.
// critical_error keeps CRITICAL whatever the caller asked for.
func baseSendOptions(req SendRequest) domain.SendOptions {
	opts := domain.DefaultSendOptions()
	if req.Kind != "" {
		opts = format.SendOptionsFor(req.Kind, req.Data)
	}
	if req.Priority != "" && req.Kind != format.KindCriticalError {
		opts.Priority = req.Priority
	}
	return opts
}

func (s *AlertService) publishResult(ctx context.Context, logger *zap.Logger, delivery domain.Delivery, requestID string) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishResult(ctx, queue.NewResultEvent(delivery, requestID)); err != nil {
		logger.Warn("failed to publish delivery result",
			zap.String("deliveryId", delivery.ID),
			zap.Error(err),
		)
	}
}
