package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/alert-dispatch/internal/observability"
	"github.com/kursadbilgin/alert-dispatch/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	inflightSource       = "queue"
)

type WorkerService struct {
	consumer    queue.Consumer
	handler     queue.AlertHandler
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
}

func NewWorkerService(
	consumer queue.Consumer,
	handler queue.AlertHandler,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		handler:     handler,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start consumes the alert queue with the configured number of workers until
// context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.AlertMessage) error {
	s.metrics.IncInflight(inflightSource)
	defer s.metrics.DecInflight(inflightSource)

	if err := s.handler(ctx, msg); err != nil {
		s.logger.Error("failed to process alert message",
			zap.String("messageId", msg.ID),
			zap.String("correlationId", msg.CorrelationID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}
