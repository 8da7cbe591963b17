package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// Publisher publishes alert requests and dispatch outcomes.
type Publisher interface {
	PublishAlert(ctx context.Context, msg AlertMessage) error
	PublishResult(ctx context.Context, event ResultEvent) error
	Close() error
}

// AlertHandler handles a consumed alert request. A returned error means the
// request could not be processed at all, not that the send failed.
type AlertHandler func(ctx context.Context, msg AlertMessage) error

// Consumer consumes alert requests.
type Consumer interface {
	Consume(ctx context.Context, handler AlertHandler) error
	Close() error
}

const (
	// queueMaxPriority is the RabbitMQ x-max-priority value for the alert queue.
	queueMaxPriority int32 = 5

	defaultAlertQueue  = "alerts.requests"
	defaultResultQueue = "alerts.results"
)

// Topology names the queues the service declares.
type Topology struct {
	AlertQueue  string
	ResultQueue string
}

func (t Topology) withDefaults() Topology {
	if strings.TrimSpace(t.AlertQueue) == "" {
		t.AlertQueue = defaultAlertQueue
	}
	if strings.TrimSpace(t.ResultQueue) == "" {
		t.ResultQueue = defaultResultQueue
	}
	return t
}

// DLQName returns the dead-letter queue for a work queue, e.g. alerts.requests.dlq.
func DLQName(queue string) string {
	return fmt.Sprintf("%s.dlq", queue)
}

// PriorityValue maps domain priority to RabbitMQ message priority.
func PriorityValue(priority domain.Priority) uint8 {
	switch priority {
	case domain.PriorityUrgent:
		return 5
	case domain.PriorityCritical:
		return 4
	case domain.PriorityHigh:
		return 3
	case domain.PriorityNormal:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}
