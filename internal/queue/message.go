package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/format"
)

// AlertMessage is a dispatch request delivered through the broker. Either
// Text (sent as is) or Kind with Data (formatted first) must be set.
type AlertMessage struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Text          string          `json:"text,omitempty"`
	Kind          format.Kind     `json:"kind,omitempty"`
	Data          format.Data     `json:"data,omitempty"`
	Priority      domain.Priority `json:"priority,omitempty"`
	ForceWindow   bool            `json:"forceWindow,omitempty"`
	NoRetry       bool            `json:"noRetry,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Profile       string          `json:"profile,omitempty"`
}

func (m AlertMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	hasText := strings.TrimSpace(m.Text) != ""
	if hasText == (m.Kind != "") {
		return fmt.Errorf("%w: exactly one of text or kind is required", domain.ErrValidation)
	}
	if m.Kind != "" && !m.Kind.IsValid() {
		return fmt.Errorf("%w: invalid kind %q", domain.ErrValidation, m.Kind)
	}
	if m.Priority != "" && !m.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", domain.ErrValidation, m.Priority)
	}
	return nil
}

// ResultEvent announces the outcome of one dispatch.
type ResultEvent struct {
	DeliveryID    string               `json:"deliveryId"`
	RequestID     string               `json:"requestId,omitempty"`
	CorrelationID string               `json:"correlationId,omitempty"`
	Kind          string               `json:"kind"`
	Priority      domain.Priority      `json:"priority"`
	Success       bool                 `json:"success"`
	Provider      string               `json:"provider,omitempty"`
	FailureReason domain.FailureReason `json:"failureReason,omitempty"`
	AttemptsMade  int                  `json:"attemptsMade"`
	Detail        string               `json:"detail,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// NewResultEvent builds the outcome event for a persisted delivery.
func NewResultEvent(d domain.Delivery, requestID string) ResultEvent {
	event := ResultEvent{
		DeliveryID:    d.ID,
		RequestID:     requestID,
		CorrelationID: d.CorrelationID,
		Kind:          d.Kind,
		Priority:      d.Priority,
		Success:       d.Success,
		Provider:      d.Provider,
		AttemptsMade:  d.AttemptsMade,
		Detail:        d.Detail,
		OccurredAt:    d.CreatedAt,
	}
	if d.FailureReason != nil {
		event.FailureReason = *d.FailureReason
	}
	return event
}
