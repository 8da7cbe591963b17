package domain

import "time"

// Delivery is the persisted audit record of one dispatch call.
type Delivery struct {
	ID                 string
	CorrelationID      string
	Kind               string
	Provider           string
	Priority           Priority
	Content            string
	Success            bool
	FailureReason      *FailureReason
	Detail             string
	AttemptsMade       int
	ProviderStatusCode *int
	RawResponse        *string
	CreatedAt          time.Time
}

// NewDeliveryFromResult copies the observable outcome of result into a record.
func NewDeliveryFromResult(id string, content string, priority Priority, result DeliveryResult, createdAt time.Time) Delivery {
	d := Delivery{
		ID:                 id,
		Provider:           result.Provider,
		Priority:           priority,
		Content:            content,
		Success:            result.Success,
		Detail:             result.Detail,
		AttemptsMade:       result.AttemptsMade,
		ProviderStatusCode: result.ProviderStatusCode,
		RawResponse:        result.RawResponse,
		CreatedAt:          createdAt,
	}
	if result.FailureReason != "" {
		reason := result.FailureReason
		d.FailureReason = &reason
	}
	return d
}
