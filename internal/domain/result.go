package domain

import (
	"fmt"
	"strings"
)

// FailureReason classifies why a dispatch did not succeed.
type FailureReason string

const (
	FailureOutOfWindow        FailureReason = "OUT_OF_WINDOW"
	FailureRateLimited        FailureReason = "RATE_LIMITED"
	FailureProviderError      FailureReason = "PROVIDER_ERROR"
	FailureMaxRetriesExceeded FailureReason = "MAX_RETRIES_EXCEEDED"
	FailureInvalidMessage     FailureReason = "INVALID_MESSAGE"
)

func (r FailureReason) String() string { return string(r) }

func (r FailureReason) IsValid() bool {
	switch r {
	case FailureOutOfWindow, FailureRateLimited, FailureProviderError, FailureMaxRetriesExceeded, FailureInvalidMessage:
		return true
	}
	return false
}

func ParseFailureReasonFromString(s string) (FailureReason, error) {
	r := FailureReason(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid failure reason %q", ErrValidation, s)
	}
	return r, nil
}

// DeliveryResult is the outcome of a single provider send or of a whole
// dispatch sequence.
type DeliveryResult struct {
	Success            bool
	Provider           string
	ProviderStatusCode *int
	RawResponse        *string
	FailureReason      FailureReason
	AttemptsMade       int
	Detail             string
	Err                error
}

// Succeeded builds a successful provider result.
func Succeeded(provider string, statusCode int, body string) DeliveryResult {
	return DeliveryResult{
		Success:            true,
		Provider:           provider,
		ProviderStatusCode: &statusCode,
		RawResponse:        optionalBody(body),
	}
}

// Failed builds a terminal failure result.
func Failed(reason FailureReason, attempts int, detail string) DeliveryResult {
	return DeliveryResult{
		FailureReason: reason,
		AttemptsMade:  attempts,
		Detail:        detail,
	}
}

func optionalBody(body string) *string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
