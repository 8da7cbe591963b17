package provider

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// ProviderError describes a failed provider call.
type ProviderError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// failure turns a provider error into a single-attempt PROVIDER_ERROR result.
func failure(name string, statusCode int, body string, err *ProviderError) domain.DeliveryResult {
	result := domain.Failed(domain.FailureProviderError, 1, err.Error())
	result.Provider = name
	result.Err = err
	if statusCode > 0 {
		result.ProviderStatusCode = &statusCode
	}
	if trimmed := strings.TrimSpace(body); trimmed != "" {
		result.RawResponse = &trimmed
	}
	return result
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
