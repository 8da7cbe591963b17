package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

const (
	// DefaultMaxLength is the message size limit, in runes, shared by all
	// built-in providers.
	DefaultMaxLength = 4096

	defaultTimeout = 10 * time.Second
)

const (
	NameCallMeBot   = "callmebot"
	NameBusinessAPI = "whatsapp"
	NameSMSBridge   = "smsbridge"
	NameWebhook     = "webhook"
)

// Provider is the outbound message delivery port. Send never panics and
// reports every failure as a PROVIDER_ERROR result.
type Provider interface {
	Name() string
	MaxLength() int
	Send(ctx context.Context, text string) domain.DeliveryResult
}

func newClient(client *resty.Client, timeout time.Duration) *resty.Client {
	if client == nil {
		client = resty.New()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(timeout)
	}
	// Retries are owned by the dispatch engine.
	client.SetRetryCount(0)
	return client
}

// execute runs a prepared request and classifies the response with isSuccess.
func execute(name string, req *resty.Request, method, url string, isSuccess func(int) bool) domain.DeliveryResult {
	response, err := req.Execute(method, url)
	if err != nil {
		return failure(name, 0, "", &ProviderError{
			Message: "provider request failed",
			Cause:   err,
		})
	}
	if response == nil {
		return failure(name, 0, "", &ProviderError{Message: "provider returned empty response"})
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if isSuccess(statusCode) {
		result := domain.Succeeded(name, statusCode, body)
		result.AttemptsMade = 1
		return result
	}

	return failure(name, statusCode, body, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, body),
	})
}

func statusIs(want int) func(int) bool {
	return func(got int) bool { return got == want }
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}

func requireField(provider, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s %s is required", domain.ErrConfiguration, provider, field)
	}
	return nil
}

func requireFields(provider string, fields map[string]string) error {
	var errs []error
	for _, name := range sortedKeys(fields) {
		if err := requireField(provider, name, fields[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
