package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

const defaultWebhookSource = "alert-dispatch"

type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Source  string
	Timeout time.Duration
}

type webhookRequest struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// GenericWebhook posts messages as JSON to an arbitrary endpoint.
type GenericWebhook struct {
	client *resty.Client
	cfg    WebhookConfig
	now    func() time.Time
}

var _ Provider = (*GenericWebhook)(nil)

func NewGenericWebhook(cfg WebhookConfig, client *resty.Client) (*GenericWebhook, error) {
	return newGenericWebhook(cfg, client, time.Now)
}

func newGenericWebhook(cfg WebhookConfig, client *resty.Client, nowFn func() time.Time) (*GenericWebhook, error) {
	if err := requireField(NameWebhook, "url", cfg.URL); err != nil {
		return nil, err
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: invalid webhook url: %v", domain.ErrConfiguration, err)
	}
	if strings.TrimSpace(cfg.Source) == "" {
		cfg.Source = defaultWebhookSource
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &GenericWebhook{client: newClient(client, cfg.Timeout), cfg: cfg, now: nowFn}, nil
}

func (p *GenericWebhook) Name() string   { return NameWebhook }
func (p *GenericWebhook) MaxLength() int { return DefaultMaxLength }

func (p *GenericWebhook) Send(ctx context.Context, text string) domain.DeliveryResult {
	req := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(p.cfg.Headers).
		SetBody(webhookRequest{
			Message:   text,
			Timestamp: p.now().UTC().Format(time.RFC3339Nano),
			Source:    p.cfg.Source,
		})

	return execute(p.Name(), req, http.MethodPost, p.cfg.URL, is2xx)
}
