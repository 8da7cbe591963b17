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

const defaultCallMeBotURL = "https://api.callmebot.com/whatsapp.php"

type CallMeBotConfig struct {
	URL     string
	Phone   string
	APIKey  string
	Timeout time.Duration
}

// CallMeBot sends WhatsApp messages through the CallMeBot GET endpoint.
type CallMeBot struct {
	client *resty.Client
	cfg    CallMeBotConfig
}

var _ Provider = (*CallMeBot)(nil)

func NewCallMeBot(cfg CallMeBotConfig, client *resty.Client) (*CallMeBot, error) {
	if err := requireFields(NameCallMeBot, map[string]string{"phone": cfg.Phone, "api key": cfg.APIKey}); err != nil {
		return nil, err
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		cfg.URL = defaultCallMeBotURL
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: invalid callmebot url: %v", domain.ErrConfiguration, err)
	}

	return &CallMeBot{client: newClient(client, cfg.Timeout), cfg: cfg}, nil
}

func (p *CallMeBot) Name() string   { return NameCallMeBot }
func (p *CallMeBot) MaxLength() int { return DefaultMaxLength }

func (p *CallMeBot) Send(ctx context.Context, text string) domain.DeliveryResult {
	req := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"phone":  p.cfg.Phone,
			"text":   text,
			"apikey": p.cfg.APIKey,
		})

	return execute(p.Name(), req, http.MethodGet, p.cfg.URL, statusIs(http.StatusOK))
}
