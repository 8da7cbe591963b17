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

const defaultSMSBridgeURL = "https://api.twilio.com"

type SMSBridgeConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	To         string
	Timeout    time.Duration
}

// SMSBridge sends messages through a Twilio-style REST messaging API.
type SMSBridge struct {
	client   *resty.Client
	cfg      SMSBridgeConfig
	endpoint string
}

var _ Provider = (*SMSBridge)(nil)

func NewSMSBridge(cfg SMSBridgeConfig, client *resty.Client) (*SMSBridge, error) {
	err := requireFields(NameSMSBridge, map[string]string{
		"account sid": cfg.AccountSID,
		"auth token":  cfg.AuthToken,
		"from":        cfg.From,
		"to":          cfg.To,
	})
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultSMSBridgeURL
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", base, url.PathEscape(cfg.AccountSID))
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid sms bridge url: %v", domain.ErrConfiguration, err)
	}

	return &SMSBridge{client: newClient(client, cfg.Timeout), cfg: cfg, endpoint: endpoint}, nil
}

func (p *SMSBridge) Name() string   { return NameSMSBridge }
func (p *SMSBridge) MaxLength() int { return DefaultMaxLength }

func (p *SMSBridge) Send(ctx context.Context, text string) domain.DeliveryResult {
	req := p.client.R().
		SetContext(ctx).
		SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken).
		SetFormData(map[string]string{
			"From": p.cfg.From,
			"To":   p.cfg.To,
			"Body": text,
		})

	return execute(p.Name(), req, http.MethodPost, p.endpoint, statusIs(http.StatusCreated))
}
