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

type BusinessAPIConfig struct {
	// URL is the full messages endpoint, e.g.
	// https://graph.facebook.com/v17.0/<phone-id>/messages.
	URL     string
	Token   string
	To      string
	Timeout time.Duration
}

type businessTextBody struct {
	Body string `json:"body"`
}

type businessAPIRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             businessTextBody `json:"text"`
}

// BusinessAPI sends text messages through the WhatsApp Cloud API.
type BusinessAPI struct {
	client *resty.Client
	cfg    BusinessAPIConfig
}

var _ Provider = (*BusinessAPI)(nil)

func NewBusinessAPI(cfg BusinessAPIConfig, client *resty.Client) (*BusinessAPI, error) {
	if err := requireFields(NameBusinessAPI, map[string]string{"url": cfg.URL, "token": cfg.Token, "recipient": cfg.To}); err != nil {
		return nil, err
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: invalid whatsapp url: %v", domain.ErrConfiguration, err)
	}

	return &BusinessAPI{client: newClient(client, cfg.Timeout), cfg: cfg}, nil
}

func (p *BusinessAPI) Name() string   { return NameBusinessAPI }
func (p *BusinessAPI) MaxLength() int { return DefaultMaxLength }

func (p *BusinessAPI) Send(ctx context.Context, text string) domain.DeliveryResult {
	req := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.cfg.Token).
		SetHeader("Content-Type", "application/json").
		SetBody(businessAPIRequest{
			MessagingProduct: "whatsapp",
			To:               p.cfg.To,
			Type:             "text",
			Text:             businessTextBody{Body: text},
		})

	return execute(p.Name(), req, http.MethodPost, p.cfg.URL, statusIs(http.StatusOK))
}
