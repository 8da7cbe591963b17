package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/format"
	"github.com/kursadbilgin/alert-dispatch/internal/repository"
	"github.com/kursadbilgin/alert-dispatch/internal/schedule"
	"github.com/kursadbilgin/alert-dispatch/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type AlertService interface {
	Send(ctx context.Context, req service.SendRequest) (*domain.Delivery, error)
	Enqueue(ctx context.Context, req service.SendRequest) (string, error)
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	ListDeliveries(ctx context.Context, params repository.ListParams) ([]domain.Delivery, int64, error)
	RateStatus(ctx context.Context) (service.RateStatus, error)
	Profiles() schedule.Profiles
}

type AlertHandler struct {
	service AlertService
}

func NewAlertHandler(service AlertService) (*AlertHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("alert service is required")
	}
	return &AlertHandler{service: service}, nil
}

func RegisterAlertRoutes(router fiber.Router, service AlertService) error {
	h, err := NewAlertHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/messages", h.SendMessage)
	v1.Post("/alerts", h.SendAlert)
	v1.Get("/deliveries", h.ListDeliveries)
	v1.Get("/deliveries/:id", h.GetDelivery)
	v1.Get("/rate-limit", h.GetRateLimit)
	v1.Get("/profiles", h.ListProfiles)

	return nil
}

type sendMessageRequest struct {
	CorrelationID string `json:"correlationId"`
	Text          string `json:"text" validate:"required"`
	Priority      string `json:"priority"`
	ForceWindow   bool   `json:"forceWindow"`
	NoRetry       bool   `json:"noRetry"`
	Provider      string `json:"provider"`
	Profile       string `json:"profile"`
	Async         bool   `json:"async"`
}

type sendAlertRequest struct {
	CorrelationID string      `json:"correlationId"`
	Kind          string      `json:"kind" validate:"required"`
	Data          format.Data `json:"data"`
	Priority      string      `json:"priority"`
	ForceWindow   bool        `json:"forceWindow"`
	NoRetry       bool        `json:"noRetry"`
	Provider      string      `json:"provider"`
	Profile       string      `json:"profile"`
	Async         bool        `json:"async"`
}

type deliveryResponse struct {
	ID                 string    `json:"id"`
	CorrelationID      string    `json:"correlationId,omitempty"`
	Kind               string    `json:"kind"`
	Provider           string    `json:"provider,omitempty"`
	Priority           string    `json:"priority"`
	Content            string    `json:"content"`
	Success            bool      `json:"success"`
	FailureReason      string    `json:"failureReason,omitempty"`
	Detail             string    `json:"detail,omitempty"`
	AttemptsMade       int       `json:"attemptsMade"`
	ProviderStatusCode *int      `json:"providerStatusCode,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type queuedResponse struct {
	MessageID     string `json:"messageId"`
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type rateLimitResponse struct {
	CountToday    int        `json:"countToday"`
	MaxPerDay     int        `json:"maxPerDay"`
	CountThisHour int        `json:"countThisHour"`
	MaxPerHour    int        `json:"maxPerHour"`
	MinIntervalMS int64      `json:"minIntervalMs"`
	LastSendAt    *time.Time `json:"lastSendAt,omitempty"`
	DayStart      *time.Time `json:"dayStart,omitempty"`
	HourStart     *time.Time `json:"hourStart,omitempty"`
}

func (h *AlertHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateRequest(req); err != nil {
		return toHTTPError(err)
	}

	priority, err := parseOptionalPriority(req.Priority)
	if err != nil {
		return toHTTPError(err)
	}

	sendReq := service.SendRequest{
		CorrelationID: correlationIDOrFallback(req.CorrelationID, c),
		Text:          req.Text,
		Priority:      priority,
		ForceWindow:   req.ForceWindow,
		NoRetry:       req.NoRetry,
		Provider:      strings.TrimSpace(req.Provider),
		Profile:       strings.TrimSpace(req.Profile),
	}
	return h.dispatch(c, sendReq, req.Async)
}

func (h *AlertHandler) SendAlert(c *fiber.Ctx) error {
	var req sendAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateRequest(req); err != nil {
		return toHTTPError(err)
	}

	kind, err := format.ParseKindFromString(req.Kind)
	if err != nil {
		return toHTTPError(err)
	}
	priority, err := parseOptionalPriority(req.Priority)
	if err != nil {
		return toHTTPError(err)
	}

	sendReq := service.SendRequest{
		CorrelationID: correlationIDOrFallback(req.CorrelationID, c),
		Kind:          kind,
		Data:          req.Data,
		Priority:      priority,
		ForceWindow:   req.ForceWindow,
		NoRetry:       req.NoRetry,
		Provider:      strings.TrimSpace(req.Provider),
		Profile:       strings.TrimSpace(req.Profile),
	}
	return h.dispatch(c, sendReq, req.Async)
}

func (h *AlertHandler) dispatch(c *fiber.Ctx, req service.SendRequest, async bool) error {
	if async {
		id, err := h.service.Enqueue(c.Context(), req)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusAccepted).JSON(queuedResponse{
			MessageID:     id,
			CorrelationID: req.CorrelationID,
			Status:        "queued",
		})
	}

	delivery, err := h.service.Send(c.Context(), req)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(deliveryStatusCode(delivery)).JSON(toDeliveryResponse(delivery))
}

func (h *AlertHandler) GetDelivery(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	delivery, err := h.service.GetDelivery(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toDeliveryResponse(delivery))
}

func (h *AlertHandler) ListDeliveries(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	deliveries, total, err := h.service.ListDeliveries(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]deliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		data = append(data, toDeliveryResponse(&deliveries[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *AlertHandler) GetRateLimit(c *fiber.Ctx) error {
	status, err := h.service.RateStatus(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(rateLimitResponse{
		CountToday:    status.State.CountToday,
		MaxPerDay:     status.Config.MaxPerDay,
		CountThisHour: status.State.CountThisHour,
		MaxPerHour:    status.Config.MaxPerHour,
		MinIntervalMS: status.Config.MinInterval.Milliseconds(),
		LastSendAt:    optionalTime(status.State.LastSendAt),
		DayStart:      optionalTime(status.State.DayStart),
		HourStart:     optionalTime(status.State.HourStart),
	})
}

func (h *AlertHandler) ListProfiles(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.service.Profiles())
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 || params.Page > repository.MaxPage {
		return repository.ListParams{}, fmt.Errorf("%w: page must be between 1 and %d", domain.ErrValidation, repository.MaxPage)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawSuccess := strings.TrimSpace(c.Query("success")); rawSuccess != "" {
		success, err := strconv.ParseBool(rawSuccess)
		if err != nil {
			return repository.ListParams{}, fmt.Errorf("%w: success must be a boolean", domain.ErrValidation)
		}
		params.Success = &success
	}

	if rawReason := strings.TrimSpace(c.Query("reason")); rawReason != "" {
		reason, err := domain.ParseFailureReasonFromString(rawReason)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Reason = &reason
	}

	if provider := strings.TrimSpace(c.Query("provider")); provider != "" {
		params.Provider = &provider
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func parseOptionalPriority(raw string) (domain.Priority, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return domain.ParsePriorityFromString(raw)
}

func validateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("%w: %s failed on %s", domain.ErrValidation, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func correlationIDOrFallback(value string, c *fiber.Ctx) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return requestCorrelationID(c)
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// deliveryStatusCode maps a completed dispatch to an HTTP status.
func deliveryStatusCode(d *domain.Delivery) int {
	if d.Success || d.FailureReason == nil {
		return fiber.StatusOK
	}

	switch *d.FailureReason {
	case domain.FailureInvalidMessage:
		return fiber.StatusUnprocessableEntity
	case domain.FailureRateLimited:
		return fiber.StatusTooManyRequests
	case domain.FailureOutOfWindow:
		return fiber.StatusConflict
	default:
		return fiber.StatusBadGateway
	}
}

func toDeliveryResponse(d *domain.Delivery) deliveryResponse {
	if d == nil {
		return deliveryResponse{}
	}

	resp := deliveryResponse{
		ID:                 d.ID,
		CorrelationID:      d.CorrelationID,
		Kind:               d.Kind,
		Provider:           d.Provider,
		Priority:           d.Priority.String(),
		Content:            d.Content,
		Success:            d.Success,
		Detail:             d.Detail,
		AttemptsMade:       d.AttemptsMade,
		ProviderStatusCode: d.ProviderStatusCode,
		CreatedAt:          d.CreatedAt,
	}
	if d.FailureReason != nil {
		resp.FailureReason = d.FailureReason.String()
	}
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrQueueUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
