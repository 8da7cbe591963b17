package repository

import (
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// DeliveryModel is the persistence model for the deliveries table.
type DeliveryModel struct {
	ID                 string                `gorm:"type:uuid;primaryKey"`
	CorrelationID      string                `gorm:"type:varchar(64);not null"`
	Kind               string                `gorm:"type:varchar(32);not null"`
	Provider           string                `gorm:"type:varchar(32)"`
	Priority           domain.Priority       `gorm:"type:varchar(10);not null"`
	Content            string                `gorm:"type:text;not null"`
	Success            bool                  `gorm:"not null"`
	FailureReason      *domain.FailureReason `gorm:"type:varchar(32)"`
	Detail             string                `gorm:"type:text"`
	AttemptsMade       int                   `gorm:"not null;default:0"`
	ProviderStatusCode *int                  `gorm:"type:int"`
	RawResponse        *string               `gorm:"type:text"`
	CreatedAt          time.Time
}

func (DeliveryModel) TableName() string {
	return "deliveries"
}

// RateCounterModel is the persistence model for rate_counters. Name lets
// several independent counter sets share the table.
type RateCounterModel struct {
	Name          string `gorm:"type:varchar(64);primaryKey"`
	LastSendAt    *time.Time
	CountToday    int `gorm:"not null;default:0"`
	CountThisHour int `gorm:"not null;default:0"`
	DayStart      *time.Time
	HourStart     *time.Time
	UpdatedAt     time.Time
}

func (RateCounterModel) TableName() string {
	return "rate_counters"
}

func deliveryModelFromDomain(d *domain.Delivery) *DeliveryModel {
	if d == nil {
		return nil
	}

	return &DeliveryModel{
		ID:                 d.ID,
		CorrelationID:      d.CorrelationID,
		Kind:               d.Kind,
		Provider:           d.Provider,
		Priority:           d.Priority,
		Content:            d.Content,
		Success:            d.Success,
		FailureReason:      d.FailureReason,
		Detail:             d.Detail,
		AttemptsMade:       d.AttemptsMade,
		ProviderStatusCode: d.ProviderStatusCode,
		RawResponse:        d.RawResponse,
		CreatedAt:          d.CreatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryModel) *domain.Delivery {
	if m == nil {
		return nil
	}

	return &domain.Delivery{
		ID:                 m.ID,
		CorrelationID:      m.CorrelationID,
		Kind:               m.Kind,
		Provider:           m.Provider,
		Priority:           m.Priority,
		Content:            m.Content,
		Success:            m.Success,
		FailureReason:      m.FailureReason,
		Detail:             m.Detail,
		AttemptsMade:       m.AttemptsMade,
		ProviderStatusCode: m.ProviderStatusCode,
		RawResponse:        m.RawResponse,
		CreatedAt:          m.CreatedAt,
	}
}

func counterModelToDomain(m *RateCounterModel) domain.RateCounterState {
	var state domain.RateCounterState
	if m == nil {
		return state
	}

	state.CountToday = m.CountToday
	state.CountThisHour = m.CountThisHour
	state.LastSendAt = timeOrZero(m.LastSendAt)
	state.DayStart = timeOrZero(m.DayStart)
	state.HourStart = timeOrZero(m.HourStart)
	return state
}

func applyCounterState(m *RateCounterModel, state domain.RateCounterState) {
	m.CountToday = state.CountToday
	m.CountThisHour = state.CountThisHour
	m.LastSendAt = timeOrNil(state.LastSendAt)
	m.DayStart = timeOrNil(state.DayStart)
	m.HourStart = timeOrNil(state.HourStart)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
