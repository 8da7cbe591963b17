package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"gorm.io/gorm"
)

// MaxPage bounds ListParams.Page so the row offset cannot overflow.
const MaxPage = 100000

type ListParams struct {
	Success  *bool
	Reason   *domain.FailureReason
	Provider *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	List(ctx context.Context, params ListParams) ([]domain.Delivery, int64, error)
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	model := deliveryModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *deliveryModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) List(ctx context.Context, params ListParams) ([]domain.Delivery, int64, error) {
	query := r.db.WithContext(ctx).Model(&DeliveryModel{})

	if params.Success != nil {
		query = query.Where("success = ?", *params.Success)
	}
	if params.Reason != nil {
		query = query.Where("failure_reason = ?", *params.Reason)
	}
	if params.Provider != nil {
		query = query.Where("provider = ?", *params.Provider)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, pageSize := params.offset()

	var models []DeliveryModel
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	deliveries := make([]domain.Delivery, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, *deliveryModelToDomain(&models[i]))
	}

	return deliveries, total, nil
}
