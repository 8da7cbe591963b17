package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

var (
	_ DeliveryRepository = (*GormDeliveryRepo)(nil)
	_ DeliveryRepository = (*MemoryDeliveryRepo)(nil)
)

// MemoryDeliveryRepo keeps the delivery log in process memory. It is used
// when no database is configured.
type MemoryDeliveryRepo struct {
	mu         sync.RWMutex
	deliveries map[string]domain.Delivery
}

func NewMemoryDeliveryRepo() *MemoryDeliveryRepo {
	return &MemoryDeliveryRepo{deliveries: make(map[string]domain.Delivery)}
}

func (r *MemoryDeliveryRepo) Create(_ context.Context, d *domain.Delivery) error {
	if d == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries[d.ID] = *d
	return nil
}

func (r *MemoryDeliveryRepo) GetByID(_ context.Context, id string) (*domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.deliveries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (r *MemoryDeliveryRepo) List(_ context.Context, params ListParams) ([]domain.Delivery, int64, error) {
	r.mu.RLock()
	matched := make([]domain.Delivery, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		if params.matches(d) {
			matched = append(matched, d)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	offset, pageSize := params.offset()
	start := min(offset, len(matched))
	end := min(start+pageSize, len(matched))

	return matched[start:end], total, nil
}

func (p ListParams) matches(d domain.Delivery) bool {
	if p.Success != nil && d.Success != *p.Success {
		return false
	}
	if p.Reason != nil && (d.FailureReason == nil || *d.FailureReason != *p.Reason) {
		return false
	}
	if p.Provider != nil && d.Provider != *p.Provider {
		return false
	}
	if p.From != nil && d.CreatedAt.Before(*p.From) {
		return false
	}
	if p.To != nil && d.CreatedAt.After(*p.To) {
		return false
	}
	return true
}

func (p ListParams) pagination() (page int, pageSize int) {
	page = min(max(p.Page, 1), MaxPage)
	pageSize = p.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	return page, min(pageSize, 100)
}

// offset is the number of rows to skip for the requested page.
func (p ListParams) offset() (offset int, pageSize int) {
	page, pageSize := p.pagination()
	return (page - 1) * pageSize, pageSize
}
