package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/ratelimit"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultCounterName = "default"

var _ ratelimit.CounterStore = (*GormCounterStore)(nil)

// GormCounterStore keeps RateCounterState in one rate_counters row and mutates
// it under SELECT ... FOR UPDATE.
type GormCounterStore struct {
	db   *gorm.DB
	name string
}

func NewGormCounterStore(db *gorm.DB, name string) (*GormCounterStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultCounterName
	}
	return &GormCounterStore{db: db, name: name}, nil
}

func (s *GormCounterStore) Load(ctx context.Context) (domain.RateCounterState, error) {
	var model RateCounterModel
	err := s.db.WithContext(ctx).First(&model, "name = ?", s.name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RateCounterState{}, nil
	}
	if err != nil {
		return domain.RateCounterState{}, err
	}
	return counterModelToDomain(&model), nil
}

func (s *GormCounterStore) CommitAtomic(ctx context.Context, mutate ratelimit.Mutator) (domain.RateCounterState, error) {
	if mutate == nil {
		return domain.RateCounterState{}, fmt.Errorf("counter mutator is required")
	}

	var committed domain.RateCounterState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := s.lockRow(tx)
		if err != nil {
			return err
		}

		state := counterModelToDomain(model)
		if err := mutate(&state); err != nil {
			committed = state
			return err
		}

		applyCounterState(model, state)
		if err := tx.Save(model).Error; err != nil {
			return fmt.Errorf("failed to save rate counters: %w", err)
		}

		committed = state
		return nil
	})

	return committed, err
}

func (s *GormCounterStore) lockRow(tx *gorm.DB) (*RateCounterModel, error) {
	// Make sure the row exists so concurrent first writers serialize on it.
	seed := RateCounterModel{Name: s.name}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("failed to seed rate counters: %w", err)
	}

	var model RateCounterModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "name = ?", s.name).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock rate counters: %w", err)
	}
	return &model, nil
}
