package ratelimit

import (
	"context"
	"sync"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// Mutator changes counter state inside an atomic commit. Returning an error
// aborts the commit and leaves the stored state untouched.
type Mutator func(state *domain.RateCounterState) error

// CounterStore persists RateCounterState. CommitAtomic must run the mutator as
// a single read-modify-write transaction with respect to other callers.
type CounterStore interface {
	Load(ctx context.Context) (domain.RateCounterState, error)
	CommitAtomic(ctx context.Context, mutate Mutator) (domain.RateCounterState, error)
}

var _ CounterStore = (*MemoryStore)(nil)

// MemoryStore is a process-local CounterStore guarded by a mutex.
type MemoryStore struct {
	mu    sync.Mutex
	state domain.RateCounterState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (domain.RateCounterState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *MemoryStore) CommitAtomic(ctx context.Context, mutate Mutator) (domain.RateCounterState, error) {
	if mutate == nil {
		return domain.RateCounterState{}, errNilMutator
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return domain.RateCounterState{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	if err := mutate(&next); err != nil {
		return s.state, err
	}
	s.state = next
	return next, nil
}
