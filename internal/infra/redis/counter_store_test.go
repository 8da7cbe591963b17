package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

func TestCounterStoreLoadEmpty(t *testing.T) {
	t.Parallel()

	store, err := NewCounterStore(newTestRedisClient(t), "")
	if err != nil {
		t.Fatalf("NewCounterStore() error = %v", err)
	}

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.CountToday != 0 || !state.LastSendAt.IsZero() {
		t.Fatalf("Load() = %+v, want zero state", state)
	}
}

func TestCounterStoreCommitAtomicPersists(t *testing.T) {
	t.Parallel()

	store, err := NewCounterStore(newTestRedisClient(t), "test:counters")
	if err != nil {
		t.Fatalf("NewCounterStore() error = %v", err)
	}

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)
	committed, err := store.CommitAtomic(context.Background(), func(state *domain.RateCounterState) error {
		ratelimit.Rollover(state, now, time.UTC)
		ratelimit.Commit(state, now)
		return nil
	})
	if err != nil {
		t.Fatalf("CommitAtomic() error = %v", err)
	}
	if committed.CountToday != 1 {
		t.Fatalf("committed CountToday = %d, want 1", committed.CountToday)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CountToday != 1 || loaded.CountThisHour != 1 {
		t.Fatalf("loaded counters = (%d, %d), want (1, 1)", loaded.CountToday, loaded.CountThisHour)
	}
	if !loaded.LastSendAt.Equal(now) {
		t.Fatalf("LastSendAt = %v, want %v", loaded.LastSendAt, now)
	}
	if !loaded.DayStart.Equal(time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("DayStart = %v, want midnight", loaded.DayStart)
	}
}

func TestCounterStoreCommitAtomicAbortsOnMutatorError(t *testing.T) {
	t.Parallel()

	store, err := NewCounterStore(newTestRedisClient(t), "test:abort")
	if err != nil {
		t.Fatalf("NewCounterStore() error = %v", err)
	}

	_, err = store.CommitAtomic(context.Background(), func(state *domain.RateCounterState) error {
		state.CountToday = 99
		return ratelimit.ErrDailyLimitExceeded
	})
	if !errors.Is(err, ratelimit.ErrDailyLimitExceeded) {
		t.Fatalf("CommitAtomic() error = %v, want ErrDailyLimitExceeded", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CountToday != 0 {
		t.Fatalf("CountToday = %d, want 0 after aborted commit", loaded.CountToday)
	}
}

func TestCounterStoreLimiterConcurrentReserve(t *testing.T) {
	t.Parallel()

	store, err := newCounterStore(newTestRedisClient(t), "test:concurrent", func(ctx context.Context, d time.Duration) error {
		return nil
	})
	if err != nil {
		t.Fatalf("newCounterStore() error = %v", err)
	}

	limiter, err := ratelimit.NewLimiter(store, domain.RateLimitConfig{
		MaxPerHour: 100,
		MaxPerDay:  5,
	}, time.UTC)
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	now := time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limiter.Reserve(context.Background(), now); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 5 {
		t.Fatalf("granted = %d, want 5", granted)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CountToday != 5 {
		t.Fatalf("CountToday = %d, want 5", loaded.CountToday)
	}
}

func TestCounterStoreRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewCounterStore(nil, "key"); err == nil {
		t.Fatal("NewCounterStore(nil) expected error")
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return rdb
}
