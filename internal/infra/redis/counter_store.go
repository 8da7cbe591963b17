package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
	"github.com/kursadbilgin/alert-dispatch/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultCounterKey = "alert-dispatch:rate-counters"
	counterTTL        = 48 * time.Hour
	maxTxRetries      = 20
	backoffStep       = 10 * time.Millisecond
	backoffMax        = 50 * time.Millisecond
)

var _ ratelimit.CounterStore = (*CounterStore)(nil)

// CounterStore keeps RateCounterState as a JSON document in a single Redis key
// and mutates it with optimistic WATCH/MULTI transactions.
type CounterStore struct {
	client *goredis.Client
	key    string
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewCounterStore(client *goredis.Client, key string) (*CounterStore, error) {
	return newCounterStore(client, key, sleepWithContext)
}

func newCounterStore(
	client *goredis.Client,
	key string,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*CounterStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = defaultCounterKey
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &CounterStore{
		client: client,
		key:    key,
		sleep:  sleepFn,
	}, nil
}

func (s *CounterStore) Load(ctx context.Context) (domain.RateCounterState, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := s.client.Get(ctx, s.key).Bytes()
	return decodeState(raw, err)
}

func (s *CounterStore) CommitAtomic(ctx context.Context, mutate ratelimit.Mutator) (domain.RateCounterState, error) {
	if mutate == nil {
		return domain.RateCounterState{}, fmt.Errorf("counter mutator is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var committed domain.RateCounterState
	txf := func(tx *goredis.Tx) error {
		state, err := decodeState(tx.Get(ctx, s.key).Bytes())
		if err != nil {
			return err
		}

		if err := mutate(&state); err != nil {
			committed = state
			return err
		}

		payload, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode rate counters: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, s.key, payload, counterTTL)
			return nil
		})
		if err != nil {
			return err
		}

		committed = state
		return nil
	}

	backoff := backoffStep
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return committed, nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return committed, err
		}

		if err := s.sleep(ctx, backoff); err != nil {
			return domain.RateCounterState{}, err
		}
		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}

	return domain.RateCounterState{}, fmt.Errorf("rate counter transaction contended after %d attempts", maxTxRetries)
}

func decodeState(raw []byte, err error) (domain.RateCounterState, error) {
	var state domain.RateCounterState
	if errors.Is(err, goredis.Nil) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("failed to read rate counters: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("failed to decode rate counters: %w", err)
	}
	return state, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
