package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const maxUpdateAttempts = 5

func NewRedisCartStore(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCartStore {
	return &RedisCartStore{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

type RedisCartStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func (r *RedisCartStore) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewCart(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return r.restore(sessionID, data), nil
}

func (r *RedisCartStore) Update(ctx context.Context, sessionID string, mutate func(*domain.Cart)) (*domain.Cart, error) {
	key := cartKey(sessionID)
	var updated *domain.Cart

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get failed: %w", err)
		}

		cart := r.restore(sessionID, data)
		mutate(cart)

		snapshot, err := cart.Snapshot()
		if err != nil {
			return fmt.Errorf("marshal cart failed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, snapshot, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = cart
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("redis update failed: %w", err)
	}
	return nil, ErrUpdateConflict
}

func (r *RedisCartStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// restore never fails; an unreadable snapshot is logged and treated as empty.
func (r *RedisCartStore) restore(sessionID string, data []byte) *domain.Cart {
	cart := domain.NewCart()
	cart.RestoreFromJSON(data)

	trimmed := bytes.TrimSpace(data)
	if cart.IsEmpty() && len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("[]")) {
		r.log.Warn("discarding malformed cart snapshot",
			zap.String("session_id", sessionID),
			zap.Int("bytes", len(data)),
		)
	}
	return cart
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
