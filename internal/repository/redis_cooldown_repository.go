package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const cooldownKeyPrefix = "cooldown"

type redisCooldownRepository struct {
	client *redis.Client
}

// NewRedisCooldownRepository keeps cooldowns in redis with native expiry.
func NewRedisCooldownRepository(client *redis.Client) CooldownRepository {
	return &redisCooldownRepository{client: client}
}

func cooldownKey(userID, cooldownType string) string {
	return fmt.Sprintf("%s:%s:%s", cooldownKeyPrefix, cooldownType, userID)
}

func (r *redisCooldownRepository) Upsert(ctx context.Context, userID, cooldownType string, expiresAt time.Time) error {
	key := cooldownKey(userID, cooldownType)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, expiresAt.UnixMilli(), 0)
		pipe.PExpireAt(ctx, key, expiresAt)
		return nil
	})
	return err
}

func (r *redisCooldownRepository) GetActive(ctx context.Context, userID, cooldownType string, now time.Time) (*domain.Cooldown, error) {
	raw, err := r.client.Get(ctx, cooldownKey(userID, cooldownType)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode cooldown %s: %w", userID, err)
	}
	cooldown := &domain.Cooldown{UserID: userID, Type: cooldownType, ExpiresAt: time.UnixMilli(ms)}
	if !cooldown.ActiveAt(now) {
		return nil, nil
	}
	return cooldown, nil
}

// DeleteExpired is a no-op: redis evicts expired keys itself.
func (r *redisCooldownRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *redisCooldownRepository) Delete(ctx context.Context, userID, cooldownType string) error {
	return r.client.Del(ctx, cooldownKey(userID, cooldownType)).Err()
}
