package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type cooldownRepository struct {
	pool *pgxpool.Pool
}

// NewCooldownRepository instantiates the postgres cooldown repository.
func NewCooldownRepository(pool *pgxpool.Pool) CooldownRepository {
	return &cooldownRepository{pool: pool}
}

func (r *cooldownRepository) Upsert(ctx context.Context, userID, cooldownType string, expiresAt time.Time) error {
	const query = `
        INSERT INTO cooldowns (user_id, type, expires_at) VALUES ($1,$2,$3)
        ON CONFLICT (user_id, type) DO UPDATE SET expires_at = EXCLUDED.expires_at`
	_, err := r.pool.Exec(ctx, query, userID, cooldownType, expiresAt)
	return err
}

func (r *cooldownRepository) GetActive(ctx context.Context, userID, cooldownType string, now time.Time) (*domain.Cooldown, error) {
	const query = `
        SELECT user_id, type, expires_at FROM cooldowns
        WHERE user_id=$1 AND type=$2 AND expires_at > $3`
	var cooldown domain.Cooldown
	err := r.pool.QueryRow(ctx, query, userID, cooldownType, now).Scan(&cooldown.UserID, &cooldown.Type, &cooldown.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cooldown, nil
}

func (r *cooldownRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM cooldowns WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *cooldownRepository) Delete(ctx context.Context, userID, cooldownType string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM cooldowns WHERE user_id=$1 AND type=$2`, userID, cooldownType)
	return err
}
