package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository instantiates the postgres settings repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Set(ctx context.Context, key string, value []byte, at time.Time) error {
	const query = `
        INSERT INTO settings (setting_key, value, updated_at) VALUES ($1,$2::jsonb,$3)
        ON CONFLICT (setting_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, key, string(value), at)
	return err
}

func (r *settingsRepository) Get(ctx context.Context, key string) (*domain.Setting, error) {
	const query = `SELECT setting_key, value::text, updated_at FROM settings WHERE setting_key=$1`
	var (
		setting domain.Setting
		value   string
	)
	err := r.pool.QueryRow(ctx, query, key).Scan(&setting.Key, &value, &setting.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	setting.Value = []byte(value)
	return &setting, nil
}

func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM settings WHERE setting_key=$1`, key)
	return err
}

func (r *settingsRepository) List(ctx context.Context) ([]domain.Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT setting_key, value::text, updated_at FROM settings ORDER BY setting_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Setting{}
	for rows.Next() {
		var (
			setting domain.Setting
			value   string
		)
		if err := rows.Scan(&setting.Key, &value, &setting.UpdatedAt); err != nil {
			return nil, err
		}
		setting.Value = []byte(value)
		result = append(result, setting)
	}
	return result, rows.Err()
}

// NewPostgresStore wires the postgres repositories.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return Store{
		Tickets:   NewTicketRepository(pool),
		Cooldowns: NewCooldownRepository(pool),
		Settings:  NewSettingsRepository(pool),
	}
}
