package persistence

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/migrations"
)

// Backend holds the open connections behind a repository.Store.
type Backend struct {
	Store    repository.Store
	Postgres *Postgres
	Gorm     *gorm.DB
	Redis    *Redis

	driver string
	logger *zap.Logger
}

// Open connects the configured database driver and returns the
// repositories on top of it. Gorm schemas are always migrated; postgres
// migrations run when POSTGRES_RUN_MIGRATIONS is set. Cooldowns move to
// redis when COOLDOWN_BACKEND=redis.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	backend := &Backend{driver: cfg.Database.Driver, logger: logger}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Database.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		backend.Postgres = pg
		backend.Store = repository.NewPostgresStore(pg.PoolHandle())
		if cfg.Database.Postgres.RunMigrations {
			if err := backend.Migrate(ctx); err != nil {
				backend.Close()
				return nil, err
			}
		}
	default:
		db, err := OpenGorm(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Database.Driver, err)
		}
		backend.Gorm = db
		backend.Store = repository.NewGormStore(db)
		if err := backend.Migrate(ctx); err != nil {
			backend.Close()
			return nil, err
		}
	}

	if cfg.Redis.CooldownBackend == config.CooldownBackendRedis {
		rdb, err := NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			backend.Close()
			return nil, err
		}
		backend.Redis = rdb
		backend.Store.Cooldowns = repository.NewRedisCooldownRepository(rdb.Client)
	}
	return backend, nil
}

// Migrate brings the schema of the database driver up to date.
func (b *Backend) Migrate(ctx context.Context) error {
	switch {
	case b.Postgres != nil:
		return RunMigrations(ctx, b.Postgres.PoolHandle(), migrations.Files, b.logger)
	case b.Gorm != nil:
		if err := repository.AutoMigrate(b.Gorm.WithContext(ctx)); err != nil {
			return fmt.Errorf("migrate %s: %w", b.driver, err)
		}
		b.logger.Info("schema migrated", zap.String("driver", b.driver))
		return nil
	default:
		return errors.New("no database connection")
	}
}

// Ping checks every open connection.
func (b *Backend) Ping(ctx context.Context) error {
	if b.Postgres != nil && b.Postgres.Pool != nil {
		if err := b.Postgres.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.Gorm != nil {
		sqlDB, err := b.Gorm.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("%s: %w", b.driver, err)
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases every open connection.
func (b *Backend) Close() {
	b.Postgres.Close()
	CloseGorm(b.Gorm)
	b.Redis.Close()
}
