package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	mysqlcfg "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// OpenGorm opens the sqlite or mysql ticket store selected by cfg.Driver.
func OpenGorm(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLite.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.SQLite.File)
	case config.DriverMySQL:
		dialector = mysql.Open(MySQLDSN(cfg.MySQL))
	default:
		return nil, fmt.Errorf("driver %q is not served by gorm", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == config.DriverSQLite && cfg.SQLite.WALMode {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			logger.Warn("unable to enable sqlite WAL mode", zap.Error(err))
		}
	}

	logger.Info("connected to database", zap.String("driver", cfg.Driver))
	return db, nil
}

// MySQLDSN builds the driver DSN from discrete settings.
func MySQLDSN(cfg config.MySQLConfig) string {
	dsn := mysqlcfg.NewConfig()
	dsn.Net = "tcp"
	dsn.Addr = cfg.Host
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.DBName = cfg.Name
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// CloseGorm releases the underlying connection pool.
func CloseGorm(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
