package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the bot.
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Bot          BotConfig
	Platform     PlatformConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// DatabaseConfig selects and configures the ticket store.
type DatabaseConfig struct {
	Driver   string
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	MySQL    MySQLConfig
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	File    string
	WALMode bool
}

// MySQLConfig holds MySQL connection values.
type MySQLConfig struct {
	Host     string
	User     string
	Password string
	Name     string
}

// Cooldown backends.
const (
	CooldownBackendDatabase = "database"
	CooldownBackendRedis    = "redis"
)

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	CooldownBackend string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format  string
	Service string
}

// AuthConfig defines authentication parameters for the admin API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	APIKeyHash            string
}

// NotificationConfig configures notification delivery.
type NotificationConfig struct {
	WebhookURL    string
	Webhooks      map[string]string
	Channels      map[string][]string
	Delay         time.Duration
	QueueCapacity int
}

// BotConfig holds ticket behavior settings.
type BotConfig struct {
	CommunityID          string
	StaffRoleIDs         []string
	TicketCooldown       time.Duration
	MaxTicketsPerUser    int
	AutoArchiveMinutes   int
	ThreadNameTemplate   string
	RetentionDays        int
	CleanupInterval      time.Duration
	CloseArchiveDelay    time.Duration
	DailyReportInterval  time.Duration
	CategoriesFile       string
	StaffNotifyTemplate  string
	ThreadReasonTemplate string
}

// PlatformConfig configures the chat platform REST client.
type PlatformConfig struct {
	BaseURL        string
	BotToken       string
	TimeoutSeconds int
	// TicketChannelIDs are the parents whose archived threads are listed
	// next to the active ones.
	TicketChannelIDs []string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	webhooks, err := parseMapping(os.Getenv("NOTIFY_WEBHOOKS"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_WEBHOOKS: %w", err)
	}
	channelMapping, err := parseMapping(os.Getenv("NOTIFY_CHANNELS"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_CHANNELS: %w", err)
	}
	channels := make(map[string][]string, len(channelMapping))
	for eventType, ids := range channelMapping {
		channels[eventType] = splitList(ids, "|")
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-ticket-bot"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
			Postgres: PostgresConfig{
				DSN:            os.Getenv("POSTGRES_DSN"),
				MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
				MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
				RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
				ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
				ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			},
			SQLite: SQLiteConfig{
				File:    getEnv("SQLITE_FILE", "data/tickets.db"),
				WALMode: getEnvAsBool("SQLITE_WAL_MODE", true),
			},
			MySQL: MySQLConfig{
				Host:     getEnv("MYSQL_HOST", "127.0.0.1:3306"),
				User:     getEnv("MYSQL_USER", "root"),
				Password: os.Getenv("MYSQL_PASSWORD"),
				Name:     getEnv("MYSQL_DATABASE", "tickets"),
			},
		},
		Redis: RedisConfig{
			Addr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			CooldownBackend: strings.ToLower(getEnv("COOLDOWN_BACKEND", CooldownBackendDatabase)),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  strings.ToLower(getEnv("LOG_FORMAT", "json")),
			Service: getEnv("APP_NAME", "support-ticket-bot"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			APIKeyHash:            os.Getenv("AUTH_API_KEY_HASH"),
		},
		Notification: NotificationConfig{
			WebhookURL:    getEnv("NOTIFY_WEBHOOK_URL", ""),
			Webhooks:      webhooks,
			Channels:      channels,
			Delay:         getEnvAsDuration("NOTIFY_DELAY", time.Second),
			QueueCapacity: getEnvAsInt("NOTIFY_QUEUE_CAPACITY", 1000),
		},
		Bot: BotConfig{
			CommunityID:          os.Getenv("BOT_COMMUNITY_ID"),
			StaffRoleIDs:         splitList(os.Getenv("BOT_STAFF_ROLES"), ","),
			TicketCooldown:       getEnvAsDuration("TICKET_COOLDOWN", 5*time.Minute),
			MaxTicketsPerUser:    getEnvAsInt("MAX_TICKETS_PER_USER", 3),
			AutoArchiveMinutes:   getEnvAsInt("THREAD_AUTO_ARCHIVE_MINUTES", 60),
			ThreadNameTemplate:   getEnv("THREAD_NAME_TEMPLATE", "{emoji} {category} - {username}"),
			ThreadReasonTemplate: getEnv("THREAD_REASON_TEMPLATE", "Support ticket ({category}) opened by {username}"),
			StaffNotifyTemplate:  getEnv("STAFF_NOTIFY_TEMPLATE", "{roles} a new ticket needs attention"),
			RetentionDays:        getEnvAsInt("TICKET_RETENTION_DAYS", 30),
			CleanupInterval:      getEnvAsDuration("CLEANUP_INTERVAL", 24*time.Hour),
			CloseArchiveDelay:    getEnvAsDuration("CLOSE_ARCHIVE_DELAY", 5*time.Second),
			DailyReportInterval:  getEnvAsDuration("DAILY_REPORT_INTERVAL", 0),
			CategoriesFile:       getEnv("CATEGORIES_FILE", "config/categories.yml"),
		},
		Platform: PlatformConfig{
			BaseURL:          getEnv("PLATFORM_API_URL", "https://discord.com/api/v10"),
			BotToken:         os.Getenv("PLATFORM_BOT_TOKEN"),
			TimeoutSeconds:   getEnvAsInt("PLATFORM_TIMEOUT_SECONDS", 15),
			TicketChannelIDs: splitList(os.Getenv("PLATFORM_TICKET_CHANNELS"), ","),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the bot cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Redis.CooldownBackend {
	case CooldownBackendDatabase, CooldownBackendRedis:
	default:
		return fmt.Errorf("unsupported COOLDOWN_BACKEND %q", c.Redis.CooldownBackend)
	}
	if c.Bot.MaxTicketsPerUser <= 0 {
		return fmt.Errorf("MAX_TICKETS_PER_USER must be positive")
	}
	if c.Bot.TicketCooldown < 0 {
		return fmt.Errorf("TICKET_COOLDOWN must not be negative")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the platform HTTP timeout.
func (p PlatformConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(val, sep string) []string {
	var out []string
	for _, part := range strings.Split(val, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseMapping reads "key=value,key2=value2".
func parseMapping(val string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range splitList(val, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}
