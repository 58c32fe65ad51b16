package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Remote   RemoteConfig
	Redis    RedisConfig
	Sync     SyncConfig
	Schema   SchemaConfig
	CORS     CORSConfig
	Log      LogConfig
}

// DatabaseConfig points at the embedded SQLite file that backs the outbox
// and the local entity cache.
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// RemoteConfig selects and configures the remote document store adapter.
type RemoteConfig struct {
	Driver       string // "memory" or "postgres"
	DSN          string
	Timeout      time.Duration
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SyncConfig tunes the outbox drain worker.
type SyncConfig struct {
	Enabled      bool
	Interval     time.Duration
	Concurrency  int
	MaxRetries   int
	RetentionTTL time.Duration
	QueueWorkers int
	QueueBuffer  int
}

// SchemaConfig governs survey schema caching.
type SchemaConfig struct {
	CacheTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Path:        v.GetString("DB_PATH"),
		BusyTimeout: parseDuration(v.GetString("DB_BUSY_TIMEOUT"), 5*time.Second),
	}

	cfg.Remote = RemoteConfig{
		Driver:       v.GetString("REMOTE_DRIVER"),
		DSN:          v.GetString("REMOTE_DSN"),
		Timeout:      parseDuration(v.GetString("REMOTE_TIMEOUT"), 30*time.Second),
		MaxOpenConns: v.GetInt("REMOTE_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("REMOTE_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Sync = SyncConfig{
		Enabled:      v.GetBool("SYNC_ENABLED"),
		Interval:     parseDuration(v.GetString("SYNC_INTERVAL"), time.Minute),
		Concurrency:  v.GetInt("SYNC_CONCURRENCY"),
		MaxRetries:   v.GetInt("SYNC_MAX_RETRIES"),
		RetentionTTL: parseDuration(v.GetString("SYNC_RETENTION_TTL"), 24*time.Hour),
		QueueWorkers: v.GetInt("SYNC_QUEUE_WORKERS"),
		QueueBuffer:  v.GetInt("SYNC_QUEUE_BUFFER"),
	}

	cfg.Schema = SchemaConfig{
		CacheTTL: parseDuration(v.GetString("SCHEMA_CACHE_TTL"), 10*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_PATH", "./fieldsync.db")
	v.SetDefault("DB_BUSY_TIMEOUT", "5s")

	v.SetDefault("REMOTE_DRIVER", "memory")
	v.SetDefault("REMOTE_DSN", "")
	v.SetDefault("REMOTE_TIMEOUT", "30s")
	v.SetDefault("REMOTE_MAX_OPEN_CONNS", 10)
	v.SetDefault("REMOTE_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_INTERVAL", "1m")
	v.SetDefault("SYNC_CONCURRENCY", 4)
	v.SetDefault("SYNC_MAX_RETRIES", 5)
	v.SetDefault("SYNC_RETENTION_TTL", "24h")
	v.SetDefault("SYNC_QUEUE_WORKERS", 2)
	v.SetDefault("SYNC_QUEUE_BUFFER", 32)

	v.SetDefault("SCHEMA_CACHE_TTL", "10m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
