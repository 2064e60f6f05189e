package config

import (
	"errors"
	"io/fs"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Media     MediaConfig
	Sync      SyncConfig
	Cleanup   CleanupConfig
	Webhook   WebhookConfig
	Broadcast BroadcastConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
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

// AuthConfig holds the verification settings for tokens minted by the hosted auth provider.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MediaConfig configures the remote media provider client.
type MediaConfig struct {
	CloudName      string
	APIKey         string
	APISecret      string
	BaseURL        string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// SyncConfig tunes the bidirectional sync engine.
type SyncConfig struct {
	BatchSize       int
	OrphanBatchSize int
	MaxRetries      int
	StatsCacheTTL   time.Duration
	Workers         int
}

// CleanupConfig controls the background cleanup scheduler.
type CleanupConfig struct {
	Enabled      bool
	Interval     time.Duration
	BatchSize    int
	MaxAttempts  int
	RestartDelay time.Duration
}

// WebhookConfig governs push notification verification.
type WebhookConfig struct {
	Secret string
	MaxAge time.Duration
}

// BroadcastConfig names the pub/sub channel used to relay sync events between instances.
type BroadcastConfig struct {
	Channel string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret: v.GetString("AUTH_JWT_SECRET"),
		Issuer:    v.GetString("AUTH_JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Media = MediaConfig{
		CloudName:      v.GetString("MEDIA_CLOUD_NAME"),
		APIKey:         v.GetString("MEDIA_API_KEY"),
		APISecret:      v.GetString("MEDIA_API_SECRET"),
		BaseURL:        v.GetString("MEDIA_API_BASE_URL"),
		RequestTimeout: parseDuration(v.GetString("MEDIA_REQUEST_TIMEOUT"), 30*time.Second),
		RateLimitRPS:   v.GetFloat64("MEDIA_RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("MEDIA_RATE_LIMIT_BURST"),
	}

	cfg.Sync = SyncConfig{
		BatchSize:       positiveOr(v.GetInt("SYNC_BATCH_SIZE"), 100),
		OrphanBatchSize: positiveOr(v.GetInt("SYNC_ORPHAN_BATCH_SIZE"), 1000),
		MaxRetries:      positiveOr(v.GetInt("SYNC_MAX_RETRIES"), 3),
		StatsCacheTTL:   parseDuration(v.GetString("SYNC_STATS_CACHE_TTL"), time.Minute),
		Workers:         positiveOr(v.GetInt("SYNC_WORKERS"), 1),
	}

	cfg.Cleanup = CleanupConfig{
		Enabled:      v.GetBool("ENABLE_CLEANUP_SCHEDULER"),
		Interval:     parseDuration(v.GetString("CLEANUP_INTERVAL"), 5*time.Minute),
		BatchSize:    positiveOr(v.GetInt("CLEANUP_BATCH_SIZE"), 10),
		MaxAttempts:  positiveOr(v.GetInt("CLEANUP_MAX_ATTEMPTS"), 3),
		RestartDelay: parseDuration(v.GetString("CLEANUP_RESTART_DELAY"), time.Second),
	}

	secret := v.GetString("WEBHOOK_SECRET")
	if secret == "" {
		secret = cfg.Media.APISecret
	}
	cfg.Webhook = WebhookConfig{
		Secret: secret,
		MaxAge: parseDuration(v.GetString("WEBHOOK_MAX_AGE"), 2*time.Hour),
	}

	cfg.Broadcast = BroadcastConfig{Channel: v.GetString("SYNC_EVENTS_CHANNEL")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lgu_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_JWT_SECRET", "dev_secret")
	v.SetDefault("AUTH_JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MEDIA_CLOUD_NAME", "")
	v.SetDefault("MEDIA_API_KEY", "")
	v.SetDefault("MEDIA_API_SECRET", "")
	v.SetDefault("MEDIA_API_BASE_URL", "https://api.cloudinary.com")
	v.SetDefault("MEDIA_REQUEST_TIMEOUT", "30s")
	v.SetDefault("MEDIA_RATE_LIMIT_RPS", 5)
	v.SetDefault("MEDIA_RATE_LIMIT_BURST", 10)

	v.SetDefault("SYNC_BATCH_SIZE", 100)
	v.SetDefault("SYNC_ORPHAN_BATCH_SIZE", 1000)
	v.SetDefault("SYNC_MAX_RETRIES", 3)
	v.SetDefault("SYNC_STATS_CACHE_TTL", "1m")
	v.SetDefault("SYNC_WORKERS", 1)

	v.SetDefault("ENABLE_CLEANUP_SCHEDULER", false)
	v.SetDefault("CLEANUP_INTERVAL", "5m")
	v.SetDefault("CLEANUP_BATCH_SIZE", 10)
	v.SetDefault("CLEANUP_MAX_ATTEMPTS", 3)
	v.SetDefault("CLEANUP_RESTART_DELAY", "1s")

	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("WEBHOOK_MAX_AGE", "2h")

	v.SetDefault("SYNC_EVENTS_CHANNEL", "media_sync_events")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
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
