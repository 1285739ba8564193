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

	Registry RegistryConfig
	Session  SessionConfig
	Uploads  UploadsConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
}

// RegistryConfig points the portal at the external registration server.
type RegistryConfig struct {
	BaseURL string
	// Timeout of zero leaves outbound calls unbounded.
	Timeout time.Duration
}

// SessionConfig controls the cookie-addressed form sessions.
type SessionConfig struct {
	CookieName      string
	TTL             time.Duration
	TokenStorageKey string
	SecureCookie    bool
}

// UploadsConfig controls the on-disk spool for document uploads.
type UploadsConfig struct {
	Dir              string
	MaxFileSizeBytes int64
	Retention        time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Registry = RegistryConfig{
		BaseURL: strings.TrimRight(v.GetString("REGISTRY_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("REGISTRY_TIMEOUT"), 0),
	}

	cfg.Session = SessionConfig{
		CookieName:      v.GetString("SESSION_COOKIE"),
		TTL:             parseDuration(v.GetString("SESSION_TTL"), 30*time.Minute),
		TokenStorageKey: v.GetString("TOKEN_STORAGE_KEY"),
		SecureCookie:    v.GetBool("SESSION_SECURE_COOKIE"),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Dir:              v.GetString("UPLOADS_DIR"),
		MaxFileSizeBytes: maxUpload,
		Retention:        parseDuration(v.GetString("UPLOADS_RETENTION"), 24*time.Hour),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
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

	v.SetDefault("REGISTRY_BASE_URL", "http://127.0.0.1:5000")
	v.SetDefault("REGISTRY_TIMEOUT", "")

	v.SetDefault("SESSION_COOKIE", "portal_session")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("TOKEN_STORAGE_KEY", "token")
	v.SetDefault("SESSION_SECURE_COOKIE", false)

	v.SetDefault("UPLOADS_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_RETENTION", "24h")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// viper reports a missing explicit config file as a plain fs error.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
