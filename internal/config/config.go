package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port                string
	AuthToken           string
	JWTSecret           string
	DBURL               string
	LogLevel            string
	CORSAllowedOrigins  string
	ReadTimeoutSecs     int
	WriteTimeoutSecs    int
	IdleTimeoutSecs     int
	DBMaxConns          int
	DBMinConns          int
	DBMaxIdleSecs       int
	DBMaxLifeSecs       int
	DBConnTimeoutSecs   int
	DBStatementCache    int
	NATSURL             string
	ScoreMaxAttempts    int
	ScoreRetryBackoff   time.Duration
	MetadataURL         string
	MetadataAPIKey      string
	MetadataTimeoutSecs int
}

const minJWTSecretLen = 16

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 60)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_MAX_CONN_IDLE_SECS", 300)
	v.SetDefault("DB_MAX_CONN_LIFETIME_SECS", 3600)
	v.SetDefault("DB_CONN_TIMEOUT_SECS", 10)
	v.SetDefault("DB_STATEMENT_CACHE_CAPACITY", 256)
	v.SetDefault("SCORE_MAX_ATTEMPTS", 3)
	v.SetDefault("SCORE_RETRY_BACKOFF", "25ms")
	v.SetDefault("METADATA_TIMEOUT_SECS", 5)
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Port:                v.GetString("PORT"),
		AuthToken:           v.GetString("AUTH_TOKEN"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		DBURL:               v.GetString("DB_URL"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		CORSAllowedOrigins:  v.GetString("CORS_ALLOWED_ORIGINS"),
		ReadTimeoutSecs:     v.GetInt("SERVER_READ_TIMEOUT"),
		WriteTimeoutSecs:    v.GetInt("SERVER_WRITE_TIMEOUT"),
		IdleTimeoutSecs:     v.GetInt("SERVER_IDLE_TIMEOUT"),
		DBMaxConns:          v.GetInt("DB_MAX_CONNS"),
		DBMinConns:          v.GetInt("DB_MIN_CONNS"),
		DBMaxIdleSecs:       v.GetInt("DB_MAX_CONN_IDLE_SECS"),
		DBMaxLifeSecs:       v.GetInt("DB_MAX_CONN_LIFETIME_SECS"),
		DBConnTimeoutSecs:   v.GetInt("DB_CONN_TIMEOUT_SECS"),
		DBStatementCache:    v.GetInt("DB_STATEMENT_CACHE_CAPACITY"),
		NATSURL:             strings.TrimSpace(v.GetString("NATS_URL")),
		ScoreMaxAttempts:    v.GetInt("SCORE_MAX_ATTEMPTS"),
		ScoreRetryBackoff:   v.GetDuration("SCORE_RETRY_BACKOFF"),
		MetadataURL:         strings.TrimSpace(v.GetString("METADATA_URL")),
		MetadataAPIKey:      v.GetString("METADATA_API_KEY"),
		MetadataTimeoutSecs: v.GetInt("METADATA_TIMEOUT_SECS"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabase reads only what the migrate command needs.
func LoadDatabase() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		DBURL:             v.GetString("DB_URL"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		DBConnTimeoutSecs: v.GetInt("DB_CONN_TIMEOUT_SECS"),
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is required")
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}
	if cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.ScoreMaxAttempts <= 0 {
		return fmt.Errorf("SCORE_MAX_ATTEMPTS must be positive")
	}
	if cfg.ScoreRetryBackoff < 0 {
		return fmt.Errorf("SCORE_RETRY_BACKOFF must be non-negative")
	}
	if cfg.MetadataURL != "" && cfg.MetadataTimeoutSecs <= 0 {
		return fmt.Errorf("METADATA_TIMEOUT_SECS must be positive")
	}
	return nil
}
