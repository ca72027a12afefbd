// Package config loads runtime settings from the environment. A .env file in the
// working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Telegram TelegramConfig
	Log      LogConfig
}

type AppConfig struct {
	Port        int
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the key/value connection string understood by the postgres driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// RealtimeConfig holds the websocket pump settings.
type RealtimeConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// AuthTimeout closes connections that never bind an identity.
	AuthTimeout time.Duration
}

// PingPeriod must stay below PongWait.
func (r RealtimeConfig) PingPeriod() time.Duration {
	return (r.PongWait * 9) / 10
}

type TelegramConfig struct {
	Enabled    bool
	BotToken   string
	// LocalesDir overrides the compiled-in locale files when set.
	LocalesDir string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Port:        getEnvAsInt("APP_PORT", 8080),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "pratojusto"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", "pratojusto"),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 72*time.Hour),
		},
		Realtime: RealtimeConfig{
			WriteWait:      getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second),
			PongWait:       getEnvAsDuration("WS_PONG_WAIT", 60*time.Second),
			MaxMessageSize: int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 4096)),
			SendBuffer:     getEnvAsInt("WS_SEND_BUFFER", 256),
			AuthTimeout:    getEnvAsDuration("WS_AUTH_TIMEOUT", 30*time.Second),
		},
		Telegram: TelegramConfig{
			Enabled:    getEnvAsBool("TELEGRAM_ENABLED", false),
			BotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
			LocalesDir: getEnv("LOCALES_DIR", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required when TELEGRAM_ENABLED is set")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
