package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings of the chat server.
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	RedisURL    string
	JWT         JWTConfig
	Hub         HubConfig
	NodeID      int64
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// HubConfig tunes the per-connection behaviour of the real-time core.
type HubConfig struct {
	// AuthTimeout bounds credential resolution before the upgrade is refused.
	AuthTimeout time.Duration
	// SendBuffer is the capacity of each connection's outbound queue.
	SendBuffer int
	// MaxMessageBytes is the read limit applied to every inbound frame.
	MaxMessageBytes int64
	// FrameRate and FrameBurst configure the inbound frame limiter.
	FrameRate  float64
	FrameBurst int
}

// DefaultHubConfig returns the tunables used when no environment is set.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		AuthTimeout:     5 * time.Second,
		SendBuffer:      256,
		MaxMessageBytes: 64 << 10,
		FrameRate:       20,
		FrameBurst:      40,
	}
}

// Load reads configuration from the environment. In development a local .env
// file is loaded first when present.
func Load() (Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		_ = godotenv.Load()
	}

	def := DefaultHubConfig()
	cfg := Config{
		Env:         getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "3000"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=user password=password dbname=astrona port=5432 sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),
			Issuer: getEnv("JWT_ISSUER", "astrona"),
		},
		Hub: HubConfig{
			AuthTimeout:     getEnvDuration("WS_AUTH_TIMEOUT", def.AuthTimeout),
			SendBuffer:      getEnvInt("WS_SEND_BUFFER", def.SendBuffer),
			MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", int(def.MaxMessageBytes))),
			FrameRate:       getEnvFloat("WS_FRAME_RATE", def.FrameRate),
			FrameBurst:      getEnvInt("WS_FRAME_BURST", def.FrameBurst),
		},
		NodeID: int64(getEnvInt("SNOWFLAKE_NODE", 1)),
	}

	if cfg.JWT.Secret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Hub.SendBuffer <= 0 {
		return Config{}, fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", cfg.Hub.SendBuffer)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
