package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"oikos/internal/shared/events"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	KafkaTopic  string

	ResultCacheTTL     time.Duration
	WorkerTickInterval time.Duration
	OutboxBatchSize    int

	EnableLifecycleSweeper bool
	EnableOutboxRelay      bool
}

func Load() (Config, error) {
	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "oikos"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	topic := strings.TrimSpace(os.Getenv("GOVERNANCE_EVENTS_TOPIC"))
	if topic == "" {
		topic = events.TopicGovernanceVoting
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		KafkaTopic:  topic,

		ResultCacheTTL:     envDuration("RESULT_CACHE_TTL", 3*time.Second),
		WorkerTickInterval: envDuration("WORKER_TICK_INTERVAL", 5*time.Second),
		OutboxBatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),

		EnableLifecycleSweeper: envBool("ENABLE_LIFECYCLE_SWEEPER", true),
		EnableOutboxRelay:      envBool("ENABLE_OUTBOX_RELAY", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
