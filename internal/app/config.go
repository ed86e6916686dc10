package app

import (
	"os"
	"strconv"
	"time"
)

// StorageDriver выбирает реализацию хранилища служебных таблиц.
type StorageDriver string

const (
	// StorageDriverMemory — всё в памяти; черновики в памяти всегда.
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverPostgres — справочники, outbox, timeline и
	// idempotency-ключи в PostgreSQL.
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	APIAddr     string
	MetricsAddr string

	// GatewayBaseURL — адрес внешнего сервиса персистентности,
	// принимающего готовые транзакции.
	GatewayBaseURL string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список брокеров через запятую; пустое значение
	// отключает публикацию событий.
	KafkaBrokers string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает базовые настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		APIAddr:                     ":8080",
		MetricsAddr:                 ":9090",
		GatewayBaseURL:              "http://localhost:8081",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            500 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает конфигурацию из окружения поверх значений по умолчанию.
// Все переменные имеют префикс CHECKOUT_.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("CHECKOUT_API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("CHECKOUT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("CHECKOUT_PERSISTENCE_URL"); v != "" {
		cfg.GatewayBaseURL = v
	}
	if v := os.Getenv("CHECKOUT_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
		cfg.StorageDriver = StorageDriverPostgres
	}
	if v := os.Getenv("CHECKOUT_POSTGRES_AUTO_MIGRATE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if v := os.Getenv("CHECKOUT_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}

	cfg.OutboxPollInterval = envDuration("CHECKOUT_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("CHECKOUT_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("CHECKOUT_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("CHECKOUT_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.OutboxMaxPending = envInt("CHECKOUT_OUTBOX_MAX_PENDING", cfg.OutboxMaxPending)
	cfg.IdempotencyCleanupInterval = envDuration("CHECKOUT_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("CHECKOUT_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
