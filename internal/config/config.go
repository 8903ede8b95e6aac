package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	TransferQueueName  string
	ConfirmedQueueName string

	// TransferOwnCardsOnly restricts transfers to cards of the same owner.
	TransferOwnCardsOnly bool

	WorkerPollInterval    time.Duration
	RequeueInterval       time.Duration
	LeaseTTL              time.Duration
	PendingCancelInterval time.Duration
	NotifyInterval        time.Duration
	PendingBatchSize      int

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		DBConn:   getEnv("DB_CONN", "host=localhost port=5432 user=test password=test dbname=bank sslmode=disable"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "secret"),

		TransferQueueName:  getEnv("TRANSFER_QUEUE", "transfers"),
		ConfirmedQueueName: getEnv("CONFIRMED_TRANSFER_QUEUE", "transfers:confirmed"),

		TransferOwnCardsOnly: getEnvBool("TRANSFER_OWN_CARDS_ONLY", false),

		WorkerPollInterval:    getEnvDuration("WORKER_POLL_INTERVAL", 10*time.Second),
		RequeueInterval:       getEnvDuration("REQUEUE_INTERVAL", 10*time.Second),
		LeaseTTL:              getEnvDuration("LEASE_TTL", 30*time.Second),
		PendingCancelInterval: getEnvDuration("PENDING_CANCEL_INTERVAL", 24*time.Hour),
		NotifyInterval:        getEnvDuration("NOTIFY_INTERVAL", 10*time.Second),
		PendingBatchSize:      getEnvInt("PENDING_BATCH_SIZE", 500),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "noreply@bankrest.local"),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.LeaseTTL <= 0 {
		return nil, fmt.Errorf("LEASE_TTL must be positive")
	}
	if cfg.PendingBatchSize <= 0 {
		return nil, fmt.Errorf("PENDING_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
