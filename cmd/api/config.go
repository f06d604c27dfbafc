package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wms-platform/pick-issue-service/pkg/kafka"
	"github.com/wms-platform/pick-issue-service/pkg/mongodb"
)

// Storage drivers
const (
	StorageMongoDB = "mongodb"
	StorageSQLite  = "sqlite"
)

// Config holds application configuration
type Config struct {
	ServerAddr    string
	StorageDriver string
	MongoDB       *mongodb.Config
	SQLiteDSN     string
	Kafka         *kafka.Config

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

func loadConfig() *Config {
	return &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8014"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageMongoDB)),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			Database:       getEnv("MONGODB_DATABASE", "pick_issue_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		SQLiteDSN: getEnv("SQLITE_DSN", "file:pick_issues.db?_busy_timeout=5000"),
		Kafka: &kafka.Config{
			Brokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			ClientID:     serviceName,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: -1,
		},
		OutboxPollInterval: getDuration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}
