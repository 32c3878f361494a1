// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends accepted in LEDGER_BACKEND.
const (
	LedgerBackendMySQL      = "mysql"
	LedgerBackendClickHouse = "clickhouse"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// DBDSN is the MySQL connection string for the catalog (products, retailers)
	// and, unless LedgerBackend says otherwise, the price ledger.
	DBDSN string

	// ClickHouseDSN is the ClickHouse connection string for the time-series ledger.
	ClickHouseDSN string

	// LedgerBackend selects where price observations are appended: "mysql" or "clickhouse".
	LedgerBackend string

	// Ingester contains settings for the Kafka-to-pipeline ingester.
	Ingester IngesterConfig

	// KafkaListings contains Kafka settings for scraped listings.
	KafkaListings KafkaConfig

	// KafkaDrops contains Kafka settings for published price-drop events.
	KafkaDrops KafkaConfig

	// Resolver contains identity resolution settings.
	Resolver ResolverConfig

	// Ledger contains price-drop detection settings.
	Ledger LedgerConfig

	// Pipeline contains batch processing settings.
	Pipeline PipelineConfig

	// Alerts contains outbound price-drop notification settings.
	Alerts AlertConfig

	// ServerPort is the HTTP API listen port.
	ServerPort string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// KafkaConfig holds Kafka connection settings for one topic.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092").
	Broker string

	// Topic is the Kafka topic name.
	Topic string

	// GroupID is the consumer group ID. Unused for producer topics.
	GroupID string
}

// IngesterConfig holds settings for batch processing of Kafka messages.
type IngesterConfig struct {
	// BatchSize is the maximum number of listings to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

// ResolverConfig holds identity resolution settings.
type ResolverConfig struct {
	// SimilarityThreshold is the score a same-brand candidate must exceed
	// to be treated as the same product. Default 0.85.
	SimilarityThreshold float64

	// DefaultCategory is assigned to newly created products.
	DefaultCategory string
}

// LedgerConfig holds price-drop detection settings.
type LedgerConfig struct {
	// DropThreshold is the fractional decrease that counts as a drop (0.10 = 10%).
	DropThreshold float64

	// LookbackDays is how far back the previous observation may lie.
	LookbackDays int
}

// PipelineConfig holds batch processing settings.
type PipelineConfig struct {
	// Parallelism bounds how many listings of one batch are processed at once.
	Parallelism int

	// RateLimit caps listings processed per second. Zero disables the limiter.
	RateLimit float64
}

// AlertConfig holds outbound notification settings.
type AlertConfig struct {
	// WebhookURL receives price-drop events as JSON. Empty disables the webhook.
	WebhookURL string

	// WebhookTimeoutSeconds is the HTTP client timeout for webhook delivery.
	WebhookTimeoutSeconds int
}

// Lookback returns the ledger lookback window as a duration.
func (c LedgerConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// BatchTimeout returns the ingester flush interval as a duration.
func (c IngesterConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSeconds) * time.Second
}

// getDatabaseDSN constructs the MySQL DSN from environment variables.
func getDatabaseDSN() string {
	dbUser := getEnv("MYSQL_USER", "pellets")
	dbPassword := getEnv("MYSQL_PASSWORD", "password")
	dbHost := getEnv("MYSQL_HOST", "localhost")
	dbPort := getEnv("MYSQL_PORT", "3306")
	dbName := getEnv("MYSQL_DB", "pellets")

	return fmt.Sprintf(
		"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&timeout=10s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

// getClickHouseDSN constructs the ClickHouse DSN from environment variables.
func getClickHouseDSN() string {
	dbUser := getEnv("CLICKHOUSE_USER", "default")
	dbPassword := getEnv("CLICKHOUSE_PASSWORD", "")
	dbHost := getEnv("CLICKHOUSE_HOST", "localhost")
	dbPort := getEnv("CLICKHOUSE_TCP_PORT", "9000")
	dbName := getEnv("CLICKHOUSE_DB", "pellets")

	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		dbUser, dbPassword, dbHost, dbPort, dbName,
	)
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	broker := getEnv("KAFKA_BROKER", "localhost:9092")

	threshold := getEnvFloat("SIMILARITY_THRESHOLD", 0.85)
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}

	dropThreshold := getEnvFloat("PRICE_DROP_THRESHOLD", 0.10)
	if dropThreshold <= 0 || dropThreshold >= 1 {
		dropThreshold = 0.10
	}

	backend := strings.ToLower(getEnv("LEDGER_BACKEND", LedgerBackendMySQL))
	if backend != LedgerBackendClickHouse {
		backend = LedgerBackendMySQL
	}

	return &AppConfig{
		DBDSN:         getDatabaseDSN(),
		ClickHouseDSN: getClickHouseDSN(),
		LedgerBackend: backend,
		KafkaListings: KafkaConfig{
			Broker:  broker,
			Topic:   getEnv("KAFKA_LISTINGS_TOPIC", "pellet_listings"),
			GroupID: getEnv("KAFKA_LISTINGS_GROUP_ID", "pellet-listing-ingester"),
		},
		KafkaDrops: KafkaConfig{
			Broker: broker,
			Topic:  getEnv("KAFKA_DROPS_TOPIC", "pellet_price_drops"),
		},
		Ingester: IngesterConfig{
			BatchSize:           max(getEnvInt("BATCH_SIZE", 100), 1),
			BatchTimeoutSeconds: max(getEnvInt("BATCH_TIMEOUT_SECONDS", 5), 1),
		},
		Resolver: ResolverConfig{
			SimilarityThreshold: threshold,
			DefaultCategory:     getEnv("DEFAULT_CATEGORY", "wood_pellets"),
		},
		Ledger: LedgerConfig{
			DropThreshold: dropThreshold,
			LookbackDays:  max(getEnvInt("PRICE_DROP_LOOKBACK_DAYS", 7), 1),
		},
		Pipeline: PipelineConfig{
			Parallelism: max(getEnvInt("PIPELINE_PARALLELISM", 4), 1),
			RateLimit:   max(getEnvFloat("PIPELINE_RATE_LIMIT", 0), 0),
		},
		Alerts: AlertConfig{
			WebhookURL:            getEnv("ALERT_WEBHOOK_URL", ""),
			WebhookTimeoutSeconds: max(getEnvInt("ALERT_WEBHOOK_TIMEOUT_SECONDS", 10), 1),
		},
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}
}

// NewLogger builds the text slog logger used by every binary.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
