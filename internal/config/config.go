package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	LogLevel  string
	LogFormat string

	MongoURI            string
	MongoDatabase       string
	MongoMaxPoolSize    uint64
	MongoMinPoolSize    uint64
	MongoConnectTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	PostgresHost       string
	PostgresPort       string
	PostgresUser       string
	PostgresPassword   string
	PostgresDB         string
	PostgresSSLMode    string
	OrderMigrationsDir string

	CatalogPath          string
	CatalogMigrationsDir string

	KafkaBrokers     []string
	OrderEventsTopic string
	PaymentsTopic    string
	PaymentsGroupID  string
	KafkaEnabled     bool

	JWTSecret     string
	PaymentSecret string

	MergePolicy string
	TaxPercent  string
	DeliveryFee string
}

// Load reads a .env file when present and then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MongoURI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:       getEnv("MONGO_DB_NAME", "shop"),
		MongoMaxPoolSize:    uint64(max(getEnvInt("MONGO_MAX_POOL_SIZE", 100), 1)),
		MongoMinPoolSize:    uint64(max(getEnvInt("MONGO_MIN_POOL_SIZE", 10), 0)),
		MongoConnectTimeout: getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 7*24*time.Hour),

		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:       getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:         getEnv("POSTGRES_DB", "orders"),
		PostgresSSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
		OrderMigrationsDir: getEnv("ORDER_MIGRATIONS_DIR", "internal/orderstore/migrations"),

		CatalogPath:          getEnv("CATALOG_DB_PATH", "catalog.db"),
		CatalogMigrationsDir: getEnv("CATALOG_MIGRATIONS_DIR", "internal/catalog/migrations"),

		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		OrderEventsTopic: getEnv("KAFKA_ORDER_EVENTS_TOPIC", "order-events"),
		PaymentsTopic:    getEnv("KAFKA_PAYMENTS_TOPIC", "payment-confirmations"),
		PaymentsGroupID:  getEnv("KAFKA_PAYMENTS_GROUP", "shop-payments"),
		KafkaEnabled:     getEnvBool("KAFKA_ENABLED", true),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		PaymentSecret: getEnv("PAYMENT_SECRET", ""),

		MergePolicy: getEnv("CART_MERGE_POLICY", "server-wins"),
		TaxPercent:  getEnv("TAX_PERCENT", ""),
		DeliveryFee: getEnv("DELIVERY_FEE", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.PaymentSecret == "" {
		return errors.New("PAYMENT_SECRET is required")
	}
	switch c.MergePolicy {
	case "server-wins", "union":
	default:
		return fmt.Errorf("CART_MERGE_POLICY must be server-wins or union, got %q", c.MergePolicy)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
