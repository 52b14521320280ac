package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"8080"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBHost        string `env:"DB_HOST" envDefault:"localhost"`
	DBPort        string `env:"DB_PORT" envDefault:"5432"`
	DBUser        string `env:"DB_USER" envDefault:"postgres"`
	DBPassword    string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName        string `env:"DB_NAME" envDefault:"referraldb"`
	DBSSLMode     string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"db/migrations"`

	KafkaBrokers           string `env:"KAFKA_BROKERS" envDefault:"kafka:9092"`
	KafkaClientID          string `env:"KAFKA_CLIENT_ID" envDefault:"referral-service"`
	KafkaGroupID           string `env:"KAFKA_GROUP_ID" envDefault:"referral-consumers"`
	KafkaRetryGroupID      string `env:"KAFKA_RETRY_GROUP_ID" envDefault:"referral-retry"`
	KafkaInstanceID        string `env:"KAFKA_INSTANCE_ID"`
	KafkaTopicPartitions   string `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	KafkaRetryPartitions   string `env:"KAFKA_RETRY_PARTITIONS" envDefault:"1"`
	KafkaReplicationFactor string `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
	KafkaMaxAttempts       string `env:"KAFKA_MAX_ATTEMPTS" envDefault:"3"`
	EventDrivenEnabled     bool   `env:"EVENT_DRIVEN_ENABLED" envDefault:"false"`

	RateLimitBackend  string        `env:"RATE_LIMIT_BACKEND" envDefault:"postgres"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitFailOpen bool          `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`
	RedisAddr         string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`

	RelayerPrivateKey    string  `env:"RELAYER_PRIVATE_KEY"`
	ClaimContractAddress string  `env:"CLAIM_CONTRACT_ADDRESS"`
	ChainID              int64   `env:"CHAIN_ID" envDefault:"8453"`
	RelayerSignsPerSec   float64 `env:"RELAYER_SIGNS_PER_SECOND" envDefault:"20"`
	RelayerBurst         int     `env:"RELAYER_BURST" envDefault:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.KafkaInstanceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			cfg.KafkaInstanceID = "unknown"
		} else {
			cfg.KafkaInstanceID = hostname
		}
	}

	return &cfg, nil
}

// Validate checks the settings the claim path cannot run without.
func (c *Config) Validate() error {
	if c.RelayerPrivateKey == "" {
		return fmt.Errorf("RELAYER_PRIVATE_KEY is required")
	}
	if c.ClaimContractAddress == "" {
		return fmt.Errorf("CLAIM_CONTRACT_ADDRESS is required")
	}
	switch c.RateLimitBackend {
	case "postgres", "redis", "none":
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be postgres, redis or none (got %q)", c.RateLimitBackend)
	}
	return nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func (c *Config) TopicPartitions() int {
	return parseInt(c.KafkaTopicPartitions, 3)
}

func (c *Config) RetryPartitions() int {
	return parseInt(c.KafkaRetryPartitions, 1)
}

func (c *Config) ReplicationFactor() int16 {
	value := parseInt(c.KafkaReplicationFactor, 1)
	return int16(value)
}

func (c *Config) MaxAttempts() int {
	return parseInt(c.KafkaMaxAttempts, 3)
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
