package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// DBConfig is the PostgreSQL connection section.
type DBConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME"`
	// SlowQueryThreshold of zero disables slow query logging.
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" env:"DB_SLOW_QUERY_THRESHOLD"`
}

type MQConfig struct {
	URL string `yaml:"url" env:"MQ_URL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"SERVER_PORT"`
	// HealthPort serves health checks and metrics for the worker.
	HealthPort string `yaml:"health_port" env:"HEALTH_PORT"`
}

// OTelConfig controls trace export. An empty endpoint disables the exporter.
type OTelConfig struct {
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool   `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// ModelConfig holds the network hyperparameters and the in-process
// predictor cache size.
type ModelConfig struct {
	LearningRate float64 `yaml:"learning_rate" env:"MODEL_LEARNING_RATE"`
	DropoutRate  float64 `yaml:"dropout_rate" env:"MODEL_DROPOUT_RATE"`
	Epochs       int     `yaml:"epochs" env:"MODEL_EPOCHS"`
	Seed         int64   `yaml:"seed" env:"MODEL_SEED"`
	CacheSize    int     `yaml:"cache_size" env:"MODEL_CACHE_SIZE"`
}

type InsightConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" env:"INSIGHT_CACHE_TTL"`
	RetrainInterval time.Duration `yaml:"retrain_interval" env:"INSIGHT_RETRAIN_INTERVAL"`
	DedupTTL        time.Duration `yaml:"dedup_ttl" env:"INSIGHT_DEDUP_TTL"`
	MaxAttempts     int           `yaml:"max_attempts" env:"INSIGHT_MAX_ATTEMPTS"`
}

// OverrideFromEnv applies environment variables on top of a struct already
// filled from YAML. Fields whose variable is unset keep their value.
func OverrideFromEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("failed to parse env overrides: %w", err)
	}
	return nil
}
