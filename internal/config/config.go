package config

import (
	"fmt"

	"github.com/bl0ckchained/myelinmap-sub000/pkg/config"
)

type Config struct {
	DB      config.DBConfig      `yaml:"db"`
	MQ      config.MQConfig      `yaml:"mq"`
	Redis   config.RedisConfig   `yaml:"redis"`
	Server  config.ServerConfig  `yaml:"server"`
	OTel    config.OTelConfig    `yaml:"otel"`
	Model   config.ModelConfig   `yaml:"model"`
	Insight config.InsightConfig `yaml:"insight"`
}

// Load reads config/<CONFIG_ENV>.yaml over config/base.yaml, with
// environment variables taking precedence.
func Load() (*Config, error) {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	var cfg Config
	if err := config.Decode(env, configDir, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
