package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects the backing store. Driver is "sqlite" (default,
// in-memory shared cache, test-grade durability) or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// Load reads the yaml file and overlays environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if drv := os.Getenv("WALLET_DB_DRIVER"); drv != "" {
		cfg.Database.Driver = drv
	}
	if dsn := os.Getenv("WALLET_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" && cfg.Database.Driver == "postgres" {
		cfg.Database.DSN = cfg.Database.DSN + " password=" + pw
	}
	return &cfg, nil
}
