// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Secret  string        `yaml:"secret"` // HS256 key shared with the trust boundary
	Timeout time.Duration `yaml:"timeout"`
}

type ProviderKeys struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
}

type PaymentConfig struct {
	Provider         string        `yaml:"provider"` // flutterwave | paystack
	Flutterwave      ProviderKeys  `yaml:"flutterwave"`
	Paystack         ProviderKeys  `yaml:"paystack"`
	BootstrapTimeout time.Duration `yaml:"bootstrap_timeout"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type PlanConfig struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Amount       int64  `yaml:"amount"`
	Currency     string `yaml:"currency"`
	DurationDays int    `yaml:"duration_days"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Payment  PaymentConfig  `yaml:"payment"`
	Redis    RedisConfig    `yaml:"redis"`    // optional; in-memory outcome store when unset
	Database DatabaseConfig `yaml:"database"` // optional; attempt journal disabled when unset
	Catalog  []PlanConfig   `yaml:"catalog"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "flutterwave"
	}
	if cfg.Payment.BootstrapTimeout <= 0 {
		cfg.Payment.BootstrapTimeout = 10 * time.Second
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("backend.base_url is required")
	}
	if cfg.Backend.Secret == "" {
		return nil, errors.New("backend.secret is required")
	}
	switch cfg.Payment.Provider {
	case "flutterwave", "paystack":
	default:
		return nil, fmt.Errorf("payment.provider must be flutterwave or paystack, got %q", cfg.Payment.Provider)
	}
	if len(cfg.Catalog) == 0 {
		return nil, errors.New("catalog must list at least one plan")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
