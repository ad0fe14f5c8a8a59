// Package config loads and validates the runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"exec-engine-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string        `yaml:"env"`
	Trader      TraderConfig  `yaml:"trader"`
	Account     AccountConfig `yaml:"account"`
	Gateway     GatewayConfig `yaml:"gateway"`
	Clock       string        `yaml:"clock"` // test 或 live
	MetricsAddr string        `yaml:"metricsAddr"`
	Logger      logger.Config `yaml:"logger"`
}

// TraderConfig 交易员标识配置
type TraderConfig struct {
	ID    string `yaml:"id"`
	IDTag string `yaml:"idTag"` // 订单号作用域标签
}

// AccountConfig 账户配置
type AccountConfig struct {
	ID              string `yaml:"id"`
	Brokerage       string `yaml:"brokerage"`
	Currency        string `yaml:"currency"`
	StartingBalance string `yaml:"startingBalance"` // 模拟变体使用
}

// GatewayConfig 执行网关配置
type GatewayConfig struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
	SendDepth int    `yaml:"sendDepth"`
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("EXEC_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("EXEC_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Trader.ID == "" {
		return errors.New("trader.id is required")
	}
	if cfg.Trader.IDTag == "" {
		return errors.New("trader.idTag is required")
	}
	if cfg.Account.ID == "" {
		return errors.New("account.id is required")
	}
	if cfg.Clock != "test" && cfg.Clock != "live" {
		return fmt.Errorf("clock must be test or live, got %q", cfg.Clock)
	}
	if cfg.Clock == "live" && cfg.Gateway.Endpoint == "" {
		return errors.New("gateway.endpoint is required for live clock")
	}
	if cfg.Gateway.SendDepth < 0 {
		return errors.New("gateway.sendDepth must be >= 0")
	}
	if cfg.Logger.Level != "" {
		switch cfg.Logger.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logger.level %q not one of debug/info/warn/error", cfg.Logger.Level)
		}
	}
	return nil
}
