package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Weights  WeightsConfig  `yaml:"weights"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Cache    CacheConfig    `yaml:"cache"`
	Training TrainingConfig `yaml:"training"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int             `yaml:"port" default:"8600" validate:"min=1,max=65535"`
	MetricsPort int             `yaml:"metrics_port" default:"8601" validate:"min=0,max=65535"`
	AdminToken  string          `yaml:"admin_token"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" default:"true"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"20" validate:"gt=0"`
	Burst             int     `yaml:"burst" default:"40" validate:"min=1"`
}

type WeightsConfig struct {
	Path             string `yaml:"path" default:"weights.json" validate:"required"`
	ReloadIntervalMs int    `yaml:"reload_interval_ms" default:"5000" validate:"min=0"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"min=0"`
	TTLSeconds int    `yaml:"ttl_seconds" default:"300" validate:"min=1"`
}

type TrainingConfig struct {
	RidgeLambda float64 `yaml:"ridge_lambda" default:"0.01" validate:"gte=0"`
	ValSplit    float64 `yaml:"val_split" default:"0.2" validate:"gte=0.05,lte=0.5"`
	Seed        uint64  `yaml:"seed" default:"42"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json text"`
	Output     string `yaml:"output" default:"stdout" validate:"required"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100" validate:"min=1"`
	MaxBackups int    `yaml:"max_backups" default:"5" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"28" validate:"min=0"`
	Compress   bool   `yaml:"compress"`
}

var validate = validator.New()

func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.Weights.ReloadIntervalMs) * time.Millisecond
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Load builds the configuration from struct defaults, the optional YAML file
// at path and PRICEENGINE_* environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setInt("PRICEENGINE_PORT", &cfg.Server.Port)
	setInt("PRICEENGINE_METRICS_PORT", &cfg.Server.MetricsPort)
	setString("PRICEENGINE_ADMIN_TOKEN", &cfg.Server.AdminToken)
	setBool("PRICEENGINE_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)
	setFloat("PRICEENGINE_RATE_LIMIT_RPS", &cfg.Server.RateLimit.RequestsPerSecond)

	setString("PRICEENGINE_WEIGHTS_PATH", &cfg.Weights.Path)
	setInt("PRICEENGINE_WEIGHTS_RELOAD_INTERVAL_MS", &cfg.Weights.ReloadIntervalMs)

	setString("PRICEENGINE_DATABASE_URL", &cfg.Database.URL)
	setString("PRICEENGINE_HERMES_URL", &cfg.Hermes.URL)

	setBool("PRICEENGINE_CACHE_ENABLED", &cfg.Cache.Enabled)
	setString("PRICEENGINE_REDIS_ADDR", &cfg.Cache.Addr)
	setString("PRICEENGINE_REDIS_PASSWORD", &cfg.Cache.Password)

	setFloat("PRICEENGINE_RIDGE_LAMBDA", &cfg.Training.RidgeLambda)
	setFloat("PRICEENGINE_VAL_SPLIT", &cfg.Training.ValSplit)
	if v := os.Getenv("PRICEENGINE_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Training.Seed = n
		}
	}

	setString("PRICEENGINE_LOG_LEVEL", &cfg.Logging.Level)
	setString("PRICEENGINE_LOG_FORMAT", &cfg.Logging.Format)
	setString("PRICEENGINE_LOG_OUTPUT", &cfg.Logging.Output)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
