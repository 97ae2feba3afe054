package main

import (
	"fmt"
	"os"
	"time"

	"exrun/internal/common/cache"
	"exrun/internal/runner/backend"
	"exrun/internal/runner/registry"
	"exrun/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:5000"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 3 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultJobDeadline    = 2 * time.Minute
	defaultPollInterval   = 5 * time.Second
	defaultSimulatedDelay = time.Second

	defaultRateLimitMax    = 100
	defaultRateLimitWindow = time.Minute

	backendModeKubernetes = "kubernetes"
	backendModeSimulated  = "simulated"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// BackendConfig selects and configures the execution backend.
type BackendConfig struct {
	// Mode is "kubernetes" or "simulated".
	Mode           string                   `yaml:"mode"`
	Kubernetes     backend.KubernetesConfig `yaml:"kubernetes"`
	SimulatedDelay time.Duration            `yaml:"simulatedDelay"`
}

// RunConfig holds run orchestration settings.
type RunConfig struct {
	JobDeadline  time.Duration `yaml:"jobDeadline"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// RateLimitConfig holds API rate limit settings. Limiting is disabled when
// no redis addr is configured.
type RateLimitConfig struct {
	Max          int           `yaml:"max"`
	Window       time.Duration `yaml:"window"`
	CacheTimeout time.Duration `yaml:"cacheTimeout"`
}

// AppConfig holds runner-service config.
type AppConfig struct {
	Server    ServerConfig            `yaml:"server"`
	Logger    logger.Config           `yaml:"logger"`
	Backend   BackendConfig           `yaml:"backend"`
	Run       RunConfig               `yaml:"run"`
	Redis     cache.RedisConfig       `yaml:"redis"`
	RateLimit RateLimitConfig         `yaml:"rateLimit"`
	Languages []registry.LanguageSpec `yaml:"languages"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	switch cfg.Backend.Mode {
	case "":
		cfg.Backend.Mode = backendModeSimulated
	case backendModeKubernetes, backendModeSimulated:
	default:
		return nil, fmt.Errorf("unknown backend mode: %s", cfg.Backend.Mode)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		// Runs are synchronous; the write timeout must outlive the job deadline.
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Run.JobDeadline == 0 {
		cfg.Run.JobDeadline = defaultJobDeadline
	}
	if cfg.Run.PollInterval == 0 {
		cfg.Run.PollInterval = defaultPollInterval
	}
	if cfg.Backend.SimulatedDelay == 0 {
		cfg.Backend.SimulatedDelay = defaultSimulatedDelay
	}
	if cfg.RateLimit.Max == 0 {
		cfg.RateLimit.Max = defaultRateLimitMax
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = defaultRateLimitWindow
	}
	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
}
