// Package config centralises runtime configuration for blockpool tools.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/blockpool/errs"
)

// Environment identifies the runtime environment where blockpool operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// StoreSettings controls a single bounded store.
type StoreSettings struct {
	Capacity int `yaml:"capacity"`
}

// BenchConfig tunes the poolbench load driver.
type BenchConfig struct {
	Workers       int `yaml:"workers"`
	Cycles        int `yaml:"cycles"`
	QueueDepth    int `yaml:"queueDepth"`
	RatePerSecond int `yaml:"ratePerSecond"` // 0 disables pacing
}

// TelemetryConfig configures OTLP exporters (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// AppConfig is the unified blockpool configuration combining all concerns.
type AppConfig struct {
	Environment Environment
	Stores      map[string]StoreSettings
	Bench       BenchConfig
	Telemetry   TelemetryConfig
}

type appConfigYAML struct {
	Environment string                   `yaml:"environment"`
	Stores      map[string]StoreSettings `yaml:"stores"`
	Bench       BenchConfig              `yaml:"bench"`
	Telemetry   telemetryYAML            `yaml:"telemetry"`
}

type telemetryYAML struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	EnableMetrics *bool  `yaml:"enableMetrics"`
}

// Load loads the unified configuration with precedence: defaults → YAML → env vars.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	cfg := defaultAppConfig()

	yamlErr := cfg.loadYAML(configPath)
	if yamlErr != nil && !os.IsNotExist(yamlErr) {
		return AppConfig{}, fmt.Errorf("load yaml config: %w", yamlErr)
	}

	cfg.loadEnv()

	if err := cfg.Validate(ctx); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Environment: EnvProd,
		Stores: map[string]StoreSettings{
			"frame": {Capacity: 1024},
		},
		Bench: BenchConfig{
			Workers:       8,
			Cycles:        10000,
			QueueDepth:    64,
			RatePerSecond: 0,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint:  "",
			ServiceName:   "blockpool",
			EnableMetrics: true,
		},
	}
}

func (c *AppConfig) loadYAML(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = os.Getenv("BLOCKPOOL_CONFIG")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var yamlCfg appConfigYAML
	if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if yamlCfg.Environment != "" {
		c.Environment = Environment(strings.ToLower(strings.TrimSpace(yamlCfg.Environment)))
	}
	for name, settings := range yamlCfg.Stores {
		c.Stores[strings.TrimSpace(name)] = settings
	}
	if yamlCfg.Bench.Workers != 0 {
		c.Bench.Workers = yamlCfg.Bench.Workers
	}
	if yamlCfg.Bench.Cycles != 0 {
		c.Bench.Cycles = yamlCfg.Bench.Cycles
	}
	if yamlCfg.Bench.QueueDepth != 0 {
		c.Bench.QueueDepth = yamlCfg.Bench.QueueDepth
	}
	if yamlCfg.Bench.RatePerSecond != 0 {
		c.Bench.RatePerSecond = yamlCfg.Bench.RatePerSecond
	}
	if yamlCfg.Telemetry.OTLPEndpoint != "" {
		c.Telemetry.OTLPEndpoint = strings.TrimSpace(yamlCfg.Telemetry.OTLPEndpoint)
	}
	if yamlCfg.Telemetry.ServiceName != "" {
		c.Telemetry.ServiceName = strings.TrimSpace(yamlCfg.Telemetry.ServiceName)
	}
	if yamlCfg.Telemetry.EnableMetrics != nil {
		c.Telemetry.EnableMetrics = *yamlCfg.Telemetry.EnableMetrics
	}

	return nil
}

func (c *AppConfig) loadEnv() {
	if env := strings.TrimSpace(os.Getenv("BLOCKPOOL_ENV")); env != "" {
		c.Environment = Environment(strings.ToLower(env))
	}
	if endpoint := strings.TrimSpace(os.Getenv("BLOCKPOOL_OTLP_ENDPOINT")); endpoint != "" {
		c.Telemetry.OTLPEndpoint = endpoint
	}
	if service := strings.TrimSpace(os.Getenv("BLOCKPOOL_SERVICE_NAME")); service != "" {
		c.Telemetry.ServiceName = service
	}
	if capacity := strings.TrimSpace(os.Getenv("BLOCKPOOL_FRAME_CAPACITY")); capacity != "" {
		if parsed, err := strconv.Atoi(capacity); err == nil {
			settings := c.Stores["frame"]
			settings.Capacity = parsed
			c.Stores["frame"] = settings
		}
	}
}

// Validate checks the final configuration for internally consistent values.
func (c *AppConfig) Validate(ctx context.Context) error {
	_ = ctx
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return errs.Invalid("config", fmt.Sprintf("unknown environment %q", c.Environment))
	}
	for name, settings := range c.Stores {
		if settings.Capacity < 0 {
			return errs.Invalid("config", fmt.Sprintf("store %s: capacity must be non-negative", name))
		}
	}
	if c.Bench.Workers <= 0 {
		return errs.Invalid("config", "bench: workers must be positive")
	}
	if c.Bench.Cycles <= 0 {
		return errs.Invalid("config", "bench: cycles must be positive")
	}
	if c.Bench.QueueDepth < 0 {
		return errs.Invalid("config", "bench: queue depth must be non-negative")
	}
	if c.Bench.RatePerSecond < 0 {
		return errs.Invalid("config", "bench: rate must be non-negative")
	}
	return nil
}
