// Package config loads the YAML configuration of the bench command.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/typecache/pool"
)

// Config represents the main configuration structure
type Config struct {
	Pool     pool.Settings `yaml:"pool"`
	Workload Workload      `yaml:"workload"`
	Metrics  Metrics       `yaml:"metrics"`
}

// Workload describes the synthetic resolution traffic.
type Workload struct {
	Owners      int           `yaml:"owners" validate:"gt=0"`
	Names       int           `yaml:"names" validate:"gt=0"`
	Workers     int           `yaml:"workers" validate:"gte=0"`
	Duration    time.Duration `yaml:"duration" validate:"gt=0"`
	ZipfS       float64       `yaml:"zipf_s" validate:"gt=1"`
	ZipfV       float64       `yaml:"zipf_v" validate:"gte=1"`
	ChurnEvery  time.Duration `yaml:"churn_every" validate:"gte=0"`
	ResolveCost time.Duration `yaml:"resolve_cost" validate:"gte=0"`
	FailPct     int           `yaml:"fail_pct" validate:"gte=0,lte=100"`
	Seed        int64         `yaml:"seed"`
}

// Metrics configures the Prometheus and pprof endpoints.
type Metrics struct {
	Addr      string `yaml:"addr"`
	PprofAddr string `yaml:"pprof_addr"`
	Namespace string `yaml:"namespace" validate:"required"`
	Subsystem string `yaml:"subsystem"`
}

var validate = validator.New()

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{Pool: pool.DefaultSettings()}
	c.applyDefaults()
	return c
}

// LoadConfig loads configuration from file path
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	logger.Info("Loading configuration", zap.String("path", configPath))

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	config := Config{Pool: pool.DefaultSettings()}
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c.Workload); err != nil {
		return fmt.Errorf("invalid workload: %w", err)
	}
	if err := validate.Struct(c.Metrics); err != nil {
		return fmt.Errorf("invalid metrics: %w", err)
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	w := &c.Workload
	if w.Owners == 0 {
		w.Owners = 16
	}
	if w.Names == 0 {
		w.Names = 50_000
	}
	if w.Duration == 0 {
		w.Duration = 10 * time.Second
	}
	if w.ZipfS == 0 {
		w.ZipfS = 1.1
	}
	if w.ZipfV == 0 {
		w.ZipfV = 1
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "typecache"
	}
	if c.Metrics.Subsystem == "" {
		c.Metrics.Subsystem = "bench"
	}
}
