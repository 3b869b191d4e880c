package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"

	routerconfig "github.com/anthanhphan/go-distributed-cache/internal/router/config"
)

// Config holds load generator configuration
type Config struct {
	Workload WorkloadConfig            `json:"workload" yaml:"workload"`
	Client   routerconfig.ClientConfig `json:"client" yaml:"client"`
	Logger   logger.Config             `json:"logger" yaml:"logger"`
}

type WorkloadConfig struct {
	Workers       int `json:"workers" yaml:"workers"`
	DurationMS    int `json:"duration_ms" yaml:"duration_ms"`
	KeySpace      int `json:"key_space" yaml:"key_space"`
	GetPercent    int `json:"get_percent" yaml:"get_percent"`
	PutPercent    int `json:"put_percent" yaml:"put_percent"`
	DeletePercent int `json:"delete_percent" yaml:"delete_percent"`
	MinValueBytes int `json:"min_value_bytes" yaml:"min_value_bytes"`
	MaxValueBytes int `json:"max_value_bytes" yaml:"max_value_bytes"`
	MaxThinkMS    int `json:"max_think_ms" yaml:"max_think_ms"`
	ReportEveryMS int `json:"report_every_ms" yaml:"report_every_ms"`
}

func (w WorkloadConfig) Duration() time.Duration {
	return time.Duration(w.DurationMS) * time.Millisecond
}

func (w WorkloadConfig) MaxThink() time.Duration {
	return time.Duration(w.MaxThinkMS) * time.Millisecond
}

func (w WorkloadConfig) ReportEvery() time.Duration {
	if w.ReportEveryMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.ReportEveryMS) * time.Millisecond
}

// Validate rejects workloads that cannot run.
func (w WorkloadConfig) Validate() error {
	switch {
	case w.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", w.Workers)
	case w.KeySpace <= 0:
		return fmt.Errorf("key_space must be positive, got %d", w.KeySpace)
	case w.GetPercent < 0 || w.PutPercent < 0 || w.DeletePercent < 0:
		return fmt.Errorf("operation percentages must not be negative")
	case w.GetPercent+w.PutPercent+w.DeletePercent != 100:
		return fmt.Errorf("operation percentages must sum to 100, got %d", w.GetPercent+w.PutPercent+w.DeletePercent)
	case w.MinValueBytes <= 0 || w.MaxValueBytes < w.MinValueBytes:
		return fmt.Errorf("invalid value size range [%d, %d]", w.MinValueBytes, w.MaxValueBytes)
	case w.MaxThinkMS < 0:
		return fmt.Errorf("max_think_ms must not be negative, got %d", w.MaxThinkMS)
	}
	return nil
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Workload: WorkloadConfig{
			Workers:       10,
			DurationMS:    180000,
			KeySpace:      100000,
			GetPercent:    60,
			PutPercent:    30,
			DeletePercent: 10,
			MinValueBytes: 5,
			MaxValueBytes: 5 * 1024,
			MaxThinkMS:    1000,
			ReportEveryMS: 10000,
		},
		Client: routerconfig.DefaultClientConfig(),
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file. path must be relative to the working
// directory. Without an explicit path it reads
// internal/loadgen/config/$ENV.yaml and falls back to defaults.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "loadgen", "config", env+".yaml")
	}

	cfg := DefaultConfig()
	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		if path != "" {
			return nil, err
		}
		logger.Warnw("Config file not loaded, using defaults", "path", configPath, "error", err.Error())
		return cfg, nil
	}
	return parsedCfg, nil
}
