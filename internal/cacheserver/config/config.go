package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry/backend"
)

// DefaultPort is used when the configured port is outside (1000, 65536).
const DefaultPort = 6379

// Config holds cache server configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Registry backend.Config `json:"registry" yaml:"registry"`
	Logger   logger.Config  `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	// Hostname is the advertised host. Empty means detect a non-loopback IPv4 address.
	Hostname    string `json:"hostname" yaml:"hostname"`
	Port        int    `json:"port" yaml:"port"`
	BodyLimit   int    `json:"body_limit" yaml:"body_limit"`
	AccessLog   bool   `json:"access_log" yaml:"access_log"`
	StopGraceMS int    `json:"stop_grace_ms" yaml:"stop_grace_ms"`
}

func (s ServerConfig) StopGrace() time.Duration {
	if s.StopGraceMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.StopGraceMS) * time.Millisecond
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        DefaultPort,
			BodyLimit:   8 * 1024 * 1024,
			StopGraceMS: 5000,
		},
		Registry: backend.DefaultConfig(),
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file. path must be relative to the working
// directory. Without an explicit path it reads
// internal/cacheserver/config/$ENV.yaml and falls back to defaults.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "cacheserver", "config", env+".yaml")
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
