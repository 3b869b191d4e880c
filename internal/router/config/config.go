package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry/backend"
	"github.com/anthanhphan/go-distributed-cache/pkg/shard"
)

// Config holds gateway configuration
type Config struct {
	Server ServerConfig  `json:"server" yaml:"server"`
	Client ClientConfig  `json:"client" yaml:"client"`
	Logger logger.Config `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr             string `json:"addr" yaml:"addr"`
	BodyLimit        int    `json:"body_limit" yaml:"body_limit"`
	AccessLog        bool   `json:"access_log" yaml:"access_log"`
	StopGraceMS      int    `json:"stop_grace_ms" yaml:"stop_grace_ms"`
	HandlerTimeoutMS int    `json:"handler_timeout_ms" yaml:"handler_timeout_ms"`
}

// ClientConfig configures a routing client. It is shared by every program
// that talks to the cache cluster.
type ClientConfig struct {
	Registry  backend.Config  `json:"registry" yaml:"registry"`
	Ring      RingConfig      `json:"ring" yaml:"ring"`
	Transport TransportConfig `json:"transport" yaml:"transport"`
}

type RingConfig struct {
	VNodesPerNode int `json:"vnodes_per_node" yaml:"vnodes_per_node"`
}

type TransportConfig struct {
	Scheme              string `json:"scheme" yaml:"scheme"`
	ConnectTimeoutMS    int    `json:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	RequestTimeoutMS    int    `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	MaxIdleConnsPerHost int    `json:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host"`
	FailureThreshold    int    `json:"failure_threshold" yaml:"failure_threshold"`
	OpenTimeoutMS       int    `json:"open_timeout_ms" yaml:"open_timeout_ms"`
	ShutdownGraceMS     int    `json:"shutdown_grace_ms" yaml:"shutdown_grace_ms"`
}

func (t TransportConfig) ShutdownGrace() time.Duration {
	return time.Duration(t.ShutdownGraceMS) * time.Millisecond
}

func (s ServerConfig) StopGrace() time.Duration {
	if s.StopGraceMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.StopGraceMS) * time.Millisecond
}

// HandlerTimeout bounds the node calls made for one gateway request.
// Zero leaves them bounded only by the transport request timeout.
func (s ServerConfig) HandlerTimeout() time.Duration {
	if s.HandlerTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(s.HandlerTimeoutMS) * time.Millisecond
}

// DefaultClientConfig returns routing client defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Registry: backend.DefaultConfig(),
		Ring: RingConfig{
			VNodesPerNode: shard.DefaultVNodesPerNode,
		},
		Transport: TransportConfig{
			Scheme:              "http",
			ConnectTimeoutMS:    2000,
			RequestTimeoutMS:    5000,
			MaxIdleConnsPerHost: 64,
			FailureThreshold:    5,
			OpenTimeoutMS:       5000,
			ShutdownGraceMS:     5000,
		},
	}
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8090",
			BodyLimit:        8 * 1024 * 1024,
			AccessLog:        true,
			StopGraceMS:      5000,
			HandlerTimeoutMS: 10000,
		},
		Client: DefaultClientConfig(),
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// Load loads configuration from file. path must be relative to the working
// directory. Without an explicit path it reads
// internal/router/config/$ENV.yaml and falls back to defaults.
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		configPath = filepath.Join("internal", "router", "config", envName()+".yaml")
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

func envName() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}
