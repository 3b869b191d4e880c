// Package backend opens a registry.Registry from configuration.
package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/anthanhphan/go-distributed-cache/pkg/registry"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/etcd"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/gossip"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/memory"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/redis"
	"github.com/anthanhphan/go-distributed-cache/pkg/registry/zookeeper"
)

// Supported registry kinds.
const (
	KindZooKeeper = "zookeeper"
	KindEtcd      = "etcd"
	KindGossip    = "gossip"
	KindRedis     = "redis"
	KindMemory    = "memory"
)

type Config struct {
	Kind             string       `json:"kind" yaml:"kind"`
	Target           string       `json:"target" yaml:"target"`
	Path             string       `json:"path" yaml:"path"`
	SessionTimeoutMS int          `json:"session_timeout_ms" yaml:"session_timeout_ms"`
	Gossip           GossipConfig `json:"gossip" yaml:"gossip"`
	Redis            RedisConfig  `json:"redis" yaml:"redis"`
}

type GossipConfig struct {
	NodeName string   `json:"node_name" yaml:"node_name"`
	BindAddr string   `json:"bind_addr" yaml:"bind_addr"`
	BindPort int      `json:"bind_port" yaml:"bind_port"`
	Seeds    []string `json:"seeds" yaml:"seeds"`
}

type RedisConfig struct {
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	TTLMS    int    `json:"ttl_ms" yaml:"ttl_ms"`
}

// DefaultConfig targets a local ZooKeeper under the default path.
func DefaultConfig() Config {
	return Config{
		Kind:             KindZooKeeper,
		Path:             registry.DefaultPath,
		SessionTimeoutMS: 10000,
	}
}

// sharedStore backs every memory registry opened in this process.
var sharedStore = memory.NewStore()

// SharedStore exposes the in-process store used by the memory kind.
func SharedStore() *memory.Store {
	return sharedStore
}

// Open connects to the configured registry kind. An empty kind means ZooKeeper.
func Open(cfg Config) (registry.Registry, error) {
	sessionTimeout := time.Duration(cfg.SessionTimeoutMS) * time.Millisecond

	switch kind := strings.ToLower(strings.TrimSpace(cfg.Kind)); kind {
	case "", KindZooKeeper:
		target := ResolveTarget(cfg)
		return zookeeper.New(zookeeper.Config{
			Servers:        registry.SplitTarget(target),
			SessionTimeout: sessionTimeout,
		})
	case KindEtcd:
		return etcd.New(etcd.Config{
			Endpoints:   registry.SplitTarget(ResolveTarget(cfg)),
			DialTimeout: sessionTimeout,
			LeaseTTL:    sessionTimeout,
		})
	case KindGossip:
		return gossip.New(gossip.Config{
			NodeName: cfg.Gossip.NodeName,
			BindAddr: cfg.Gossip.BindAddr,
			BindPort: cfg.Gossip.BindPort,
			Seeds:    cfg.Gossip.Seeds,
		})
	case KindRedis:
		return redis.New(redis.Config{
			Addr:     ResolveTarget(cfg),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.TTLMS) * time.Millisecond,
		}), nil
	case KindMemory:
		return sharedStore.Session(), nil
	default:
		return nil, fmt.Errorf("unknown registry kind %q", kind)
	}
}

// ResolveTarget returns the connect target for cfg. ZooKeeper honours the
// ZOOKEEPER_CONNECT and ZK_CONNECT environment variables; the other kinds use
// the configured target or their local default.
func ResolveTarget(cfg Config) string {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindZooKeeper:
		return registry.ResolveTarget(cfg.Target, zookeeper.DefaultTarget)
	case KindEtcd:
		return orDefault(cfg.Target, etcd.DefaultTarget)
	case KindRedis:
		return orDefault(cfg.Target, redis.DefaultTarget)
	default:
		return strings.TrimSpace(cfg.Target)
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
