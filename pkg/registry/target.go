package registry

import (
	"os"
	"strings"
)

// Environment variables consulted for the registry connect target, in order.
const (
	EnvConnect      = "ZOOKEEPER_CONNECT"
	EnvConnectShort = "ZK_CONNECT"
)

// ResolveTarget returns the first non-empty value among the explicit override,
// $ZOOKEEPER_CONNECT, $ZK_CONNECT and the given local default.
func ResolveTarget(override, localDefault string) string {
	return resolveTarget(override, localDefault, os.Getenv)
}

func resolveTarget(override, localDefault string, getenv func(string) string) string {
	for _, candidate := range []string{override, getenv(EnvConnect), getenv(EnvConnectShort)} {
		if v := strings.TrimSpace(candidate); v != "" {
			return v
		}
	}
	return localDefault
}

// SplitTarget splits a comma separated connect string into endpoints.
func SplitTarget(target string) []string {
	parts := strings.Split(target, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
