package app

import (
	"net"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/anthanhphan/go-distributed-cache/internal/cacheserver/config"
)

const loopbackAddr = "127.0.0.1"

// ValidatePort returns port when 1000 < port < 65536 and DefaultPort otherwise.
func ValidatePort(port int) int {
	if port > 1000 && port < 65536 {
		return port
	}
	logger.Warnw("Invalid server port, using default", "port", port, "default", config.DefaultPort)
	return config.DefaultPort
}

// DetectHostAddress returns the first non-loopback IPv4 address of an up
// interface, or 127.0.0.1.
func DetectHostAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		logger.Warnw("Failed to list network interfaces", "error", err.Error())
		return loopbackAddr
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := firstIPv4(addrs); ip != "" {
			return ip
		}
	}
	return loopbackAddr
}

func firstIPv4(addrs []net.Addr) string {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
