package node

import (
	"net"
	"strings"
)

// NormalizeHostPort strips a udp:// prefix from addr and adds defPort when
// addr has no port.
func NormalizeHostPort(addr, defPort string) string {
	if rest, ok := strings.CutPrefix(addr, "udp://"); ok {
		addr = rest
	}

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return net.JoinHostPort(addr, defPort)
}

// AdvertiseAddr fills in host when listen has no host part (":9001").
func AdvertiseAddr(listen, host string) string {
	h, p, err := net.SplitHostPort(listen)
	if err != nil || (h != "" && h != "0.0.0.0" && h != "::") {
		return listen
	}
	return net.JoinHostPort(host, p)
}
