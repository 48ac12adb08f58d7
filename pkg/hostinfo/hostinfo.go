package hostinfo

import (
	"net"
	"os"
	"strings"
)

// LocalHostname returns the machine's hostname, lowercased. Falls back to
// "localhost" when the hostname cannot be determined.
func LocalHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return strings.ToLower(name)
}

// LocalIP returns the first non-loopback IPv4 address of the machine,
// or the loopback address when no other interface is up.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
