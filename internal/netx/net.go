// Package netx contains small networking helpers shared by client and server.
package netx

import (
	"net"
	"strconv"
)

// EnsureHostPort normalizes a user-supplied server address. A bare host gets
// the default port appended; "host:port" values are returned as-is after
// validation. An empty addr resolves to "127.0.0.1:<defaultPort>".
func EnsureHostPort(addr string, defaultPort int) (string, error) {
	if addr == "" {
		addr = "127.0.0.1"
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		return net.JoinHostPort(host, port), nil
	}

	// No port in the input: treat the whole string as a host.
	return net.JoinHostPort(addr, strconv.Itoa(defaultPort)), nil
}
