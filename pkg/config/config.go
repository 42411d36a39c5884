// Package config holds the server configuration built from command line
// arguments, together with its validation and injectable dependencies.
package config

import (
	"fmt"
	"net/netip"
	"time"

	"dominicbreuker/cas/pkg/log"
)

// Server is the configuration of a running server.
type Server struct {
	Host         string
	Port         int
	Verbose      bool
	DebugLevel   int
	PollInterval time.Duration // how long one reactor iteration waits for a connection
	MaxClients   int
	Timeout      time.Duration // grace period for clients to finish on shutdown
	Mux          bool          // serve clients as multiplexed sessions

	Logger *log.Logger
	Deps   *Dependencies
}

// Validate returns all problems with the configuration.
func (c *Server) Validate() []error {
	var errors []error

	if err := validatePort(c.Port); err != nil {
		errors = append(errors, fmt.Errorf("port: %s", err))
	}

	if _, err := parseHost(c.Host); err != nil {
		errors = append(errors, fmt.Errorf("host: %s", err))
	}

	if c.DebugLevel < 0 {
		errors = append(errors, fmt.Errorf("debug level must not be negative"))
	}

	if c.PollInterval <= 0 {
		errors = append(errors, fmt.Errorf("poll interval must be positive"))
	}

	if c.MaxClients < 1 {
		errors = append(errors, fmt.Errorf("max clients must be at least 1"))
	}

	if c.Timeout < 0 {
		errors = append(errors, fmt.Errorf("timeout must not be negative"))
	}

	return errors
}

// BindAddr returns the address the server should listen on.
func (c *Server) BindAddr() (netip.AddrPort, error) {
	ip, err := parseHost(c.Host)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if err := validatePort(c.Port); err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(ip, uint16(c.Port)), nil
}

// LogLevel combines the verbose flag and the debug level into a logger level.
func (c *Server) LogLevel() uint {
	level := uint(0)
	if c.DebugLevel > 0 {
		level = uint(c.DebugLevel)
	}
	if c.Verbose && level == 0 {
		level = 1
	}
	return level
}

func parseHost(host string) (netip.Addr, error) {
	switch host {
	case "", "*":
		return netip.IPv4Unspecified(), nil
	case "localhost":
		return netip.AddrFrom4([4]byte{127, 0, 0, 1}), nil
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%q is not an IP address", host)
	}
	ip = ip.Unmap()
	if !ip.Is4() {
		return netip.Addr{}, fmt.Errorf("%q is not an IPv4 address", host)
	}
	return ip, nil
}
