// Package connector defines the interface for executing commands on the
// remote hosts the bot controls.
package connector

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ExitUnknown is reported when the remote side closed the channel without
// sending an exit status, typically because the host went down mid-command.
const ExitUnknown = -1

// Result holds the output from command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Connector is the interface for connecting to and executing commands on
// a remote host.
type Connector interface {
	// Connect establishes an authenticated session with the host.
	Connect(ctx context.Context) error

	// Execute runs one command on a fresh channel and returns its output.
	Execute(ctx context.Context, cmd string) (*Result, error)

	// Close tears down the session.
	Close() error

	// String returns a human-readable description of the connection.
	String() string
}

// Dialer creates connectors for host profiles.
type Dialer interface {
	// New returns an unconnected connector for profile.
	New(profile HostProfile) Connector
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(profile HostProfile) Connector

// New calls f(profile).
func (f DialerFunc) New(profile HostProfile) Connector {
	return f(profile)
}

// Open creates a connector for profile and connects it. On failure the
// connector is closed before returning, so callers only own a live
// connector.
func Open(ctx context.Context, d Dialer, profile HostProfile) (Connector, error) {
	conn := d.New(profile)
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// HostProfile describes how to reach one remote host.
type HostProfile struct {
	// Name identifies the profile in logs ("router" or "server").
	Name string

	// Host is the target hostname or IP address.
	Host string

	// Port is the SSH port.
	Port int

	// User is the username for authentication.
	User string

	// KeyPath is the path to an unencrypted private key file.
	KeyPath string

	// ConnectTimeout bounds the TCP connect and SSH handshake.
	ConnectTimeout time.Duration
}

// LocalHost is the host name that selects the local shell instead of SSH.
const LocalHost = "local"

// IsLocal reports whether commands for this profile run on this machine.
func (p HostProfile) IsLocal() bool {
	return p.Host == LocalHost
}

// ResolvedHost returns the host to dial. "localhost" is pinned to the IPv4
// loopback address because SSH tunnels from the router and server are
// bound there.
func (p HostProfile) ResolvedHost() string {
	if p.Host == "localhost" {
		return "127.0.0.1"
	}
	return p.Host
}

// Addr returns the host:port pair to dial.
func (p HostProfile) Addr() string {
	return net.JoinHostPort(p.ResolvedHost(), strconv.Itoa(p.Port))
}

// String returns a description of the profile.
func (p HostProfile) String() string {
	if p.IsLocal() {
		return fmt.Sprintf("%s (local)", p.Name)
	}
	return fmt.Sprintf("%s (ssh://%s@%s:%d)", p.Name, p.User, p.Host, p.Port)
}
