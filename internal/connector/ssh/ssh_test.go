package ssh

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
)

func profileFor(s *testServer) connector.HostProfile {
	return connector.HostProfile{
		Name:           "server",
		Host:           "localhost",
		Port:           s.Port(),
		User:           s.user,
		KeyPath:        s.keyPath,
		ConnectTimeout: 2 * time.Second,
	}
}

func TestConnectAndExecute(t *testing.T) {
	srv := newTestServer(t)
	conn := New(profileFor(srv))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	result, err := conn.Execute(context.Background(), "uptime")
	require.NoError(t, err)
	assert.Equal(t, "uptime\n", result.Stdout)
	assert.Equal(t, 0, result.ExitCode)

	// A second command gets its own channel on the same connection.
	result, err = conn.Execute(context.Background(), "hostname")
	require.NoError(t, err)
	assert.Equal(t, "hostname\n", result.Stdout)

	assert.Equal(t, []string{"uptime", "hostname"}, srv.Commands())
}

func TestExecuteNonZeroExit(t *testing.T) {
	srv := newTestServer(t)
	conn := New(profileFor(srv))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	result, err := conn.Execute(context.Background(), "fail")
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "boom", result.Stderr)
}

func TestExecuteMissingExitStatus(t *testing.T) {
	srv := newTestServer(t)
	conn := New(profileFor(srv))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	result, err := conn.Execute(context.Background(), "drop")
	require.NoError(t, err)
	assert.Equal(t, connector.ExitUnknown, result.ExitCode)
}

func TestExecuteHonoursContext(t *testing.T) {
	srv := newTestServer(t)
	conn := New(profileFor(srv))
	require.NoError(t, conn.Connect(context.Background()))
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := conn.Execute(ctx, "hang")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var execErr *connector.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecuteWithoutConnect(t *testing.T) {
	conn := New(connector.HostProfile{Name: "server", Host: "127.0.0.1", Port: 22})

	_, err := conn.Execute(context.Background(), "uptime")
	var execErr *connector.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.NoError(t, conn.Close())
}

func TestConnectAuthFailures(t *testing.T) {
	srv := newTestServer(t)
	_, strangerKey := writeClientKey(t, "id_stranger")

	garbageKey := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(garbageKey, []byte("not a key"), 0o600))

	tests := []struct {
		name   string
		mutate func(p *connector.HostProfile)
	}{
		{"unknown key", func(p *connector.HostProfile) { p.KeyPath = strangerKey }},
		{"wrong user", func(p *connector.HostProfile) { p.User = "mallory" }},
		{"missing key file", func(p *connector.HostProfile) { p.KeyPath = filepath.Join(t.TempDir(), "nope") }},
		{"unparseable key", func(p *connector.HostProfile) { p.KeyPath = garbageKey }},
		{"no key configured", func(p *connector.HostProfile) { p.KeyPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := profileFor(srv)
			tt.mutate(&profile)

			err := New(profile).Connect(context.Background())
			var authErr *connector.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, "server", authErr.Profile)
		})
	}
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, keyPath := writeClientKey(t, "id_ed25519")
	err = New(connector.HostProfile{
		Name:           "router",
		Host:           "127.0.0.1",
		Port:           port,
		User:           "root",
		KeyPath:        keyPath,
		ConnectTimeout: time.Second,
	}).Connect(context.Background())

	var connErr *connector.ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "router", connErr.Profile)
}

func TestConnectHandshakeTimeout(t *testing.T) {
	// Accepts TCP but never speaks SSH.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var held []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, c)
		}
	}()

	_, keyPath := writeClientKey(t, "id_ed25519")
	start := time.Now()
	err = New(connector.HostProfile{
		Name:           "router",
		Host:           "127.0.0.1",
		Port:           ln.Addr().(*net.TCPAddr).Port,
		User:           "root",
		KeyPath:        keyPath,
		ConnectTimeout: 200 * time.Millisecond,
	}).Connect(context.Background())

	var connErr *connector.ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestConnectCancelledContext(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(profileFor(srv)).Connect(ctx)
	var connErr *connector.ConnectError
	require.ErrorAs(t, err, &connErr)
}

func TestConnectKnownHosts(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()

	trusted := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{srv.Addr()}, srv.hostSigner.PublicKey())
	require.NoError(t, os.WriteFile(trusted, []byte(line+"\n"), 0o600))

	conn := New(profileFor(srv), WithKnownHosts(trusted))
	require.NoError(t, conn.Connect(context.Background()))
	require.NoError(t, conn.Close())

	// Same address pinned to a different key.
	other := newTestServer(t)
	mismatched := filepath.Join(dir, "known_hosts_other")
	line = knownhosts.Line([]string{srv.Addr()}, other.hostSigner.PublicKey())
	require.NoError(t, os.WriteFile(mismatched, []byte(line+"\n"), 0o600))

	err := New(profileFor(srv), WithKnownHosts(mismatched)).Connect(context.Background())
	var connErr *connector.ConnectError
	require.ErrorAs(t, err, &connErr)

	err = New(profileFor(srv), WithKnownHosts(filepath.Join(dir, "absent"))).Connect(context.Background())
	require.ErrorAs(t, err, &connErr)
}

func TestDialer(t *testing.T) {
	srv := newTestServer(t)

	conn, err := connector.Open(context.Background(), NewDialer(), profileFor(srv))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "ssh://alice@"+srv.Addr(), conn.String())
}
