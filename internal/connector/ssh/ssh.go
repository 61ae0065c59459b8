// Package ssh provides a connector for executing commands on remote hosts
// over SSH with public-key authentication.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
)

// DefaultConnectTimeout is used when a profile has no connect timeout.
const DefaultConnectTimeout = 15 * time.Second

var errNotConnected = errors.New("not connected")

// Connector executes commands on a host over one authenticated SSH
// connection. Every Execute call opens its own channel.
type Connector struct {
	profile         connector.HostProfile
	knownHostsPath  string
	hostKeyCallback gossh.HostKeyCallback
	logger          *slog.Logger

	client *gossh.Client
}

// Option configures the SSH connector.
type Option func(*Connector)

// WithKnownHosts verifies host keys against an OpenSSH known_hosts file.
func WithKnownHosts(path string) Option {
	return func(c *Connector) {
		c.knownHostsPath = path
	}
}

// WithHostKeyCallback sets a custom host key check. It takes precedence
// over WithKnownHosts.
func WithHostKeyCallback(cb gossh.HostKeyCallback) Option {
	return func(c *Connector) {
		c.hostKeyCallback = cb
	}
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// New creates a new SSH connector for the given host profile.
func New(profile connector.HostProfile, opts ...Option) *Connector {
	c := &Connector{
		profile: profile,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect dials the host, performs the SSH handshake and authenticates with
// the profile's private key. The whole sequence is bounded by the profile's
// connect timeout and by ctx.
func (c *Connector) Connect(ctx context.Context) error {
	p := c.profile
	addr := p.Addr()

	signer, err := loadSigner(p.KeyPath)
	if err != nil {
		return &connector.AuthError{Profile: p.Name, User: p.User, Err: err}
	}

	hostKeys, err := c.hostKeys()
	if err != nil {
		return &connector.ConnectError{Profile: p.Name, Addr: addr, Err: err}
	}

	timeout := p.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Debug("dialing ssh", "profile", p.Name, "addr", addr, "user", p.User)

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return &connector.ConnectError{Profile: p.Name, Addr: addr, Err: err}
	}

	// The handshake does not take a context: bound it with a deadline and
	// tear the socket down if the caller gives up first.
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(dialCtx, func() { _ = conn.Close() })

	cfg := &gossh.ClientConfig{
		User:            p.User,
		Auth:            []gossh.AuthMethod{gossh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}
	sshConn, chans, reqs, err := gossh.NewClientConn(conn, addr, cfg)
	if !stop() {
		if err == nil {
			_ = sshConn.Close()
		}
		return &connector.ConnectError{Profile: p.Name, Addr: addr, Err: dialCtx.Err()}
	}
	if err != nil {
		_ = conn.Close()
		if isAuthFailure(err) {
			return &connector.AuthError{Profile: p.Name, User: p.User, Err: err}
		}
		return &connector.ConnectError{Profile: p.Name, Addr: addr, Err: err}
	}
	_ = conn.SetDeadline(time.Time{})

	client := gossh.NewClient(sshConn, chans, reqs)
	if err := verifySession(client, p.User); err != nil {
		_ = client.Close()
		return &connector.AuthError{Profile: p.Name, User: p.User, Err: err}
	}

	c.client = client
	c.logger.Debug("ssh session established", "profile", p.Name, "addr", addr)
	return nil
}

// Execute runs cmd on a new channel and waits for the remote side to close
// it. A non-zero exit status is reported in the result, not as an error.
// If ctx ends first the channel is closed and the context error returned.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	if c.client == nil {
		return nil, &connector.ExecError{Cmd: cmd, Err: errNotConnected}
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, &connector.ExecError{Cmd: cmd, Err: fmt.Errorf("open channel: %w", err)}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, &connector.ExecError{Cmd: cmd, Err: ctx.Err()}
	case err = <-done:
	}

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *gossh.ExitError
		var missingErr *gossh.ExitMissingError
		switch {
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitStatus()
		case errors.As(err, &missingErr):
			result.ExitCode = connector.ExitUnknown
		default:
			return nil, &connector.ExecError{Cmd: cmd, Err: err}
		}
	}

	return result, nil
}

// Close terminates the SSH connection. It is safe to call more than once.
func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// String returns a description of the connection.
func (c *Connector) String() string {
	return fmt.Sprintf("ssh://%s@%s", c.profile.User, c.profile.Addr())
}

func (c *Connector) hostKeys() (gossh.HostKeyCallback, error) {
	if c.hostKeyCallback != nil {
		return c.hostKeyCallback, nil
	}
	if c.knownHostsPath != "" {
		cb, err := knownhosts.New(c.knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts: %w", err)
		}
		return cb, nil
	}
	return gossh.InsecureIgnoreHostKey(), nil
}

// loadSigner reads an unencrypted private key in any format x/crypto/ssh
// understands (OpenSSH, PKCS#1, PKCS#8, SEC1).
func loadSigner(path string) (gossh.Signer, error) {
	if path == "" {
		return nil, errors.New("no private key configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := gossh.ParsePrivateKey(data)
	if err != nil {
		var missing *gossh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("private key %s is passphrase protected", path)
		}
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return signer, nil
}

// verifySession checks that the handshake left us with a usable, logged-in
// session as the expected user.
func verifySession(client *gossh.Client, user string) error {
	if client.User() != user {
		return fmt.Errorf("session user %q does not match %q", client.User(), user)
	}
	if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
		return fmt.Errorf("session not usable after handshake: %w", err)
	}
	return nil
}

func isAuthFailure(err error) bool {
	return strings.Contains(err.Error(), "unable to authenticate")
}

// Dialer creates SSH connectors sharing the same options.
type Dialer struct {
	opts []Option
}

// NewDialer returns a Dialer applying opts to every connector it creates.
func NewDialer(opts ...Option) *Dialer {
	return &Dialer{opts: opts}
}

// New returns an unconnected SSH connector for profile.
func (d *Dialer) New(profile connector.HostProfile) connector.Connector {
	return New(profile, d.opts...)
}

// Ensure Connector implements the connector.Connector interface.
var (
	_ connector.Connector = (*Connector)(nil)
	_ connector.Dialer    = (*Dialer)(nil)
)
