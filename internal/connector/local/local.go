// Package local provides a connector that runs commands on the machine the
// bot itself runs on, typically when the bot is installed on the router.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"time"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
)

// waitDelay bounds how long Execute waits for output pipes after the shell
// is killed, since children may keep them open.
const waitDelay = 500 * time.Millisecond

// Connector executes commands through the local shell.
type Connector struct {
	shell     string
	shellArgs []string
	connected bool
}

// Option configures the local connector.
type Option func(*Connector)

// WithShell sets a custom shell for command execution.
func WithShell(shell string, args ...string) Option {
	return func(c *Connector) {
		c.shell = shell
		c.shellArgs = args
	}
}

// New creates a new local connector using /bin/sh -c.
func New(opts ...Option) *Connector {
	c := &Connector{
		shell:     "/bin/sh",
		shellArgs: []string{"-c"},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect checks that the platform can run the configured shell.
func (c *Connector) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &connector.ConnectError{Profile: connector.LocalHost, Addr: c.shell, Err: err}
	}

	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "openbsd", "netbsd":
	default:
		return &connector.ConnectError{
			Profile: connector.LocalHost,
			Addr:    c.shell,
			Err:     fmt.Errorf("unsupported platform: %s", runtime.GOOS),
		}
	}

	if _, err := exec.LookPath(c.shell); err != nil {
		return &connector.ConnectError{Profile: connector.LocalHost, Addr: c.shell, Err: err}
	}

	c.connected = true
	return nil
}

// Execute runs cmd in the shell. A non-zero exit status is reported in the
// result; failing to start the shell or losing ctx is an error.
func (c *Connector) Execute(ctx context.Context, cmd string) (*connector.Result, error) {
	if !c.connected {
		return nil, &connector.ExecError{Cmd: cmd, Err: errors.New("not connected")}
	}

	args := append(append([]string(nil), c.shellArgs...), cmd)
	execCmd := exec.CommandContext(ctx, c.shell, args...)
	execCmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &connector.ExecError{Cmd: cmd, Err: ctxErr}
	}

	result := &connector.Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &connector.ExecError{Cmd: cmd, Err: err}
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// Close is a no-op for local connections.
func (c *Connector) Close() error {
	c.connected = false
	return nil
}

// String returns a description of the connection.
func (c *Connector) String() string {
	u, err := user.Current()
	if err != nil {
		return "local"
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	return fmt.Sprintf("local://%s@%s", u.Username, hostname)
}

// Dialer routes profiles whose host is "local" to the local shell and all
// others to Remote.
type Dialer struct {
	Remote connector.Dialer
	opts   []Option
}

// NewDialer wraps remote so that local profiles bypass it.
func NewDialer(remote connector.Dialer, opts ...Option) *Dialer {
	return &Dialer{Remote: remote, opts: opts}
}

// New returns an unconnected connector for profile.
func (d *Dialer) New(profile connector.HostProfile) connector.Connector {
	if profile.IsLocal() {
		return New(d.opts...)
	}
	return d.Remote.New(profile)
}

// Ensure Connector implements the connector.Connector interface.
var (
	_ connector.Connector = (*Connector)(nil)
	_ connector.Dialer    = (*Dialer)(nil)
)
