package action

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
)

// Status defaults.
const (
	DefaultStatusCommand = "uptime"
	DefaultStatusTimeout = 5 * time.Second
)

// ErrTimedOut is returned when the status check does not finish within
// its timeout.
var ErrTimedOut = errors.New("status check timed out")

// Report describes the server as seen by the status action.
type Report struct {
	// Online reports whether the server's SSH port accepted a connection.
	Online bool

	// Details is the trimmed output of the status command. It is empty
	// when the server is offline or the command could not be run.
	Details string

	// Uptime is the parsed status output, or nil when it did not match
	// the standard uptime format.
	Uptime *Uptime
}

// Degraded reports whether the server is reachable but the status command
// produced nothing.
func (r Report) Degraded() bool {
	return r.Online && r.Details == ""
}

// Prober checks bare reachability of an address.
type Prober interface {
	Probe(ctx context.Context, addr string) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, addr string) error

// Probe calls f(ctx, addr).
func (f ProberFunc) Probe(ctx context.Context, addr string) error {
	return f(ctx, addr)
}

// TCPProber opens and immediately closes a TCP connection.
type TCPProber struct{}

// Probe dials addr over TCP.
func (TCPProber) Probe(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// StatusConfig tunes the status action.
type StatusConfig struct {
	// Command is run on the server once it is reachable.
	Command string

	// Timeout bounds the whole check.
	Timeout time.Duration

	// Prober checks reachability. Defaults to TCPProber.
	Prober Prober
}

// Status reports whether the server is up and, if it is, its uptime.
type Status struct {
	dialer connector.Dialer
	server connector.HostProfile
	cfg    StatusConfig
	logger *slog.Logger
}

// NewStatus creates the status action.
func NewStatus(d connector.Dialer, server connector.HostProfile, cfg StatusConfig, logger *slog.Logger) *Status {
	if cfg.Command == "" {
		cfg.Command = DefaultStatusCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultStatusTimeout
	}
	if cfg.Prober == nil {
		cfg.Prober = TCPProber{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Status{dialer: d, server: server, cfg: cfg, logger: logger}
}

// Name returns the action identifier.
func (s *Status) Name() string {
	return NameStatus
}

// Timeout returns the budget for the whole check.
func (s *Status) Timeout() time.Duration {
	return s.cfg.Timeout
}

// Run probes the server and collects its uptime. The check runs on its own
// goroutine; when the timeout expires Run returns ErrTimedOut at once and
// whatever the goroutine produces later is dropped.
func (s *Status) Run(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := s.check(ctx)
		done <- outcome{r, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimedOut
		}
		return o.result, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimedOut
		}
		return nil, ctx.Err()
	}
}

func (s *Status) check(ctx context.Context) (*Result, error) {
	addr := s.server.Addr()

	if err := s.cfg.Prober.Probe(ctx, addr); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Debug("server unreachable", "addr", addr, "error", err)
		return &Result{Message: "offline", Report: &Report{}}, nil
	}

	report := &Report{Online: true}

	result, err := runRemote(ctx, s.dialer, s.server, s.cfg.Command)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	switch {
	case err != nil:
		s.logger.Warn("server reachable but status command failed", "server", s.server.Name, "error", err)
	case result.ExitCode != 0:
		s.logger.Warn("status command exited unsuccessfully",
			"server", s.server.Name,
			"exit_code", result.ExitCode,
			"stderr", strings.TrimSpace(result.Stderr),
		)
	default:
		report.Details = strings.TrimSpace(result.Stdout)
		if up, ok := ParseUptime(report.Details); ok {
			report.Uptime = &up
		}
	}

	msg := "online"
	if report.Degraded() {
		msg = "online, details unavailable"
	}
	return &Result{Message: msg, Report: report}, nil
}
