package action

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
)

// DefaultShutdownCommand powers the server off immediately.
const DefaultShutdownCommand = "sudo /sbin/shutdown -h now"

// Shutdown powers the server off over SSH.
type Shutdown struct {
	dialer  connector.Dialer
	server  connector.HostProfile
	command string
	logger  *slog.Logger
}

// NewShutdown creates the shutdown action. An empty command selects
// DefaultShutdownCommand.
func NewShutdown(d connector.Dialer, server connector.HostProfile, command string, logger *slog.Logger) *Shutdown {
	if command == "" {
		command = DefaultShutdownCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Shutdown{dialer: d, server: server, command: command, logger: logger}
}

// Name returns the action identifier.
func (s *Shutdown) Name() string {
	return NameShutdown
}

// Run executes the shutdown command on the server.
func (s *Shutdown) Run(ctx context.Context) (*Result, error) {
	s.logger.Info("shutting down server", "server", s.server.String())

	result, err := runRemote(ctx, s.dialer, s.server, s.command)
	if err != nil {
		return nil, err
	}

	switch result.ExitCode {
	case 0:
	case connector.ExitUnknown:
		// The host tore the link down before reporting an exit status.
		s.logger.Debug("shutdown ended without exit status", "server", s.server.Name)
	default:
		return nil, &connector.ExecError{
			Cmd:      s.command,
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(result.Stderr),
		}
	}

	return DoneWithData("shutdown initiated", map[string]any{
		"exit_code": result.ExitCode,
	}), nil
}
