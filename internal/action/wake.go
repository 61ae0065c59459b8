package action

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/macaddr"
)

// Wake defaults.
const (
	DefaultWakeCommand   = "etherwake"
	DefaultWakeInterface = "br-lan"
)

// WakeConfig describes the magic packet to send.
type WakeConfig struct {
	// MAC is the target's hardware address.
	MAC string

	// Interface is the router interface facing the target.
	Interface string

	// Command is the magic packet tool on the router.
	Command string
}

// Wake sends a magic packet to the server from the router.
type Wake struct {
	dialer connector.Dialer
	router connector.HostProfile
	cfg    WakeConfig
	logger *slog.Logger
}

// NewWake creates the wake action.
func NewWake(d connector.Dialer, router connector.HostProfile, cfg WakeConfig, logger *slog.Logger) *Wake {
	if cfg.Command == "" {
		cfg.Command = DefaultWakeCommand
	}
	if cfg.Interface == "" {
		cfg.Interface = DefaultWakeInterface
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Wake{dialer: d, router: router, cfg: cfg, logger: logger}
}

// Name returns the action identifier.
func (w *Wake) Name() string {
	return NameWake
}

// Command returns the remote command line. The MAC is reduced to hex
// digits and separators before it reaches the shell.
func (w *Wake) Command() string {
	return fmt.Sprintf("%s -i %s %s", w.cfg.Command, w.cfg.Interface, macaddr.Sanitize(w.cfg.MAC))
}

// Run executes the wake command on the router.
func (w *Wake) Run(ctx context.Context) (*Result, error) {
	cmd := w.Command()
	w.logger.Info("sending magic packet", "router", w.router.String(), "interface", w.cfg.Interface)

	result, err := runRemote(ctx, w.dialer, w.router, cmd)
	if err != nil {
		return nil, err
	}

	if result.ExitCode != 0 {
		return nil, &connector.ExecError{
			Cmd:      cmd,
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(result.Stderr),
		}
	}

	return DoneWithData("magic packet sent", map[string]any{
		"mac":       macaddr.Sanitize(w.cfg.MAC),
		"interface": w.cfg.Interface,
	}), nil
}
