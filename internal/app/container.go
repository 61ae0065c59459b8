// Package app wires the bot's components from a loaded configuration.
package app

import (
	"context"
	"log/slog"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/action"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/config"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector/local"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector/ssh"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/debounce"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/dispatch"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/health"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/telegram"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/workpool"
)

// Container owns the configuration and the services built from it.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string

	Dialer  connector.Dialer
	Actions *action.Registry
	Pool    *workpool.Pool

	prober action.Prober
}

// Option configures the container.
type Option func(*Container)

// WithDialer replaces the dialer used to reach the router and server.
func WithDialer(d connector.Dialer) Option {
	return func(c *Container) {
		c.Dialer = d
	}
}

// WithProber replaces the reachability check used by the status action.
func WithProber(p action.Prober) Option {
	return func(c *Container) {
		c.prober = p
	}
}

// New builds the actions and worker pool for cfg.
func New(cfg *config.Config, logger *slog.Logger, version string, opts ...Option) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Version: version,
		Pool:    workpool.New(cfg.Workers),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.Dialer == nil {
		sshOpts := []ssh.Option{ssh.WithLogger(logger)}
		if cfg.SSH.KnownHosts != "" {
			sshOpts = append(sshOpts, ssh.WithKnownHosts(cfg.SSH.KnownHosts))
		} else {
			logger.Warn("SSH host keys are not verified, set ssh.known_hosts to pin them")
		}
		c.Dialer = local.NewDialer(ssh.NewDialer(sshOpts...))
	}

	c.Actions = action.NewRegistry(
		action.NewWake(c.Dialer, cfg.RouterProfile(), action.WakeConfig{
			MAC:       cfg.Wake.MAC,
			Interface: cfg.Wake.Interface,
			Command:   cfg.Wake.Command,
		}, logger),
		action.NewShutdown(c.Dialer, cfg.ServerProfile(), cfg.Shutdown.Command, logger),
		action.NewStatus(c.Dialer, cfg.ServerProfile(), action.StatusConfig{
			Command: cfg.Status.Command,
			Timeout: cfg.StatusTimeout(),
			Prober:  c.prober,
		}, logger),
	)

	return c
}

// Dispatcher creates the dispatcher rendering through p.
func (c *Container) Dispatcher(p dispatch.Presenter) *dispatch.Dispatcher {
	return dispatch.New(
		c.Config.AllowSet(),
		debounce.New(c.Config.DebounceWindow()),
		c.Pool,
		c.Actions,
		p,
		dispatch.WithAckUnauthorized(c.Config.Auth.AckUnauthorized),
		dispatch.WithLogger(c.Logger),
	)
}

// Serve runs the bot on api and, when http.port is set, the health
// endpoint, until ctx is cancelled.
func (c *Container) Serve(ctx context.Context, api telegram.API) error {
	bot := telegram.New(api,
		telegram.WithPollTimeout(c.Config.Telegram.PollTimeout),
		telegram.WithLogger(c.Logger),
	)

	if c.Config.HTTP.Port > 0 {
		hs := health.NewServer(c.Config.HTTP.Port, c.Version, c.Logger)
		if err := hs.Start(); err != nil {
			return err
		}

		defer func() {
			if err := hs.Shutdown(context.Background()); err != nil {
				c.Logger.Error("HTTP server shutdown error", "error", err)
			} else {
				c.Logger.Info("HTTP server stopped")
			}
		}()
	}

	c.Logger.Info("bot started",
		"allowed_users", c.Config.AllowSet().Len(),
		"router", c.Config.RouterProfile().String(),
		"server", c.Config.ServerProfile().String(),
	)
	return bot.Run(ctx, c.Dispatcher(bot))
}

// Run executes one registered action directly.
func (c *Container) Run(ctx context.Context, name string) (*action.Result, error) {
	a, ok := c.Actions.Get(name)
	if !ok {
		return nil, &UnknownActionError{Name: name, Known: c.Actions.Names()}
	}

	return action.Execute(ctx, c.Pool, a)
}
