// Package main is the entrypoint for the wolbot CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/action"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/app"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/config"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/output"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/telegram"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath string
	logLevel   string
	debug      bool
	noColor    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wolbot",
	Short: "wolbot - Telegram remote power control for a home server",
	Long: `wolbot lets a fixed set of Telegram users power a home server on
(Wake-on-LAN through the router), power it off and check whether it is up.
Both machines are reached over SSH.

Run "wolbot serve" for the bot, or use the wake, status and shutdown
commands directly from a shell.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./wolbot.yaml or /etc/wolbot/wolbot.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARNING, ERROR)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(wakeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration and installs the default logger.
// fallbackLevel is used when neither --log-level nor --debug is given
// and is empty for the bot, which then follows log.level.
func loadConfig(fallbackLevel string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	switch {
	case debug:
		level = LOG_LEVEL_DEBUG
	case logLevel != "":
		level = strings.ToUpper(logLevel)
	case fallbackLevel != "":
		level = fallbackLevel
	}
	initLogger(level)
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// serveCmd runs the Telegram bot
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Long: `Start long polling for Telegram updates and serve the health endpoint
on http.port (0 disables it). Stops cleanly on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}
	if err := cfg.CheckKeyFiles(); err != nil {
		return err
	}

	logger := slog.Default()
	logger.Info("wolbot", "version", version)

	gin.SetMode(gin.ReleaseMode)

	api, err := telegram.Connect(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	logger.Info("authorized on Telegram", "bot", api.Self.UserName)

	ctx, cancel := signalContext()
	defer cancel()

	c := app.New(cfg, logger, version)
	if err := c.Serve(ctx, api); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

var wakeCmd = &cobra.Command{
	Use:   "wake",
	Short: "Send the magic packet from the router",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(action.NameWake)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(action.NameStatus)
	},
}

var confirmShutdown bool

var shutdownCmd = &cobra.Command{
	Use:   "shutdown --yes",
	Short: "Power the server off",
	Long: `Power the server off over SSH. This needs --yes, the shell
equivalent of the bot's confirmation prompt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !confirmShutdown {
			return errors.New("refusing to shut down without --yes")
		}
		return runAction(action.NameShutdown)
	},
}

func init() {
	shutdownCmd.Flags().BoolVarP(&confirmShutdown, "yes", "y", false, "Confirm the shutdown")
}

// runAction executes one action and prints the result.
func runAction(name string) error {
	cfg, err := loadConfig(LOG_LEVEL_WARNING)
	if err != nil {
		return err
	}

	out := output.New(os.Stdout)
	out.SetColor(!noColor)
	out.SetDebug(debug)

	ctx, cancel := signalContext()
	defer cancel()

	c := app.New(cfg, nil, version)

	target := cfg.ServerProfile()
	if name == action.NameWake {
		target = cfg.RouterProfile()
	}
	out.ActionStart(name, target.String())

	start := time.Now()
	result, err := c.Run(ctx, name)
	elapsed := time.Since(start)

	if err != nil {
		status := output.StatusFailed
		if errors.Is(err, action.ErrTimedOut) {
			status = output.StatusTimeout
		}
		out.ActionResult(name, status, describe(err), elapsed)
		return fmt.Errorf("%s failed", name)
	}

	status := output.StatusOK
	if result.Report != nil && !result.Report.Online {
		status = output.StatusOffline
	}
	out.ActionResult(name, status, result.Message, elapsed)
	out.Data(result.Data)
	out.Report(result.Report)
	return nil
}

// describe turns remote errors into one-line operator hints.
func describe(err error) string {
	var connErr *connector.ConnectError
	var authErr *connector.AuthError
	var execErr *connector.ExecError
	switch {
	case errors.As(err, &authErr):
		return fmt.Sprintf("authentication failed: %v (check %s key and user)", authErr.Err, authErr.Profile)
	case errors.As(err, &connErr):
		return fmt.Sprintf("cannot reach %s at %s: %v", connErr.Profile, connErr.Addr, connErr.Err)
	case errors.As(err, &execErr):
		return execErr.Error()
	default:
		return err.Error()
	}
}

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	Long: `Load the configuration from file, .env and environment, validate
it and print the result as YAML. The bot token is redacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(LOG_LEVEL_WARNING)
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg.Redacted())
	},
}
