// Package config loads the bot configuration from an optional YAML file,
// an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/FriedCerebrum/WakeOnLanBot/internal/auth"
	"github.com/FriedCerebrum/WakeOnLanBot/internal/connector"
)

const redacted = "********"

// Config is the complete bot configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Wake     WakeConfig     `mapstructure:"wake" yaml:"wake"`
	Router   HostConfig     `mapstructure:"router" yaml:"router"`
	Server   HostConfig     `mapstructure:"server" yaml:"server"`
	SSH      SSHConfig      `mapstructure:"ssh" yaml:"ssh"`
	Status   StatusConfig   `mapstructure:"status" yaml:"status"`
	Shutdown ShutdownConfig `mapstructure:"shutdown" yaml:"shutdown"`
	Debounce DebounceConfig `mapstructure:"debounce" yaml:"debounce"`
	Workers  int            `mapstructure:"workers" yaml:"workers" validate:"gte=1,lte=64"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// TelegramConfig holds the bot token and long-poll settings.
type TelegramConfig struct {
	Token       string `mapstructure:"token" yaml:"token"`
	PollTimeout int    `mapstructure:"poll_timeout" yaml:"poll_timeout" validate:"gte=0,lte=60"`
}

// AuthConfig lists who may use the bot.
type AuthConfig struct {
	// AllowedUsers is filled from auth.allowed_users, which may be a YAML
	// list or a comma separated string.
	AllowedUsers    []int64 `mapstructure:"-" yaml:"allowed_users" validate:"required,min=1,dive,ne=0"`
	AckUnauthorized bool    `mapstructure:"ack_unauthorized" yaml:"ack_unauthorized"`
}

// WakeConfig describes the magic packet sent from the router.
type WakeConfig struct {
	MAC       string `mapstructure:"mac" yaml:"mac" validate:"required,strictmac"`
	Interface string `mapstructure:"interface" yaml:"interface" validate:"required,ifname"`
	Command   string `mapstructure:"command" yaml:"command" validate:"required"`
}

// HostConfig is the SSH endpoint of the router or the server. A router
// host of "local" runs commands on this machine.
type HostConfig struct {
	Host    string `mapstructure:"host" yaml:"host" validate:"required"`
	Port    int    `mapstructure:"port" yaml:"port" validate:"gte=1,lte=65535"`
	User    string `mapstructure:"user" yaml:"user" validate:"required"`
	KeyPath string `mapstructure:"key_path" yaml:"key_path" validate:"required"`
}

// SSHConfig holds settings shared by both SSH hosts.
type SSHConfig struct {
	Timeout    int    `mapstructure:"timeout" yaml:"timeout" validate:"gte=1"`
	KnownHosts string `mapstructure:"known_hosts" yaml:"known_hosts"`
}

// StatusConfig controls the status check.
type StatusConfig struct {
	Timeout int    `mapstructure:"timeout" yaml:"timeout" validate:"gte=1"`
	Command string `mapstructure:"command" yaml:"command" validate:"required"`
}

// ShutdownConfig holds the command that powers the server off.
type ShutdownConfig struct {
	Command string `mapstructure:"command" yaml:"command" validate:"required"`
}

// DebounceConfig sets the per-user window between actions, in seconds.
type DebounceConfig struct {
	Window int `mapstructure:"window" yaml:"window" validate:"gte=1"`
}

// HTTPConfig configures the health endpoint. Port 0 disables it.
type HTTPConfig struct {
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=DEBUG INFO WARN WARNING ERROR"`
}

// Error is returned for any configuration problem. It is fatal at startup.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// envBindings maps config keys to the environment names of the deployment.
var envBindings = map[string]string{
	"telegram.token":        "BOT_TOKEN",
	"telegram.poll_timeout": "TELEGRAM_POLL_TIMEOUT",
	"auth.allowed_users":    "ALLOWED_USERS",
	"auth.ack_unauthorized": "ACK_UNAUTHORIZED",
	"wake.mac":              "SERVER_MAC",
	"wake.interface":        "WOL_INTERFACE",
	"wake.command":          "WOL_COMMAND",
	"router.host":           "ROUTER_SSH_HOST",
	"router.port":           "ROUTER_SSH_PORT",
	"router.user":           "ROUTER_SSH_USER",
	"router.key_path":       "ROUTER_SSH_KEY_PATH",
	"server.host":           "SERVER_SSH_HOST",
	"server.port":           "SERVER_SSH_PORT",
	"server.user":           "SERVER_SSH_USER",
	"server.key_path":       "SERVER_SSH_KEY_PATH",
	"ssh.timeout":           "SSH_TIMEOUT",
	"ssh.known_hosts":       "SSH_KNOWN_HOSTS",
	"status.timeout":        "NC_TIMEOUT",
	"status.command":        "STATUS_COMMAND",
	"shutdown.command":      "SHUTDOWN_COMMAND",
	"debounce.window":       "DEBOUNCE_SECONDS",
	"workers":               "WORKERS",
	"http.port":             "HTTP_PORT",
	"log.level":             "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.poll_timeout", 10)
	v.SetDefault("auth.ack_unauthorized", false)
	v.SetDefault("wake.interface", "br-lan")
	v.SetDefault("wake.command", "etherwake")
	v.SetDefault("router.host", "localhost")
	v.SetDefault("router.port", 2223)
	v.SetDefault("router.user", "root")
	v.SetDefault("router.key_path", "/app/keys/id_router_vps_rsa_legacy")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 2222)
	v.SetDefault("server.user", "friedcerebrum")
	v.SetDefault("server.key_path", "/app/keys/id_rsa")
	v.SetDefault("ssh.timeout", 15)
	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("status.timeout", 5)
	v.SetDefault("status.command", "uptime")
	v.SetDefault("shutdown.command", "sudo /sbin/shutdown -h now")
	v.SetDefault("debounce.window", 2)
	v.SetDefault("workers", 4)
	v.SetDefault("http.port", 8080)
	v.SetDefault("log.level", "INFO")
}

// Load reads the configuration. With an empty path, wolbot.yaml is looked
// up in the working directory and /etc/wolbot and may be absent. A .env
// file in the working directory is loaded first and never overrides
// variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Op: "read", Err: err}
		}
	} else {
		v.SetConfigName("wolbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wolbot")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, &Error{Op: "read", Err: err}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Op: "decode", Err: err}
	}

	ids, err := parseIdentities(v.Get("auth.allowed_users"))
	if err != nil {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("auth.allowed_users: %w", err)}
	}
	cfg.Auth.AllowedUsers = ids
	cfg.Log.Level = strings.ToUpper(strings.TrimSpace(cfg.Log.Level))
	cfg.Wake.MAC = strings.TrimSpace(cfg.Wake.MAC)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseIdentities accepts a comma separated string or a list of numbers
// or numeric strings. Blank entries are skipped.
func parseIdentities(raw any) ([]int64, error) {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	case int:
		return []int64{int64(val)}, nil
	case int64:
		return []int64{val}, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}

	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", p)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return &Error{Op: "validate", Err: err}
	}
	// The status probe and shutdown target the server over the network.
	if c.Server.Host == connector.LocalHost {
		return &Error{Op: "validate", Err: errors.New("server.host: \"local\" is only supported for the router")}
	}
	return nil
}

// RequireToken reports a missing bot token. Only the bot needs one.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return &Error{Op: "validate", Err: errors.New("telegram.token is required")}
	}
	return nil
}

// CheckKeyFiles verifies that the private keys of SSH hosts exist and are
// regular files. Local hosts need no key.
func (c *Config) CheckKeyFiles() error {
	var missing []string
	for _, h := range []HostConfig{c.Router, c.Server} {
		if h.Host == connector.LocalHost {
			continue
		}
		path := h.KeyPath
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		return &Error{Op: "keys", Err: fmt.Errorf("ssh keys not found: %s", strings.Join(missing, ", "))}
	}
	return nil
}

// AllowSet builds the authorizer from the allowed user list.
func (c *Config) AllowSet() *auth.AllowSet {
	ids := make([]auth.Identity, len(c.Auth.AllowedUsers))
	for i, id := range c.Auth.AllowedUsers {
		ids[i] = auth.Identity(id)
	}
	return auth.NewAllowSet(ids...)
}

// RouterProfile returns the SSH profile of the router.
func (c *Config) RouterProfile() connector.HostProfile {
	return c.profile("router", c.Router)
}

// ServerProfile returns the SSH profile of the server.
func (c *Config) ServerProfile() connector.HostProfile {
	return c.profile("server", c.Server)
}

func (c *Config) profile(name string, h HostConfig) connector.HostProfile {
	return connector.HostProfile{
		Name:           name,
		Host:           h.Host,
		Port:           h.Port,
		User:           h.User,
		KeyPath:        h.KeyPath,
		ConnectTimeout: seconds(c.SSH.Timeout),
	}
}

// StatusTimeout bounds the whole status check.
func (c *Config) StatusTimeout() time.Duration {
	return seconds(c.Status.Timeout)
}

// DebounceWindow is the minimum spacing between accepted presses.
func (c *Config) DebounceWindow() time.Duration {
	return seconds(c.Debounce.Window)
}

// PollTimeout is the long polling timeout for Telegram updates.
func (c *Config) PollTimeout() time.Duration {
	return seconds(c.Telegram.PollTimeout)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.Auth.AllowedUsers = append([]int64(nil), c.Auth.AllowedUsers...)
	if out.Telegram.Token != "" {
		out.Telegram.Token = redacted
	}
	return out
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
