// Package config provides Viper-based configuration loading for the dice server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is "stderr", "stdout", or a file path.
	Output string `mapstructure:"output"`
}

// DiceConfig selects the randomness source used for every roll.
type DiceConfig struct {
	// Source is "crypto" (default) or "seeded".
	Source string `mapstructure:"source"`
	// Seed initialises the seeded source; ignored for crypto.
	Seed uint64 `mapstructure:"seed"`
}

// PresetsConfig points at the optional roll presets file.
type PresetsConfig struct {
	// Path is a YAML presets file; empty disables presets.
	Path string `mapstructure:"path"`
}

// HTTPConfig holds the HTTP listener settings for the Slack endpoint.
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// SlackConfig holds slash-command settings.
type SlackConfig struct {
	// SigningSecret verifies request signatures; empty disables verification.
	SigningSecret string `mapstructure:"signing_secret"`
	// MaxSkew bounds the accepted age of a signed request.
	MaxSkew time.Duration `mapstructure:"max_skew"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	// Prefix is the message prefix that triggers a roll, e.g. "!roll".
	Prefix string `mapstructure:"prefix"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	// PollTimeout is the long-poll timeout for update requests.
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// TelnetConfig holds Telnet console settings.
type TelnetConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Host is the bind address for the Telnet listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the Telnet listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for Telnet connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for Telnet connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// Width is the column count output is wrapped to; 0 disables wrapping.
	Width int `mapstructure:"width"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// DatabaseConfig holds PostgreSQL connection settings for roll history.
type DatabaseConfig struct {
	// Enabled turns roll history recording on.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// NATSConfig holds roll event publishing settings.
type NATSConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// URL is the NATS server to publish to. Ignored when Embedded is set.
	URL string `mapstructure:"url"`
	// Subject is the prefix events publish under as "<subject>.<frontend>".
	Subject string `mapstructure:"subject"`
	// Embedded runs an in-process NATS server on Host:Port.
	Embedded bool   `mapstructure:"embedded"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	// ConnectTimeout bounds server startup and the client dial.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ClientURL returns the URL clients dial: the embedded listener when
// Embedded is set, URL otherwise.
func (n NATSConfig) ClientURL() string {
	if n.Embedded {
		return fmt.Sprintf("nats://%s:%d", n.Host, n.Port)
	}
	return n.URL
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Dice     DiceConfig     `mapstructure:"dice"`
	Presets  PresetsConfig  `mapstructure:"presets"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Telnet   TelnetConfig   `mapstructure:"telnet"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
}

// Validate checks all configuration invariants. Disabled sections are not
// validated beyond their enabled flag.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, check := range []func() error{
		func() error { return validateLogging(c.Logging) },
		func() error { return validateDice(c.Dice) },
		func() error { return validateHTTP(c.HTTP, c.Slack) },
		func() error { return validateDiscord(c.Discord) },
		func() error { return validateTelegram(c.Telegram) },
		func() error { return validateTelnet(c.Telnet) },
		func() error { return validateDatabase(c.Database) },
		func() error { return validateNATS(c.NATS) },
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateDice(d DiceConfig) error {
	validSources := map[string]bool{"crypto": true, "seeded": true}
	if !validSources[d.Source] {
		return fmt.Errorf("dice.source must be one of [crypto, seeded], got %q", d.Source)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s must be 0-65535, got %d", name, port)
	}
	return nil
}

func validateHTTP(h HTTPConfig, s SlackConfig) error {
	if !h.Enabled {
		return nil
	}
	var errs []string
	if err := validatePort("http.port", h.Port); err != nil {
		errs = append(errs, err.Error())
	}
	if h.ReadTimeout < 0 || h.WriteTimeout < 0 || h.ShutdownTimeout < 0 {
		errs = append(errs, "http timeouts must not be negative")
	}
	if s.MaxSkew < 0 {
		errs = append(errs, "slack.max_skew must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDiscord(d DiscordConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Token == "" {
		errs = append(errs, "discord.token must not be empty when discord is enabled")
	}
	if strings.TrimSpace(d.Prefix) == "" {
		errs = append(errs, "discord.prefix must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTelegram(t TelegramConfig) error {
	if !t.Enabled {
		return nil
	}
	if t.Token == "" {
		return errors.New("telegram.token must not be empty when telegram is enabled")
	}
	if t.PollTimeout < 0 {
		return errors.New("telegram.poll_timeout must not be negative")
	}
	return nil
}

func validateTelnet(t TelnetConfig) error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if err := validatePort("telnet.port", t.Port); err != nil {
		errs = append(errs, err.Error())
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "telnet.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "telnet.write_timeout must not be negative")
	}
	if t.Width < 0 {
		errs = append(errs, fmt.Sprintf("telnet.width must not be negative, got %d", t.Width))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must be between 0 and database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateNATS(n NATSConfig) error {
	if !n.Enabled {
		return nil
	}
	var errs []string
	if n.Subject == "" || strings.ContainsAny(n.Subject, "*> \t") {
		errs = append(errs, fmt.Sprintf("nats.subject must be a non-empty literal subject, got %q", n.Subject))
	}
	if n.Embedded {
		if err := validatePort("nats.port", n.Port); err != nil {
			errs = append(errs, err.Error())
		}
	} else if n.URL == "" {
		errs = append(errs, "nats.url must not be empty unless nats.embedded is set")
	}
	if n.ConnectTimeout <= 0 {
		errs = append(errs, "nats.connect_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies DICE_-prefixed
// environment variable overrides, and validates the result. An empty path
// loads defaults and environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("DICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("dice.source", "crypto")
	v.SetDefault("dice.seed", 0)

	v.SetDefault("presets.path", "")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.shutdown_timeout", "5s")

	v.SetDefault("slack.signing_secret", "")
	v.SetDefault("slack.max_skew", "5m")

	v.SetDefault("discord.enabled", false)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.prefix", "!roll")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", "30s")

	v.SetDefault("telnet.enabled", false)
	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "5m")
	v.SetDefault("telnet.write_timeout", "30s")
	v.SetDefault("telnet.width", 80)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "dice")
	v.SetDefault("database.password", "dice")
	v.SetDefault("database.name", "dice")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject", "dice.rolls")
	v.SetDefault("nats.embedded", false)
	v.SetDefault("nats.host", "127.0.0.1")
	v.SetDefault("nats.port", 4222)
	v.SetDefault("nats.connect_timeout", "10s")
}
