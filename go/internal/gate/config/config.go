// Package config loads kiosk configuration from an optional YAML file and
// GATE_* environment variables. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Transport kinds
const (
	TransportPoll   = "poll"
	TransportStream = "stream"
	TransportNATS   = "nats"
)

// Config represents the complete kiosk configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	NATS      NATSConfig      `yaml:"nats"`
	Gate      GateConfig      `yaml:"gate"`
	Display   DisplayConfig   `yaml:"display"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig points at the gate server
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// TransportConfig selects and tunes the transport
type TransportConfig struct {
	Kind           string        `yaml:"kind"`
	PollInterval   time.Duration `yaml:"-"`
	RequestTimeout time.Duration `yaml:"-"`
	StreamRetry    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PollIntervalRaw   string `yaml:"poll_interval"`
	RequestTimeoutRaw string `yaml:"request_timeout"`
	StreamRetryRaw    string `yaml:"stream_retry"`
}

// NATSConfig holds the NATS transport settings
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Subject       string        `yaml:"subject"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"-"`

	ReconnectWaitRaw string `yaml:"reconnect_wait"`
}

// GateConfig holds the state machine timings and particle layout
type GateConfig struct {
	AutoClose        time.Duration `yaml:"-"`
	ResetDelay       time.Duration `yaml:"-"`
	ParticleStagger  time.Duration `yaml:"-"`
	ParticleLifetime time.Duration `yaml:"-"`
	ParticleCount    int           `yaml:"particle_count"`
	AnchorX          float64       `yaml:"anchor_x"`
	AnchorY          float64       `yaml:"anchor_y"`
	Spread           float64       `yaml:"spread"`

	AutoCloseRaw        string `yaml:"auto_close"`
	ResetDelayRaw       string `yaml:"reset_delay"`
	ParticleStaggerRaw  string `yaml:"particle_stagger"`
	ParticleLifetimeRaw string `yaml:"particle_lifetime"`
}

// DisplayConfig holds the display service settings
type DisplayConfig struct {
	Enabled        bool     `yaml:"enabled"`
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{BaseURL: "http://localhost:8000"},
		Transport: TransportConfig{
			Kind:           TransportPoll,
			PollInterval:   1000 * time.Millisecond,
			RequestTimeout: 5 * time.Second,
			StreamRetry:    3 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Subject:       "gate.events",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Gate: GateConfig{
			AutoClose:        8000 * time.Millisecond,
			ResetDelay:       1200 * time.Millisecond,
			ParticleStagger:  100 * time.Millisecond,
			ParticleLifetime: 800 * time.Millisecond,
			ParticleCount:    12,
			Spread:           200,
		},
		Display: DisplayConfig{
			Enabled:        true,
			ListenAddr:     ":8090",
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
// Environment variables in the format ${VAR_NAME} are expanded in the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}

		if err := parseDurations(cfg); err != nil {
			return nil, fmt.Errorf("parsing durations: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"transport.poll_interval", cfg.Transport.PollIntervalRaw, &cfg.Transport.PollInterval},
		{"transport.request_timeout", cfg.Transport.RequestTimeoutRaw, &cfg.Transport.RequestTimeout},
		{"transport.stream_retry", cfg.Transport.StreamRetryRaw, &cfg.Transport.StreamRetry},
		{"nats.reconnect_wait", cfg.NATS.ReconnectWaitRaw, &cfg.NATS.ReconnectWait},
		{"gate.auto_close", cfg.Gate.AutoCloseRaw, &cfg.Gate.AutoClose},
		{"gate.reset_delay", cfg.Gate.ResetDelayRaw, &cfg.Gate.ResetDelay},
		{"gate.particle_stagger", cfg.Gate.ParticleStaggerRaw, &cfg.Gate.ParticleStagger},
		{"gate.particle_lifetime", cfg.Gate.ParticleLifetimeRaw, &cfg.Gate.ParticleLifetime},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.target = d
	}
	return nil
}

// ApplyEnv overrides fields from GATE_* environment variables
func (c *Config) ApplyEnv() error {
	c.Server.BaseURL = getEnv("GATE_SERVER_URL", c.Server.BaseURL)
	c.Transport.Kind = getEnv("GATE_TRANSPORT", c.Transport.Kind)
	c.NATS.URL = getEnv("GATE_NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("GATE_NATS_SUBJECT", c.NATS.Subject)
	c.Display.ListenAddr = getEnv("GATE_LISTEN_ADDR", c.Display.ListenAddr)
	c.Logging.Level = getEnv("GATE_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("GATE_LOG_FORMAT", c.Logging.Format)
	c.Gate.ParticleCount = getEnvAsInt("GATE_PARTICLE_COUNT", c.Gate.ParticleCount)

	if origins := os.Getenv("GATE_ALLOWED_ORIGINS"); origins != "" {
		c.Display.AllowedOrigins = splitList(origins)
	}

	var err error
	if c.Display.Enabled, err = getEnvAsBool("GATE_DISPLAY_ENABLED", c.Display.Enabled); err != nil {
		return err
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"GATE_POLL_INTERVAL", &c.Transport.PollInterval},
		{"GATE_REQUEST_TIMEOUT", &c.Transport.RequestTimeout},
		{"GATE_STREAM_RETRY", &c.Transport.StreamRetry},
		{"GATE_AUTO_CLOSE", &c.Gate.AutoClose},
		{"GATE_RESET_DELAY", &c.Gate.ResetDelay},
	}
	for _, d := range durations {
		if *d.target, err = getEnvAsDuration(d.key, *d.target); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case TransportPoll, TransportStream:
		if err := validateBaseURL(c.Server.BaseURL); err != nil {
			return err
		}
	case TransportNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("%w: nats.url is required for the nats transport", ErrInvalidConfig)
		}
		if c.NATS.Subject == "" {
			return fmt.Errorf("%w: nats.subject is required for the nats transport", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: transport.kind must be poll, stream or nats, got %q", ErrInvalidConfig, c.Transport.Kind)
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"transport.poll_interval", c.Transport.PollInterval},
		{"transport.stream_retry", c.Transport.StreamRetry},
		{"gate.auto_close", c.Gate.AutoClose},
		{"gate.reset_delay", c.Gate.ResetDelay},
		{"gate.particle_stagger", c.Gate.ParticleStagger},
		{"gate.particle_lifetime", c.Gate.ParticleLifetime},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, p.name)
		}
	}

	if c.Gate.ParticleCount < 0 {
		return fmt.Errorf("%w: gate.particle_count must not be negative", ErrInvalidConfig)
	}
	if c.Gate.Spread < 0 {
		return fmt.Errorf("%w: gate.spread must not be negative", ErrInvalidConfig)
	}

	if c.Display.Enabled && c.Display.ListenAddr == "" {
		return fmt.Errorf("%w: display.listen_addr is required when the display is enabled", ErrInvalidConfig)
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalidConfig, err)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: logging.format must be console or json, got %q", ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: server.base_url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: server.base_url: %v", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server.base_url must be an http(s) URL, got %q", ErrInvalidConfig, raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("parsing %s %q: %w", key, value, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("parsing %s %q: %w", key, value, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
