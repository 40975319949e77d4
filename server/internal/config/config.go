package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the collector configuration.
const (
	DefaultHTTPPort     = 8080
	DefaultSeriesTTL    = 30 * time.Minute
	DefaultHistoryLen   = 120
	DefaultAuthHeader   = "X-API-Key"
	DefaultRuleCooldown = 15 * time.Minute
)

// Config holds the collector configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all collector-side settings.
type ServerConfig struct {
	// HTTPPort serves ingest, the REST API and the WebSocket hub.
	HTTPPort int `yaml:"http_port"`

	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls how ingest clients authenticate.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv names the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`

	// Header carries the key. A bearer token in Authorization is also
	// accepted. Defaults to X-API-Key.
	Header string `yaml:"header"`
}

// Key returns the expected API key from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns Header or the default.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeader
}

// StoreConfig controls in-memory series retention.
type StoreConfig struct {
	// TTL evicts a series that has received nothing for this long.
	TTL time.Duration `yaml:"ttl"`

	// History is how many recent readings each series keeps. It is also the
	// window duplicate detection looks back over.
	History int `yaml:"history"`
}

// AlertsConfig holds threshold rules and webhook targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule fires when a stored reading satisfies Condition.
type AlertRule struct {
	// Name identifies the rule in alerts and webhook payloads.
	Name string `yaml:"name"`

	// Sensor restricts the rule to one sensor_name. Empty matches every sensor.
	Sensor string `yaml:"sensor"`

	// Condition has the form "value <op> <number>", op one of > >= < <= == !=.
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info. Defaults to warning.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for the same series. Defaults to 15m.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig is one alert delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Store: StoreConfig{
				TTL:     DefaultSeriesTTL,
				History: DefaultHistoryLen,
			},
		},
	}
}

func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Store.TTL <= 0 {
		return fmt.Errorf("server.store.ttl must be positive")
	}
	if s.Store.History < 1 {
		return fmt.Errorf("server.store.history must be at least 1")
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if _, _, err := ParseCondition(r.Condition); err != nil {
			return fmt.Errorf("server.alerts.rules[%d] %q: %w", i, r.Name, err)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}

// ParseCondition splits "value > 30" into its operator and threshold.
func ParseCondition(cond string) (op string, threshold float64, err error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return "", 0, fmt.Errorf("condition %q: want \"value <op> <number>\"", cond)
	}
	if parts[0] != "value" {
		return "", 0, fmt.Errorf("condition %q: unknown field %q", cond, parts[0])
	}
	switch parts[1] {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return "", 0, fmt.Errorf("condition %q: unknown operator %q", cond, parts[1])
	}
	threshold, err = strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return "", 0, fmt.Errorf("condition %q: threshold: %w", cond, err)
	}
	return parts[1], threshold, nil
}
