package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sensorlog/sensorlog/agent/internal/timestamp"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultFlushInterval     = 30 * time.Second
	DefaultSampleInterval    = 10 * time.Second
	DefaultTransportTimeout  = 10 * time.Second
	DefaultConnectTimeout    = 10 * time.Second
	DefaultProbeTimeout      = 2 * time.Second
	DefaultTimestampField    = "timestamp"
	DefaultAPIKeyHeader      = "X-API-Key"
	DefaultSensorScale       = 1.0
	DefaultTimestampTimezone = "UTC"
)

// Config is the top-level agent configuration. Fields map 1:1 to
// config.example.yaml; the collector's `server:` section is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// CollectorEndpoint is the full URL batches are POSTed to.
	CollectorEndpoint string `yaml:"collector_endpoint"`

	// DeviceName identifies this device on every entry.
	DeviceName string `yaml:"device_name"`

	// ExperimentID groups this run's readings on every entry.
	ExperimentID string `yaml:"experiment_id"`

	// FlushInterval controls how often the buffer is shipped to the collector.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// SampleInterval controls how often each sensor is read.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// LogLevel is one of: debug | info | warn | error. Reloaded on change.
	LogLevel string `yaml:"log_level"`

	// AdminAddr is the listen address of the /metrics and operator endpoints.
	// Empty disables the admin server.
	AdminAddr string `yaml:"admin_addr"`

	Timestamp     TimestampConfig `yaml:"timestamp"`
	Payload       PayloadConfig   `yaml:"payload"`
	Transport     TransportConfig `yaml:"transport"`
	Link          LinkConfig      `yaml:"link"`
	CollectorAuth AuthConfig      `yaml:"collector_auth"`
	CollectorTLS  TLSConfig       `yaml:"collector_tls"`

	// Sensors is the list of measurement channels sampled on this device.
	Sensors []Sensor `yaml:"sensors"`
}

// TimestampConfig selects how entry timestamps are produced.
type TimestampConfig struct {
	// Format is one of: monotonic | calendar | calendar_ms.
	Format string `yaml:"format"`

	// Timezone is an IANA zone name used for calendar formats.
	Timezone string `yaml:"timezone"`
}

// Kind returns the parsed timestamp format.
func (t TimestampConfig) Kind() (timestamp.Kind, error) {
	return timestamp.ParseKind(t.Format)
}

// Location resolves Timezone.
func (t TimestampConfig) Location() (*time.Location, error) {
	return time.LoadLocation(t.Timezone)
}

// PayloadConfig controls the batch encoding.
type PayloadConfig struct {
	// TimestampField is the JSON key of the timestamp: timestamp | recorded_at.
	TimestampField string `yaml:"timestamp_field"`

	// Compression is one of: none | gzip | zstd.
	Compression string `yaml:"compression"`
}

// TransportConfig controls batch delivery.
type TransportConfig struct {
	// Timeout bounds one POST round trip.
	Timeout time.Duration `yaml:"timeout"`

	// Require2xx treats any non-2xx response as a failed delivery. When false
	// (the default) any response at all counts as delivered.
	Require2xx bool `yaml:"require_2xx"`
}

// LinkConfig controls the network reachability check.
type LinkConfig struct {
	// ConnectTimeout is how long startup waits for the collector to become
	// reachable before continuing anyway. Zero skips the wait.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ProbeTimeout bounds the per-flush reachability probe. Zero disables
	// probing and every flush attempts delivery.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// Sensor describes one measurement channel.
type Sensor struct {
	// Name is the sensor_name reported on every entry.
	Name string `yaml:"name"`

	// Type is one of: prometheus | file.
	Type string `yaml:"type"`

	// Endpoint is the metrics URL read by prometheus sensors.
	Endpoint string `yaml:"endpoint"`

	// Metric is the metric family summed by prometheus sensors.
	Metric string `yaml:"metric"`

	// Path is the file read by file sensors.
	Path string `yaml:"path"`

	// Scale multiplies every raw value (e.g. 0.001 for millidegrees).
	Scale float64 `yaml:"scale"`

	// Auth configures how the agent authenticates to a prometheus endpoint.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies an HTTP authentication mode.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields - used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header carrying the API key when Mode == "apikey".
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured API key header, or X-API-Key.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAPIKeyHeader
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ParseLevel maps a log_level string to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
	return l, nil
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	for i := range cfg.Agent.Sensors {
		if cfg.Agent.Sensors[i].Scale == 0 {
			cfg.Agent.Sensors[i].Scale = DefaultSensorScale
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			FlushInterval:  DefaultFlushInterval,
			SampleInterval: DefaultSampleInterval,
			LogLevel:       "info",
			Timestamp: TimestampConfig{
				Format:   timestamp.NameCalendarMillis,
				Timezone: DefaultTimestampTimezone,
			},
			Payload: PayloadConfig{
				TimestampField: DefaultTimestampField,
				Compression:    "none",
			},
			Transport: TransportConfig{Timeout: DefaultTransportTimeout},
			Link: LinkConfig{
				ConnectTimeout: DefaultConnectTimeout,
				ProbeTimeout:   DefaultProbeTimeout,
			},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.CollectorEndpoint == "" {
		return fmt.Errorf("agent.collector_endpoint is required")
	}
	u, err := url.Parse(a.CollectorEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("agent.collector_endpoint %q must be an http(s) URL", a.CollectorEndpoint)
	}
	if a.DeviceName == "" {
		return fmt.Errorf("agent.device_name is required")
	}
	if a.ExperimentID == "" {
		return fmt.Errorf("agent.experiment_id is required")
	}
	if a.FlushInterval <= 0 {
		return fmt.Errorf("agent.flush_interval must be positive")
	}
	if a.SampleInterval <= 0 {
		return fmt.Errorf("agent.sample_interval must be positive")
	}
	if _, err := ParseLevel(a.LogLevel); err != nil {
		return fmt.Errorf("agent.%w", err)
	}
	if _, err := a.Timestamp.Kind(); err != nil {
		return fmt.Errorf("agent.timestamp.format: %w", err)
	}
	if _, err := a.Timestamp.Location(); err != nil {
		return fmt.Errorf("agent.timestamp.timezone: %w", err)
	}
	switch a.Payload.TimestampField {
	case "timestamp", "recorded_at":
	default:
		return fmt.Errorf("agent.payload.timestamp_field %q unknown: want timestamp|recorded_at", a.Payload.TimestampField)
	}
	switch strings.ToLower(a.Payload.Compression) {
	case "none", "", "gzip", "zstd":
	default:
		return fmt.Errorf("agent.payload.compression %q unknown: want none|gzip|zstd", a.Payload.Compression)
	}
	if a.Transport.Timeout <= 0 {
		return fmt.Errorf("agent.transport.timeout must be positive")
	}
	if a.Link.ConnectTimeout < 0 || a.Link.ProbeTimeout < 0 {
		return fmt.Errorf("agent.link timeouts must not be negative")
	}
	if err := validateAuth("agent.collector_auth", a.CollectorAuth); err != nil {
		return err
	}

	seen := make(map[string]bool, len(a.Sensors))
	for i, s := range a.Sensors {
		if s.Name == "" {
			return fmt.Errorf("sensors[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sensors[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
		switch s.Type {
		case "prometheus":
			if s.Endpoint == "" || s.Metric == "" {
				return fmt.Errorf("sensors[%d] %q: endpoint and metric are required", i, s.Name)
			}
		case "file":
			if s.Path == "" {
				return fmt.Errorf("sensors[%d] %q: path is required", i, s.Name)
			}
		default:
			return fmt.Errorf("sensors[%d] %q: unknown type %q", i, s.Name, s.Type)
		}
		if err := validateAuth(fmt.Sprintf("sensors[%d] %q: auth", i, s.Name), s.Auth); err != nil {
			return err
		}
	}
	return nil
}

func validateAuth(field string, a AuthConfig) error {
	switch a.Mode {
	case "mtls":
		if a.CertFile == "" || a.KeyFile == "" {
			return fmt.Errorf("%s: mtls requires cert_file and key_file", field)
		}
	case "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("%s: unknown auth mode %q", field, a.Mode)
	}
	return nil
}
