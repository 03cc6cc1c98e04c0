package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ScopeLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	Backend    BackendConfig    `yaml:"backend"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Connection ConnectionConfig `yaml:"connection"`
	Command    CommandConfig    `yaml:"command"`
	Session    SessionConfig    `yaml:"session"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// SiteConfig contains observing-site information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// WriteQueue is the depth of the ordered persistence queue.
	WriteQueue int `yaml:"write_queue"`
}

// BackendConfig contains settings for the device discovery backend.
type BackendConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"` // seconds
}

// DiscoveryConfig contains device discovery settings.
type DiscoveryConfig struct {
	// RefreshInterval is how often the device list is re-fetched (seconds).
	// 0 disables periodic refresh; refresh then only happens on demand.
	RefreshInterval int `yaml:"refresh_interval"`

	MDNS MDNSConfig `yaml:"mdns"`

	// SampleDevices is the last-resort device list used when the backend is
	// unreachable and nothing is cached.
	SampleDevices []SampleDevice `yaml:"sample_devices"`
}

// MDNSConfig contains multicast DNS discovery settings.
type MDNSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
	Domain  string `yaml:"domain"`
	Timeout int    `yaml:"timeout"` // seconds
}

// SampleDevice is a statically configured fallback device.
type SampleDevice struct {
	Name         string `yaml:"name"`
	SerialNumber string `yaml:"serial_number"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ProductModel string `yaml:"product_model"`
}

// ConnectionConfig contains control-channel connection settings.
type ConnectionConfig struct {
	// Transport selects the control-channel implementation: "websocket" or "mqtt".
	Transport     string                    `yaml:"transport"`
	WebSocketPath string                    `yaml:"websocket_path"`
	DialTimeout   int                       `yaml:"dial_timeout"` // seconds
	Reconnect     ConnectionReconnectConfig `yaml:"reconnect"`
}

// ConnectionReconnectConfig contains reconnection backoff settings.
type ConnectionReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"` // milliseconds
	MaxDelay     int `yaml:"max_delay"`     // milliseconds
	MaxAttempts  int `yaml:"max_attempts"`
}

// CommandConfig contains command dispatch settings.
type CommandConfig struct {
	Timeouts CommandTimeoutConfig `yaml:"timeouts"`
	// Retries is how many times an idempotent command is re-sent after a
	// transport write failure. Timeouts are never retried.
	Retries    int `yaml:"retries"`
	RetryDelay int `yaml:"retry_delay"` // milliseconds
}

// CommandTimeoutConfig contains per-command response timeouts (milliseconds).
type CommandTimeoutConfig struct {
	Default int `yaml:"default"`
	Goto    int `yaml:"goto"`
	Park    int `yaml:"park"`
}

// SessionConfig contains observing-session settings.
type SessionConfig struct {
	TickInterval int `yaml:"tick_interval"` // milliseconds
}

// MQTTConfig contains MQTT broker connection settings.
// Only used when connection.transport is "mqtt".
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains local HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT verification settings for the local API.
// An empty secret disables authentication (single-user desktop installs).
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SCOPELINK_SECTION_KEY
// For example: SCOPELINK_DATABASE_PATH, SCOPELINK_BACKEND_URL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no configuration file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Backyard",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/scopelink.db",
			WALMode:     true,
			BusyTimeout: 5,
			WriteQueue:  256,
		},
		Backend: BackendConfig{
			URL:     "http://127.0.0.1:5555/api",
			Timeout: 10,
		},
		Discovery: DiscoveryConfig{
			RefreshInterval: 30,
			MDNS: MDNSConfig{
				Service: "_scopelink._tcp",
				Domain:  "local.",
				Timeout: 3,
			},
		},
		Connection: ConnectionConfig{
			Transport:     "websocket",
			WebSocketPath: "/control",
			DialTimeout:   10,
			Reconnect: ConnectionReconnectConfig{
				InitialDelay: 500,
				MaxDelay:     30000,
				MaxAttempts:  10,
			},
		},
		Command: CommandConfig{
			Timeouts: CommandTimeoutConfig{
				Default: 10000,
				Goto:    60000,
				Park:    30000,
			},
			Retries:    2,
			RetryDelay: 250,
		},
		Session: SessionConfig{
			TickInterval: 1000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "scopelink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 120,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "scopelink",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SCOPELINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCOPELINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("SCOPELINK_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("SCOPELINK_BACKEND_TOKEN"); v != "" {
		cfg.Backend.Token = v
	}

	if v := os.Getenv("SCOPELINK_CONNECTION_TRANSPORT"); v != "" {
		cfg.Connection.Transport = v
	}

	if v := os.Getenv("SCOPELINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SCOPELINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SCOPELINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("SCOPELINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("SCOPELINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SCOPELINK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Backend.URL == "" {
		errs = append(errs, "backend.url is required")
	}

	switch c.Connection.Transport {
	case "websocket", "mqtt":
	default:
		errs = append(errs, fmt.Sprintf("connection.transport must be websocket or mqtt, got %q", c.Connection.Transport))
	}
	if c.Connection.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "connection.reconnect.max_attempts must not be negative")
	}

	if c.Command.Timeouts.Default <= 0 {
		errs = append(errs, "command.timeouts.default must be positive")
	}
	if c.Command.Retries < 0 {
		errs = append(errs, "command.retries must not be negative")
	}

	if c.Session.TickInterval <= 0 {
		errs = append(errs, "session.tick_interval must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters when set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Millis converts a millisecond config value to a Duration.
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds converts a second config value to a Duration.
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
