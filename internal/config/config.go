// Package config provides configuration management for the paper acquisition service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "ACQUISITION"

// Config holds all configuration for the paper acquisition service.
type Config struct {
	// Server contains HTTP/gRPC server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Temporal contains Temporal workflow orchestration settings.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Kafka contains the grabbed-event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Search contains source request settings.
	Search SearchConfig `mapstructure:"search"`
	// Health contains health tracking windows.
	Health HealthConfig `mapstructure:"health"`
	// Priority contains automatic priority adjustment settings.
	Priority PriorityConfig `mapstructure:"priority"`
	// Download contains submission and transfer settings.
	Download DownloadConfig `mapstructure:"download"`
	// Decision contains decision engine toggles.
	Decision DecisionConfig `mapstructure:"decision"`
	// Sources contains source seeding and adapter secrets.
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// GRPCPort is the gRPC health server port (default: 9090).
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is loaded from ACQUISITION_DATABASE_PASSWORD only.
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 20).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue of the maintenance workflow.
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// KafkaConfig holds the grabbed-event publisher settings.
type KafkaConfig struct {
	// Enabled controls whether grabbed events are published.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic receives one message per grabbed release.
	Topic string `mapstructure:"topic"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// SearchConfig holds source request settings.
type SearchConfig struct {
	// RequestTimeout bounds every source request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// UserAgent is sent when an adapter sets none.
	UserAgent string `mapstructure:"user_agent"`
	// MaxBodySize caps how much of a source response is read.
	MaxBodySize int64 `mapstructure:"max_body_size"`
	// RateLimit is the global requests per second across all hosts; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	// FlareSolverrURL is applied to adapters that support a challenge proxy.
	FlareSolverrURL string `mapstructure:"flaresolverr_url"`
	// ContactEmail is sent to providers that ask for one (OpenAlex, Unpaywall, PMC).
	ContactEmail string `mapstructure:"contact_email"`
}

// HealthConfig holds health tracking windows.
type HealthConfig struct {
	// Retention is how long health events are kept.
	Retention time.Duration `mapstructure:"retention"`
	// RecentWindow bounds the recent failure count.
	RecentWindow time.Duration `mapstructure:"recent_window"`
	// RateWindow bounds the failure-rate computation.
	RateWindow time.Duration `mapstructure:"rate_window"`
	// FailureRateThreshold is the percentage at or above which a source is unhealthy.
	FailureRateThreshold float64 `mapstructure:"failure_rate_threshold"`
}

// PriorityConfig holds automatic priority adjustment settings.
type PriorityConfig struct {
	// AutoAdjust enables the adjuster.
	AutoAdjust bool `mapstructure:"auto_adjust"`
	// MaxPriority caps assigned priorities.
	MaxPriority int `mapstructure:"max_priority"`
}

// DownloadConfig holds submission and transfer settings.
type DownloadConfig struct {
	// HostInterval is the minimum delay between submissions to one host.
	HostInterval time.Duration `mapstructure:"host_interval"`
	// Timeout bounds one file transfer.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxSize caps the size of a transferred file.
	MaxSize int64 `mapstructure:"max_size"`
	// Dir is where the built-in HTTP client stores files.
	Dir string `mapstructure:"dir"`
	// AllowPrivateNetworks disables the SSRF guard of the HTTP client.
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
}

// DecisionConfig holds decision engine toggles.
type DecisionConfig struct {
	// PreferRevisions lets a higher revision of the same quality count as an upgrade.
	PreferRevisions bool `mapstructure:"prefer_revisions"`
}

// SourcesConfig holds source seeding settings and adapter secrets.
type SourcesConfig struct {
	// SeedFile is a YAML file of source definitions loaded by seed-sources.
	SeedFile string `mapstructure:"seed_file"`
	// CoreAPIKey is loaded from ACQUISITION_CORE_API_KEY only.
	CoreAPIKey string `mapstructure:"-"`
	// PMCAPIKey is loaded from ACQUISITION_PMC_API_KEY only.
	PMCAPIKey string `mapstructure:"-"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// GRPCAddress returns the gRPC server address.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// AdapterDefaults returns per-implementation settings sources inherit when
// they do not set them, including the secrets read from the environment.
func (c *Config) AdapterDefaults() map[string]map[string]string {
	defaults := map[string]map[string]string{}
	set := func(impl, key, value string) {
		if value == "" {
			return
		}
		if defaults[impl] == nil {
			defaults[impl] = map[string]string{}
		}
		defaults[impl][key] = value
	}

	set("core", "api_key", c.Sources.CoreAPIKey)
	set("pmc", "api_key", c.Sources.PMCAPIKey)
	for _, impl := range []string{"openalex", "unpaywall", "pmc"} {
		set(impl, "email", c.Search.ContactEmail)
	}
	for _, impl := range []string{"scihub", "libgen"} {
		set(impl, "flaresolverr_url", c.Search.FlareSolverrURL)
	}
	return defaults
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading path instead of searching
// the default locations when path is not empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/paper-acquisition")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets use mapstructure:"-" and never come from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv(EnvPrefix + "_DATABASE_PASSWORD")
	cfg.Sources.CoreAPIKey = os.Getenv(EnvPrefix + "_CORE_API_KEY")
	cfg.Sources.PMCAPIKey = os.Getenv(EnvPrefix + "_PMC_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "acquisition")
	v.SetDefault("database.name", "paper_acquisition")
	// Use ACQUISITION_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Temporal defaults
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "paper-acquisition")
	v.SetDefault("temporal.task_queue", "paper-acquisition-maintenance")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "paper_acquisition")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.acquisition.release_grabbed")
	v.SetDefault("kafka.batch_timeout", "100ms")

	// Search defaults
	v.SetDefault("search.request_timeout", "100s")
	v.SetDefault("search.user_agent", "paper-acquisition-service/1.0")
	v.SetDefault("search.max_body_size", 10*1024*1024)
	v.SetDefault("search.rate_limit", 0)
	v.SetDefault("search.flaresolverr_url", "")
	v.SetDefault("search.contact_email", "")

	// Health defaults
	v.SetDefault("health.retention", "720h")
	v.SetDefault("health.recent_window", "24h")
	v.SetDefault("health.rate_window", "168h")
	v.SetDefault("health.failure_rate_threshold", 20.0)

	// Priority defaults
	v.SetDefault("priority.auto_adjust", true)
	v.SetDefault("priority.max_priority", 50)

	// Download defaults
	v.SetDefault("download.host_interval", "2s")
	v.SetDefault("download.timeout", "60s")
	v.SetDefault("download.max_size", 100*1024*1024)
	v.SetDefault("download.dir", "/var/lib/paper-acquisition/downloads")
	v.SetDefault("download.allow_private_networks", false)

	// Decision defaults
	v.SetDefault("decision.prefer_revisions", true)

	// Sources defaults
	v.SetDefault("sources.seed_file", "config/sources.yaml")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	switch c.Database.SSLMode {
	case SSLModeDisable, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
	default:
		return fmt.Errorf("invalid database ssl_mode: %q", c.Database.SSLMode)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}

	// Validate intervals
	intervals := map[string]time.Duration{
		"search.request_timeout": c.Search.RequestTimeout,
		"health.retention":       c.Health.Retention,
		"health.recent_window":   c.Health.RecentWindow,
		"health.rate_window":     c.Health.RateWindow,
		"download.host_interval": c.Download.HostInterval,
		"download.timeout":       c.Download.Timeout,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Health.FailureRateThreshold <= 0 || c.Health.FailureRateThreshold > 100 {
		return fmt.Errorf("health failure_rate_threshold must be in (0, 100], got %g", c.Health.FailureRateThreshold)
	}
	if c.Priority.MaxPriority < 1 || c.Priority.MaxPriority > 50 {
		return fmt.Errorf("priority max_priority must be between 1 and 50, got %d", c.Priority.MaxPriority)
	}
	if c.Download.MaxSize <= 0 {
		return fmt.Errorf("download max_size must be positive")
	}
	if c.Search.FlareSolverrURL != "" {
		if u, err := url.Parse(c.Search.FlareSolverrURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid search flaresolverr_url: %q", c.Search.FlareSolverrURL)
		}
	}

	return nil
}
