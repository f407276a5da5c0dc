package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/backendex/backendex/pkg/export"
	"github.com/backendex/backendex/pkg/telemetry"
)

// Config is the full exporter configuration, loaded from one YAML file.
type Config struct {
	Controller ControllerConfig `yaml:"controller" validate:"required"`
	Export     ExportConfig     `yaml:"export" validate:"required"`
	Output     OutputConfig     `yaml:"output" validate:"required"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Policies   []string         `yaml:"policies"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ControllerConfig holds connection and credential settings.
type ControllerConfig struct {
	BaseURL  string   `yaml:"base_url" validate:"required,url"`
	Account  string   `yaml:"account" validate:"required"`
	Username string   `yaml:"username" validate:"required"`
	Password string   `yaml:"password" validate:"required_without=Secret"`
	Secret   string   `yaml:"secret"`
	ProxyURL string   `yaml:"proxy_url" validate:"omitempty,url"`
	Timeout  Duration `yaml:"timeout"`
}

// ExportConfig controls the traversal.
type ExportConfig struct {
	// ApplicationNames filters applications by regexp search.
	ApplicationNames string `yaml:"application_names" validate:"required"`

	// BackendTypes filters external-call entities by regexp search.
	// Defaults to matching everything.
	BackendTypes string `yaml:"backend_types"`

	// SkipThreadTasks disables the thread-task sub-branch.
	SkipThreadTasks bool `yaml:"skip_thread_tasks"`
}

// OutputConfig selects and locates the output artifact.
type OutputConfig struct {
	// Format is csv or sqlite.
	Format string `yaml:"format" validate:"omitempty,oneof=csv sqlite"`

	// Path is the artifact location, created or truncated at run start
	// (csv) or appended to (sqlite).
	Path string `yaml:"path" validate:"required"`

	// Quote enables RFC 4180 quoting for csv output. Off by default to
	// stay byte-compatible with the legacy artifact.
	Quote bool `yaml:"quote"`
}

// DeliveryConfig configures optional post-run artifact delivery.
type DeliveryConfig struct {
	SFTP *SFTPConfig `yaml:"sftp"`
}

// SFTPConfig describes one SFTP destination.
type SFTPConfig struct {
	Host           string `yaml:"host" validate:"required"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username" validate:"required"`
	Password       string `yaml:"password"`
	PrivateKeyPath string `yaml:"private_key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
	RemotePath     string `yaml:"remote_path" validate:"required"`
}

// TelemetryConfig groups the observability settings.
type TelemetryConfig struct {
	Logging telemetry.LoggingConfig `yaml:"logging"`
	Metrics telemetry.MetricsConfig `yaml:"metrics"`
	Tracing telemetry.TracingConfig `yaml:"tracing"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads, defaults, and validates the configuration at path. The raw
// document is checked against the built-in CUE schema before struct-level
// validation runs, so typos in section names fail with a schema error
// instead of silently producing zero values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, export.NewConfigError("reading config file failed", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, export.NewConfigError("config does not match schema", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, export.NewConfigError("parsing config file failed", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Export.BackendTypes == "" {
		c.Export.BackendTypes = ".*"
	}
	if c.Output.Format == "" {
		c.Output.Format = "csv"
	}
	if c.Controller.Timeout == 0 {
		c.Controller.Timeout = Duration(60 * time.Second)
	}

	def := telemetry.DefaultConfig()
	if c.Telemetry.Logging.Level == "" {
		c.Telemetry.Logging.Level = def.Logging.Level
	}
	if c.Telemetry.Logging.Format == "" {
		c.Telemetry.Logging.Format = def.Logging.Format
	}
	if c.Telemetry.Logging.Output == "" {
		c.Telemetry.Logging.Output = def.Logging.Output
	}
	if c.Telemetry.Metrics.Namespace == "" {
		c.Telemetry.Metrics.Namespace = def.Metrics.Namespace
	}
	if c.Telemetry.Metrics.ListenAddress == "" {
		c.Telemetry.Metrics.ListenAddress = def.Metrics.ListenAddress
	}
	if c.Telemetry.Tracing.Exporter == "" {
		c.Telemetry.Tracing.Exporter = def.Tracing.Exporter
	}
	if c.Telemetry.Tracing.ExportTimeout == 0 {
		c.Telemetry.Tracing.ExportTimeout = def.Tracing.ExportTimeout
	}
	if c.Delivery.SFTP != nil && c.Delivery.SFTP.Port == 0 {
		c.Delivery.SFTP.Port = 22
	}
}

// Validate checks struct tags plus the constraints tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return export.NewConfigError("config validation failed", err)
	}

	if _, err := regexp.Compile(c.Export.ApplicationNames); err != nil {
		return export.NewConfigError("invalid application_names pattern", err)
	}
	if _, err := regexp.Compile(c.Export.BackendTypes); err != nil {
		return export.NewConfigError("invalid backend_types pattern", err)
	}

	if c.Delivery.SFTP != nil && c.Delivery.SFTP.Password == "" && c.Delivery.SFTP.PrivateKeyPath == "" {
		return export.NewConfigError("sftp delivery requires a password or a private key", nil)
	}

	for _, p := range c.Policies {
		if _, err := os.Stat(p); err != nil {
			return export.NewConfigError(fmt.Sprintf("policy file %s not readable", p), err)
		}
	}

	return nil
}
