// Package config loads the pkgrepo YAML configuration.
//
// Loading follows a fixed pipeline: .env files, ${VAR} expansion, YAML
// decoding, normalization, defaults, environment overrides, validation.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/retry"
)

// CurrentVersion is the only supported configuration version.
const CurrentVersion = "1.0"

// DefaultPath is used when no --config flag is given.
const DefaultPath = "pkgrepo.yaml"

// Config is the root configuration document.
type Config struct {
	Version    string           `yaml:"version"`
	Repository RepositoryConfig `yaml:"repository"`
	Journal    JournalConfig    `yaml:"journal"`
	NATS       NATSConfig       `yaml:"nats"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// RepositoryConfig describes the watched directory.
type RepositoryConfig struct {
	Name           string   `yaml:"name"`
	Directory      string   `yaml:"directory"`
	PollIntervalMs int      `yaml:"poll_interval_ms"`
	Daemon         bool     `yaml:"daemon"`
	FSNotify       *bool    `yaml:"fsnotify,omitempty"`
	Duplicates     string   `yaml:"duplicates"`
	Ignore         []string `yaml:"ignore,omitempty"`
}

// PollInterval returns the configured interval as a duration.
func (r RepositoryConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalMs) * time.Millisecond
}

// FSNotifyEnabled reports whether filesystem nudges are on (default true).
func (r RepositoryConfig) FSNotifyEnabled() bool {
	return r.FSNotify == nil || *r.FSNotify
}

// JournalConfig configures the SQLite event journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NATSConfig configures the JetStream relay.
type NATSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Subject  string `yaml:"subject"`
	KVBucket string `yaml:"kv_bucket"`
	Timeout  string `yaml:"timeout,omitempty"`
	// ConnectRetries is the number of dial retries after the first failure.
	ConnectRetries int    `yaml:"connect_retries,omitempty"`
	RetryBackoff   string `yaml:"retry_backoff,omitempty"`
}

// RetryPolicy returns the dial retry schedule.
func (n NATSConfig) RetryPolicy() retry.Policy {
	mode, _ := retry.ParseBackoffMode(n.RetryBackoff)
	return retry.NewPolicy(mode, 0, 0, n.ConnectRetries)
}

// TimeoutDuration parses Timeout; validation guarantees it parses.
func (n NATSConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// MonitoringConfig groups the admin HTTP server, metrics and logging.
type MonitoringConfig struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the admin API listener.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads and validates a configuration file.
func Load(configPath string) (*Config, error) {
	data, err := readConfig(configPath)
	if err != nil {
		return nil, err
	}
	return parse(data, nil)
}

func readConfig(configPath string) ([]byte, error) {
	if loaded, err := LoadEnvFiles("."); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	} else if len(loaded) > 0 {
		slog.Debug("Loaded environment files", "files", loaded)
	}

	// #nosec G304 - config path is supplied by the operator
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.WrapError(err, ferrors.CategoryNotFound, "configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}
	return data, nil
}

// Override adjusts a configuration after environment overrides and before
// validation. Command-line flags are applied this way.
type Override func(*Config)

// LoadOrDefault loads configPath when it exists. A missing file yields the
// defaults (plus environment overrides) unless required is set.
func LoadOrDefault(configPath string, required bool, overrides ...Override) (*Config, error) {
	data, err := readConfig(configPath)
	switch {
	case err == nil:
		return parse(data, overrides)
	case required || !ferrors.HasCategory(err, ferrors.CategoryNotFound):
		return nil, err
	default:
		return finish(&Config{}, overrides)
	}
}

// Parse decodes and validates configuration content. ${VAR} references are
// expanded from the process environment before decoding.
func Parse(data []byte) (*Config, error) {
	return parse(data, nil)
}

func parse(data []byte, overrides []Override) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").
			Fatal().
			Build()
	}
	if cfg.Version != "" && cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError("unsupported configuration version").
			WithContext("field", "version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).
			Build()
	}
	return finish(&cfg, overrides)
}

func finish(cfg *Config, overrides []Override) (*Config, error) {
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	deriveName(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.NewError(ferrors.CategoryAlreadyExists, "configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	fsnotifyOn := true
	example := Config{
		Version: CurrentVersion,
		Repository: RepositoryConfig{
			Name:           "modules",
			Directory:      "./modules",
			PollIntervalMs: defaultPollIntervalMs,
			FSNotify:       &fsnotifyOn,
			Duplicates:     "last_wins",
			Ignore:         []string{"*.part", "*.tmp"},
		},
		Journal: JournalConfig{Enabled: true, Path: defaultJournalPath},
		NATS: NATSConfig{
			URL:      defaultNATSURL,
			Subject:  defaultNATSSubject,
			KVBucket: defaultKVBucket,
		},
		Monitoring: MonitoringConfig{
			HTTP:    HTTPConfig{Enabled: true, Addr: defaultHTTPAddr},
			Metrics: MetricsConfig{Enabled: true, Path: defaultMetricsPath},
			Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal example configuration").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write configuration file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
