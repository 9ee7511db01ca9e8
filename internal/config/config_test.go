package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkgrepo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
repository:
  directory: ./modules
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, "modules", cfg.Repository.Name)
	assert.Equal(t, 10, cfg.Repository.PollIntervalMs)
	assert.Equal(t, 10*time.Millisecond, cfg.Repository.PollInterval())
	assert.False(t, cfg.Repository.Daemon)
	assert.True(t, cfg.Repository.FSNotifyEnabled())
	assert.Equal(t, "last_wins", cfg.Repository.Duplicates)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "./pkgrepo-journal.db", cfg.Journal.Path)
	assert.Equal(t, "pkgrepo.events", cfg.NATS.Subject)
	assert.Equal(t, 5*time.Second, cfg.NATS.TimeoutDuration())
	assert.Equal(t, "/metrics", cfg.Monitoring.Metrics.Path)
	assert.Equal(t, LogLevelInfo, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Monitoring.Logging.Format)
}

func TestLoad_FullDocument(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
repository:
  name: plugins
  directory: /srv/plugins
  poll_interval_ms: 250
  daemon: true
  fsnotify: false
  duplicates: Error
  ignore: ["*.part"]
journal:
  enabled: true
  path: /var/lib/pkgrepo/journal.db
nats:
  enabled: true
  url: nats://broker:4222
  subject: plugins.events
  kv_bucket: plugins
monitoring:
  http:
    enabled: true
    addr: ":9000"
  logging:
    level: WARNING
    format: Console
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "plugins", cfg.Repository.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Repository.PollInterval())
	assert.True(t, cfg.Repository.Daemon)
	assert.False(t, cfg.Repository.FSNotifyEnabled())
	assert.Equal(t, "error", cfg.Repository.Duplicates)
	assert.Equal(t, []string{"*.part"}, cfg.Repository.Ignore)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "plugins", cfg.NATS.KVBucket)
	assert.Equal(t, ":9000", cfg.Monitoring.HTTP.Addr)
	assert.Equal(t, LogLevelWarn, cfg.Monitoring.Logging.Level)
	assert.Equal(t, LogFormatConsole, cfg.Monitoring.Logging.Format)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("PKGREPO_TEST_DIR", "/data/modules")
	path := writeConfig(t, `
repository:
  directory: ${PKGREPO_TEST_DIR}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/modules", cfg.Repository.Directory)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPollInterval, "75")
	t.Setenv(EnvDaemon, "true")
	path := writeConfig(t, `
repository:
  directory: ./modules
  poll_interval_ms: 500
  daemon: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Repository.PollIntervalMs)
	assert.True(t, cfg.Repository.Daemon)
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv(EnvPollInterval, "soon")
	path := writeConfig(t, "repository:\n  directory: ./modules\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing directory", "repository:\n  name: x\n", "repository.directory"},
		{"negative interval", "repository:\n  directory: d\n  poll_interval_ms: -5\n", "repository.poll_interval_ms"},
		{"unknown duplicates policy", "repository:\n  directory: d\n  duplicates: first_wins\n", "repository.duplicates"},
		{"bad ignore pattern", "repository:\n  directory: d\n  ignore: [\"[\"]\n", "repository.ignore"},
		{"wildcard nats subject", "repository:\n  directory: d\nnats:\n  enabled: true\n  subject: a.*\n", "nats.subject"},
		{"unknown retry backoff", "repository:\n  directory: d\nnats:\n  enabled: true\n  retry_backoff: random\n", "nats.retry_backoff"},
		{"bad nats timeout", "repository:\n  directory: d\nnats:\n  enabled: true\n  timeout: later\n", "nats.timeout"},
		{"relative metrics path", "repository:\n  directory: d\nmonitoring:\n  metrics:\n    enabled: true\n    path: metrics\n", "monitoring.metrics.path"},
		{"unknown log level", "repository:\n  directory: d\nmonitoring:\n  logging:\n    level: loud\n", "monitoring.logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), "got %v", err)

			ce, ok := ferrors.AsClassified(err)
			require.True(t, ok)
			field, _ := ce.Context().GetString("field")
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	_, err := Load(writeConfig(t, "version: \"2.0\"\nrepository:\n  directory: d\n"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestLoadOrDefault(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	t.Setenv(EnvDirectory, "/srv/modules")
	cfg, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "/srv/modules", cfg.Repository.Directory)
	assert.Equal(t, 10, cfg.Repository.PollIntervalMs)

	_, err = LoadOrDefault(missing, true)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("PKGREPO_T_A=from-env\nPKGREPO_T_B=from-env\nPKGREPO_T_C=from-env\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("PKGREPO_T_A=from-local\n"), 0o600))

	t.Setenv("PKGREPO_T_C", "from-process")
	// t.Setenv restores the unset state on cleanup.
	for _, key := range []string{"PKGREPO_T_A", "PKGREPO_T_B"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	loaded, err := LoadEnvFiles(dir)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	assert.Equal(t, "from-local", os.Getenv("PKGREPO_T_A"))
	assert.Equal(t, "from-env", os.Getenv("PKGREPO_T_B"))
	assert.Equal(t, "from-process", os.Getenv("PKGREPO_T_C"))
}

func TestLoadEnvFiles_None(t *testing.T) {
	loaded, err := LoadEnvFiles(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgrepo.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./modules", cfg.Repository.Directory)
	assert.True(t, cfg.Journal.Enabled)
	assert.True(t, cfg.Monitoring.HTTP.Enabled)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAlreadyExists))

	require.NoError(t, Init(path, true))
}

func TestLogLevel_SlogLevel(t *testing.T) {
	level, err := ParseLogLevel(" Debug ")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, level)
	assert.Equal(t, "DEBUG", level.SlogLevel().String())

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestLoadOrDefault_Overrides(t *testing.T) {
	path := writeConfig(t, "repository:\n  directory: ./modules\n")

	cfg, err := LoadOrDefault(path, true, func(c *Config) { c.Repository.Directory = "/srv/plugins" })
	require.NoError(t, err)
	assert.Equal(t, "/srv/plugins", cfg.Repository.Directory)
	assert.Equal(t, "plugins", cfg.Repository.Name)
}

func TestNATSConfig_RetryPolicy(t *testing.T) {
	n := NATSConfig{ConnectRetries: 5, RetryBackoff: "linear"}
	p := n.RetryPolicy()
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, retry.BackoffLinear, p.Mode)

	assert.Equal(t, 0, NATSConfig{}.RetryPolicy().MaxRetries)
}
