package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

// Environment variables that override values from the file.
const (
	EnvPollInterval = "PKGREPO_POLL_INTERVAL_MS"
	EnvDaemon       = "PKGREPO_DAEMON"
	EnvDirectory    = "PKGREPO_DIRECTORY"
	EnvLogLevel     = "PKGREPO_LOG_LEVEL"
)

// envFiles are read in order; values already in the environment win, so
// .env.local takes precedence over .env.
var envFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads the .env files found in dir without overriding
// variables that are already set. It returns the files it loaded.
func LoadEnvFiles(dir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load env file").
				WithContext("path", path).
				Build()
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

func applyEnvOverrides(cfg *Config) error {
	if raw, ok := lookup(EnvPollInterval); ok {
		ms, err := strconv.Atoi(raw)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid poll interval override").
				WithContext("env", EnvPollInterval).
				WithContext("value", raw).
				Build()
		}
		cfg.Repository.PollIntervalMs = ms
	}
	if raw, ok := lookup(EnvDaemon); ok {
		daemon, err := strconv.ParseBool(raw)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid daemon override").
				WithContext("env", EnvDaemon).
				WithContext("value", raw).
				Build()
		}
		cfg.Repository.Daemon = daemon
	}
	if raw, ok := lookup(EnvDirectory); ok {
		cfg.Repository.Directory = raw
	}
	if raw, ok := lookup(EnvLogLevel); ok {
		level, err := ParseLogLevel(raw)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid log level override").
				WithContext("env", EnvLogLevel).
				WithContext("value", raw).
				Build()
		}
		cfg.Monitoring.Logging.Level = level
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
