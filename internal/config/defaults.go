package config

import (
	"path/filepath"
	"strings"
)

const (
	defaultPollIntervalMs = 10
	defaultDuplicates     = "last_wins"
	defaultJournalPath    = "./pkgrepo-journal.db"
	defaultNATSURL        = "nats://127.0.0.1:4222"
	defaultNATSSubject    = "pkgrepo.events"
	defaultKVBucket       = "pkgrepo-packages"
	defaultNATSTimeout    = "5s"
	defaultHTTPAddr       = "127.0.0.1:8085"
	defaultMetricsPath    = "/metrics"
)

func normalize(cfg *Config) error {
	r := &cfg.Repository
	r.Name = strings.TrimSpace(r.Name)
	r.Directory = strings.TrimSpace(r.Directory)
	r.Duplicates = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(r.Duplicates)), "-", "_")

	level, err := ParseLogLevel(string(cfg.Monitoring.Logging.Level))
	if err != nil {
		return fieldError("monitoring.logging.level", err)
	}
	cfg.Monitoring.Logging.Level = level

	format, err := ParseLogFormat(string(cfg.Monitoring.Logging.Format))
	if err != nil {
		return fieldError("monitoring.logging.format", err)
	}
	cfg.Monitoring.Logging.Format = format
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}

	r := &cfg.Repository
	if r.PollIntervalMs == 0 {
		r.PollIntervalMs = defaultPollIntervalMs
	}
	if r.Duplicates == "" {
		r.Duplicates = defaultDuplicates
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Path = defaultJournalPath
	}

	n := &cfg.NATS
	if n.URL == "" {
		n.URL = defaultNATSURL
	}
	if n.Subject == "" {
		n.Subject = defaultNATSSubject
	}
	if n.KVBucket == "" {
		n.KVBucket = defaultKVBucket
	}
	if n.Timeout == "" {
		n.Timeout = defaultNATSTimeout
	}

	m := &cfg.Monitoring
	if m.HTTP.Addr == "" {
		m.HTTP.Addr = defaultHTTPAddr
	}
	if m.Metrics.Path == "" {
		m.Metrics.Path = defaultMetricsPath
	}
}

// deriveName runs last so that directory overrides also rename.
func deriveName(cfg *Config) {
	r := &cfg.Repository
	if r.Name == "" && r.Directory != "" {
		r.Name = filepath.Base(filepath.Clean(r.Directory))
	}
}
