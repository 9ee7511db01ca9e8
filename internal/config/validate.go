package config

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/pkgrepo/internal/foundation"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/retry"
)

var validator = foundation.NewValidator[*Config](
	validateRepository,
	validateJournal,
	validateNATS,
	validateMonitoring,
)

// Validate checks a fully defaulted configuration.
func Validate(cfg *Config) error {
	return validator.Validate(cfg)
}

func validateRepository(cfg *Config) []foundation.FieldError {
	r := cfg.Repository
	out := foundation.Required("repository.directory", r.Directory)
	out = append(out, foundation.AtLeast("repository.poll_interval_ms", r.PollIntervalMs, 1)...)
	out = append(out, foundation.OneOf("repository.duplicates", r.Duplicates, "last_wins", "error")...)
	for _, pattern := range r.Ignore {
		if _, err := filepath.Match(pattern, ""); err != nil {
			out = append(out, foundation.Invalid("repository.ignore", "pattern", err)...)
		}
	}
	return out
}

func validateJournal(cfg *Config) []foundation.FieldError {
	if !cfg.Journal.Enabled {
		return nil
	}
	return foundation.Required("journal.path", cfg.Journal.Path)
}

func validateNATS(cfg *Config) []foundation.FieldError {
	n := cfg.NATS
	if !n.Enabled {
		return nil
	}
	out := foundation.Required("nats.url", n.URL)
	out = append(out, foundation.Required("nats.kv_bucket", n.KVBucket)...)
	if strings.ContainsAny(n.Subject, "*> ") || strings.HasSuffix(n.Subject, ".") {
		out = append(out, foundation.Invalid("nats.subject", "subject", errors.New("must be a literal subject prefix"))...)
	}
	out = append(out, foundation.AtLeast("nats.connect_retries", n.ConnectRetries, 0)...)
	if _, err := retry.ParseBackoffMode(n.RetryBackoff); err != nil {
		out = append(out, foundation.Invalid("nats.retry_backoff", "one_of", err)...)
	}
	if d, err := time.ParseDuration(n.Timeout); err != nil {
		out = append(out, foundation.Invalid("nats.timeout", "duration", err)...)
	} else if d <= 0 {
		out = append(out, foundation.Invalid("nats.timeout", "duration", errors.New("must be positive"))...)
	}
	return out
}

func validateMonitoring(cfg *Config) []foundation.FieldError {
	m := cfg.Monitoring
	var out []foundation.FieldError
	if m.HTTP.Enabled {
		out = append(out, foundation.Required("monitoring.http.addr", m.HTTP.Addr)...)
	}
	if m.Metrics.Enabled && !strings.HasPrefix(m.Metrics.Path, "/") {
		out = append(out, foundation.Invalid("monitoring.metrics.path", "path", errors.New("must start with /"))...)
	}
	return out
}

func fieldError(field string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid configuration value").
		WithContext("field", field).
		Build()
}
