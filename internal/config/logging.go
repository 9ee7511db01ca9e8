package config

import (
	"log/slog"

	"git.home.luguber.info/inful/pkgrepo/internal/foundation/normalization"
)

// LogLevel is the minimum level emitted by the logger.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	// LogFormatConsole is a colourised handler for interactive terminals.
	LogFormatConsole LogFormat = "console"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"text":    LogFormatText,
	"json":    LogFormatJSON,
	"console": LogFormatConsole,
	"tint":    LogFormatConsole,
}, LogFormatText)

// ParseLogLevel accepts any known spelling; empty input yields info.
func ParseLogLevel(raw string) (LogLevel, error) {
	return logLevelNormalizer.Parse("log level", raw)
}

// ParseLogFormat accepts any known spelling; empty input yields text.
func ParseLogFormat(raw string) (LogFormat, error) {
	return logFormatNormalizer.Parse("log format", raw)
}

// SlogLevel maps the level onto slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
