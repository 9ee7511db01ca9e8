// Package commands implements the pkgrepo subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/lmittmann/tint"

	"git.home.luguber.info/inful/pkgrepo/internal/config"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/repository"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// NewGlobal returns a Global writing command output to stdout and logs to stderr.
func NewGlobal(stdout io.Writer) *Global {
	return &Global{Logger: slog.Default(), Stdout: stdout, Stderr: os.Stderr}
}

// CLI is the root command with the global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"pkgrepo.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Scan    ScanCmd    `cmd:"" help:"Scan the package directory once and print the registry"`
	Watch   WatchCmd   `cmd:"" help:"Watch the package directory and publish registry changes"`
	Journal JournalCmd `cmd:"" help:"Print journal events and the replayed registry of a session"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
}

// AfterApply installs a provisional logger; commands that load the
// configuration replace it with the configured one.
func (c *CLI) AfterApply(g *Global) error {
	level := config.LogLevelInfo
	if c.Verbose {
		level = config.LogLevelDebug
	}
	g.Logger = NewLogger(g.Stderr, config.LoggingConfig{Level: level, Format: config.LogFormatText})
	slog.SetDefault(g.Logger)
	return nil
}

// NewLogger builds the slog handler selected by cfg.
func NewLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := cfg.Level.SlogLevel()
	switch cfg.Format {
	case config.LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	case config.LogFormatConsole:
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: "15:04:05.000"}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
}

// loadConfig reads the configuration. An explicitly named file must exist;
// the default path may be absent. dir, when set, replaces the configured
// package directory.
func (c *CLI) loadConfig(g *Global, dir string) (*config.Config, error) {
	var overrides []config.Override
	if dir != "" {
		overrides = append(overrides, func(cfg *config.Config) {
			cfg.Repository.Directory = dir
			cfg.Repository.Name = ""
		})
	}
	return c.loadConfigWith(g, overrides...)
}

func (c *CLI) loadConfigWith(g *Global, overrides ...config.Override) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.Config, c.Config != config.DefaultPath, overrides...)
	if err != nil {
		return nil, err
	}
	if c.Verbose {
		cfg.Monitoring.Logging.Level = config.LogLevelDebug
	}
	g.Logger = NewLogger(g.Stderr, cfg.Monitoring.Logging)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

// newRepository wires a repository from configuration. host bounds the
// poller in daemon mode.
func newRepository(host context.Context, cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) (*repository.Repository, error) {
	duplicates, err := repository.ParseDuplicatePolicy(cfg.Repository.Duplicates)
	if err != nil {
		return nil, err
	}
	return repository.New(repository.Options{
		Name:         cfg.Repository.Name,
		Directory:    cfg.Repository.Directory,
		PollInterval: cfg.Repository.PollInterval(),
		Daemon:       cfg.Repository.Daemon,
		Host:         host,
		Duplicates:   duplicates,
		Ignore:       cfg.Repository.Ignore,
		Recorder:     recorder,
		Logger:       logger,
	})
}
