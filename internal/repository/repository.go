package repository

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

// Options configures a Repository.
type Options struct {
	// Name labels logs and metrics. Defaults to the directory base name.
	Name      string
	Directory string
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Daemon binds the poller lifetime to Host.
	Daemon bool
	Host   context.Context
	// Inspector defaults to descriptor.NewArchiveInspector().
	Inspector descriptor.Inspector
	// Store defaults to store.NewMemory().
	Store      store.Store
	Duplicates DuplicatePolicy
	// Ignore lists filepath.Match globs of entries to skip entirely.
	Ignore      []string
	StopTimeout time.Duration
	Recorder    metrics.Recorder
	Logger      *slog.Logger
}

// Repository is the registry of one package directory.
type Repository struct {
	name       string
	store      store.Store
	scanner    *Scanner
	reconciler *Reconciler
	poller     *Poller
	logger     *slog.Logger
}

// New wires a repository. The directory does not need to exist yet; a
// missing directory is reported by Load and retried by the poller.
func New(opts Options) (*Repository, error) {
	if strings.TrimSpace(opts.Directory) == "" {
		return nil, ferrors.ValidationError("repository directory is required").
			WithContext("field", "directory").
			Build()
	}
	dir, err := filepath.Abs(opts.Directory)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid repository directory").
			WithContext("directory", opts.Directory).
			Build()
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = filepath.Base(dir)
	}
	if opts.Inspector == nil {
		opts.Inspector = descriptor.NewArchiveInspector()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	duplicates, err := ParseDuplicatePolicy(string(opts.Duplicates))
	if err != nil {
		return nil, err
	}
	filter, err := NewEntryFilter(opts.Ignore)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(logfields.Repository(name))

	scanner, err := NewScanner(dir, opts.Inspector, duplicates, filter, logger)
	if err != nil {
		return nil, err
	}
	reconciler := NewReconciler(name, opts.Store, opts.Recorder, logger)
	poller, err := NewPoller(PollerConfig{
		Name:        name,
		Interval:    opts.PollInterval,
		StopTimeout: opts.StopTimeout,
		Daemon:      opts.Daemon,
		Host:        opts.Host,
		Recorder:    opts.Recorder,
		Logger:      logger,
		OnStop:      resetStore(opts.Store),
	}, scanner, reconciler, opts.Store)
	if err != nil {
		return nil, err
	}

	return &Repository{
		name:       name,
		store:      opts.Store,
		scanner:    scanner,
		reconciler: reconciler,
		poller:     poller,
		logger:     logger,
	}, nil
}

// Name returns the repository name.
func (r *Repository) Name() string { return r.name }

// Directory returns the absolute watched directory.
func (r *Repository) Directory() string { return r.scanner.Dir() }

// Store returns the backing store.
func (r *Repository) Store() store.Store { return r.store }

// Poller returns the repository's poller.
func (r *Repository) Poller() *Poller { return r.poller }

// Load scans and reconciles once, propagating any failure.
func (r *Repository) Load(ctx context.Context) (Result, error) {
	res, err := r.poller.Load(ctx)
	if err != nil {
		return res, err
	}
	r.logger.Info("Loaded package directory",
		logfields.Directory(r.Directory()),
		slog.Int("packages", len(r.store.FindAll())),
		slog.Int("auxiliary", len(r.store.AuxiliaryLocations())))
	return res, nil
}

// AddListener registers l and lazily starts polling. See Poller.AddListener.
func (r *Repository) AddListener(l store.Listener) bool { return r.poller.AddListener(l) }

// RemoveListener unregisters l.
func (r *Repository) RemoveListener(l store.Listener) bool { return r.poller.RemoveListener(l) }

// Find looks up a package by name and version.
func (r *Repository) Find(name string, version *semver.Version) (descriptor.Descriptor, bool) {
	return r.store.Find(name, version)
}

// FindByName looks up the registered package with the given name.
func (r *Repository) FindByName(name string) (descriptor.Descriptor, bool) {
	return r.store.FindByName(name)
}

// FindAll returns every registered package.
func (r *Repository) FindAll() []descriptor.Descriptor { return r.store.FindAll() }

// Auxiliary returns the tracked auxiliary file locations.
func (r *Repository) Auxiliary() []string { return r.store.AuxiliaryLocations() }

// Trigger requests an immediate pass. See Poller.Trigger.
func (r *Repository) Trigger(ctx context.Context, force bool) error {
	return r.poller.Trigger(ctx, force)
}

// Shutdown stops polling, waits for an in-flight pass and discards the
// registry state when the store supports it. Cancelling the host context of
// a daemon repository has the same effect.
func (r *Repository) Shutdown() error { return r.poller.Shutdown() }

func resetStore(st store.Store) func() {
	resetter, ok := st.(interface{ Reset() })
	if !ok {
		return nil
	}
	return resetter.Reset
}

// Done is closed once Shutdown has completed.
func (r *Repository) Done() <-chan struct{} { return r.poller.Done() }

// Wait blocks until Shutdown has completed.
func (r *Repository) Wait() { r.poller.Wait() }
