package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

// DefaultPollInterval is the tick period when none is configured.
const DefaultPollInterval = 10 * time.Millisecond

// DefaultStopTimeout bounds how long Shutdown waits for an in-flight tick.
const DefaultStopTimeout = 30 * time.Second

// ErrShutdown is returned by operations attempted after Shutdown.
var ErrShutdown = errors.New("repository is shut down")

// Poller runs scan+reconcile passes on a timer. One mutex guards timer
// start-up, every pass and the shutdown flag.
//
// The timer starts lazily on the first successful AddListener. Each tick
// stats the directory and only scans when its modification time is
// strictly newer than the last successfully reconciled one. Overlapping
// ticks are skipped rather than queued.
type Poller struct {
	name        string
	interval    time.Duration
	stopTimeout time.Duration
	scanner     *Scanner
	reconciler  *Reconciler
	store       store.Store
	recorder    metrics.Recorder
	logger      *slog.Logger

	mu        sync.Mutex
	scheduler gocron.Scheduler
	job       gocron.Job
	starts    int
	stopped   bool
	lastMod   time.Time
	lastErr   string

	force    atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	onStop   func()
	stopOnce sync.Once
	stopErr  error
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Name        string
	Interval    time.Duration
	StopTimeout time.Duration
	// Daemon binds the poller to Host: cancelling Host shuts it down.
	// Otherwise the poller runs until Shutdown.
	Daemon   bool
	Host     context.Context
	Recorder metrics.Recorder
	Logger   *slog.Logger
	// OnStop runs once after the timer has stopped and before Done closes,
	// whichever path initiated the shutdown.
	OnStop func()
}

// NewPoller creates a stopped poller. Nothing runs until the first listener
// is registered.
func NewPoller(cfg PollerConfig, scanner *Scanner, reconciler *Reconciler, st store.Store) (*Poller, error) {
	if cfg.Interval < 0 {
		return nil, ferrors.ValidationError("poll interval must not be negative").
			WithContext("field", "poll_interval_ms").
			Build()
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		name:        cfg.Name,
		interval:    cfg.Interval,
		stopTimeout: cfg.StopTimeout,
		scanner:     scanner,
		reconciler:  reconciler,
		store:       st,
		recorder:    metrics.OrNoop(cfg.Recorder),
		logger:      cfg.Logger,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		onStop:      cfg.OnStop,
	}

	if cfg.Daemon {
		host := cfg.Host
		if host == nil {
			host = context.Background()
		}
		go func() {
			select {
			case <-host.Done():
				p.logger.Debug("Host context done, stopping poller")
				_ = p.Shutdown()
			case <-p.done:
			}
		}()
	}
	return p, nil
}

// Interval returns the tick period.
func (p *Poller) Interval() time.Duration { return p.interval }

// AddListener registers l and starts the timer if it is not running yet.
// It returns false when l was already registered, is not comparable, the
// timer could not be started, or the poller is shut down.
func (p *Poller) AddListener(l store.Listener) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return false
	}
	if !p.store.AddListener(l) {
		return false
	}
	if err := p.startLocked(); err != nil {
		p.store.RemoveListener(l)
		p.logger.Error("Failed to start poller", logfields.Error(err))
		return false
	}
	return true
}

// RemoveListener unregisters l. The timer keeps running.
func (p *Poller) RemoveListener(l store.Listener) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.RemoveListener(l)
}

// Starts returns how many times the timer has been started (0 or 1).
func (p *Poller) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

// Running reports whether the timer is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduler != nil && !p.stopped
}

func (p *Poller) startLocked() error {
	if p.scheduler != nil {
		return nil
	}

	s, err := gocron.NewScheduler(gocron.WithStopTimeout(p.stopTimeout))
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	job, err := s.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(p.tick),
		gocron.WithName(p.name+"-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create poll job: %w", err)
	}

	s.Start()
	p.scheduler = s
	p.job = job
	p.starts++
	p.logger.Info("Started directory poller",
		logfields.Directory(p.scanner.Dir()),
		logfields.Interval(p.interval))
	return nil
}

// Load runs one pass immediately, ignoring the modification-time gate, and
// returns any error. It does not start the timer.
func (p *Poller) Load(ctx context.Context) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return Result{}, ErrShutdown
	}
	res, _, err := p.passLocked(ctx, true)
	return res, err
}

// Trigger requests an immediate tick. With force the modification-time gate
// is skipped once. Before the timer has started the pass runs synchronously
// on the caller's goroutine.
func (p *Poller) Trigger(ctx context.Context, force bool) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrShutdown
	}
	job := p.job
	if job == nil {
		defer p.mu.Unlock()
		_, _, err := p.passLocked(ctx, force)
		return err
	}
	p.mu.Unlock()

	if force {
		p.force.Store(true)
	}
	return job.RunNow()
}

// tick is the gocron task. Errors are logged and retried on the next tick.
func (p *Poller) tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}

	res, scanned, err := p.passLocked(p.ctx, p.force.Swap(false))
	switch {
	case err != nil:
		if p.ctx.Err() != nil {
			p.recorder.IncTick(p.name, metrics.ResultCanceled)
			return
		}
		p.recorder.IncTick(p.name, metrics.ResultFailed)
		p.logFailure(err)
	case scanned:
		p.recorder.IncTick(p.name, metrics.ResultReconciled)
		p.logRecovery()
		if res.Changed() {
			p.logger.Info("Reconciled package directory",
				slog.Int("added", len(res.Added)),
				slog.Int("removed", len(res.Removed)),
				slog.Int("aux_added", len(res.AuxAdded)),
				slog.Int("aux_removed", len(res.AuxRemoved)))
		}
	default:
		p.recorder.IncTick(p.name, metrics.ResultUnchanged)
		p.logRecovery()
	}
}

// passLocked runs one gated pass. scanned reports whether a scan happened.
// The observed modification time advances only after a successful pass.
func (p *Poller) passLocked(ctx context.Context, force bool) (Result, bool, error) {
	info, err := p.scanner.Stat()
	if err != nil {
		return Result{}, false, err
	}
	mod := info.ModTime()
	if !force && !mod.After(p.lastMod) {
		return Result{}, false, nil
	}

	start := time.Now()
	snap, err := p.scanner.Scan(ctx)
	p.recorder.ObserveScanDuration(p.name, time.Since(start), err == nil)
	if err != nil {
		return Result{}, true, err
	}

	res, err := p.reconciler.Reconcile(ctx, snap)
	if err != nil {
		return res, true, err
	}
	if mod.After(p.lastMod) {
		p.lastMod = mod
	}
	return res, true, nil
}

// logFailure warns once per distinct failure so a missing directory does
// not flood the log at every tick.
func (p *Poller) logFailure(err error) {
	msg := err.Error()
	if msg == p.lastErr {
		p.logger.Debug("Poll pass failed again", logfields.Error(err))
		return
	}
	p.lastErr = msg
	p.logger.Warn("Poll pass failed, keeping last known state",
		logfields.Directory(p.scanner.Dir()),
		slog.String("category", string(ferrors.GetCategory(err))),
		logfields.Error(err))
}

func (p *Poller) logRecovery() {
	if p.lastErr == "" {
		return
	}
	p.lastErr = ""
	p.logger.Info("Poll pass recovered", logfields.Directory(p.scanner.Dir()))
}

// Shutdown stops future ticks and waits for an in-flight tick to finish.
// It is idempotent; concurrent callers all wait for the first to complete.
func (p *Poller) Shutdown() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		s := p.scheduler
		p.mu.Unlock()

		if s != nil {
			if err := s.Shutdown(); err != nil {
				p.stopErr = ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to stop poller").
					WithContext("repository", p.name).
					Build()
			}
		}
		p.cancel()
		if p.onStop != nil {
			p.onStop()
		}
		close(p.done)
		p.logger.Debug("Poller stopped")
	})
	<-p.done
	return p.stopErr
}

// Done is closed once Shutdown has completed.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Wait blocks until Shutdown has completed.
func (p *Poller) Wait() { <-p.done }
