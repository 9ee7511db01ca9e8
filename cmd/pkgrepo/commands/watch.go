package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pkgrepo/internal/api"
	"git.home.luguber.info/inful/pkgrepo/internal/config"
	"git.home.luguber.info/inful/pkgrepo/internal/eventstore"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/natsrelay"
	"git.home.luguber.info/inful/pkgrepo/internal/repository"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

const shutdownTimeout = 10 * time.Second

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Dir string `short:"d" help:"Package directory (overrides repository.directory)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g, w.Dir)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunWatch(ctx, cfg, g.Logger)
}

// closer releases one component during shutdown.
type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// RunWatch runs the repository with its listeners and the admin API until
// ctx is done, then tears everything down in reverse order.
func RunWatch(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	session := uuid.NewString()
	logger = logger.With(logfields.Session(session))

	promRegistry := prom.NewRegistry()
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Monitoring.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(promRegistry)
	}

	var closers []closer
	defer func() {
		if cerr := closeAll(closers, logger); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	name := cfg.Repository.Name
	listeners := []store.Listener{store.NewLogListener(logger, name)}

	if cfg.Journal.Enabled {
		journalStore, jerr := eventstore.NewSQLiteStore(cfg.Journal.Path)
		if jerr != nil {
			return jerr
		}
		closers = append(closers, closer{"journal store", func(context.Context) error { return journalStore.Close() }})

		journal := eventstore.NewJournal(journalStore, session, name, cfg.Repository.Directory, recorder)
		if jerr := journal.Start(ctx); jerr != nil {
			return jerr
		}
		// Registered after the store closer so it runs first.
		closers = append(closers, closer{"journal", journal.Stop})
		listeners = append(listeners, journal)
		logger.Info("Journal enabled", logfields.Path(cfg.Journal.Path))
	}

	if cfg.NATS.Enabled {
		relay, nerr := natsrelay.Connect(ctx, natsrelay.Config{
			URL:      cfg.NATS.URL,
			Subject:  cfg.NATS.Subject,
			KVBucket: cfg.NATS.KVBucket,
			Timeout:  cfg.NATS.TimeoutDuration(),
			Retry:    cfg.NATS.RetryPolicy(),
		}, session, recorder)
		if nerr != nil {
			return nerr
		}
		closers = append(closers, closer{"nats relay", func(context.Context) error { return relay.Close() }})
		listeners = append(listeners, relay)
		logger.Info("NATS relay enabled", logfields.Subject(cfg.NATS.Subject))
	}

	// Sinks are closed after the repository has stopped notifying them.
	repo, err := newRepository(ctx, cfg, logger, recorder)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"repository", func(context.Context) error { return repo.Shutdown() }})

	if err := registerListeners(repo, listeners); err != nil {
		return err
	}

	if cfg.Repository.FSNotifyEnabled() {
		nudger, nerr := repository.NewNudger(repo, 0)
		if nerr != nil {
			logger.Warn("Filesystem nudges unavailable", logfields.Error(nerr))
		} else if nerr := nudger.Start(ctx); nerr != nil {
			_ = nudger.Stop()
			logger.Warn("Filesystem nudges unavailable, relying on polling", logfields.Error(nerr))
		} else {
			closers = append(closers, closer{"nudger", func(context.Context) error { return nudger.Stop() }})
		}
	}

	group, gctx := errgroup.WithContext(ctx)

	if cfg.Monitoring.HTTP.Enabled {
		opts := api.Options{
			Addr:     cfg.Monitoring.HTTP.Addr,
			Registry: repo,
			Logger:   logger,
		}
		if cfg.Monitoring.Metrics.Enabled {
			opts.Metrics = metrics.HTTPHandler(promRegistry)
			opts.MetricsPath = cfg.Monitoring.Metrics.Path
		}
		srv := api.NewServer(opts)
		group.Go(srv.Start)
		group.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		select {
		case <-gctx.Done():
		case <-repo.Done():
		}
		return nil
	})

	logger.Info("Watching package directory",
		logfields.Repository(repo.Name()),
		logfields.Directory(repo.Directory()),
		logfields.Interval(cfg.Repository.PollInterval()),
	)
	err = group.Wait()
	logger.Info("Shutting down", logfields.Repository(repo.Name()))
	return err
}

// closeAll runs closers last-in first-out and aggregates their errors.
func closeAll(closers []closer, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Warn("Shutdown step failed", slog.String("component", c.name), logfields.Error(err))
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// registerListeners adds every sink to repo. The first registration starts
// the poller. A rejected sink fails start-up rather than silently missing
// events.
func registerListeners(repo *repository.Repository, listeners []store.Listener) error {
	for i, l := range listeners {
		if !repo.AddListener(l) {
			return ferrors.RuntimeError("failed to register event listener").
				WithContext("listener", fmt.Sprintf("%T", l)).
				WithContext("index", i).
				Build()
		}
	}
	return nil
}
