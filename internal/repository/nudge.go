package repository

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
)

// DefaultNudgeDebounce coalesces bursts of filesystem events.
const DefaultNudgeDebounce = 50 * time.Millisecond

// Nudger watches the package directory with fsnotify and asks the poller
// for an immediate tick after changes settle. Renames and removals go
// through the poller's modification time gate. A write to an entry does not
// move the directory time, so a window containing one forces the pass.
type Nudger struct {
	dir      string
	trigger  func(ctx context.Context, force bool) error
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewNudger creates a nudger for repo. The directory must exist when Start
// is called.
func NewNudger(repo *Repository, debounce time.Duration) (*Nudger, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultNudgeDebounce
	}
	return &Nudger{
		dir:      repo.Directory(),
		trigger:  repo.Trigger,
		debounce: debounce,
		watcher:  watcher,
		logger:   repo.logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins watching. Events are delivered until ctx is done or Stop is called.
func (n *Nudger) Start(ctx context.Context) error {
	if err := n.watcher.Add(n.dir); err != nil {
		return fmt.Errorf("failed to watch package directory %s: %w", n.dir, err)
	}
	n.logger.Info("Starting directory nudger", logfields.Directory(n.dir))

	n.wg.Add(1)
	go n.loop(ctx)
	return nil
}

// Stop ends the watch loop and closes the watcher.
func (n *Nudger) Stop() error {
	var err error
	n.stopOnce.Do(func() {
		close(n.stopChan)
		err = n.watcher.Close()
		n.wg.Wait()
	})
	return err
}

func (n *Nudger) loop(ctx context.Context) {
	defer n.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	var force bool
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.stopChan:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			n.logger.Debug("Directory change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if rewritesEntry(event) {
				force = true
			}
			if timer == nil {
				timer = time.NewTimer(n.debounce)
			} else {
				timer.Reset(n.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			err := n.trigger(ctx, force)
			force = false
			if err != nil {
				n.logger.Debug("Nudge not delivered", logfields.Error(err))
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Error("Directory watcher error", logfields.Error(err))
		}
	}
}

// rewritesEntry reports whether event may have changed an entry's content
// in place. Disabled markers only matter through their presence.
func rewritesEntry(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	return filepath.Ext(event.Name) != DisabledSuffix
}
