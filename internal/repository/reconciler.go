package repository

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

// Result summarizes one reconciliation pass. Only mutations whose
// notifications were delivered are listed.
type Result struct {
	Added      []descriptor.Descriptor
	Removed    []descriptor.Descriptor
	AuxAdded   []string
	AuxRemoved []string
	Unchanged  int
}

// Changed reports whether the pass mutated the store.
func (r Result) Changed() bool {
	return len(r.Added)+len(r.Removed)+len(r.AuxAdded)+len(r.AuxRemoved) > 0
}

// Notifications returns the number of delivered events.
func (r Result) Notifications() int {
	return len(r.Added) + len(r.Removed) + len(r.AuxAdded) + len(r.AuxRemoved)
}

// Reconciler applies a snapshot to a store and notifies the store's
// listeners. It does no locking of its own: callers serialize passes.
type Reconciler struct {
	name     string
	store    store.Store
	recorder metrics.Recorder
	logger   *slog.Logger
}

func NewReconciler(name string, st store.Store, recorder metrics.Recorder, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{name: name, store: st, recorder: metrics.OrNoop(recorder), logger: logger}
}

// Reconcile diffs snap against the store in four steps: new packages,
// vanished packages, new auxiliary files, vanished auxiliary files.
//
// A package whose name is known with a different version is replaced:
// "removed" for the stored descriptor, then "added" for the candidate.
//
// A listener error aborts the pass. The mutation whose notification failed
// is rolled back so the next pass retries it; listeners registered before
// the failing one may therefore see that event twice.
func (r *Reconciler) Reconcile(ctx context.Context, snap *Snapshot) (Result, error) {
	start := time.Now()
	var res Result
	defer func() {
		r.recorder.ObserveReconcileDuration(r.name, time.Since(start))
		p, a := r.counts()
		r.recorder.SetPackages(r.name, p)
		r.recorder.SetAuxiliary(r.name, a)
	}()

	listeners := r.store.Listeners()
	before := r.store.FindAll()

	for _, d := range snap.Packages() {
		cur, known := r.store.FindByName(d.Name)
		if known && cur.SameIdentity(d) {
			if cur.Location != d.Location || cur.Checksum != d.Checksum {
				r.store.Add(d)
				r.logger.Debug("Package archive moved or rebuilt", logfields.Package(d.Name), logfields.Location(d.Location))
			}
			res.Unchanged++
			continue
		}
		if known {
			if err := r.removePackage(ctx, listeners, cur, &res); err != nil {
				return res, err
			}
		}
		if err := r.addPackage(ctx, listeners, d, &res); err != nil {
			return res, err
		}
	}

	for _, cur := range before {
		if _, ok := snap.Package(cur.Name); ok {
			continue
		}
		if err := r.removePackage(ctx, listeners, cur, &res); err != nil {
			return res, err
		}
	}

	baseline := r.store.AuxiliaryLocations()
	inBaseline := make(map[string]struct{}, len(baseline))
	for _, loc := range baseline {
		inBaseline[loc] = struct{}{}
	}

	for _, loc := range snap.Auxiliary() {
		if _, ok := inBaseline[loc]; ok {
			continue
		}
		r.store.AddAuxiliary(loc)
		if err := r.notify(ctx, listeners, store.AuxiliaryAdded(loc)); err != nil {
			r.store.RemoveAuxiliary(loc)
			return res, err
		}
		res.AuxAdded = append(res.AuxAdded, loc)
	}

	for _, loc := range baseline {
		if snap.HasAuxiliary(loc) {
			continue
		}
		r.store.RemoveAuxiliary(loc)
		if err := r.notify(ctx, listeners, store.AuxiliaryRemoved(loc)); err != nil {
			r.store.AddAuxiliary(loc)
			return res, err
		}
		res.AuxRemoved = append(res.AuxRemoved, loc)
	}

	return res, nil
}

func (r *Reconciler) addPackage(ctx context.Context, listeners []store.Listener, d descriptor.Descriptor, res *Result) error {
	r.store.Add(d)
	if err := r.notify(ctx, listeners, store.PackageAdded(d)); err != nil {
		r.store.Remove(d)
		return err
	}
	res.Added = append(res.Added, d)
	return nil
}

func (r *Reconciler) removePackage(ctx context.Context, listeners []store.Listener, d descriptor.Descriptor, res *Result) error {
	r.store.Remove(d)
	if err := r.notify(ctx, listeners, store.PackageRemoved(d)); err != nil {
		r.store.Add(d)
		return err
	}
	res.Removed = append(res.Removed, d)
	return nil
}

func (r *Reconciler) notify(ctx context.Context, listeners []store.Listener, e store.Event) error {
	if err := store.Broadcast(ctx, listeners, e); err != nil {
		r.recorder.IncListenerError(r.name)
		return err
	}
	r.recorder.IncNotification(r.name, string(e.Kind))
	r.logger.Debug("Notified listeners", logfields.Event(string(e.Kind)), logfields.Subject(e.Subject()), logfields.Count(len(listeners)))
	return nil
}

func (r *Reconciler) counts() (packages, auxiliary int) {
	return len(r.store.FindAll()), len(r.store.AuxiliaryLocations())
}
