// Package eventstore journals repository notifications in SQLite and
// replays them into registry views.
package eventstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

// RegistryProjection is the registry view reconstructed from one session's
// journal: package name to descriptor plus the auxiliary set.
type RegistryProjection struct {
	mu        sync.RWMutex
	store     Store
	session   string
	packages  map[string]descriptor.Descriptor
	auxiliary map[string]struct{}
	applied   int
	lastSync  time.Time
}

// NewRegistryProjection creates a projection of sessionID backed by st.
func NewRegistryProjection(st Store, sessionID string) *RegistryProjection {
	return &RegistryProjection{
		store:     st,
		session:   sessionID,
		packages:  make(map[string]descriptor.Descriptor),
		auxiliary: make(map[string]struct{}),
	}
}

// Rebuild replays every event of the session from scratch.
func (p *RegistryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetBySession(ctx, p.session)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.packages = make(map[string]descriptor.Descriptor)
	p.auxiliary = make(map[string]struct{})
	p.applied = 0
	for _, ev := range events {
		if err := p.applyLocked(ev); err != nil {
			return err
		}
	}
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single journal record.
func (p *RegistryProjection) Apply(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyLocked(ev)
}

func (p *RegistryProjection) applyLocked(ev Event) error {
	if ev.SessionID() != p.session {
		return nil
	}
	e, ok, err := Decode(ev)
	if err != nil || !ok {
		return err
	}
	switch e.Kind {
	case store.EventPackageAdded:
		p.packages[e.Package.Name] = e.Package
	case store.EventPackageRemoved:
		if cur, ok := p.packages[e.Package.Name]; ok && cur.SameIdentity(e.Package) {
			delete(p.packages, e.Package.Name)
		}
	case store.EventAuxiliaryAdded:
		p.auxiliary[e.Location] = struct{}{}
	case store.EventAuxiliaryRemoved:
		delete(p.auxiliary, e.Location)
	}
	p.applied++
	return nil
}

// Packages returns the replayed packages sorted by name.
func (p *RegistryProjection) Packages() []descriptor.Descriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]descriptor.Descriptor, 0, len(p.packages))
	for _, d := range p.packages {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Auxiliary returns the replayed auxiliary locations in lexical order.
func (p *RegistryProjection) Auxiliary() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.auxiliary))
	for loc := range p.auxiliary {
		out = append(out, loc)
	}
	slices.Sort(out)
	return out
}

// Applied returns how many notifications have been applied.
func (p *RegistryProjection) Applied() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.applied
}

// LastSyncTime returns when Rebuild last completed.
func (p *RegistryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
