package store

import (
	"slices"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
)

// Store is the registry state consumed by the repository core.
type Store interface {
	Find(name string, version *semver.Version) (descriptor.Descriptor, bool)
	FindByName(name string) (descriptor.Descriptor, bool)
	FindAll() []descriptor.Descriptor
	Add(d descriptor.Descriptor)
	Remove(d descriptor.Descriptor)

	AuxiliaryLocations() []string
	AddAuxiliary(location string)
	RemoveAuxiliary(location string)

	Listeners() []Listener
	AddListener(l Listener) bool
	RemoveListener(l Listener) bool
	Bus() *Bus
}

// Memory is an in-memory Store holding one descriptor per package name.
type Memory struct {
	mu        sync.RWMutex
	packages  map[string]descriptor.Descriptor
	auxiliary map[string]struct{}
	bus       *Bus
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		packages:  make(map[string]descriptor.Descriptor),
		auxiliary: make(map[string]struct{}),
		bus:       NewBus(),
	}
}

func (m *Memory) Find(name string, version *semver.Version) (descriptor.Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.packages[name]
	if !ok || !d.HasVersion(version) {
		return descriptor.Descriptor{}, false
	}
	return d, true
}

func (m *Memory) FindByName(name string) (descriptor.Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.packages[name]
	return d, ok
}

// FindAll returns every descriptor sorted by name.
func (m *Memory) FindAll() []descriptor.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]descriptor.Descriptor, 0, len(m.packages))
	for _, d := range m.packages {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Add stores d, replacing any descriptor with the same name.
func (m *Memory) Add(d descriptor.Descriptor) {
	m.mu.Lock()
	m.packages[d.Name] = d
	m.mu.Unlock()
}

// Remove deletes d when the stored descriptor has the same identity.
func (m *Memory) Remove(d descriptor.Descriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.packages[d.Name]; ok && cur.SameIdentity(d) {
		delete(m.packages, d.Name)
	}
}

// AuxiliaryLocations returns the auxiliary locations in lexical order.
func (m *Memory) AuxiliaryLocations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.auxiliary))
	for loc := range m.auxiliary {
		out = append(out, loc)
	}
	slices.Sort(out)
	return out
}

func (m *Memory) AddAuxiliary(location string) {
	m.mu.Lock()
	m.auxiliary[location] = struct{}{}
	m.mu.Unlock()
}

func (m *Memory) RemoveAuxiliary(location string) {
	m.mu.Lock()
	delete(m.auxiliary, location)
	m.mu.Unlock()
}

func (m *Memory) Listeners() []Listener       { return m.bus.Listeners() }
func (m *Memory) AddListener(l Listener) bool { return m.bus.Add(l) }
func (m *Memory) RemoveListener(l Listener) bool {
	return m.bus.Remove(l)
}
func (m *Memory) Bus() *Bus { return m.bus }

// Len returns the number of packages and auxiliary locations.
func (m *Memory) Len() (packages, auxiliary int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.packages), len(m.auxiliary)
}

// Reset discards all packages, auxiliary locations and listeners without
// notifying anyone.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.packages = make(map[string]descriptor.Descriptor)
	m.auxiliary = make(map[string]struct{})
	m.mu.Unlock()
	m.bus.Clear()
}
