package store

import (
	"context"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
)

// Listener receives registry change notifications. Hooks run synchronously
// on the reconciling goroutine while the repository lock is held, so they
// must not call back into the repository. Returning an error stops the
// remaining notifications of the current pass.
//
// Listeners are identified by ==, so implementations must be comparable;
// pointer receivers are the usual choice.
type Listener interface {
	OnPackageAdded(ctx context.Context, d descriptor.Descriptor) error
	OnPackageRemoved(ctx context.Context, d descriptor.Descriptor) error
	OnAuxiliaryAdded(ctx context.Context, location string) error
	OnAuxiliaryRemoved(ctx context.Context, location string) error
}

// ListenerFuncs adapts individual functions to Listener. Nil hooks are
// no-ops. Register it by pointer.
type ListenerFuncs struct {
	PackageAdded     func(ctx context.Context, d descriptor.Descriptor) error
	PackageRemoved   func(ctx context.Context, d descriptor.Descriptor) error
	AuxiliaryAdded   func(ctx context.Context, location string) error
	AuxiliaryRemoved func(ctx context.Context, location string) error
}

func (f *ListenerFuncs) OnPackageAdded(ctx context.Context, d descriptor.Descriptor) error {
	if f.PackageAdded == nil {
		return nil
	}
	return f.PackageAdded(ctx, d)
}

func (f *ListenerFuncs) OnPackageRemoved(ctx context.Context, d descriptor.Descriptor) error {
	if f.PackageRemoved == nil {
		return nil
	}
	return f.PackageRemoved(ctx, d)
}

func (f *ListenerFuncs) OnAuxiliaryAdded(ctx context.Context, location string) error {
	if f.AuxiliaryAdded == nil {
		return nil
	}
	return f.AuxiliaryAdded(ctx, location)
}

func (f *ListenerFuncs) OnAuxiliaryRemoved(ctx context.Context, location string) error {
	if f.AuxiliaryRemoved == nil {
		return nil
	}
	return f.AuxiliaryRemoved(ctx, location)
}

// EventListener adapts a single event callback to Listener, for sinks that
// treat every kind the same way (journal, relay, logging).
type EventListener struct {
	Handle func(ctx context.Context, e Event) error
}

func (l *EventListener) OnPackageAdded(ctx context.Context, d descriptor.Descriptor) error {
	return l.Handle(ctx, PackageAdded(d))
}

func (l *EventListener) OnPackageRemoved(ctx context.Context, d descriptor.Descriptor) error {
	return l.Handle(ctx, PackageRemoved(d))
}

func (l *EventListener) OnAuxiliaryAdded(ctx context.Context, location string) error {
	return l.Handle(ctx, AuxiliaryAdded(location))
}

func (l *EventListener) OnAuxiliaryRemoved(ctx context.Context, location string) error {
	return l.Handle(ctx, AuxiliaryRemoved(location))
}
