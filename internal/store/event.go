package store

import (
	"context"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
)

// EventKind names one of the four notifications.
type EventKind string

const (
	EventPackageAdded     EventKind = "package_added"
	EventPackageRemoved   EventKind = "package_removed"
	EventAuxiliaryAdded   EventKind = "auxiliary_added"
	EventAuxiliaryRemoved EventKind = "auxiliary_removed"
)

// Kinds lists every event kind in reconciliation order.
var Kinds = []EventKind{EventPackageAdded, EventPackageRemoved, EventAuxiliaryAdded, EventAuxiliaryRemoved}

// IsPackage reports whether the kind carries a descriptor.
func (k EventKind) IsPackage() bool {
	return k == EventPackageAdded || k == EventPackageRemoved
}

// Event is one notification. Package is set for package kinds, Location for
// all kinds.
type Event struct {
	Kind     EventKind
	Package  descriptor.Descriptor
	Location string
}

func PackageAdded(d descriptor.Descriptor) Event {
	return Event{Kind: EventPackageAdded, Package: d, Location: d.Location}
}

func PackageRemoved(d descriptor.Descriptor) Event {
	return Event{Kind: EventPackageRemoved, Package: d, Location: d.Location}
}

func AuxiliaryAdded(location string) Event {
	return Event{Kind: EventAuxiliaryAdded, Location: location}
}

func AuxiliaryRemoved(location string) Event {
	return Event{Kind: EventAuxiliaryRemoved, Location: location}
}

// Deliver dispatches the event to the matching hook of l.
func (e Event) Deliver(ctx context.Context, l Listener) error {
	switch e.Kind {
	case EventPackageAdded:
		return l.OnPackageAdded(ctx, e.Package)
	case EventPackageRemoved:
		return l.OnPackageRemoved(ctx, e.Package)
	case EventAuxiliaryAdded:
		return l.OnAuxiliaryAdded(ctx, e.Location)
	case EventAuxiliaryRemoved:
		return l.OnAuxiliaryRemoved(ctx, e.Location)
	default:
		return nil
	}
}

// Subject returns the package name for package events and the location otherwise.
func (e Event) Subject() string {
	if e.Kind.IsPackage() {
		return e.Package.Name
	}
	return e.Location
}
