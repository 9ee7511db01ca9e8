package eventstore

import (
	"encoding/json"
	"time"

	"github.com/Masterminds/semver/v3"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

// Journal event type names.
const (
	TypeSessionStarted   = "SessionStarted"
	TypeSessionStopped   = "SessionStopped"
	TypePackageAdded     = "PackageAdded"
	TypePackageRemoved   = "PackageRemoved"
	TypeAuxiliaryAdded   = "AuxiliaryAdded"
	TypeAuxiliaryRemoved = "AuxiliaryRemoved"
)

var typeByKind = map[store.EventKind]string{
	store.EventPackageAdded:     TypePackageAdded,
	store.EventPackageRemoved:   TypePackageRemoved,
	store.EventAuxiliaryAdded:   TypeAuxiliaryAdded,
	store.EventAuxiliaryRemoved: TypeAuxiliaryRemoved,
}

// TypeFor returns the journal type name of a notification kind.
func TypeFor(kind store.EventKind) string { return typeByKind[kind] }

// PackagePayload is the JSON body of package events.
type PackagePayload struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Location    string            `json:"location"`
	Checksum    string            `json:"checksum,omitempty"`
	Description string            `json:"description,omitempty"`
	Requires    []string          `json:"requires,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// AuxiliaryPayload is the JSON body of auxiliary events.
type AuxiliaryPayload struct {
	Location string `json:"location"`
}

// SessionPayload is the JSON body of session lifecycle events.
type SessionPayload struct {
	Repository string    `json:"repository"`
	Directory  string    `json:"directory"`
	StartedAt  time.Time `json:"started_at"`
}

// NewPackagePayload converts a descriptor to its journal form.
func NewPackagePayload(d descriptor.Descriptor) PackagePayload {
	return PackagePayload{
		Name:        d.Name,
		Version:     d.VersionString(),
		Location:    d.Location,
		Checksum:    d.Checksum,
		Description: d.Description,
		Requires:    d.Requires,
		Attributes:  d.Attributes,
	}
}

// Descriptor converts the payload back to a descriptor.
func (p PackagePayload) Descriptor() (descriptor.Descriptor, error) {
	d := descriptor.Descriptor{
		Name:        p.Name,
		Location:    p.Location,
		Checksum:    p.Checksum,
		Description: p.Description,
		Requires:    p.Requires,
		Attributes:  p.Attributes,
	}
	if p.Version != "" {
		v, err := semver.NewVersion(p.Version)
		if err != nil {
			return descriptor.Descriptor{}, journalError(ErrUnmarshalPayloadFailed, err)
		}
		d.Version = v
	}
	return d, nil
}

// Encode returns the journal type and payload of a notification.
func Encode(e store.Event) (string, []byte, error) {
	var body any
	if e.Kind.IsPackage() {
		body = NewPackagePayload(e.Package)
	} else {
		body = AuxiliaryPayload{Location: e.Location}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, journalError(ErrMarshalPayloadFailed, err)
	}
	return TypeFor(e.Kind), payload, nil
}

// Decode parses a journal record back into a notification. ok is false for
// event types that are not notifications.
func Decode(ev Event) (store.Event, bool, error) {
	switch ev.Type() {
	case TypePackageAdded, TypePackageRemoved:
		var p PackagePayload
		if err := json.Unmarshal(ev.Payload(), &p); err != nil {
			return store.Event{}, false, journalError(ErrUnmarshalPayloadFailed, err)
		}
		d, err := p.Descriptor()
		if err != nil {
			return store.Event{}, false, err
		}
		if ev.Type() == TypePackageAdded {
			return store.PackageAdded(d), true, nil
		}
		return store.PackageRemoved(d), true, nil
	case TypeAuxiliaryAdded, TypeAuxiliaryRemoved:
		var p AuxiliaryPayload
		if err := json.Unmarshal(ev.Payload(), &p); err != nil {
			return store.Event{}, false, journalError(ErrUnmarshalPayloadFailed, err)
		}
		if ev.Type() == TypeAuxiliaryAdded {
			return store.AuxiliaryAdded(p.Location), true, nil
		}
		return store.AuxiliaryRemoved(p.Location), true, nil
	default:
		return store.Event{}, false, nil
	}
}
