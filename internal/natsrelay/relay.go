// Package natsrelay publishes repository notifications to NATS JetStream and
// mirrors the registered package set into a JetStream key/value bucket.
package natsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

// DefaultTimeout bounds each publish and KV write.
const DefaultTimeout = 5 * time.Second

// Publisher is the subset of jetstream.JetStream used by the relay.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// KeyValue is the subset of jetstream.KeyValue used by the relay.
type KeyValue interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

// Message is the JSON document published for every notification.
type Message struct {
	ID        string    `json:"id"`
	Session   string    `json:"session"`
	Type      string    `json:"type"`
	Name      string    `json:"name,omitempty"`
	Version   string    `json:"version,omitempty"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is the KV value stored per package name.
type Entry struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Location  string            `json:"location"`
	Checksum  string            `json:"checksum,omitempty"`
	Requires  []string          `json:"requires,omitempty"`
	Metadata  map[string]string `json:"attributes,omitempty"`
	Session   string            `json:"session"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Relay is a repository listener. Publish failures are returned to the
// repository so the change is retried on the next pass.
type Relay struct {
	pub      Publisher
	kv       KeyValue
	subject  string
	session  string
	timeout  time.Duration
	recorder metrics.Recorder
	conn     *nats.Conn
}

var _ store.Listener = (*Relay)(nil)

// New creates a relay over existing JetStream handles. kv may be nil to
// skip the package mirror.
func New(pub Publisher, kv KeyValue, subject, session string, recorder metrics.Recorder) *Relay {
	return &Relay{
		pub:      pub,
		kv:       kv,
		subject:  strings.TrimSuffix(subject, "."),
		session:  session,
		timeout:  DefaultTimeout,
		recorder: metrics.OrNoop(recorder),
	}
}

// Subject returns the subject an event kind is published on.
func (r *Relay) Subject(kind store.EventKind) string {
	return r.subject + "." + string(kind)
}

func (r *Relay) handle(ctx context.Context, e store.Event) error {
	msg := Message{
		ID:        uuid.NewString(),
		Session:   r.session,
		Type:      string(e.Kind),
		Location:  e.Location,
		Timestamp: time.Now().UTC(),
	}
	if e.Kind.IsPackage() {
		msg.Name = e.Package.Name
		msg.Version = e.Package.VersionString()
	}

	err := r.publish(ctx, msg)
	if err == nil && r.kv != nil && e.Kind.IsPackage() {
		err = r.mirror(ctx, e)
	}
	r.recorder.IncSinkResult("nats", err == nil)
	return err
}

func (r *Relay) publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal relay message").Build()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	subject := r.Subject(store.EventKind(msg.Type))
	if _, err := r.pub.Publish(ctx, subject, data, jetstream.WithMsgID(msg.ID)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to publish event").
			Retryable().
			WithContext("subject", subject).
			Build()
	}
	slog.Debug("Published package event", logfields.Subject(subject), logfields.Event(msg.Type))
	return nil
}

func (r *Relay) mirror(ctx context.Context, e store.Event) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	key := Key(e.Package.Name)
	if e.Kind == store.EventPackageRemoved {
		err := r.kv.Delete(ctx, key)
		if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to delete package from KV").
				Retryable().
				WithContext("package", e.Package.Name).
				Build()
		}
		return nil
	}

	data, err := json.Marshal(newEntry(e.Package, r.session))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal KV entry").Build()
	}
	if _, err := r.kv.Put(ctx, key, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to put package into KV").
			Retryable().
			WithContext("package", e.Package.Name).
			Build()
	}
	return nil
}

func newEntry(d descriptor.Descriptor, session string) Entry {
	return Entry{
		Name:      d.Name,
		Version:   d.VersionString(),
		Location:  d.Location,
		Checksum:  d.Checksum,
		Requires:  d.Requires,
		Metadata:  d.Attributes,
		Session:   session,
		UpdatedAt: time.Now().UTC(),
	}
}

// Key maps a package name onto the KV key alphabet ([-/_=.a-zA-Z0-9]).
func Key(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '=', r == '.', r == '/':
			return r
		default:
			return '_'
		}
	}, name)
}

func (r *Relay) OnPackageAdded(ctx context.Context, d descriptor.Descriptor) error {
	return r.handle(ctx, store.PackageAdded(d))
}

func (r *Relay) OnPackageRemoved(ctx context.Context, d descriptor.Descriptor) error {
	return r.handle(ctx, store.PackageRemoved(d))
}

func (r *Relay) OnAuxiliaryAdded(ctx context.Context, location string) error {
	return r.handle(ctx, store.AuxiliaryAdded(location))
}

func (r *Relay) OnAuxiliaryRemoved(ctx context.Context, location string) error {
	return r.handle(ctx, store.AuxiliaryRemoved(location))
}

// Close drains and closes the NATS connection when the relay owns one.
func (r *Relay) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Drain()
	r.conn = nil
	return err
}
