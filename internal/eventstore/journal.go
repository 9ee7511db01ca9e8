package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
)

// Journal is a repository listener that appends every notification to a
// Store under one session ID. A failed append is returned to the
// repository, which retries the change on its next pass.
type Journal struct {
	store      Store
	session    string
	repository string
	directory  string
	recorder   metrics.Recorder
}

var _ store.Listener = (*Journal)(nil)

// NewJournal creates a journal for one repository session. An empty
// sessionID gets a fresh UUID.
func NewJournal(st Store, sessionID, repository, directory string, recorder metrics.Recorder) *Journal {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Journal{
		store:      st,
		session:    sessionID,
		repository: repository,
		directory:  directory,
		recorder:   metrics.OrNoop(recorder),
	}
}

// SessionID returns the session this journal writes to.
func (j *Journal) SessionID() string { return j.session }

// Start records the beginning of the session.
func (j *Journal) Start(ctx context.Context) error {
	return j.lifecycle(ctx, TypeSessionStarted)
}

// Stop records the end of the session.
func (j *Journal) Stop(ctx context.Context) error {
	return j.lifecycle(ctx, TypeSessionStopped)
}

func (j *Journal) lifecycle(ctx context.Context, eventType string) error {
	payload, err := json.Marshal(SessionPayload{
		Repository: j.repository,
		Directory:  j.directory,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		return journalError(ErrMarshalPayloadFailed, err)
	}
	return j.append(ctx, eventType, payload, nil)
}

func (j *Journal) record(ctx context.Context, e store.Event) error {
	eventType, payload, err := Encode(e)
	if err != nil {
		return err
	}
	return j.append(ctx, eventType, payload, map[string]string{"repository": j.repository})
}

func (j *Journal) append(ctx context.Context, eventType string, payload []byte, meta map[string]string) error {
	err := j.store.Append(ctx, j.session, eventType, payload, meta)
	j.recorder.IncSinkResult("journal", err == nil)
	if err != nil {
		slog.Error("Failed to journal event",
			logfields.Session(j.session),
			logfields.Event(eventType),
			logfields.Error(err))
	}
	return err
}

func (j *Journal) OnPackageAdded(ctx context.Context, d descriptor.Descriptor) error {
	return j.record(ctx, store.PackageAdded(d))
}

func (j *Journal) OnPackageRemoved(ctx context.Context, d descriptor.Descriptor) error {
	return j.record(ctx, store.PackageRemoved(d))
}

func (j *Journal) OnAuxiliaryAdded(ctx context.Context, location string) error {
	return j.record(ctx, store.AuxiliaryAdded(location))
}

func (j *Journal) OnAuxiliaryRemoved(ctx context.Context, location string) error {
	return j.record(ctx, store.AuxiliaryRemoved(location))
}
