package eventstore

// Sentinel errors for journal operations. Returned errors wrap the driver
// error and match these with errors.Is.

import (
	"git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.JournalError("could not open event journal database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.JournalError("failed to initialize event journal schema").Build()

	// ErrEventAppendFailed indicates appending an event failed.
	ErrEventAppendFailed = errors.JournalError("failed to append event to journal").Build()

	// ErrEventQueryFailed indicates querying events failed.
	ErrEventQueryFailed = errors.JournalError("failed to query events from journal").Build()

	// ErrMarshalPayloadFailed indicates JSON marshaling of an event payload failed.
	ErrMarshalPayloadFailed = errors.JournalError("failed to marshal event payload").Build()

	// ErrUnmarshalPayloadFailed indicates JSON unmarshaling of an event payload failed.
	ErrUnmarshalPayloadFailed = errors.JournalError("failed to unmarshal event payload").Build()
)

// journalError wraps cause with the message of sentinel so errors.Is matches it.
func journalError(sentinel *errors.ClassifiedError, cause error) *errors.ClassifiedError {
	return errors.WrapError(cause, errors.CategoryJournal, sentinel.Message()).Build()
}
