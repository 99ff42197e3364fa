package eventstore

import "errors"

var (
	// ErrConcurrencyConflict means another writer appended to the stream
	// between load and save. Callers reload and retry the command.
	ErrConcurrencyConflict = errors.New("aggregate version conflict")

	// ErrUnknownEventType means a stored row carries a tag the decode
	// registry cannot handle. The stream is unreadable until the code
	// catches up; this is never retried.
	ErrUnknownEventType = errors.New("unknown event type in stream")
)
