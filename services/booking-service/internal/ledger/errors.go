package ledger

import "errors"

// Kind classifies every failure the ledger can report. Exactly one kind is
// attached to each failed call so callers can pick retry policy without
// parsing messages.
type Kind string

const (
	// Validation failures: the caller can re-select and resubmit.
	KindOutOfWindow    Kind = "out_of_window"
	KindClosedDay      Kind = "closed_day"
	KindInvalidSlot    Kind = "invalid_slot"
	KindInvalidSubject Kind = "invalid_subject"
	KindPastSlot       Kind = "past_slot"

	// Conflicts: the caller's view was stale; re-query availability.
	KindSlotTaken        Kind = "slot_taken"
	KindDuplicateBooking Kind = "duplicate_booking"

	// Authorization and lookup failures.
	KindNotFound      Kind = "not_found"
	KindNotAuthorized Kind = "not_authorized"

	// Transient store failure: retryable with backoff, never auto-retried here.
	KindStoreUnavailable Kind = "store_unavailable"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func failf(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the ledger error kind, or "" for foreign errors.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// Sentinels a Store implementation returns to signal the two uniqueness
// conflicts and missing records; the ledger translates them to error kinds.
var (
	ErrSlotConflict  = errors.New("slot already booked")
	ErrOwnerConflict = errors.New("owner already holds an active booking")
	ErrNoRecord      = errors.New("no such record")
)
