package jobsync

import (
	"errors"
	"fmt"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when a job or comment is absent from the cache
	// or the remote store.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is matched by every *ValidationError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated marks an operation that needs a current user.
	// Relation toggles decline silently instead of returning it.
	ErrUnauthenticated = errors.New("no current user")

	// ErrRemoteFailure is matched by every *RemoteError.
	ErrRemoteFailure = errors.New("remote failure")
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Is makes errors.Is(err, ErrInvalidInput) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// RemoteError wraps a gateway failure with the operation that issued it.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote failure: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRemoteFailure) hold.
func (e *RemoteError) Is(target error) bool { return target == ErrRemoteFailure }

// remote wraps err as a RemoteError unless it is a not-found, which keeps
// its own meaning across the boundary.
func remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}
