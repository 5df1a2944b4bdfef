package remote

import (
	"errors"
	"fmt"
)

// Kind categorizes a remote failure for the caller's recovery decision.
type Kind int

const (
	// KindTransient covers network failures and server-side errors.
	// Recoverable by retrying on the next trigger.
	KindTransient Kind = iota
	// KindAuth covers rejected credentials. Not handled by this core;
	// surfaced as an opaque failure.
	KindAuth
	// KindInvalid covers requests the backend permanently rejects.
	KindInvalid
)

// Error is a categorized remote failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable remote failure.
func IsTransient(err error) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.Kind == KindTransient
}
