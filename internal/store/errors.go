// Package store provides list/create/update persistence for readings,
// attempting the remote document store first and transparently falling back
// to an in-process collection when the remote is absent or failing.
package store

import (
	"fmt"

	"github.com/jromeu/vitalink/internal/record"
)

// NotFoundError reports an update targeting an id absent from the consulted
// store. It is the only persistence failure surfaced to callers.
type NotFoundError struct {
	Kind record.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s record %q not found", e.Kind, e.ID)
}

// RemoteError wraps any failure from the remote store. It never crosses the
// gateway boundary; the gateway catches it, logs it, and takes the fallback
// path instead.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote store %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
