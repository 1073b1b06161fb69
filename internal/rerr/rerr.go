// Package rerr defines the sentinel error kinds shared across the
// replication engine, generalizing the client package's
// ErrNotFound/APIError pair (internal/client) into a taxonomy every
// component can wrap and test with errors.Is.
package rerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: key unknown to the registry and no peer responds with data.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists: create on a key that already exists locally.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNoReplica: peer cannot serve a request for a key it does not hold.
	ErrNoReplica = errors.New("no replica")
	// ErrTimeout: an inter-DC RPC exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrNoDCs: every candidate peer failed, or the candidate list was empty.
	ErrNoDCs = errors.New("no dcs available")
	// ErrFailedVerification: a conditional operation's predicate returned false.
	ErrFailedVerification = errors.New("failed verification")
	// ErrBackend: the underlying storage layer failed.
	ErrBackend = errors.New("backend error")
)

// Wrap attaches context to a sentinel while keeping it matchable via
// errors.Is(err, sentinel).
func Wrap(sentinel error, context string) error {
	return fmt.Errorf("%s: %w", context, sentinel)
}
