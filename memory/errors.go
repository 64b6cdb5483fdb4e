package memory

import (
	"errors"
	"fmt"
)

// Common errors returned by the store and its backends.
var (
	// ErrNotFound is returned when an operation references an id that does
	// not exist. It is a normal result, not a system fault.
	ErrNotFound = errors.New("memory: entry not found")

	// ErrEmptyContent is returned by Save when content is blank.
	ErrEmptyContent = errors.New("memory: entry content is empty")

	// ErrEmbeddingUnavailable signals that an embedder has no vector for a
	// token. Embedders return it per token; the store absorbs it by
	// skipping the token, falling back to the zero vector when no token
	// produced one.
	ErrEmbeddingUnavailable = errors.New("memory: embedding unavailable")
)

// PersistenceError reports a failed durable read or write. It is fatal to
// the triggering operation; for writes the store guarantees no partial
// in-memory state is left behind.
type PersistenceError struct {
	Op  string // backend operation: "insert", "fetch", "update", "delete"
	ID  string // entry id, empty for owner-scoped reads
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("memory: backend %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("memory: backend %s failed for %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
