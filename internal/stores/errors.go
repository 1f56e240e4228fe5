package stores

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a store id does not exist.
	ErrNotFound = errors.New("stores: store not found")
	// ErrAlreadyArchived is returned by Archive on an archived store. It is
	// stale-state, not failure: callers may treat it as a safe no-op.
	ErrAlreadyArchived = errors.New("stores: store already archived")
	// ErrDuplicateKey surfaces a unique-index violation on the normalized
	// name+location key.
	ErrDuplicateKey = errors.New("stores: duplicate name and location")
)

// ConflictError is returned by Create when a candidate store looks like a
// duplicate of an existing non-archived store. The submitter must explicitly
// choose to create anyway.
type ConflictError struct {
	ExistingStoreID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stores: duplicate candidate of store %s", e.ExistingStoreID)
}

// AsConflict unwraps a ConflictError if err carries one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
