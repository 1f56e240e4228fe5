package verification

import "errors"

var (
	// ErrStoreNotFound is returned when the voted-on store does not exist.
	ErrStoreNotFound = errors.New("verification: store not found")
	// ErrSelfVerification is returned when a store's creator tries to
	// confirm it. Always a hard reject.
	ErrSelfVerification = errors.New("verification: self-verification forbidden")
	// ErrInvalidDecision is returned for decisions outside the closed set.
	ErrInvalidDecision = errors.New("verification: invalid decision")
)
