package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a domain event
type Type string

const (
	// TypeStoreVerified fires exactly once per store, when its confirm
	// count first reaches the quorum threshold.
	TypeStoreVerified Type = "store.verified"
)

// Event is the envelope broadcast to subscribers and websocket clients.
type Event struct {
	Type      Type        `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StoreVerified is the payload for TypeStoreVerified.
type StoreVerified struct {
	StoreID     uuid.UUID `json:"store_id"`
	VerifyCount int       `json:"verify_count"`
	VerifiedAt  time.Time `json:"verified_at"`
}

// Publisher is the write side of the hub, consumed by the verification
// engine.
type Publisher interface {
	Publish(event Event)
}
