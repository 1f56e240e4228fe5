package verification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Decision is a voter's verdict on a candidate store
type Decision string

const (
	DecisionConfirm Decision = "confirm"
	DecisionIgnore  Decision = "ignore"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionConfirm || d == DecisionIgnore
}

// Evidence is the voter-supplied proof attached to a confirmation.
type Evidence struct {
	ProofURL string `json:"proof_url,omitempty"`
	Reason   string `json:"reason,omitempty"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// VerificationRequest is one persisted Confirm vote. The unique index on
// (store_id, voter_id) is what makes duplicate confirms a no-op at the
// database level.
type VerificationRequest struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id" db:"id"`
	StoreID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_verifications_store_voter" json:"store_id" db:"store_id"`
	VoterID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_verifications_store_voter" json:"voter_id" db:"voter_id"`
	Evidence    datatypes.JSON `json:"evidence" db:"evidence"`
	SubmittedAt time.Time      `gorm:"not null" json:"submitted_at" db:"submitted_at"`
}

// Suppression records an Ignore decision: the store is hidden from that
// voter's pending-verification listings. It never affects verify counts.
type Suppression struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" db:"id"`
	StoreID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_suppressions_store_voter" json:"store_id" db:"store_id"`
	VoterID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_suppressions_store_voter" json:"voter_id" db:"voter_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
