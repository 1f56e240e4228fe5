package stores

import (
	"time"

	"github.com/google/uuid"
)

// StoreStatus is the lifecycle status of a store
type StoreStatus string

const (
	StatusUnverified StoreStatus = "unverified"
	StatusVerified   StoreStatus = "verified"
	StatusArchived   StoreStatus = "archived"
)

// Valid reports whether s is a known status.
func (s StoreStatus) Valid() bool {
	switch s {
	case StatusUnverified, StatusVerified, StatusArchived:
		return true
	}
	return false
}

// Store represents a community-submitted food vendor
type Store struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" db:"id"`
	Name        string    `gorm:"not null" json:"name" db:"name"`
	NameKey     string    `gorm:"not null;index" json:"-" db:"name_key"`
	Phone       string    `gorm:"not null" json:"phone" db:"phone"`
	Location    string    `gorm:"not null" json:"location" db:"location"`
	LocationKey string    `gorm:"not null" json:"-" db:"location_key"`
	Latitude    *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64  `json:"longitude,omitempty" db:"longitude"`
	OpensAt     string    `gorm:"not null" json:"opens_at" db:"opens_at"`
	ClosesAt    string    `gorm:"not null" json:"closes_at" db:"closes_at"`
	Description string    `gorm:"not null" json:"description" db:"description"`
	PhotoRef    string    `json:"photo_ref,omitempty" db:"photo_ref"`

	CreatedBy uuid.UUID   `gorm:"type:uuid;not null;index" json:"created_by" db:"created_by"`
	Status    StoreStatus `gorm:"not null;default:'unverified';index" json:"status" db:"status"`
	// VerifyCount mirrors the number of distinct confirming voters and is
	// only ever mutated by the verification engine's conditional update.
	VerifyCount int `gorm:"not null;default:0" json:"verify_count" db:"verify_count"`

	VerifiedAt    *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty" db:"archived_at"`
	ArchiveReason string     `json:"archive_reason,omitempty" db:"archive_reason"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Stats summarizes the directory for the stats endpoint
type Stats struct {
	Total            int64   `json:"total_stores"`
	Verified         int64   `json:"verified_stores"`
	Unverified       int64   `json:"unverified_stores"`
	VerificationRate float64 `json:"verification_rate"`
}
