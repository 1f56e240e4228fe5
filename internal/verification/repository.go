package verification

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"amala-joint/store-portal-backend/internal/stores"
)

// ConfirmOutcome describes what a Confirm attempt actually did.
type ConfirmOutcome struct {
	Status      stores.StoreStatus
	VerifyCount int
	// Duplicate is set when this voter had already confirmed the store.
	Duplicate bool
	// Transitioned is set on the one confirm whose increment reached the
	// quorum threshold and flipped the store to verified.
	Transitioned bool
}

// StoreState is the snapshot needed for Ignore handling and precondition
// checks outside the confirm transaction.
type StoreState struct {
	Status      stores.StoreStatus `db:"status"`
	CreatedBy   uuid.UUID          `db:"created_by"`
	VerifyCount int                `db:"verify_count"`
}

type Repository interface {
	// SubmitConfirm records a Confirm vote and applies the quorum update in
	// one transaction. See the implementation for the atomicity contract.
	SubmitConfirm(ctx context.Context, storeID, voterID uuid.UUID, evidence []byte, threshold int) (*ConfirmOutcome, error)
	GetStoreState(ctx context.Context, storeID uuid.UUID) (*StoreState, error)
	UpsertSuppression(ctx context.Context, storeID, voterID uuid.UUID) error
}

type sqlRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db}
}

// SubmitConfirm runs the correctness-critical quorum update. The store row
// is locked for the duration of the transaction, the vote insert relies on
// the (store_id, voter_id) unique index for idempotence, and the count
// increment and status flip happen in a single conditional UPDATE. Two
// voters racing at count = threshold-1 serialize on the row lock, so the
// unverified->verified transition fires exactly once.
func (r *sqlRepository) SubmitConfirm(ctx context.Context, storeID, voterID uuid.UUID, evidence []byte, threshold int) (*ConfirmOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var state StoreState
	err = tx.GetContext(ctx, &state,
		`SELECT status, created_by, verify_count FROM stores WHERE id = $1 FOR UPDATE`, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}

	if state.CreatedBy == voterID {
		return nil, ErrSelfVerification
	}
	if state.Status != stores.StatusUnverified {
		// Already verified or archived: idempotent no-op, nothing written.
		return &ConfirmOutcome{Status: state.Status, VerifyCount: state.VerifyCount}, tx.Commit()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO verification_requests (id, store_id, voter_id, evidence, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (store_id, voter_id) DO NOTHING`,
		uuid.New(), storeID, voterID, evidence, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		// Prior confirm from this voter; count stays untouched.
		return &ConfirmOutcome{Status: state.Status, VerifyCount: state.VerifyCount, Duplicate: true}, tx.Commit()
	}

	var updated struct {
		Status      stores.StoreStatus `db:"status"`
		VerifyCount int                `db:"verify_count"`
	}
	err = tx.GetContext(ctx, &updated,
		`UPDATE stores
		 SET verify_count = verify_count + 1,
		     status = CASE WHEN verify_count + 1 >= $2 THEN 'verified' ELSE status END,
		     verified_at = CASE WHEN verify_count + 1 >= $2 THEN $3 ELSE verified_at END,
		     updated_at = $3
		 WHERE id = $1 AND status = 'unverified'
		 RETURNING status, verify_count`,
		storeID, threshold, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	outcome := &ConfirmOutcome{
		Status:       updated.Status,
		VerifyCount:  updated.VerifyCount,
		Transitioned: updated.Status == stores.StatusVerified,
	}
	return outcome, tx.Commit()
}

func (r *sqlRepository) GetStoreState(ctx context.Context, storeID uuid.UUID) (*StoreState, error) {
	var state StoreState
	err := r.db.GetContext(ctx, &state,
		`SELECT status, created_by, verify_count FROM stores WHERE id = $1`, storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *sqlRepository) UpsertSuppression(ctx context.Context, storeID, voterID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO suppressions (id, store_id, voter_id, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (store_id, voter_id) DO NOTHING`,
		uuid.New(), storeID, voterID, time.Now().UTC())
	return err
}

// IsTransient recognizes serialization failures and deadlocks that are safe
// to retry.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
