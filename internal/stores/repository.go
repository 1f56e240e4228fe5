package stores

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, store *Store) error
	GetByID(ctx context.Context, id uuid.UUID) (*Store, error)
	FindActiveByNameKey(ctx context.Context, nameKey string) ([]Store, error)
	ListByStatus(ctx context.Context, status StoreStatus, requesterID uuid.UUID, after Cursor, limit int) ([]Store, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Store, error)
	Archive(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, store *Store) error {
	if err := r.db.WithContext(ctx).Create(store).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Store, error) {
	var store Store
	err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// FindActiveByNameKey fetches non-archived stores sharing a normalized name,
// the candidate set for the duplicate heuristic.
func (r *gormRepository) FindActiveByNameKey(ctx context.Context, nameKey string) ([]Store, error) {
	var out []Store
	err := r.db.WithContext(ctx).
		Where("name_key = ? AND status <> ?", nameKey, StatusArchived).
		Find(&out).Error
	return out, err
}

// ListByStatus pages newest-first through stores in a status, skipping any
// store the requester has suppressed via an Ignore decision.
func (r *gormRepository) ListByStatus(ctx context.Context, status StoreStatus, requesterID uuid.UUID, after Cursor, limit int) ([]Store, error) {
	q := r.db.WithContext(ctx).
		Where("status = ?", status).
		Where("NOT EXISTS (SELECT 1 FROM suppressions s WHERE s.store_id = stores.id AND s.voter_id = ?)", requesterID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if !after.IsZero() {
		q = q.Where("(created_at, id) < (?, ?)", after.CreatedAt, after.ID)
	}

	var out []Store
	err := q.Find(&out).Error
	return out, err
}

func (r *gormRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Store, error) {
	var out []Store
	err := r.db.WithContext(ctx).
		Where("created_by = ?", ownerID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// Archive performs the conditional archive update. The WHERE clause keeps
// the transition forward-only even when two moderators race.
func (r *gormRepository) Archive(ctx context.Context, id uuid.UUID, reason string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Store{}).
		Where("id = ? AND status <> ?", id, StatusArchived).
		Updates(map[string]interface{}{
			"status":         StatusArchived,
			"archive_reason": reason,
			"archived_at":    at,
			"updated_at":     at,
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	db := r.db.WithContext(ctx).Model(&Store{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&Store{}).Where("status = ?", StatusVerified).Count(&stats.Verified).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&Store{}).Where("status = ?", StatusUnverified).Count(&stats.Unverified).Error; err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.VerificationRate = float64(stats.Verified) / float64(stats.Total) * 100
	}
	return &stats, nil
}

// isUniqueViolation recognizes unique-index violations from postgres and
// from the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
