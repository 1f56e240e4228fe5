package stores

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"amala-joint/store-portal-backend/internal/submission"
	"amala-joint/store-portal-backend/pkg/geospatial"
	"amala-joint/store-portal-backend/pkg/workflows"
)

const defaultPageSize = 20

// Service is the store lifecycle manager. It owns creation with the
// duplicate heuristic, status-filtered listing, and the archive transition.
// verify_count and the verified transition belong to the verification
// engine, not here.
type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, ns *submission.NormalizedStore, force bool) (*Store, error)
	Get(ctx context.Context, id uuid.UUID) (*Store, error)
	ListByStatus(ctx context.Context, status StoreStatus, requesterID uuid.UUID, cursor string, limit int) ([]Store, string, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Store, error)
	Archive(ctx context.Context, storeID, moderatorID uuid.UUID, reason string) (*Store, error)
	Stats(ctx context.Context) (*Stats, error)
}

type storeService struct {
	repo      Repository
	lifecycle *workflows.StateMachine
	logger    *zap.Logger
	// dupRadius bounds the geodistance between two candidate duplicates.
	dupRadius float64
}

func NewService(repo Repository, logger *zap.Logger, dupRadiusMeters float64) Service {
	return &storeService{
		repo:      repo,
		lifecycle: workflows.NewStoreLifecycle(),
		logger:    logger,
		dupRadius: dupRadiusMeters,
	}
}

// Create persists a validated submission as an unverified store. Unless
// force is set, a non-archived store with the same normalized name and the
// same location key (or coordinates within dupRadius) yields a
// ConflictError carrying the existing store id. The read-then-create check
// is optimistic; the partial unique index on (name_key, location_key)
// catches the race it leaves open.
func (s *storeService) Create(ctx context.Context, ownerID uuid.UUID, ns *submission.NormalizedStore, force bool) (*Store, error) {
	if !force {
		if existing, err := s.findDuplicate(ctx, ns); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, &ConflictError{ExistingStoreID: existing.ID}
		}
	}

	now := time.Now().UTC()
	store := &Store{
		ID:          uuid.New(),
		Name:        ns.Name,
		NameKey:     ns.NameKey,
		Phone:       ns.Phone,
		Location:    ns.Location,
		LocationKey: ns.LocationKey,
		Latitude:    ns.Latitude,
		Longitude:   ns.Longitude,
		OpensAt:     ns.OpensAt,
		ClosesAt:    ns.ClosesAt,
		Description: ns.Description,
		PhotoRef:    ns.PhotoRef,
		CreatedBy:   ownerID,
		Status:      StatusUnverified,
		VerifyCount: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, store); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			// Lost the creation race, or a forced create collided with an
			// identical key. Point the caller at the surviving row.
			if existing, findErr := s.findDuplicate(ctx, ns); findErr == nil && existing != nil {
				return nil, &ConflictError{ExistingStoreID: existing.ID}
			}
			return nil, err
		}
		return nil, err
	}

	s.logger.Info("store created",
		zap.String("store_id", store.ID.String()),
		zap.String("name", store.Name),
		zap.String("created_by", ownerID.String()))

	return store, nil
}

func (s *storeService) findDuplicate(ctx context.Context, ns *submission.NormalizedStore) (*Store, error) {
	candidates, err := s.repo.FindActiveByNameKey(ctx, ns.NameKey)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		c := &candidates[i]
		if c.LocationKey == ns.LocationKey {
			return c, nil
		}
		if ns.Latitude != nil && ns.Longitude != nil && c.Latitude != nil && c.Longitude != nil &&
			geospatial.WithinRadius(*ns.Latitude, *ns.Longitude, *c.Latitude, *c.Longitude, s.dupRadius) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *storeService) Get(ctx context.Context, id uuid.UUID) (*Store, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *storeService) ListByStatus(ctx context.Context, status StoreStatus, requesterID uuid.UUID, cursor string, limit int) ([]Store, string, error) {
	if !status.Valid() {
		status = StatusUnverified
	}
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}
	after, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	page, err := s.repo.ListByStatus(ctx, status, requesterID, after, limit)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(page) == limit {
		last := page[len(page)-1]
		next = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return page, next, nil
}

func (s *storeService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Store, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Archive moves a store to archived. The transition is moderator-only at
// the HTTP boundary; here it is guarded by the lifecycle machine and a
// conditional update so it can never run backwards.
func (s *storeService) Archive(ctx context.Context, storeID, moderatorID uuid.UUID, reason string) (*Store, error) {
	store, err := s.repo.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !s.lifecycle.CanTransition(string(store.Status), string(StatusArchived)) {
		return nil, ErrAlreadyArchived
	}

	affected, err := s.repo.Archive(ctx, storeID, reason, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Another moderator archived it first.
		return nil, ErrAlreadyArchived
	}

	s.logger.Info("store archived",
		zap.String("store_id", storeID.String()),
		zap.String("moderator_id", moderatorID.String()),
		zap.String("reason", reason))

	return s.repo.GetByID(ctx, storeID)
}

func (s *storeService) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
