package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"amala-joint/store-portal-backend/internal/events"
	"amala-joint/store-portal-backend/internal/stores"
)

// Outcome tells the caller what a submission actually did. AlreadyVerified
// and AlreadyArchived are stale-state results, safe to ignore or retry.
type Outcome string

const (
	OutcomeConfirmed       Outcome = "confirmed"
	OutcomeQuorumReached   Outcome = "quorum_reached"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeAlreadyVerified Outcome = "already_verified"
	OutcomeAlreadyArchived Outcome = "already_archived"
	OutcomeIgnored         Outcome = "ignored"
)

// Result is the typed, non-fatal response of SubmitVerification.
type Result struct {
	Status      stores.StoreStatus `json:"status"`
	VerifyCount int                `json:"verify_count"`
	Outcome     Outcome            `json:"outcome"`
}

// Service is the verification quorum engine.
type Service interface {
	SubmitVerification(ctx context.Context, storeID, voterID uuid.UUID, decision Decision, evidence Evidence) (*Result, error)
}

type quorumService struct {
	repo      Repository
	publisher events.Publisher
	logger    *zap.Logger
	threshold int
	attempts  int
}

func NewService(repo Repository, publisher events.Publisher, logger *zap.Logger, quorumThreshold, retryAttempts int) Service {
	if quorumThreshold < 1 {
		quorumThreshold = 3
	}
	if retryAttempts < 1 {
		retryAttempts = 3
	}
	return &quorumService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		threshold: quorumThreshold,
		attempts:  retryAttempts,
	}
}

// SubmitVerification records a vote against a store. Confirm votes count
// toward quorum, are idempotent per voter, and may flip the store to
// verified; Ignore votes only hide the store from the voter's pending
// queue.
func (s *quorumService) SubmitVerification(ctx context.Context, storeID, voterID uuid.UUID, decision Decision, evidence Evidence) (*Result, error) {
	if !decision.Valid() {
		return nil, ErrInvalidDecision
	}
	if decision == DecisionIgnore {
		return s.submitIgnore(ctx, storeID, voterID)
	}
	return s.submitConfirm(ctx, storeID, voterID, evidence)
}

func (s *quorumService) submitIgnore(ctx context.Context, storeID, voterID uuid.UUID) (*Result, error) {
	state, err := s.repo.GetStoreState(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpsertSuppression(ctx, storeID, voterID); err != nil {
		return nil, fmt.Errorf("verification: suppress store: %w", err)
	}
	return &Result{Status: state.Status, VerifyCount: state.VerifyCount, Outcome: OutcomeIgnored}, nil
}

func (s *quorumService) submitConfirm(ctx context.Context, storeID, voterID uuid.UUID, evidence Evidence) (*Result, error) {
	payload, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("verification: encode evidence: %w", err)
	}

	outcome, err := s.confirmWithRetry(ctx, storeID, voterID, payload)
	if err != nil {
		return nil, err
	}

	result := &Result{Status: outcome.Status, VerifyCount: outcome.VerifyCount}
	switch {
	case outcome.Transitioned:
		result.Outcome = OutcomeQuorumReached
		now := time.Now().UTC()
		s.publisher.Publish(events.Event{
			Type:      events.TypeStoreVerified,
			Timestamp: now,
			Payload: events.StoreVerified{
				StoreID:     storeID,
				VerifyCount: outcome.VerifyCount,
				VerifiedAt:  now,
			},
		})
		s.logger.Info("store reached verification quorum",
			zap.String("store_id", storeID.String()),
			zap.Int("verify_count", outcome.VerifyCount))
	case outcome.Duplicate:
		result.Outcome = OutcomeDuplicate
	case outcome.Status == stores.StatusVerified:
		result.Outcome = OutcomeAlreadyVerified
	case outcome.Status == stores.StatusArchived:
		result.Outcome = OutcomeAlreadyArchived
	default:
		result.Outcome = OutcomeConfirmed
	}
	return result, nil
}

// confirmWithRetry retries transient persistence contention with bounded
// exponential backoff. The confirm path is idempotent, so retrying is safe.
func (s *quorumService) confirmWithRetry(ctx context.Context, storeID, voterID uuid.UUID, evidence []byte) (*ConfirmOutcome, error) {
	backoff := 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		outcome, err := s.repo.SubmitConfirm(ctx, storeID, voterID, evidence, s.threshold)
		if err == nil {
			return outcome, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("transient contention on verification update, retrying",
			zap.String("store_id", storeID.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("verification: contention not resolved after %d attempts: %w", s.attempts, lastErr)
}
