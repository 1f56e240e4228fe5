package verification

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"amala-joint/store-portal-backend/internal/events"
	"amala-joint/store-portal-backend/internal/stores"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SubmitConfirm(ctx context.Context, storeID, voterID uuid.UUID, evidence []byte, threshold int) (*ConfirmOutcome, error) {
	args := m.Called(ctx, storeID, voterID, evidence, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ConfirmOutcome), args.Error(1)
}

func (m *MockRepository) GetStoreState(ctx context.Context, storeID uuid.UUID) (*StoreState, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoreState), args.Error(1)
}

func (m *MockRepository) UpsertSuppression(ctx context.Context, storeID, voterID uuid.UUID) error {
	args := m.Called(ctx, storeID, voterID)
	return args.Error(0)
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturingPublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

func TestSubmitVerificationRejectsInvalidDecision(t *testing.T) {
	svc := NewService(new(MockRepository), &capturingPublisher{}, zap.NewNop(), 3, 3)

	_, err := svc.SubmitVerification(context.Background(), uuid.New(), uuid.New(), Decision("maybe"), Evidence{})
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestSubmitVerificationConfirmBelowQuorum(t *testing.T) {
	repo := new(MockRepository)
	pub := &capturingPublisher{}
	svc := NewService(repo, pub, zap.NewNop(), 3, 3)
	storeID, voterID := uuid.New(), uuid.New()

	repo.On("SubmitConfirm", mock.Anything, storeID, voterID, mock.Anything, 3).
		Return(&ConfirmOutcome{Status: stores.StatusUnverified, VerifyCount: 2}, nil)

	result, err := svc.SubmitVerification(context.Background(), storeID, voterID, DecisionConfirm, Evidence{Reason: "ate there yesterday"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	assert.Equal(t, 2, result.VerifyCount)
	assert.Empty(t, pub.published(), "no event below quorum")
	repo.AssertExpectations(t)
}

func TestSubmitVerificationQuorumReachedPublishesOnce(t *testing.T) {
	repo := new(MockRepository)
	pub := &capturingPublisher{}
	svc := NewService(repo, pub, zap.NewNop(), 3, 3)
	storeID, voterID := uuid.New(), uuid.New()

	repo.On("SubmitConfirm", mock.Anything, storeID, voterID, mock.Anything, 3).
		Return(&ConfirmOutcome{Status: stores.StatusVerified, VerifyCount: 3, Transitioned: true}, nil)

	result, err := svc.SubmitVerification(context.Background(), storeID, voterID, DecisionConfirm, Evidence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuorumReached, result.Outcome)
	assert.Equal(t, stores.StatusVerified, result.Status)

	published := pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeStoreVerified, published[0].Type)
	payload := published[0].Payload.(events.StoreVerified)
	assert.Equal(t, storeID, payload.StoreID)
	assert.Equal(t, 3, payload.VerifyCount)
}

func TestSubmitVerificationDuplicateVoteIsNoOp(t *testing.T) {
	repo := new(MockRepository)
	pub := &capturingPublisher{}
	svc := NewService(repo, pub, zap.NewNop(), 3, 3)
	storeID, voterID := uuid.New(), uuid.New()

	repo.On("SubmitConfirm", mock.Anything, storeID, voterID, mock.Anything, 3).
		Return(&ConfirmOutcome{Status: stores.StatusUnverified, VerifyCount: 2, Duplicate: true}, nil)

	result, err := svc.SubmitVerification(context.Background(), storeID, voterID, DecisionConfirm, Evidence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Equal(t, 2, result.VerifyCount)
	assert.Empty(t, pub.published())
}

func TestSubmitVerificationOnVerifiedStore(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, &capturingPublisher{}, zap.NewNop(), 3, 3)
	storeID := uuid.New()

	repo.On("SubmitConfirm", mock.Anything, storeID, mock.Anything, mock.Anything, 3).
		Return(&ConfirmOutcome{Status: stores.StatusVerified, VerifyCount: 3}, nil)

	result, err := svc.SubmitVerification(context.Background(), storeID, uuid.New(), DecisionConfirm, Evidence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyVerified, result.Outcome)
}

func TestSubmitVerificationSelfVoteRejected(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, &capturingPublisher{}, zap.NewNop(), 3, 3)
	storeID, ownerID := uuid.New(), uuid.New()

	repo.On("SubmitConfirm", mock.Anything, storeID, ownerID, mock.Anything, 3).
		Return(nil, ErrSelfVerification)

	_, err := svc.SubmitVerification(context.Background(), storeID, ownerID, DecisionConfirm, Evidence{})
	assert.ErrorIs(t, err, ErrSelfVerification)
}

func TestSubmitVerificationIgnoreSuppresses(t *testing.T) {
	repo := new(MockRepository)
	pub := &capturingPublisher{}
	svc := NewService(repo, pub, zap.NewNop(), 3, 3)
	storeID, voterID := uuid.New(), uuid.New()

	repo.On("GetStoreState", mock.Anything, storeID).
		Return(&StoreState{Status: stores.StatusUnverified, CreatedBy: uuid.New(), VerifyCount: 1}, nil)
	repo.On("UpsertSuppression", mock.Anything, storeID, voterID).Return(nil)

	result, err := svc.SubmitVerification(context.Background(), storeID, voterID, DecisionIgnore, Evidence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Equal(t, 1, result.VerifyCount, "ignore never touches the confirm count")
	assert.Empty(t, pub.published())
	repo.AssertExpectations(t)
}

func TestSubmitVerificationIgnoreUnknownStore(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, &capturingPublisher{}, zap.NewNop(), 3, 3)
	storeID := uuid.New()

	repo.On("GetStoreState", mock.Anything, storeID).Return(nil, ErrStoreNotFound)

	_, err := svc.SubmitVerification(context.Background(), storeID, uuid.New(), DecisionIgnore, Evidence{})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestSubmitVerificationRetriesTransientContention(t *testing.T) {
	repo := new(MockRepository)
	pub := &capturingPublisher{}
	svc := NewService(repo, pub, zap.NewNop(), 3, 3)
	storeID, voterID := uuid.New(), uuid.New()

	serialization := &pq.Error{Code: "40001"}
	repo.On("SubmitConfirm", mock.Anything, storeID, voterID, mock.Anything, 3).
		Return(nil, serialization).Twice()
	repo.On("SubmitConfirm", mock.Anything, storeID, voterID, mock.Anything, 3).
		Return(&ConfirmOutcome{Status: stores.StatusUnverified, VerifyCount: 1}, nil).Once()

	result, err := svc.SubmitVerification(context.Background(), storeID, voterID, DecisionConfirm, Evidence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, result.Outcome)
	repo.AssertExpectations(t)
}

func TestSubmitVerificationGivesUpAfterRetriesExhausted(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, &capturingPublisher{}, zap.NewNop(), 3, 2)
	storeID, voterID := uuid.New(), uuid.New()

	repo.On("SubmitConfirm", mock.Anything, storeID, voterID, mock.Anything, 3).
		Return(nil, &pq.Error{Code: "40P01"})

	_, err := svc.SubmitVerification(context.Background(), storeID, voterID, DecisionConfirm, Evidence{})
	assert.Error(t, err)
	repo.AssertNumberOfCalls(t, "SubmitConfirm", 2)
}

// memoryRepo mimics the transactional repository's contract in memory so the
// quorum race can be exercised with real goroutines.
type memoryRepo struct {
	mu      sync.Mutex
	status  stores.StoreStatus
	count   int
	owner   uuid.UUID
	voters  map[uuid.UUID]bool
	ignores map[uuid.UUID]bool
}

func newMemoryRepo(owner uuid.UUID) *memoryRepo {
	return &memoryRepo{
		status:  stores.StatusUnverified,
		owner:   owner,
		voters:  make(map[uuid.UUID]bool),
		ignores: make(map[uuid.UUID]bool),
	}
}

func (m *memoryRepo) SubmitConfirm(_ context.Context, _, voterID uuid.UUID, _ []byte, threshold int) (*ConfirmOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if voterID == m.owner {
		return nil, ErrSelfVerification
	}
	if m.status != stores.StatusUnverified {
		return &ConfirmOutcome{Status: m.status, VerifyCount: m.count}, nil
	}
	if m.voters[voterID] {
		return &ConfirmOutcome{Status: m.status, VerifyCount: m.count, Duplicate: true}, nil
	}
	m.voters[voterID] = true
	m.count++
	transitioned := false
	if m.count >= threshold {
		m.status = stores.StatusVerified
		transitioned = true
	}
	return &ConfirmOutcome{Status: m.status, VerifyCount: m.count, Transitioned: transitioned}, nil
}

func (m *memoryRepo) GetStoreState(context.Context, uuid.UUID) (*StoreState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &StoreState{Status: m.status, CreatedBy: m.owner, VerifyCount: m.count}, nil
}

func (m *memoryRepo) UpsertSuppression(_ context.Context, _, voterID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignores[voterID] = true
	return nil
}

func TestConcurrentConfirmsFireVerifiedEventExactlyOnce(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo(owner)
	pub := &capturingPublisher{}
	svc := NewService(repo, pub, zap.NewNop(), 3, 3)
	storeID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitVerification(context.Background(), storeID, uuid.New(), DecisionConfirm, Evidence{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	published := pub.published()
	require.Len(t, published, 1, "verified event must fire exactly once")
	assert.Equal(t, events.TypeStoreVerified, published[0].Type)
	assert.Equal(t, stores.StatusVerified, repo.status)
	assert.Equal(t, 3, repo.count, "confirms after the flip must not raise the count")
}
