package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"amala-joint/store-portal-backend/internal/stores"
	"amala-joint/store-portal-backend/internal/submission"
)

// DefaultIdleTimeout matches the product default of 15 minutes of dialogue
// inactivity before a session is considered abandoned.
const DefaultIdleTimeout = 15 * time.Minute

// StoreCreator is the slice of the store lifecycle manager the engine
// needs. Satisfied by stores.Service.
type StoreCreator interface {
	Create(ctx context.Context, ownerID uuid.UUID, ns *submission.NormalizedStore, force bool) (*stores.Store, error)
}

// Response is one dialogue turn's reply.
type Response struct {
	Prompt        string                      `json:"prompt"`
	CTAs          []CTA                       `json:"ctas"`
	SessionState  SessionState                `json:"session_state"`
	MissingFields []string                    `json:"missing_fields,omitempty"`
	FieldErrors   submission.ValidationErrors `json:"field_errors,omitempty"`
	StoreID       *uuid.UUID                  `json:"store_id,omitempty"`
	ShareLink     string                      `json:"share_link,omitempty"`
}

// Engine is the per-conversation slot-filling state machine. Sessions are
// independent and processed concurrently; utterances within one session are
// serialized on the session lock.
type Engine struct {
	extractor IntentExtractor
	creator   StoreCreator
	timeout   time.Duration
	linkBase  string
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type EngineOpts struct {
	Extractor   IntentExtractor
	Creator     StoreCreator
	IdleTimeout time.Duration
	// ShareLinkBase prefixes the shareable link returned on Done.
	ShareLinkBase string
	Logger        *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Extractor == nil {
		return nil, fmt.Errorf("dialogue: engine: extractor is required")
	}
	if opts.Creator == nil {
		return nil, fmt.Errorf("dialogue: engine: store creator is required")
	}
	timeout := opts.IdleTimeout
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		extractor: opts.Extractor,
		creator:   opts.Creator,
		timeout:   timeout,
		linkBase:  strings.TrimRight(opts.ShareLinkBase, "/"),
		logger:    logger,
		now:       now,
		sessions:  make(map[string]*Session),
	}, nil
}

// IngestUtterance processes one dialogue turn. Utterances for the same
// session id are handled strictly in arrival order.
func (e *Engine) IngestUtterance(ctx context.Context, sessionID string, userID uuid.UUID, utterance string) (*Response, error) {
	sess := e.session(sessionID, userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	convCtx := ConversationContext{
		SessionID:    sess.ID,
		State:        sess.State,
		FilledSlots:  sess.filledFields(),
		MissingSlots: sess.missingFields(),
	}

	extracted, err := e.extractor.Extract(ctx, utterance, convCtx)
	if err != nil {
		// The oracle is an external collaborator; degrade to a plain chat
		// turn rather than failing the conversation.
		e.logger.Warn("intent extraction failed", zap.String("session_id", sessionID), zap.Error(err))
		extracted = &ExtractedIntent{Intent: IntentChat}
	}

	resp := e.advance(ctx, sess, extracted)
	sess.LastActivityAt = e.now()
	resp.SessionState = sess.State
	return resp, nil
}

// session returns the live session for an id, replacing expired or finished
// sessions with a fresh one holding empty slots.
func (e *Engine) session(sessionID string, userID uuid.UUID) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	sess, ok := e.sessions[sessionID]
	if ok && !sess.stale(e.timeout, now) {
		return sess
	}
	if ok {
		e.logger.Debug("restarting session", zap.String("session_id", sessionID))
	}
	sess = newSession(sessionID, userID, now)
	e.sessions[sessionID] = sess
	return sess
}

// advance applies the extracted intent to the session state machine.
func (e *Engine) advance(ctx context.Context, sess *Session, extracted *ExtractedIntent) *Response {
	if sess.mergeFields(extracted.Fields) {
		// The draft changed, so a remembered conflict no longer describes
		// it; the next submit must re-run the duplicate check.
		sess.pendingConflict = nil
	}

	switch {
	case extracted.Intent == IntentCancel:
		sess.State = StateAbandoned
		return &Response{Prompt: "Okay, I've discarded that draft. Come back anytime you find a new spot."}

	case extracted.Intent == IntentConfirm && sess.State == StateConfirming:
		return e.submit(ctx, sess, false)

	case extracted.Intent == IntentCreateAnyway && sess.State == StateConfirming && sess.pendingConflict != nil:
		return e.submit(ctx, sess, true)
	}

	if extracted.Intent == IntentAddStore {
		sess.goalSeen = true
	}

	missing := sess.missingFields()
	if len(missing) > 0 {
		sess.State = StateCollecting
		return &Response{
			Prompt:        missingPrompt(missing),
			MissingFields: missing,
		}
	}

	if sess.goalSeen {
		sess.State = StateConfirming
		return &Response{
			Prompt: draftPrompt(sess),
			CTAs:   []CTA{newCTA(CTAConfirmSubmission, "Submit this store", "")},
		}
	}

	return &Response{Prompt: "I can help you add a food spot to the directory. Just tell me about one!"}
}

// submit validates the draft and hands it to the lifecycle manager.
func (e *Engine) submit(ctx context.Context, sess *Session, force bool) *Response {
	sess.State = StateSubmitting

	payload := submission.StorePayload{
		Name:        sess.Slots["name"],
		Phone:       sess.Slots["phone"],
		Location:    sess.Slots["location"],
		OpensAt:     sess.Slots["opensAt"],
		ClosesAt:    sess.Slots["closesAt"],
		Description: sess.Slots["description"],
	}

	normalized, verrs := submission.Validate(payload)
	if verrs != nil {
		// Drop the rejected values so the re-prompt covers them again.
		for _, fe := range verrs {
			delete(sess.Slots, fe.Field)
		}
		sess.State = StateCollecting
		sess.pendingConflict = nil
		missing := sess.missingFields()
		return &Response{
			Prompt:        "A few details didn't check out. " + missingPrompt(missing),
			MissingFields: missing,
			FieldErrors:   verrs,
		}
	}

	store, err := e.creator.Create(ctx, sess.UserID, normalized, force)
	if err != nil {
		if conflict, ok := stores.AsConflict(err); ok {
			sess.State = StateConfirming
			sess.pendingConflict = &conflict.ExistingStoreID
			return &Response{
				Prompt: "Looks like a store with that name is already listed nearby. You can view it, or add yours anyway.",
				CTAs: []CTA{
					newCTA(CTAViewStore, "View existing store", e.shareLink(conflict.ExistingStoreID)),
					newCTA(CTACreateAnyway, "Add mine anyway", ""),
				},
			}
		}

		e.logger.Error("store creation from dialogue failed",
			zap.String("session_id", sess.ID), zap.Error(err))
		sess.State = StateConfirming
		return &Response{
			Prompt: "Something went wrong saving your store. Want to try submitting again?",
			CTAs:   []CTA{newCTA(CTAConfirmSubmission, "Try again", "")},
		}
	}

	sess.State = StateDone
	link := e.shareLink(store.ID)
	return &Response{
		Prompt:    fmt.Sprintf("All done! %s is now listed and waiting for the community to verify it. Share it around: %s", store.Name, link),
		StoreID:   &store.ID,
		ShareLink: link,
		CTAs:      []CTA{newCTA(CTAExternalLink, "Share this store", link)},
	}
}

// SweepExpired garbage-collects idle sessions. Runs on a cron schedule; the
// access path also treats expired sessions as abandoned, so the sweep is an
// eviction, not a correctness requirement.
func (e *Engine) SweepExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	removed := 0
	for id, sess := range e.sessions {
		if sess.stale(e.timeout, now) {
			delete(e.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		e.logger.Debug("swept dialogue sessions", zap.Int("removed", removed))
	}
	return removed
}

func (e *Engine) shareLink(id uuid.UUID) string {
	if e.linkBase == "" {
		return "/stores/" + id.String()
	}
	return e.linkBase + "/" + id.String()
}

// slotLabels maps slot names to conversational names for prompts.
var slotLabels = map[string]string{
	"name":        "the store's name",
	"phone":       "a phone number",
	"location":    "where it is",
	"opensAt":     "when it opens",
	"closesAt":    "when it closes",
	"description": "a short description",
}

// missingPrompt enumerates every missing field in one message so the user
// can answer several at once.
func missingPrompt(missing []string) string {
	labels := make([]string, len(missing))
	for i, slot := range missing {
		labels[i] = slotLabels[slot]
	}
	return "I still need " + joinNaturally(labels) + "."
}

func draftPrompt(sess *Session) string {
	var b strings.Builder
	b.WriteString("Here's what I've got:\n")
	fmt.Fprintf(&b, "• Name: %s\n", sess.Slots["name"])
	fmt.Fprintf(&b, "• Phone: %s\n", sess.Slots["phone"])
	fmt.Fprintf(&b, "• Location: %s\n", sess.Slots["location"])
	fmt.Fprintf(&b, "• Hours: %s – %s\n", sess.Slots["opensAt"], sess.Slots["closesAt"])
	fmt.Fprintf(&b, "• Description: %s\n", sess.Slots["description"])
	b.WriteString("Ready to submit?")
	return b.String()
}

func joinNaturally(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
