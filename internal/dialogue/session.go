package dialogue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is the slot-filling state of one conversation
type SessionState string

const (
	StateCollecting SessionState = "collecting"
	StateConfirming SessionState = "confirming"
	StateSubmitting SessionState = "submitting"
	StateDone       SessionState = "done"
	StateAbandoned  SessionState = "abandoned"
)

// requiredSlots is the fixed prompting order. Users may fill several slots
// in one reply; the missing-fields prompt always enumerates in this order.
var requiredSlots = []string{"name", "phone", "location", "opensAt", "closesAt", "description"}

// Session is one conversation's slot-filling state. Access is serialized by
// the engine: exactly one in-flight utterance per session id.
type Session struct {
	ID             string
	UserID         uuid.UUID
	Slots          map[string]string
	State          SessionState
	LastActivityAt time.Time

	// goalSeen is set once the oracle reports an add_store intent, so a
	// later message that completes the slots still advances to confirming.
	goalSeen bool
	// pendingConflict holds the existing store id after a duplicate
	// conflict, enabling the explicit create-anyway choice.
	pendingConflict *uuid.UUID

	mu sync.Mutex
}

func newSession(id string, userID uuid.UUID, now time.Time) *Session {
	return &Session{
		ID:             id,
		UserID:         userID,
		Slots:          make(map[string]string),
		State:          StateCollecting,
		LastActivityAt: now,
	}
}

// expired reports whether the session has been idle past the timeout.
// Caller must hold s.mu.
func (s *Session) expired(timeout time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivityAt) >= timeout
}

// terminal reports whether the session can accept no further turns.
// Caller must hold s.mu.
func (s *Session) terminal() bool {
	return s.State == StateDone || s.State == StateAbandoned
}

// stale reports whether the session is finished or idle-expired. It takes
// the session lock itself so the engine can check sessions it does not hold.
func (s *Session) stale(timeout time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal() || s.expired(timeout, now)
}

// missingFields returns the unfilled required slots in prompting order.
func (s *Session) missingFields() []string {
	missing := make([]string, 0, len(requiredSlots))
	for _, slot := range requiredSlots {
		if s.Slots[slot] == "" {
			missing = append(missing, slot)
		}
	}
	return missing
}

// mergeFields applies the oracle's extracted fields, last write wins per
// field. Unknown field names are dropped. Reports whether any slot changed.
func (s *Session) mergeFields(fields map[string]string) bool {
	changed := false
	for _, slot := range requiredSlots {
		if v, ok := fields[slot]; ok && v != "" && s.Slots[slot] != v {
			s.Slots[slot] = v
			changed = true
		}
	}
	return changed
}

// filledFields returns the filled slot names in prompting order.
func (s *Session) filledFields() []string {
	filled := make([]string, 0, len(requiredSlots))
	for _, slot := range requiredSlots {
		if s.Slots[slot] != "" {
			filled = append(filled, slot)
		}
	}
	return filled
}
