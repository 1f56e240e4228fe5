package workflows

// StateMachine enforces store status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStoreLifecycle creates the state machine governing store statuses.
// Transitions only move forward; archived is terminal.
func NewStoreLifecycle() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"unverified": {"verified", "archived"},
			"verified":   {"archived"},
			"archived":   {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
