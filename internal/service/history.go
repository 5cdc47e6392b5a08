package service

import (
	"sync"

	"yobot/internal/model"
)

// HistoryStore keeps the most recent chat turns per session in memory.
// Each session holds at most maxTurns user/assistant pairs.
type HistoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]model.ChatTurn
	maxTurns int
}

// NewHistoryStore creates a store bounded to maxTurns pairs per session.
// maxTurns of 0 disables history.
func NewHistoryStore(maxTurns int) *HistoryStore {
	return &HistoryStore{
		sessions: make(map[string][]model.ChatTurn),
		maxTurns: maxTurns,
	}
}

// Get returns a copy of the session's turns, oldest first
func (h *HistoryStore) Get(sessionID string) []model.ChatTurn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	turns := h.sessions[sessionID]
	out := make([]model.ChatTurn, len(turns))
	copy(out, turns)
	return out
}

// Append records a completed exchange and drops the oldest pairs beyond the bound
func (h *HistoryStore) Append(sessionID, userMessage, reply string) {
	if h.maxTurns <= 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	turns := append(h.sessions[sessionID],
		model.ChatTurn{Role: model.RoleUser, Content: userMessage},
		model.ChatTurn{Role: model.RoleAssistant, Content: reply},
	)
	if limit := 2 * h.maxTurns; len(turns) > limit {
		trimmed := make([]model.ChatTurn, limit)
		copy(trimmed, turns[len(turns)-limit:])
		turns = trimmed
	}
	h.sessions[sessionID] = turns
}

// MaxTurns returns the per-session bound in user/assistant pairs
func (h *HistoryStore) MaxTurns() int {
	return h.maxTurns
}

// Clear forgets a session
func (h *HistoryStore) Clear(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}

// Sessions returns how many sessions have history
func (h *HistoryStore) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
