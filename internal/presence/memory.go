package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRegistry keeps sessions in process memory.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{}
}

// NewMemoryRegistry creates MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, userID string) (Session, error) {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, ok := r.sessions[userID]
	if !ok {
		sessions = make(map[string]struct{})
		r.sessions[userID] = sessions
	}
	sessions[id] = struct{}{}
	return Session{ID: id, First: len(sessions) == 1}, nil
}

func (r *MemoryRegistry) Deregister(_ context.Context, userID string, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, ok := r.sessions[userID]
	if !ok {
		return false, nil
	}
	if _, ok := sessions[sessionID]; !ok {
		return false, nil
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(r.sessions, userID)
		return true, nil
	}
	return false, nil
}

func (r *MemoryRegistry) Online(_ context.Context, userIDs []string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		result[id] = len(r.sessions[id]) > 0
	}
	return result, nil
}

// NumSessions returns number of registered sessions of user.
func (r *MemoryRegistry) NumSessions(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}
