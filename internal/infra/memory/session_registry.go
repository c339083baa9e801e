package memory

import (
	"context"
	"sync"
)

// SessionRegistry is the in-memory single-device session marker.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]string)}
}

func (r *SessionRegistry) Put(_ context.Context, quizID, teamID, sessionID string) error {
	r.mu.Lock()
	r.sessions[quizID+"/"+teamID] = sessionID
	r.mu.Unlock()
	return nil
}

func (r *SessionRegistry) Get(_ context.Context, quizID, teamID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[quizID+"/"+teamID], nil
}
