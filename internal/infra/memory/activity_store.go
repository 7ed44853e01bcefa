package memory

import (
	"context"
	"sync"

	"competition-service/internal/domain"
)

// ActivityLogStore keeps activity entries in insertion order.
type ActivityLogStore struct {
	mu      sync.RWMutex
	entries []domain.ActivityLogEntry
}

func NewActivityLogStore() *ActivityLogStore {
	return &ActivityLogStore{}
}

func (s *ActivityLogStore) Append(_ context.Context, entry *domain.ActivityLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *ActivityLogStore) CountForParticipation(_ context.Context, participationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.ParticipationID != nil && *e.ParticipationID == participationID {
			n++
		}
	}
	return n, nil
}

// ForUser returns the user's entries, oldest first.
func (s *ActivityLogStore) ForUser(userID string) []domain.ActivityLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ActivityLogEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (s *ActivityLogStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
