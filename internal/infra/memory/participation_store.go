package memory

import (
	"context"
	"sort"
	"sync"

	"competition-service/internal/domain"
)

// ParticipationStore is an in-memory implementation of app.ParticipationStore.
// Records are keyed by user; the map itself is the uniqueness constraint.
type ParticipationStore struct {
	mu     sync.RWMutex
	byUser map[string]*domain.Participation
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{
		byUser: make(map[string]*domain.Participation),
	}
}

func (s *ParticipationStore) FindActive(_ context.Context, userID string) (*domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byUser[userID]
	if !ok || p.Status != domain.StatusActive {
		return nil, nil
	}
	return p.Clone(), nil
}

func (s *ParticipationStore) FindActiveOrFinished(_ context.Context, userID string) (*domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byUser[userID]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// Create inserts p unless the user already has a participation in any status.
func (s *ParticipationStore) Create(_ context.Context, p *domain.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUser[p.UserID]; exists {
		return domain.ErrAlreadyActive
	}
	p.Version = 1
	s.byUser[p.UserID] = p.Clone()
	return nil
}

func (s *ParticipationStore) Save(_ context.Context, p *domain.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byUser[p.UserID]
	if !ok || current.ID != p.ID || current.Version != p.Version {
		return domain.ErrConcurrentUpdate
	}
	p.Version++
	s.byUser[p.UserID] = p.Clone()
	return nil
}

func (s *ParticipationStore) ListActive(context.Context) ([]domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participation, 0, len(s.byUser))
	for _, p := range s.byUser {
		if p.Status == domain.StatusActive {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *ParticipationStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser = make(map[string]*domain.Participation)
	return nil
}
