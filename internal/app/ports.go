package app

import (
	"context"
	"time"

	"competition-service/internal/domain"
)

// ParticipationStore persists participation records. At most one participation
// exists per user per competition instance; Create enforces it at the storage
// layer and reports the losing writer with domain.ErrAlreadyActive.
type ParticipationStore interface {
	// FindActive returns the user's active participation, or nil when there is none.
	FindActive(ctx context.Context, userID string) (*domain.Participation, error)
	// FindActiveOrFinished returns the user's participation in any status, or nil.
	FindActiveOrFinished(ctx context.Context, userID string) (*domain.Participation, error)
	Create(ctx context.Context, p *domain.Participation) error
	// Save writes the full state of p. It fails with domain.ErrConcurrentUpdate
	// when the stored version no longer matches p.Version, and bumps p.Version on success.
	Save(ctx context.Context, p *domain.Participation) error
	ListActive(ctx context.Context) ([]domain.Participation, error)
	Reset(ctx context.Context) error
}

// ActivityLogStore is the append-only sink for suspicious-activity entries.
type ActivityLogStore interface {
	Append(ctx context.Context, entry *domain.ActivityLogEntry) error
	CountForParticipation(ctx context.Context, participationID string) (int, error)
	Reset(ctx context.Context) error
}

// QuestionSource returns the canonical question bank, correct answers included.
type QuestionSource interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// Locker serializes read-modify-write sequences for one key (a user ID).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AuthProvider resolves a bearer token into an identity.
type AuthProvider interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

// TokenIssuer mints tokens for operators; implemented alongside AuthProvider.
type TokenIssuer interface {
	Issue(identity domain.Identity, ttl time.Duration) (string, error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
