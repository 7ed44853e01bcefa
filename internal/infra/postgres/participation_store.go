package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"competition-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

type participationModel struct {
	bun.BaseModel `bun:"table:participations,alias:p"`

	ID            string               `bun:"id,pk"`
	UserID        string               `bun:"user_id,notnull"`
	StartTime     time.Time            `bun:"start_time,notnull"`
	EndTime       *time.Time           `bun:"end_time"`
	Status        string               `bun:"status,notnull"`
	Answers       []domain.AnswerEntry `bun:"answers,type:jsonb,notnull"`
	TimeRemaining *int64               `bun:"time_remaining"`
	Notes         string               `bun:"notes,nullzero"`
	Version       int                  `bun:"version,notnull"`
	CreatedAt     time.Time            `bun:"created_at,notnull"`
	UpdatedAt     time.Time            `bun:"updated_at,notnull"`
}

func toParticipationModel(p *domain.Participation) *participationModel {
	answers := p.Answers
	if answers == nil {
		answers = []domain.AnswerEntry{}
	}
	return &participationModel{
		ID:            p.ID,
		UserID:        p.UserID,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		Status:        string(p.Status),
		Answers:       answers,
		TimeRemaining: p.TimeRemaining,
		Notes:         p.Notes,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (m *participationModel) toDomain() *domain.Participation {
	return &domain.Participation{
		ID:            m.ID,
		UserID:        m.UserID,
		StartTime:     m.StartTime,
		EndTime:       m.EndTime,
		Status:        domain.ParticipationStatus(m.Status),
		Answers:       m.Answers,
		TimeRemaining: m.TimeRemaining,
		Notes:         m.Notes,
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ParticipationStore persists participations through bun. The unique
// constraint on user_id settles concurrent joins.
type ParticipationStore struct {
	db *bun.DB
}

func NewParticipationStore(db *bun.DB) *ParticipationStore {
	return &ParticipationStore{db: db}
}

func (s *ParticipationStore) FindActive(ctx context.Context, userID string) (*domain.Participation, error) {
	return s.findOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("p.user_id = ?", userID).Where("p.status = ?", string(domain.StatusActive))
	})
}

func (s *ParticipationStore) FindActiveOrFinished(ctx context.Context, userID string) (*domain.Participation, error) {
	return s.findOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("p.user_id = ?", userID)
	})
}

func (s *ParticipationStore) findOne(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) (*domain.Participation, error) {
	var m participationModel
	err := filter(s.db.NewSelect().Model(&m)).
		OrderExpr("p.created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select participation: %w", err)
	}
	return m.toDomain(), nil
}

func (s *ParticipationStore) Create(ctx context.Context, p *domain.Participation) error {
	m := toParticipationModel(p)
	m.Version = 1
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyActive
		}
		return fmt.Errorf("insert participation: %w", err)
	}
	p.Version = 1
	return nil
}

func (s *ParticipationStore) Save(ctx context.Context, p *domain.Participation) error {
	m := toParticipationModel(p)
	m.Version = p.Version + 1

	res, err := s.db.NewUpdate().
		Model(m).
		Column("end_time", "status", "answers", "time_remaining", "notes", "version", "updated_at").
		WherePK().
		Where("p.version = ?", p.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	if n == 0 {
		return domain.ErrConcurrentUpdate
	}
	p.Version = m.Version
	return nil
}

func (s *ParticipationStore) ListActive(ctx context.Context) ([]domain.Participation, error) {
	var models []participationModel
	err := s.db.NewSelect().
		Model(&models).
		Where("p.status = ?", string(domain.StatusActive)).
		OrderExpr("p.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active participations: %w", err)
	}
	out := make([]domain.Participation, 0, len(models))
	for i := range models {
		out = append(out, *models[i].toDomain())
	}
	return out, nil
}

func (s *ParticipationStore) Reset(ctx context.Context) error {
	_, err := s.db.NewDelete().Model((*participationModel)(nil)).Where("1 = 1").Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete participations: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation
}
