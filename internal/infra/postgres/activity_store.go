package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"competition-service/internal/domain"
	"github.com/uptrace/bun"
)

type activityModel struct {
	bun.BaseModel `bun:"table:activity_logs,alias:a"`

	ID              string          `bun:"id,pk"`
	UserID          string          `bun:"user_id,notnull"`
	ParticipationID *string         `bun:"participation_id"`
	Type            string          `bun:"activity_type,notnull"`
	Timestamp       time.Time       `bun:"timestamp,notnull"`
	ReportedAt      *time.Time      `bun:"reported_at"`
	Details         json.RawMessage `bun:"details,type:jsonb,nullzero"`
	WarningCount    int             `bun:"warning_count,notnull"`
	Severity        string          `bun:"severity,notnull"`
	IPAddress       string          `bun:"ip_address,nullzero"`
	UserAgent       string          `bun:"user_agent,nullzero"`
}

// ActivityLogStore appends activity entries to activity_logs.
type ActivityLogStore struct {
	db *bun.DB
}

func NewActivityLogStore(db *bun.DB) *ActivityLogStore {
	return &ActivityLogStore{db: db}
}

func (s *ActivityLogStore) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	m := &activityModel{
		ID:              entry.ID,
		UserID:          entry.UserID,
		ParticipationID: entry.ParticipationID,
		Type:            string(entry.Type),
		Timestamp:       entry.Timestamp,
		ReportedAt:      entry.ReportedAt,
		Details:         entry.Details,
		WarningCount:    entry.WarningCount,
		Severity:        string(entry.Severity),
		IPAddress:       entry.IPAddress,
		UserAgent:       entry.UserAgent,
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (s *ActivityLogStore) CountForParticipation(ctx context.Context, participationID string) (int, error) {
	n, err := s.db.NewSelect().
		Model((*activityModel)(nil)).
		Where("a.participation_id = ?", participationID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count activity logs: %w", err)
	}
	return n, nil
}

// ForUser returns the user's entries, oldest first.
func (s *ActivityLogStore) ForUser(ctx context.Context, userID string) ([]domain.ActivityLogEntry, error) {
	var models []activityModel
	err := s.db.NewSelect().
		Model(&models).
		Where("a.user_id = ?", userID).
		OrderExpr("a.timestamp ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select activity logs: %w", err)
	}
	out := make([]domain.ActivityLogEntry, 0, len(models))
	for _, m := range models {
		out = append(out, domain.ActivityLogEntry{
			ID:              m.ID,
			UserID:          m.UserID,
			ParticipationID: m.ParticipationID,
			Type:            domain.ActivityType(m.Type),
			Timestamp:       m.Timestamp,
			ReportedAt:      m.ReportedAt,
			Details:         m.Details,
			WarningCount:    m.WarningCount,
			Severity:        domain.Severity(m.Severity),
			IPAddress:       m.IPAddress,
			UserAgent:       m.UserAgent,
		})
	}
	return out, nil
}

func (s *ActivityLogStore) Reset(ctx context.Context) error {
	_, err := s.db.NewDelete().Model((*activityModel)(nil)).Where("1 = 1").Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete activity logs: %w", err)
	}
	return nil
}
