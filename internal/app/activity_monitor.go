package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"competition-service/internal/domain"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultWarningThreshold is the warning count a participant may reach before
// the session is auto-submitted on the next report.
const DefaultWarningThreshold = 3

// ActivityReport is a client-side anomaly report.
type ActivityReport struct {
	Type         domain.ActivityType
	Details      json.RawMessage
	WarningCount int
	ReportedAt   *time.Time
	IPAddress    string
	UserAgent    string
}

// ActivityMonitor records anomaly reports and decides when they end a session.
type ActivityMonitor struct {
	logs             ActivityLogStore
	threshold        int
	trustClientCount bool
	logger           *zap.Logger
}

func NewActivityMonitor(logs ActivityLogStore, threshold int, trustClientCount bool, logger *zap.Logger) *ActivityMonitor {
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityMonitor{
		logs:             logs,
		threshold:        threshold,
		trustClientCount: trustClientCount,
		logger:           logger,
	}
}

// Record appends an entry for the report whether or not the user has an active
// participation. Store failures are logged and swallowed. The returned entry
// carries the warning count that enforcement should use.
func (m *ActivityMonitor) Record(ctx context.Context, userID string, active *domain.Participation, report ActivityReport, now time.Time) domain.ActivityLogEntry {
	entry := domain.ActivityLogEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         report.Type,
		Timestamp:    now,
		ReportedAt:   report.ReportedAt,
		Details:      report.Details,
		WarningCount: report.WarningCount,
		Severity:     severityOf(report),
		IPAddress:    report.IPAddress,
		UserAgent:    report.UserAgent,
	}
	if active != nil {
		pid := active.ID
		entry.ParticipationID = &pid
		if !m.trustClientCount {
			entry.WarningCount = m.serverCount(ctx, active.ID, report.WarningCount)
		}
	}

	if err := m.logs.Append(ctx, &entry); err != nil {
		m.logger.Warn("activity log append failed",
			zap.String("user_id", userID),
			zap.String("type", string(report.Type)),
			zap.Error(err))
	}
	return entry
}

func (m *ActivityMonitor) serverCount(ctx context.Context, participationID string, fallback int) int {
	n, err := m.logs.CountForParticipation(ctx, participationID)
	if err != nil {
		m.logger.Warn("activity count failed, using reported count",
			zap.String("participation_id", participationID),
			zap.Error(err))
		return fallback
	}
	return n + 1
}

// EnforceThreshold completes p when warningCount exceeds the threshold. It
// reports whether p was transitioned; the caller persists it.
func (m *ActivityMonitor) EnforceThreshold(p *domain.Participation, warningCount int, now time.Time) bool {
	if p == nil || p.Status != domain.StatusActive || warningCount <= m.threshold {
		return false
	}
	end := now
	p.Status = domain.StatusCompleted
	p.EndTime = &end
	p.Notes = fmt.Sprintf("Auto-submitted due to %d suspicious activity warnings", warningCount)
	p.UpdatedAt = now
	return true
}

func severityOf(report ActivityReport) domain.Severity {
	if len(report.Details) > 0 && gjson.ValidBytes(report.Details) {
		hint := domain.Severity(gjson.GetBytes(report.Details, "severity").String())
		if hint.Valid() {
			return hint
		}
	}
	return domain.DefaultSeverity
}
