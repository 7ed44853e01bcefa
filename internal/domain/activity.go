package domain

import (
	"encoding/json"
	"time"
)

// ActivityType enumerates the suspicious client-side events we record.
type ActivityType string

const (
	ActivityTabSwitch        ActivityType = "tab_switch"
	ActivityFullscreenExit   ActivityType = "fullscreen_exit"
	ActivityCopyPaste        ActivityType = "copy_paste"
	ActivityKeyboardShortcut ActivityType = "keyboard_shortcut"
	ActivityMultipleDevices  ActivityType = "multiple_devices"
	ActivityOther            ActivityType = "other"
)

// ActivityTypes lists every accepted activity type.
var ActivityTypes = []ActivityType{
	ActivityTabSwitch,
	ActivityFullscreenExit,
	ActivityCopyPaste,
	ActivityKeyboardShortcut,
	ActivityMultipleDevices,
	ActivityOther,
}

func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity grades an activity entry for reviewers.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// DefaultSeverity applies to every entry the client does not grade itself.
const DefaultSeverity = SeverityMedium

// ActivityLogEntry is an append-only forensic record of one anomaly.
type ActivityLogEntry struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	ParticipationID *string         `json:"participationId,omitempty"`
	Type            ActivityType    `json:"type"`
	Timestamp       time.Time       `json:"timestamp"`
	ReportedAt      *time.Time      `json:"reportedAt,omitempty"`
	Details         json.RawMessage `json:"details,omitempty"`
	WarningCount    int             `json:"warningCount"`
	Severity        Severity        `json:"severity"`
	IPAddress       string          `json:"ipAddress,omitempty"`
	UserAgent       string          `json:"userAgent,omitempty"`
}
