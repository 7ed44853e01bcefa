package domain

import "time"

// ParticipationStatus is the lifecycle state of one user's attempt.
type ParticipationStatus string

const (
	StatusActive       ParticipationStatus = "active"
	StatusCompleted    ParticipationStatus = "completed"
	StatusDisqualified ParticipationStatus = "disqualified"

	// StatusNotStarted is only reported to callers; it is never persisted.
	StatusNotStarted ParticipationStatus = "not_started"
)

// Terminal reports whether no further joins or submissions are allowed.
func (s ParticipationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDisqualified
}

// AnswerEntry is one ledger row: the latest answer given for a question.
type AnswerEntry struct {
	QuestionID  string    `json:"questionId"`
	Answer      string    `json:"answer"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Participation is one user's attempt within the competition instance.
type Participation struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	StartTime time.Time           `json:"startTime"`
	EndTime   *time.Time          `json:"endTime,omitempty"`
	Status    ParticipationStatus `json:"status"`
	Answers   []AnswerEntry       `json:"answers"`
	// TimeRemaining is a snapshot taken at the last write. Never trust it for decisions.
	TimeRemaining *int64    `json:"timeRemaining,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Version       int       `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Answer returns the ledger entry for questionID, if any.
func (p *Participation) Answer(questionID string) (AnswerEntry, bool) {
	for _, a := range p.Answers {
		if a.QuestionID == questionID {
			return a, true
		}
	}
	return AnswerEntry{}, false
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (p *Participation) Clone() *Participation {
	if p == nil {
		return nil
	}
	cp := *p
	if p.EndTime != nil {
		end := *p.EndTime
		cp.EndTime = &end
	}
	if p.TimeRemaining != nil {
		tr := *p.TimeRemaining
		cp.TimeRemaining = &tr
	}
	cp.Answers = append([]AnswerEntry(nil), p.Answers...)
	return &cp
}

// Role distinguishes regular competitors from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller as resolved by the auth provider.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
