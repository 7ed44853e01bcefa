package app

import (
	"time"

	"competition-service/internal/domain"
)

// WindowView is the public description of the competition window at Now.
type WindowView struct {
	StartTime                 time.Time    `json:"startTime"`
	EntranceDeadline          time.Time    `json:"entranceDeadline"`
	AbsoluteEndTime           time.Time    `json:"absoluteEndTime"`
	Length                    int64        `json:"competitionLength"`
	EntranceDuration          int64        `json:"entranceDuration"`
	Phase                     domain.Phase `json:"phase"`
	Now                       time.Time    `json:"currentServerTime"`
	SecondsUntilStart         int64        `json:"secondsUntilStart"`
	SecondsUntilEntranceClose int64        `json:"secondsUntilEntranceClose"`
	SecondsUntilEnd           int64        `json:"secondsUntilEnd"`
}

// StatusView reports where a user is in the lifecycle.
type StatusView struct {
	Status           domain.ParticipationStatus `json:"status"`
	StartTime        *time.Time                 `json:"startTime,omitempty"`
	EndTime          *time.Time                 `json:"endTime,omitempty"`
	RemainingSeconds int64                      `json:"remainingSeconds"`
}

// ProgressView extends StatusView with the ledger.
type ProgressView struct {
	StatusView
	RemainingFormatted string               `json:"remainingFormatted"`
	Answers            []domain.AnswerEntry `json:"answers"`
	AnsweredCount      int                  `json:"answeredCount"`
	Notes              string               `json:"notes,omitempty"`
}

// JoinResult is returned by Join, and alongside ErrAlreadyActive for the existing session.
type JoinResult struct {
	ParticipationID  string                  `json:"participationId"`
	StartTime        time.Time               `json:"startTime"`
	EndTime          time.Time               `json:"endTime"`
	RemainingSeconds int64                   `json:"remainingSeconds"`
	Questions        []domain.PublicQuestion `json:"questions"`
}

// FinishResult is returned by Finish.
type FinishResult struct {
	EndTime time.Time `json:"endTime"`
}

// ActivityAck acknowledges an activity report.
type ActivityAck struct {
	Acknowledged  bool `json:"acknowledged"`
	WarningCount  int  `json:"warningCount"`
	AutoSubmitted bool `json:"autoSubmitted"`
}

// ResultsView is the end-of-competition report for one user.
type ResultsView struct {
	TotalQuestions   int                        `json:"totalQuestions"`
	Questions        []domain.PublicQuestion    `json:"questions"`
	UserAnswers      []QuestionResult           `json:"userAnswers"`
	AnsweredCount    int                        `json:"answeredQuestions"`
	StartTime        time.Time                  `json:"startTime"`
	EndTime          time.Time                  `json:"endTime"`
	SubmissionTime   time.Time                  `json:"submissionTime"`
	TimeSpentMinutes int64                      `json:"timeSpent"`
	Status           domain.ParticipationStatus `json:"status"`
	Notes            string                     `json:"notes,omitempty"`
}
