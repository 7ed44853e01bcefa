package app

import (
	"strings"
	"time"

	"competition-service/internal/domain"
)

// AnswerLedger maintains the one-entry-per-question answer list of a participation.
type AnswerLedger struct{}

// Upsert records raw as the answer to question, replacing any earlier entry.
// Blank answers are rejected without touching the ledger.
func (AnswerLedger) Upsert(p *domain.Participation, question domain.Question, raw string, at time.Time) (domain.AnswerEntry, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.AnswerEntry{}, domain.ErrEmptyAnswer
	}

	answer := raw
	// code is whitespace-sensitive
	if question.Type != domain.QuestionCode {
		answer = strings.TrimSpace(raw)
	}

	entry := domain.AnswerEntry{
		QuestionID:  question.ID,
		Answer:      answer,
		SubmittedAt: at,
	}
	for i := range p.Answers {
		if p.Answers[i].QuestionID == question.ID {
			p.Answers[i] = entry
			return entry, nil
		}
	}
	p.Answers = append(p.Answers, entry)
	return entry, nil
}

// QuestionResult is the per-question line of a results report.
type QuestionResult struct {
	QuestionID   string              `json:"questionId"`
	QuestionText string              `json:"questionText"`
	YourAnswer   string              `json:"yourAnswer"`
	SubmittedAt  *time.Time          `json:"submittedAt,omitempty"`
	Type         domain.QuestionType `json:"type"`
	Points       int                 `json:"points"`
	Options      []string            `json:"options,omitempty"`
}

// ResultsFor lines the ledger up against the canonical question list. MCQ answers
// that no longer match a current option are reported as empty.
func (AnswerLedger) ResultsFor(p *domain.Participation, questions []domain.Question) []QuestionResult {
	results := make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		res := QuestionResult{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Type:         q.Type,
			Points:       q.Points,
		}
		if q.Type == domain.QuestionMCQ {
			res.Options = q.Options
		}
		if entry, ok := p.Answer(q.ID); ok {
			submitted := entry.SubmittedAt
			res.SubmittedAt = &submitted
			res.YourAnswer = entry.Answer
			if q.Type == domain.QuestionMCQ && !q.HasOption(entry.Answer) {
				res.YourAnswer = ""
			}
		}
		results = append(results, res)
	}
	return results
}

func answeredCount(results []QuestionResult) int {
	n := 0
	for _, r := range results {
		if strings.TrimSpace(r.YourAnswer) != "" {
			n++
		}
	}
	return n
}

func findQuestion(questions []domain.Question, id string) (domain.Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}
