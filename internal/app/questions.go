package app

import (
	"competition-service/internal/domain"
	"github.com/jinzhu/copier"
)

// PublicQuestions strips correct answers and expected outputs from the bank.
func PublicQuestions(questions []domain.Question) ([]domain.PublicQuestion, error) {
	out := make([]domain.PublicQuestion, 0, len(questions))
	for i := range questions {
		q := questions[i]
		var pq domain.PublicQuestion
		if err := copier.CopyWithOption(&pq, &q, copier.Option{DeepCopy: true}); err != nil {
			return nil, err
		}
		if q.Type != domain.QuestionMCQ {
			pq.Options = nil
		}
		for _, tc := range q.TestCases {
			pq.TestCases = append(pq.TestCases, domain.PublicTestCase{Input: tc.Input})
		}
		out = append(out, pq)
	}
	return out, nil
}
