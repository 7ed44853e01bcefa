package config

import (
	"fmt"
	"os"

	"competition-service/internal/domain"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

type questionBank struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadQuestions reads a YAML question bank and validates every entry.
func LoadQuestions(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bank questionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, err
	}
	if len(bank.Questions) == 0 {
		return nil, domain.ErrQuestionBankEmpty
	}

	seen := make(map[string]bool, len(bank.Questions))
	for i, q := range bank.Questions {
		if err := validateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %d (%s): %w", i, q.ID, err)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("question %d: duplicate id %q", i, q.ID)
		}
		seen[q.ID] = true
	}
	return bank.Questions, nil
}

func validateQuestion(q domain.Question) error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.ID, validation.Required),
		validation.Field(&q.Text, validation.Required),
		validation.Field(&q.Type, validation.Required,
			validation.In(domain.QuestionMCQ, domain.QuestionText, domain.QuestionCode)),
		validation.Field(&q.Options, validation.When(q.Type == domain.QuestionMCQ, validation.Required, validation.Length(2, 0))),
		validation.Field(&q.CorrectAnswer, validation.When(q.Type == domain.QuestionMCQ,
			validation.In(toInterfaces(q.Options)...).Error("must be one of the options"))),
		validation.Field(&q.Points, validation.Min(0)),
	)
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
