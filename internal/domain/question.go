package domain

// QuestionType selects how answers are normalized and reported.
type QuestionType string

const (
	QuestionMCQ  QuestionType = "mcq"
	QuestionText QuestionType = "text"
	QuestionCode QuestionType = "code"
)

// TestCase is an input/expected-output pair for code questions.
type TestCase struct {
	Input          string `json:"input" yaml:"input"`
	ExpectedOutput string `json:"expectedOutput" yaml:"expected_output"`
}

// Question is a question bank entry, including its correct answer.
type Question struct {
	ID            string       `json:"id" yaml:"id"`
	Text          string       `json:"text" yaml:"text"`
	Type          QuestionType `json:"type" yaml:"type"`
	Options       []string     `json:"options,omitempty" yaml:"options"`
	CorrectAnswer string       `json:"correctAnswer" yaml:"correct_answer"`
	Points        int          `json:"points" yaml:"points"`
	Language      string       `json:"language,omitempty" yaml:"language"`
	StarterCode   string       `json:"starterCode,omitempty" yaml:"starter_code"`
	TestCases     []TestCase   `json:"testCases,omitempty" yaml:"test_cases"`
}

// HasOption reports whether answer is literally one of the current options.
func (q Question) HasOption(answer string) bool {
	for _, opt := range q.Options {
		if opt == answer {
			return true
		}
	}
	return false
}

// PublicTestCase exposes only the input of a test case.
type PublicTestCase struct {
	Input string `json:"input"`
}

// PublicQuestion is the participant-facing view of a question: no correct
// answer, no expected outputs.
type PublicQuestion struct {
	ID          string           `json:"id"`
	Text        string           `json:"text"`
	Type        QuestionType     `json:"type"`
	Options     []string         `json:"options,omitempty"`
	Points      int              `json:"points"`
	Language    string           `json:"language,omitempty"`
	StarterCode string           `json:"starterCode,omitempty"`
	TestCases   []PublicTestCase `json:"testCases,omitempty" copier:"-"`
}
