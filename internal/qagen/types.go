package qagen

import "fmt"

// QuestionType selects the output contract of a generated item.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// DefaultQuestionTypes is used when a request names no types.
var DefaultQuestionTypes = []QuestionType{MultipleChoice, ShortAnswer}

// ParseQuestionType validates s.
func ParseQuestionType(s string) (QuestionType, error) {
	switch qt := QuestionType(s); qt {
	case MultipleChoice, ShortAnswer, Essay:
		return qt, nil
	}
	return "", fmt.Errorf("unknown question type %q (want multiple_choice, short_answer or essay)", s)
}

// Difficulty is the requested difficulty of generated items.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty validates s.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", s)
}

// Item is one generated question/answer pair.
type Item struct {
	Question string
	// Answer is the plain answer for short_answer and essay items. For
	// multiple_choice it is the composite blob produced by ComposeAnswer.
	Answer       string
	Difficulty   Difficulty
	QuestionType QuestionType

	// Multiple choice only.
	Choices       []string
	CorrectChoice string

	Explanation string

	// Fallback is set when the reply had no recognizable question line and
	// the item was synthesized from the raw text.
	Fallback bool
}

// Request asks the engine for NumQuestions items about one lecture.
type Request struct {
	LectureID     string
	Difficulty    Difficulty
	NumQuestions  int
	QuestionTypes []QuestionType
}

// Termination records why a generation run stopped.
type Termination string

const (
	Running          Termination = "running"
	Complete         Termination = "complete"
	PartialTimeout   Termination = "partial_timeout"
	PartialExhausted Termination = "partial_exhausted"
	Canceled         Termination = "canceled"
	// NotReady means the lecture has no index; the model was never called.
	NotReady Termination = "not_ready"
)
