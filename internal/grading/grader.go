// Package grading scores submitted answers against stored items.
package grading

import (
	"errors"
	"strings"
	"unicode"

	"github.com/chitchi46/lectureqa/internal/logger"
	"github.com/chitchi46/lectureqa/internal/qagen"
)

// DefaultThreshold is the keyword overlap ratio at which a free-text answer
// counts as correct.
const DefaultThreshold = 0.5

// ErrGradingAmbiguous means a multiple-choice answer blob has no
// recoverable correct marker, so keyword grading was used instead.
var ErrGradingAmbiguous = errors.New("stored answer has no correct choice")

// Grading methods.
const (
	MethodChoice  = "choice"
	MethodKeyword = "keyword"
)

// Verdict is the outcome of grading one submission.
type Verdict struct {
	IsCorrect bool
	// CorrectAnswer is what to show the student: the correct choice line
	// for multiple choice, otherwise the stored answer.
	CorrectAnswer string
	Method        string
	// Ratio is the keyword overlap for keyword grading.
	Ratio     float64
	Ambiguous bool
}

// Grader grades submissions. The zero value is not usable; use New.
type Grader struct {
	threshold float64
}

// New returns a Grader with the given keyword threshold. A threshold
// outside (0, 1] falls back to DefaultThreshold.
func New(threshold float64) *Grader {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Grader{threshold: threshold}
}

// Threshold returns the keyword threshold in use.
func (g *Grader) Threshold() float64 { return g.threshold }

// Grade scores submitted against the stored answer blob.
//
// Multiple-choice items compare letters exactly. Free-text items use a
// lexical overlap heuristic: the fraction of stored keywords that appear in
// the submission. It does not judge meaning, so paraphrases with different
// words score low and keyword lists score high.
func (g *Grader) Grade(qt qagen.QuestionType, blob, submitted string) Verdict {
	if qt == qagen.MultipleChoice {
		c := qagen.ParseComposite(blob)
		if c.Correct != "" {
			return gradeChoice(c, submitted)
		}
		logger.Warn("grading: %v; falling back to keyword overlap", ErrGradingAmbiguous)
		v := g.gradeKeywords(blob, submitted)
		v.Ambiguous = true
		return v
	}
	return g.gradeKeywords(blob, submitted)
}

func gradeChoice(c qagen.Composite, submitted string) Verdict {
	letter := qagen.NormalizeChoiceLetter(submitted)
	answer := c.ChoiceText(c.Correct)
	if answer == "" {
		answer = c.Correct
	}
	return Verdict{
		IsCorrect:     letter == c.Correct,
		CorrectAnswer: answer,
		Method:        MethodChoice,
	}
}

func (g *Grader) gradeKeywords(stored, submitted string) Verdict {
	ratio := Overlap(stored, submitted)
	return Verdict{
		IsCorrect:     ratio >= g.threshold,
		CorrectAnswer: stored,
		Method:        MethodKeyword,
		Ratio:         ratio,
	}
}

// Overlap returns |keywords(stored) ∩ keywords(submitted)| / |keywords(stored)|.
// With no stored keywords it is 1 when the submission has none either.
func Overlap(stored, submitted string) float64 {
	want := Keywords(stored)
	got := Keywords(submitted)
	if len(want) == 0 {
		if len(got) == 0 {
			return 1
		}
		return 0
	}

	hits := 0
	for k := range want {
		if _, ok := got[k]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

// Keywords lowercases s, splits it on whitespace and trims punctuation from
// each token.
func Keywords(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}
