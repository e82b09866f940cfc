package qagen

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Composite markers. Stored multiple-choice answers use these tokens;
// changing them breaks every blob already in storage.
const (
	CorrectMarker     = "Correct:"
	ExplanationMarker = "Explanation:"
)

const (
	fallbackQuestionRunes = 200
	fallbackAnswer        = "Please refer to the lecture material for this question."
	missingAnswer         = "No answer was found in the model reply."
)

// Line markers, longest first where one is a prefix of another.
var (
	questionMarkers    = []string{"Question", "Q", "質問"}
	answerMarkers      = []string{"Answer", "A", "回答"}
	correctMarkers     = []string{"Correct answer", "Correct", "正解"}
	explanationMarkers = []string{"Explanation", "解説"}
	evaluationMarkers  = []string{"Evaluation points", "評価ポイント"}
)

// Parse recovers an item from a free-text model reply by line-prefix
// matching. It returns nil only for a blank reply. When no question line
// is found the item is a fallback built from the first 200 characters of
// the reply.
func Parse(raw string, difficulty Difficulty, qt QuestionType) *Item {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var (
		question, answer, correct, explanation string
		choices                                []string
		awaitQuestion                          bool
	)

	for _, line := range strings.Split(trimmed, "\n") {
		line = cleanLine(line)
		if line == "" {
			continue
		}

		if v, ok := matchMarker(line, questionMarkers); ok {
			question = v
			awaitQuestion = v == ""
			continue
		}
		if v, ok := matchMarker(line, correctMarkers); ok {
			correct = RecoverChoiceLetter(v)
			continue
		}
		if v, ok := matchMarker(line, explanationMarkers); ok {
			explanation = v
			continue
		}
		if v, ok := matchMarker(line, evaluationMarkers); ok {
			explanation = v
			continue
		}
		if v, ok := matchMarker(line, answerMarkers); ok {
			answer = v
			continue
		}
		if qt == MultipleChoice {
			if c, ok := matchChoice(line); ok {
				choices = append(choices, c)
				continue
			}
		}
		// "Question:" alone on a line; the text follows on the next one.
		if awaitQuestion {
			question = line
			awaitQuestion = false
		}
	}

	if question == "" {
		return &Item{
			Question:     truncateRunes(trimmed, fallbackQuestionRunes),
			Answer:       fallbackAnswer,
			Difficulty:   difficulty,
			QuestionType: qt,
			Fallback:     true,
		}
	}

	item := &Item{
		Question:     question,
		Difficulty:   difficulty,
		QuestionType: qt,
		Explanation:  explanation,
	}
	switch {
	case qt == MultipleChoice && len(choices) > 0:
		item.Choices = choices
		item.CorrectChoice = correct
		item.Answer = ComposeAnswer(choices, correct, explanation)
	case answer == "":
		item.Answer = missingAnswer
	default:
		item.Answer = answer
	}
	return item
}

// ComposeAnswer builds the composite multiple-choice blob: the choice
// lines, then a Correct line and an Explanation line when present.
func ComposeAnswer(choices []string, correct, explanation string) string {
	var b strings.Builder
	b.WriteString(strings.Join(choices, "\n"))
	if correct != "" {
		fmt.Fprintf(&b, "\n\n%s %s", CorrectMarker, correct)
	}
	if explanation != "" {
		fmt.Fprintf(&b, "\n%s %s", ExplanationMarker, explanation)
	}
	return b.String()
}

// Composite is the structure recovered from a stored answer blob.
type Composite struct {
	Choices     []string
	Correct     string
	Explanation string
}

// ParseComposite re-parses a stored multiple-choice answer. Blobs written
// with the Japanese markers are accepted too.
func ParseComposite(blob string) Composite {
	var c Composite
	for _, line := range strings.Split(blob, "\n") {
		line = cleanLine(line)
		if line == "" {
			continue
		}
		if v, ok := matchMarker(line, correctMarkers); ok {
			c.Correct = RecoverChoiceLetter(v)
			continue
		}
		if v, ok := matchMarker(line, explanationMarkers); ok {
			c.Explanation = v
			continue
		}
		if choice, ok := matchChoice(line); ok {
			c.Choices = append(c.Choices, choice)
		}
	}
	return c
}

// ChoiceText returns the choice line for letter, or "" if there is none.
func (c Composite) ChoiceText(letter string) string {
	for _, choice := range c.Choices {
		if strings.HasPrefix(choice, letter+")") {
			return choice
		}
	}
	return ""
}

// cleanLine trims a reply line and strips list bullets and markdown bold.
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	for _, bullet := range []string{"- ", "* ", "• ", "・"} {
		line = strings.TrimPrefix(line, bullet)
	}
	line = strings.ReplaceAll(line, "**", "")
	return strings.TrimSpace(line)
}

// matchMarker reports whether line starts with one of markers followed by
// an ASCII or full-width colon, and returns the trimmed text after it.
// English markers match case-insensitively.
func matchMarker(line string, markers []string) (string, bool) {
	for _, m := range markers {
		if len(line) < len(m) || !strings.EqualFold(line[:len(m)], m) {
			continue
		}
		rest := strings.TrimLeft(line[len(m):], " ")
		switch {
		case strings.HasPrefix(rest, ":"):
			return strings.TrimSpace(rest[1:]), true
		case strings.HasPrefix(rest, "："):
			return strings.TrimSpace(rest[len("："):]), true
		}
	}
	return "", false
}

// matchChoice recognizes "A) text" through "D) text", with full-width
// letters or parenthesis, and returns the line in canonical "A) text" form.
func matchChoice(line string) (string, bool) {
	r, size := utf8.DecodeRuneInString(line)
	letter, ok := choiceLetter(r)
	if !ok {
		return "", false
	}
	rest := line[size:]
	switch {
	case strings.HasPrefix(rest, ")"):
		rest = rest[1:]
	case strings.HasPrefix(rest, "）"):
		rest = rest[len("）"):]
	default:
		return "", false
	}
	return fmt.Sprintf("%c) %s", letter, strings.TrimSpace(rest)), true
}

// choiceLetter maps A-D, a-d and their full-width forms to 'A'..'D'.
func choiceLetter(r rune) (rune, bool) {
	switch {
	case r >= 'A' && r <= 'D':
		return r, true
	case r >= 'a' && r <= 'd':
		return r - 'a' + 'A', true
	case r >= 'Ａ' && r <= 'Ｄ':
		return r - 'Ａ' + 'A', true
	case r >= 'ａ' && r <= 'ｄ':
		return r - 'ａ' + 'A', true
	}
	return 0, false
}

// NormalizeChoiceLetter reduces "B", "b) text" or "(B)" to "B". Values that
// do not start with a choice letter are returned trimmed.
func NormalizeChoiceLetter(v string) string {
	v = strings.TrimSpace(v)
	s := strings.TrimLeft(v, "(（[ ")
	r, size := utf8.DecodeRuneInString(s)
	letter, ok := choiceLetter(r)
	if !ok {
		return v
	}
	next, _ := utf8.DecodeRuneInString(s[size:])
	if size == len(s) || strings.ContainsRune(")）]. :：", next) {
		return string(letter)
	}
	return v
}

// RecoverChoiceLetter finds the correct-choice letter in the text after a
// Correct marker. Values such as "Option B" or "Bです" yield the first
// uppercase A-D that is not part of a Latin word. It returns "" when no
// letter can be recovered.
func RecoverChoiceLetter(v string) string {
	if l := NormalizeChoiceLetter(v); len(l) == 1 && strings.Contains("ABCD", l) {
		return l
	}
	runes := []rune(v)
	for i, r := range runes {
		if !(r >= 'A' && r <= 'D') && !(r >= 'Ａ' && r <= 'Ｄ') {
			continue
		}
		if i > 0 && isLatinWordRune(runes[i-1]) {
			continue
		}
		if i+1 < len(runes) && isLatinWordRune(runes[i+1]) {
			continue
		}
		letter, _ := choiceLetter(r)
		return string(letter)
	}
	return ""
}

func isLatinWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r >= 'ａ' && r <= 'ｚ', r >= 'Ａ' && r <= 'Ｚ', r >= '０' && r <= '９':
		return true
	}
	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
