package qagen

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Limits bound one generation run.
type Limits struct {
	Budget      time.Duration
	MaxAttempts int
	// DedupKeyLength is the number of leading question runes the dedup key
	// is cut from.
	DedupKeyLength int
	// DedupMinLength is the key length at or below which repeats are
	// accepted, since such keys are too short to tell questions apart.
	DedupMinLength int
}

// State is the explicit state of a generation run. It holds no reference
// to the model or the index, so the loop's rules can be exercised alone.
type State struct {
	Accepted    []Item
	SeenKeys    map[string]struct{}
	Attempts    int
	StartTime   time.Time
	Termination Termination

	target int
	limits Limits
}

// NewState starts a run for target items at start.
func NewState(target int, limits Limits, start time.Time) *State {
	return &State{
		SeenKeys:    make(map[string]struct{}),
		StartTime:   start,
		Termination: Running,
		target:      target,
		limits:      limits,
	}
}

// Done reports whether the quota is filled.
func (s *State) Done() bool { return len(s.Accepted) >= s.target }

// Expired reports whether the wall-clock budget was exceeded at now.
func (s *State) Expired(now time.Time) bool {
	return now.Sub(s.StartTime) > s.limits.Budget
}

// Exhausted reports whether the attempt cap was reached.
func (s *State) Exhausted() bool { return s.Attempts >= s.limits.MaxAttempts }

// NextType rotates through types by the number of accepted items, so a
// rejected attempt retries the same type.
func (s *State) NextType(types []QuestionType) QuestionType {
	return types[len(s.Accepted)%len(types)]
}

// Qualifier picks the variety phrase for the current attempt.
func (s *State) Qualifier(phrases []string) string {
	return phrases[s.Attempts%len(phrases)]
}

// Offer records item unless it duplicates an accepted question. Keys no
// longer than DedupMinLength are always accepted.
func (s *State) Offer(item Item) bool {
	key := DedupKey(item.Question, s.limits.DedupKeyLength)
	if _, seen := s.SeenKeys[key]; seen && utf8.RuneCountInString(key) > s.limits.DedupMinLength {
		return false
	}
	s.SeenKeys[key] = struct{}{}
	s.Accepted = append(s.Accepted, item)
	return true
}

// Questions returns the accepted question texts in order.
func (s *State) Questions() []string {
	out := make([]string, len(s.Accepted))
	for i, it := range s.Accepted {
		out[i] = it.Question
	}
	return out
}

// DedupKey takes the first n runes of question, then trims, lowercases and
// drops ASCII and ideographic spaces.
func DedupKey(question string, n int) string {
	if utf8.RuneCountInString(question) > n {
		question = string([]rune(question)[:n])
	}
	key := strings.ToLower(strings.TrimSpace(question))
	return strings.NewReplacer(" ", "", "　", "").Replace(key)
}
