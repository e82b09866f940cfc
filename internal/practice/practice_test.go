package practice

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/chitchi46/lectureqa/internal/app"
	"github.com/chitchi46/lectureqa/internal/grading"
	"github.com/chitchi46/lectureqa/internal/qagen"
	"github.com/chitchi46/lectureqa/internal/store"
)

type fakeRecorder struct {
	grader *grading.Grader
	calls  []string
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, qa *store.QA, userID, submitted string) (*app.AnswerResult, error) {
	f.calls = append(f.calls, userID+":"+submitted)
	if f.err != nil {
		return nil, f.err
	}
	v := f.grader.Grade(qagen.QuestionType(qa.QuestionType), qa.Answer, submitted)
	return &app.AnswerResult{QA: qa, Verdict: v}, nil
}

func key(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

var enter = tea.KeyPressMsg{Code: tea.KeyEnter}

func testItems() []store.QA {
	return []store.QA{
		{
			ID:           1,
			LectureID:    "bio",
			Question:     "Which organelle performs photosynthesis?",
			Answer:       "A) Nucleus\nB) Chloroplast\nC) Ribosome\nD) Golgi\nCorrect: B\nExplanation: Chloroplasts hold chlorophyll.",
			QuestionType: "multiple_choice",
			Difficulty:   "easy",
		},
		{
			ID:           2,
			LectureID:    "bio",
			Question:     "What do chloroplasts do?",
			Answer:       "Chloroplasts convert light into sugar.",
			QuestionType: "short_answer",
			Difficulty:   "medium",
		},
	}
}

// drive resolves the grading command the way the runtime would. Other
// commands such as cursor blinks are dropped.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil || m.phase != phaseGrading {
		return m
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func press(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	return drive(t, next.(Model), cmd)
}

func TestSession_FullRun(t *testing.T) {
	rec := &fakeRecorder{grader: grading.New(0)}
	m := New(context.Background(), rec, "bio", "alice", testItems())
	m = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	if !m.mcActive {
		t.Fatal("first item should use the choice selector")
	}
	m = press(t, m, key('b'))
	m = press(t, m, enter)

	if m.phase != phaseFeedback {
		t.Fatalf("phase = %v, want feedback", m.phase)
	}
	if c, a := m.Score(); c != 1 || a != 1 {
		t.Errorf("score = %d/%d, want 1/1", c, a)
	}
	if m.mc.Correct != "B" {
		t.Errorf("revealed %q, want B", m.mc.Correct)
	}

	m = press(t, m, enter)
	if m.current != 1 || m.mcActive {
		t.Fatalf("expected the short-answer item, current=%d mc=%v", m.current, m.mcActive)
	}

	for _, r := range "chloroplasts convert light" {
		m = press(t, m, key(r))
	}
	m = press(t, m, enter)
	if c, a := m.Score(); c != 2 || a != 2 {
		t.Errorf("score = %d/%d, want 2/2", c, a)
	}

	m = press(t, m, enter)
	if m.phase != phaseSummary {
		t.Fatalf("phase = %v, want summary", m.phase)
	}

	want := []string{"alice:B", "alice:chloroplasts convert light"}
	if strings.Join(rec.calls, "|") != strings.Join(want, "|") {
		t.Errorf("recorded %v, want %v", rec.calls, want)
	}

	view := m.render()
	if !strings.Contains(view, "Practice complete") {
		t.Errorf("summary view missing title:\n%s", view)
	}

	_, cmd := m.Update(enter)
	if cmd == nil {
		t.Fatal("enter on the summary should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected a quit message")
	}
}

func TestSession_WrongChoice(t *testing.T) {
	rec := &fakeRecorder{grader: grading.New(0)}
	m := New(context.Background(), rec, "bio", "bob", testItems()[:1])
	m = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	m = press(t, m, key('a'))
	m = press(t, m, enter)

	if c, a := m.Score(); c != 0 || a != 1 {
		t.Errorf("score = %d/%d, want 0/1", c, a)
	}
	content := m.render()
	if !strings.Contains(content, "Not quite") {
		t.Error("feedback should say the answer was wrong")
	}
	if !strings.Contains(content, "B) Chloroplast") {
		t.Error("feedback should show the correct choice")
	}
}

func TestSession_EmptyTextIgnored(t *testing.T) {
	rec := &fakeRecorder{grader: grading.New(0)}
	m := New(context.Background(), rec, "bio", "carol", testItems()[1:])

	m = press(t, m, enter)
	if m.phase != phaseQuestion {
		t.Errorf("empty submission changed phase to %v", m.phase)
	}
	if len(rec.calls) != 0 {
		t.Errorf("empty submission was recorded: %v", rec.calls)
	}
}

func TestSession_RecordError(t *testing.T) {
	rec := &fakeRecorder{grader: grading.New(0), err: errors.New("disk full")}
	m := New(context.Background(), rec, "bio", "dan", testItems()[:1])
	m = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	m = press(t, m, enter)
	if m.phase != phaseFeedback {
		t.Fatalf("phase = %v, want feedback", m.phase)
	}
	if _, a := m.Score(); a != 0 {
		t.Errorf("failed record counted as answered")
	}
	if !strings.Contains(m.render(), "disk full") {
		t.Error("error not shown")
	}
}

func TestSession_EscFinishesEarly(t *testing.T) {
	rec := &fakeRecorder{grader: grading.New(0)}
	m := New(context.Background(), rec, "bio", "erin", testItems())

	m = press(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.phase != phaseSummary {
		t.Fatalf("phase = %v, want summary", m.phase)
	}
	_, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd == nil {
		t.Fatal("esc on the summary should quit")
	}
}

func TestSession_NoItems(t *testing.T) {
	m := New(context.Background(), &fakeRecorder{grader: grading.New(0)}, "bio", "fay", nil)
	if m.phase != phaseSummary {
		t.Fatalf("phase = %v, want summary", m.phase)
	}
	m = press(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	if !strings.Contains(m.render(), "No stored questions") {
		t.Error("empty session should explain itself")
	}
}

func TestSession_TooSmall(t *testing.T) {
	m := New(context.Background(), &fakeRecorder{grader: grading.New(0)}, "bio", "gus", testItems())
	m = press(t, m, tea.WindowSizeMsg{Width: 30, Height: 10})
	if strings.Contains(m.render(), "Which organelle") {
		t.Error("question rendered in a too-small terminal")
	}
}
