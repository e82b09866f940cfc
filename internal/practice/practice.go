// Package practice is the terminal practice session: stored items of a
// lecture are asked one by one, graded, recorded and summarized.
package practice

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/chitchi46/lectureqa/internal/app"
	"github.com/chitchi46/lectureqa/internal/qagen"
	"github.com/chitchi46/lectureqa/internal/store"
	"github.com/chitchi46/lectureqa/internal/ui/components"
	"github.com/chitchi46/lectureqa/internal/ui/layout"
	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

// Recorder grades and stores one submission.
type Recorder interface {
	Record(ctx context.Context, qa *store.QA, userID, submitted string) (*app.AnswerResult, error)
}

type phase int

const (
	phaseQuestion phase = iota
	phaseGrading
	phaseFeedback
	phaseSummary
)

// gradedMsg carries the result of a Record call.
type gradedMsg struct {
	Result *app.AnswerResult
	Err    error
}

// Model is the root bubbletea model of a practice session.
type Model struct {
	ctx       context.Context
	recorder  Recorder
	lectureID string
	userID    string
	items     []store.QA

	current  int
	phase    phase
	mcActive bool
	mc       components.MultiChoice
	input    components.TextInput
	last     *app.AnswerResult
	errMsg   string

	answered int
	correct  int

	width  int
	height int
}

// New creates a session over items.
func New(ctx context.Context, rec Recorder, lectureID, userID string, items []store.QA) Model {
	m := Model{
		ctx:       ctx,
		recorder:  rec,
		lectureID: lectureID,
		userID:    userID,
		items:     items,
	}
	if len(items) == 0 {
		m.phase = phaseSummary
		return m
	}
	m.load()
	return m
}

// load prepares the widgets for the current item.
func (m *Model) load() {
	qa := m.items[m.current]
	m.last = nil
	m.errMsg = ""
	m.phase = phaseQuestion

	m.mcActive = false
	if qa.QuestionType == string(qagen.MultipleChoice) {
		if c := qagen.ParseComposite(qa.Answer); len(c.Choices) > 0 {
			m.mc = components.NewMultiChoice(c.Choices)
			m.mcActive = true
			return
		}
	}
	m.input = components.NewTextInput("Type your answer...", 500)
}

// Score returns the correct and answered counts so far.
func (m Model) Score() (correct, answered int) { return m.correct, m.answered }

func (m Model) Init() tea.Cmd {
	if m.phase == phaseQuestion && !m.mcActive {
		return m.input.Init()
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case gradedMsg:
		return m.handleGraded(msg)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.phase == phaseSummary {
				return m, tea.Quit
			}
			m.phase = phaseSummary
			return m, nil
		}
		return m.handleKey(msg)
	}

	if m.phase == phaseQuestion && !m.mcActive {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseSummary:
		switch msg.String() {
		case "enter", "q":
			return m, tea.Quit
		}
		return m, nil

	case phaseFeedback:
		switch msg.String() {
		case "enter", "space", " ", "n":
			return m.next()
		}
		return m, nil

	case phaseGrading:
		return m, nil
	}

	if m.mcActive {
		var cmd tea.Cmd
		m.mc, cmd = m.mc.Update(msg)
		if m.mc.Submitted {
			return m.submit(m.mc.Letter())
		}
		return m, cmd
	}

	if msg.String() == "enter" {
		if strings.TrimSpace(m.input.Value()) == "" {
			return m, nil
		}
		return m.submit(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(answer string) (tea.Model, tea.Cmd) {
	m.phase = phaseGrading
	qa := m.items[m.current]
	rec, ctx, user := m.recorder, m.ctx, m.userID
	return m, func() tea.Msg {
		res, err := rec.Record(ctx, &qa, user, answer)
		return gradedMsg{Result: res, Err: err}
	}
}

func (m Model) handleGraded(msg gradedMsg) (tea.Model, tea.Cmd) {
	// Esc while grading already moved on to the summary.
	if m.phase == phaseGrading {
		m.phase = phaseFeedback
	}
	if msg.Err != nil {
		m.errMsg = msg.Err.Error()
		return m, nil
	}
	m.last = msg.Result
	m.answered++
	if msg.Result.Verdict.IsCorrect {
		m.correct++
	}
	if m.mcActive {
		m.mc.Reveal(qagen.ParseComposite(m.items[m.current].Answer).Correct)
	} else {
		m.input.Submit(msg.Result.Verdict.IsCorrect)
	}
	return m, nil
}

func (m Model) next() (tea.Model, tea.Cmd) {
	if m.current+1 >= len(m.items) {
		m.phase = phaseSummary
		return m, nil
	}
	m.current++
	m.load()
	return m, m.Init()
}

func (m Model) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	v.SetContent(m.render())
	return v
}

// render draws the current screen; it is empty until the first resize.
func (m Model) render() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	header := layout.RenderHeader("Lecture "+m.lectureID, m.correct, m.answered, m.width)
	footer := layout.RenderFooter(m.keyHints(), m.width)

	var content string
	if m.phase == phaseSummary {
		content = m.renderSummary()
	} else {
		content = m.renderQuestion()
	}
	return layout.RenderFrame(header, content, footer, m.width, m.height)
}

func (m Model) keyHints() []layout.KeyHint {
	switch m.phase {
	case phaseSummary:
		return []layout.KeyHint{{Key: "Enter", Description: "Quit"}}
	case phaseFeedback:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Next"},
			{Key: "Esc", Description: "Finish"},
		}
	}
	if m.mcActive {
		return []layout.KeyHint{
			{Key: "↑↓ / A-D", Description: "Choose"},
			{Key: "Enter", Description: "Submit"},
			{Key: "Esc", Description: "Finish"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Submit"},
		{Key: "Esc", Description: "Finish"},
	}
}

func (m Model) renderQuestion() string {
	qa := m.items[m.current]
	width := max(m.width-4, 20)

	var b strings.Builder
	b.WriteString("  " + components.NewProgressBar("Question", m.current+1, len(m.items), width-2).View())
	b.WriteString("\n\n")

	meta := fmt.Sprintf("%s · %s", qa.Difficulty, strings.ReplaceAll(qa.QuestionType, "_", " "))
	b.WriteString("  " + theme.Label.Render(meta) + "\n\n")

	question := lipgloss.NewStyle().Foreground(theme.Text).Bold(true).Width(width).Render(qa.Question)
	b.WriteString(indent(question) + "\n\n")

	if m.mcActive {
		b.WriteString(indent(m.mc.View()))
	} else {
		b.WriteString("  " + m.input.View() + "\n")
	}

	if m.phase == phaseGrading {
		b.WriteString("\n  " + theme.Hint.Render("Grading..."))
	}
	if m.phase == phaseFeedback {
		b.WriteString("\n" + indent(m.renderFeedback(width)))
	}
	return b.String()
}

func (m Model) renderFeedback(width int) string {
	if m.errMsg != "" {
		return theme.Incorrect.Render("Could not record the answer: " + m.errMsg)
	}
	if m.last == nil {
		return ""
	}

	v := m.last.Verdict
	var b strings.Builder
	if v.IsCorrect {
		b.WriteString(theme.Correct.Render("Correct!"))
	} else {
		b.WriteString(theme.Incorrect.Render("Not quite."))
	}
	b.WriteString("\n")

	if m.mcActive {
		c := qagen.ParseComposite(m.items[m.current].Answer)
		if !v.IsCorrect {
			b.WriteString(theme.Label.Render("Answer: ") + v.CorrectAnswer + "\n")
		}
		if c.Explanation != "" {
			b.WriteString(lipgloss.NewStyle().Width(width).Render(theme.Label.Render("Explanation: ")+c.Explanation) + "\n")
		}
	} else {
		b.WriteString(lipgloss.NewStyle().Width(width).Render(theme.Label.Render("Model answer: ")+v.CorrectAnswer) + "\n")
		b.WriteString(theme.Hint.Render(fmt.Sprintf("Keyword overlap %.0f%%", v.Ratio*100)) + "\n")
	}
	if v.Ambiguous {
		b.WriteString(theme.Warn.Render("The stored answer has no correct choice; graded by keywords.") + "\n")
	}
	return b.String()
}

func (m Model) renderSummary() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		Foreground(theme.Primary).
		Bold(true).
		Render("Practice complete"))
	b.WriteString("\n\n")

	center := lipgloss.NewStyle().Width(m.width).Align(lipgloss.Center)
	if len(m.items) == 0 {
		b.WriteString(center.Render(theme.Hint.Render("No stored questions for this lecture. Run generate --save first.")))
		return b.String()
	}

	accuracy := 0.0
	if m.answered > 0 {
		accuracy = float64(m.correct) / float64(m.answered) * 100
	}
	b.WriteString(center.Render(fmt.Sprintf("Answered %d of %d", m.answered, len(m.items))))
	b.WriteString("\n")
	b.WriteString(center.Render(fmt.Sprintf("Correct  %d  (%.0f%%)", m.correct, accuracy)))
	return b.String()
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// Run starts the session program and returns the final score.
func Run(ctx context.Context, rec Recorder, lectureID, userID string, items []store.QA) (correct, answered int, err error) {
	p := tea.NewProgram(New(ctx, rec, lectureID, userID, items))

	stop := context.AfterFunc(ctx, p.Quit)
	defer stop()

	final, err := p.Run()
	if err != nil {
		return 0, 0, fmt.Errorf("running practice session: %w", err)
	}
	if fm, ok := final.(Model); ok {
		correct, answered = fm.Score()
	}
	return correct, answered, nil
}
