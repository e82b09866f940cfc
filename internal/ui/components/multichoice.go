// Package components holds reusable bubbletea widgets.
package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/chitchi46/lectureqa/internal/ui/theme"
)

// MultiChoice is a lettered option selector. Options are full choice
// lines such as "B) Chloroplast". It does not grade: after Submit the
// caller reveals the correct letter with Reveal.
type MultiChoice struct {
	Options   []string
	Selected  int
	Submitted bool
	Correct   string
}

// NewMultiChoice creates a selector over options.
func NewMultiChoice(options []string) MultiChoice {
	return MultiChoice{Options: options}
}

// Update moves the cursor with arrows or j/k and jumps with a-d or 1-4.
// Enter submits.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, tea.Cmd) {
	if m.Submitted || len(m.Options) == 0 {
		return m, nil
	}
	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key := kmsg.String(); key {
	case "up", "k":
		if m.Selected > 0 {
			m.Selected--
		}
	case "down", "j":
		if m.Selected < len(m.Options)-1 {
			m.Selected++
		}
	case "enter":
		m.Submitted = true
	default:
		if i, ok := optionIndex(key); ok && i < len(m.Options) {
			m.Selected = i
		}
	}
	return m, nil
}

func optionIndex(key string) (int, bool) {
	if len(key) != 1 {
		return 0, false
	}
	switch c := key[0]; {
	case c >= 'a' && c <= 'd':
		return int(c - 'a'), true
	case c >= '1' && c <= '4':
		return int(c - '1'), true
	}
	return 0, false
}

// Letter returns the letter of the selected option.
func (m MultiChoice) Letter() string {
	if len(m.Options) == 0 {
		return ""
	}
	opt := m.Options[m.Selected]
	if i := strings.Index(opt, ")"); i > 0 {
		return opt[:i]
	}
	return string(rune('A' + m.Selected))
}

// Reveal records the correct letter for rendering.
func (m *MultiChoice) Reveal(letter string) {
	m.Correct = letter
}

// View renders the options.
func (m MultiChoice) View() string {
	var b strings.Builder
	for i, opt := range m.Options {
		prefix := "  "
		if i == m.Selected && !m.Submitted {
			prefix = "▸ "
		}
		line := prefix + opt

		style := lipgloss.NewStyle().Foreground(theme.Text)
		switch {
		case m.Submitted && m.Correct != "" && strings.HasPrefix(opt, m.Correct+")"):
			style = theme.Correct
		case m.Submitted && i == m.Selected:
			style = theme.Incorrect
		case m.Submitted:
			style = lipgloss.NewStyle().Foreground(theme.TextDim)
		case i == m.Selected:
			style = lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}
