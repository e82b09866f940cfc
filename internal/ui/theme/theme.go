// Package theme holds the shared lipgloss styles of the practice session
// and the styled CLI output.
package theme

import (
	"os"

	"charm.land/lipgloss/v2"
	"golang.org/x/term"
)

// Color palette, calm and readable on dark terminals.
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#0EA5E9") // Sky
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#EF4444") // Red
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	BgCard    = lipgloss.Color("#1E293B") // Dark Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Warn = lipgloss.NewStyle().
		Foreground(Accent)
)

// Verdicts
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

// Card frames a question or a result block.
var Card = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(1, 2)

// Styled reports whether output to f should carry colors: f must be a
// terminal and NO_COLOR must be unset.
func Styled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Painter renders styles only when styling is enabled, so piped CLI output
// stays plain text.
type Painter struct {
	Enabled bool
}

// NewPainter returns a Painter for f.
func NewPainter(f *os.File) Painter {
	return Painter{Enabled: Styled(f)}
}

// Render applies style to s when enabled.
func (p Painter) Render(style lipgloss.Style, s string) string {
	if !p.Enabled {
		return s
	}
	return style.Render(s)
}
