package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/HendryAvila/gemini-planner/internal/contexts"
)

// styles renders for one writer; color is dropped when w is not a terminal.
type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
	phases map[contexts.Phase]lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		header: r.NewStyle().Bold(true).Underline(true),
		label:  r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("10")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		phases: map[contexts.Phase]lipgloss.Style{
			contexts.PhasePlanning:  r.NewStyle().Foreground(lipgloss.Color("14")),
			contexts.PhaseExecuting: r.NewStyle().Foreground(lipgloss.Color("11")),
			contexts.PhaseReviewing: r.NewStyle().Foreground(lipgloss.Color("13")),
			contexts.PhaseComplete:  r.NewStyle().Foreground(lipgloss.Color("10")),
		},
	}
}

func (s styles) phase(p contexts.Phase) string {
	if st, ok := s.phases[p]; ok {
		return st.Render(string(p))
	}
	return string(p)
}
