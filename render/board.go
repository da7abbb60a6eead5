// Package render turns board snapshots into terminal output.
package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/aygp-dr/gdb-game-ai/gdb"
)

type styles struct {
	header lipgloss.Style
	cell   lipgloss.Style
	empty  lipgloss.Style
	high   lipgloss.Style
	frame  lipgloss.Style
}

func newStyles() styles {
	return styles{
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		cell:   lipgloss.NewStyle().Width(7).Align(lipgloss.Right).Foreground(lipgloss.Color("252")),
		empty:  lipgloss.NewStyle().Width(7).Align(lipgloss.Right).Faint(true),
		high:   lipgloss.NewStyle().Width(7).Align(lipgloss.Right).Bold(true).Foreground(lipgloss.Color("203")),
		frame:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// Board renders a snapshot as a framed 4x4 grid. Empty cells show as a dot,
// the current maximum is highlighted.
func Board(s gdb.Snapshot) string {
	st := newStyles()

	lines := make([]string, 0, gdb.BoardSide)
	for _, row := range s.Rows() {
		cells := make([]string, 0, gdb.BoardSide)
		for _, v := range row {
			switch {
			case v == 0:
				cells = append(cells, st.empty.Render("."))
			case v == s.Max:
				cells = append(cells, st.high.Render(fmt.Sprintf("%d", v)))
			default:
				cells = append(cells, st.cell.Render(fmt.Sprintf("%d", v)))
			}
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}

	header := st.header.Render(fmt.Sprintf("max %d  empty %d", s.Max, s.Empty))
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		st.frame.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

// Status renders the loop state and pause counter on one line.
func Status(state gdb.LoopState, pauses int) string {
	st := newStyles()
	return st.header.Render(fmt.Sprintf("state %s  pauses %d", state, pauses))
}
