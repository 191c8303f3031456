package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar shows the playhead position against the timeline length
type ProgressBar struct {
	Width       int
	Current     float64 // seconds
	Total       float64 // seconds
	BarChar     string
	EmptyChar   string
	HeadChar    string
	ShowTime    bool
	Style       lipgloss.Style
	FilledStyle lipgloss.Style
	EmptyStyle  lipgloss.Style
}

// NewProgressBar creates a new progress bar
func NewProgressBar(width int) ProgressBar {
	return ProgressBar{
		Width:       width,
		BarChar:     "━",
		EmptyChar:   "─",
		HeadChar:    "●",
		ShowTime:    true,
		Style:       lipgloss.NewStyle(),
		FilledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		EmptyStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetProgress sets the current position
func (p *ProgressBar) SetProgress(current, total float64) {
	p.Current = current
	p.Total = total
}

// View renders the progress bar
func (p ProgressBar) View() string {
	var sb strings.Builder

	var percent float64
	if p.Total > 0 {
		percent = p.Current / p.Total
	}
	percent = math.Max(0, math.Min(1, percent))

	// Leave room for "mm:ss.cc / mm:ss.cc"
	barWidth := p.Width - 20
	if barWidth < 10 {
		barWidth = 10
	}

	filled := int(float64(barWidth-1) * percent)
	empty := barWidth - filled - 1

	sb.WriteString(p.FilledStyle.Render(strings.Repeat(p.BarChar, filled) + p.HeadChar))
	sb.WriteString(p.EmptyStyle.Render(strings.Repeat(p.EmptyChar, empty)))

	if p.ShowTime {
		sb.WriteString(" ")
		sb.WriteString(FormatTime(p.Current))
		sb.WriteString(" / ")
		sb.WriteString(FormatTime(p.Total))
	}

	return p.Style.Render(sb.String())
}

// FormatTime formats seconds as mm:ss.cc
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	m := int(seconds / 60)
	s := math.Mod(seconds, 60)
	// avoid printing 60.00 when s rounds up
	if s >= 59.995 {
		m++
		s = 0
	}
	return fmt.Sprintf("%02d:%05.2f", m, s)
}
