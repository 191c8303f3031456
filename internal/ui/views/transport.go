package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/stem_studio/api"
	"github.com/jscyril/stem_studio/internal/ui/components"
)

// TransportView shows the project, the playhead and separation progress
type TransportView struct {
	Width       int
	State       api.PlaybackState
	Project     api.ProjectInfo
	Separating  bool
	Backend     string
	Status      string
	ProgressBar components.ProgressBar
	Spinner     spinner.Model

	// Styles
	TitleStyle  lipgloss.Style
	ArtistStyle lipgloss.Style
	StatusStyle lipgloss.Style
	InfoStyle   lipgloss.Style
	BorderStyle lipgloss.Style
}

// NewTransportView creates a new transport view
func NewTransportView(width int) TransportView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	return TransportView{
		Width:       width,
		ProgressBar: components.NewProgressBar(width - 6),
		Spinner:     sp,
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		ArtistStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		StatusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		InfoStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
	}
}

// SetState updates the transport state
func (v *TransportView) SetState(state api.PlaybackState) {
	v.State = state
	v.ProgressBar.SetProgress(state.Position, state.TotalDuration)
}

// SetWidth resizes the view and its progress bar
func (v *TransportView) SetWidth(width int) {
	v.Width = width
	v.ProgressBar.Width = width - 6
}

// Update advances the spinner while a separation runs
func (v TransportView) Update(msg tea.Msg) (TransportView, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); ok && v.Separating {
		var cmd tea.Cmd
		v.Spinner, cmd = v.Spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

// StatusIcon returns the glyph for a transport status
func StatusIcon(s api.PlaybackStatus) string {
	switch s {
	case api.StatusPlaying:
		return "▶"
	case api.StatusPaused:
		return "⏸"
	default:
		return "⏹"
	}
}

// View renders the transport view
func (v TransportView) View() string {
	var sb strings.Builder

	sb.WriteString(v.StatusStyle.Render(StatusIcon(v.State.Status) + " "))
	if v.Project.SourcePath == "" {
		sb.WriteString(v.TitleStyle.Render("♪ Stem Studio"))
	} else {
		sb.WriteString(v.TitleStyle.Render(v.Project.Title))
		if v.Project.Artist != "" {
			sb.WriteString("  ")
			sb.WriteString(v.ArtistStyle.Render(v.Project.Artist))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(v.ProgressBar.View())
	sb.WriteString("\n")

	var info []string
	if v.Project.SourcePath != "" {
		if v.Project.StemsLoaded {
			info = append(info, "stems loaded")
		} else {
			info = append(info, "no stems")
		}
		info = append(info, fmt.Sprintf("%d clips", v.Project.ClipCount))
	}
	if v.Separating {
		info = append(info, v.Spinner.View()+" separating with "+v.Backend)
	}
	if v.Status != "" {
		info = append(info, v.Status)
	}
	sb.WriteString(v.InfoStyle.Render(strings.Join(info, " | ")))

	return v.BorderStyle.Width(v.Width - 2).Render(sb.String())
}
