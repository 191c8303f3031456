package views

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/stem_studio/internal/timeline"
)

// levels draws waveform amplitude inside a clip cell
var levels = []rune("▁▂▃▄▅▆▇█")

// laneColors follows the order of the default track table
var laneColors = []lipgloss.Color{"204", "214", "81", "141"}

// labelWidth is the width of the track name column
const labelWidth = 10

// TimelineView draws one lane per track with the clips placed on it and
// the playhead across all lanes
type TimelineView struct {
	Width      int
	Tracks     []string
	Snapshot   *timeline.Snapshot
	Position   float64
	SelectedID string

	// waveform overviews keyed by clip ID and cell count
	overviews map[overviewKey][]float32

	LabelStyle    lipgloss.Style
	RulerStyle    lipgloss.Style
	PlayheadStyle lipgloss.Style
	MutedStyle    lipgloss.Style
	SelectedStyle lipgloss.Style
	BorderStyle   lipgloss.Style
}

type overviewKey struct {
	id    string
	cells int
}

// NewTimelineView creates a timeline view for the given track names
func NewTimelineView(width int, tracks []string) TimelineView {
	return TimelineView{
		Width:     width,
		Tracks:    tracks,
		overviews: make(map[overviewKey][]float32),
		LabelStyle: lipgloss.NewStyle().
			Width(labelWidth).
			Bold(true).
			Foreground(lipgloss.Color("252")),
		RulerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		PlayheadStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		MutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")),
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("62")),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
	}
}

// Columns returns the number of cells used for time
func (v TimelineView) Columns() int {
	cols := v.Width - labelWidth - 6
	if cols < 10 {
		cols = 10
	}
	return cols
}

// Column maps a time to a cell index in [0, cols)
func Column(t, total float64, cols int) int {
	if total <= 0 || cols <= 0 {
		return 0
	}
	c := int(math.Floor(t / total * float64(cols)))
	return max(0, min(cols-1, c))
}

// View renders the lanes
func (v TimelineView) View() string {
	if v.Snapshot == nil {
		return v.BorderStyle.Width(v.Width - 2).Render("No project open. Press [o] to open a file.")
	}

	cols := v.Columns()
	total := v.Snapshot.TotalDuration
	head := Column(v.Position, total, cols)

	var sb strings.Builder
	sb.WriteString(v.ruler(cols, total, head))

	tracks := v.Snapshot.TrackCount
	for track := 0; track < tracks; track++ {
		sb.WriteString("\n")
		sb.WriteString(v.LabelStyle.Render(v.trackName(track)))
		sb.WriteString(v.lane(track, cols, total, head))
	}

	return v.BorderStyle.Width(v.Width - 2).Render(sb.String())
}

func (v TimelineView) trackName(track int) string {
	if track < len(v.Tracks) {
		name := v.Tracks[track]
		if len(name) > labelWidth-1 {
			name = name[:labelWidth-1]
		}
		return name
	}
	return fmt.Sprintf("TRACK %d", track+1)
}

// ruler marks every 10 seconds and the playhead
func (v TimelineView) ruler(cols int, total float64, head int) string {
	cells := []rune(strings.Repeat("·", cols))
	for t := 0.0; t < total; t += 10 {
		c := Column(t, total, cols)
		label := []rune(fmt.Sprintf("%d", int(t)))
		for i, r := range label {
			if c+i < cols {
				cells[c+i] = r
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", labelWidth))
	sb.WriteString(v.RulerStyle.Render(string(cells[:head])))
	sb.WriteString(v.PlayheadStyle.Render("▼"))
	if head+1 < cols {
		sb.WriteString(v.RulerStyle.Render(string(cells[head+1:])))
	}
	return sb.String()
}

// lane renders one track: clip cells, gaps and the playhead
func (v TimelineView) lane(track, cols int, total float64, head int) string {
	type cell struct {
		r     rune
		style lipgloss.Style
		set   bool
	}
	cells := make([]cell, cols)
	color := laneColors[track%len(laneColors)]

	for _, c := range v.Snapshot.Clips {
		if c.Track != track || c.Buffer == nil {
			continue
		}
		from := Column(c.Start, total, cols)
		to := Column(c.End(), total, cols)
		if c.End() >= total {
			to = cols - 1
		}
		n := to - from + 1

		style := lipgloss.NewStyle().Foreground(color)
		if c.Muted {
			style = v.MutedStyle
		}
		if c.ID == v.SelectedID {
			style = style.Background(v.SelectedStyle.GetBackground())
		}

		wave := v.overview(c, n)
		for i := 0; i < n; i++ {
			r := levels[0]
			if i < len(wave) {
				a := math.Abs(float64(wave[i]))
				r = levels[int(math.Round(a*float64(len(levels)-1)))]
			}
			if c.Muted {
				r = '░'
			}
			cells[from+i] = cell{r: r, style: style, set: true}
		}
		// name at the clip start when it fits
		for i, r := range []rune(c.Name) {
			if i >= n-1 {
				break
			}
			cells[from+i].r = r
		}
	}

	var sb strings.Builder
	for i, c := range cells {
		switch {
		case i == head:
			sb.WriteString(v.PlayheadStyle.Render("│"))
		case c.set:
			sb.WriteString(c.style.Render(string(c.r)))
		default:
			sb.WriteString(v.RulerStyle.Render(" "))
		}
	}
	return sb.String()
}

func (v TimelineView) overview(c timeline.Clip, cells int) []float32 {
	key := overviewKey{id: c.ID, cells: cells}
	if v.overviews != nil {
		if w, ok := v.overviews[key]; ok {
			return w
		}
	}
	w := c.Buffer.Overview(cells)
	if v.overviews != nil {
		v.overviews[key] = w
	}
	return w
}
