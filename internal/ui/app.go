package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/stem_studio/api"
	"github.com/jscyril/stem_studio/internal/stems"
	"github.com/jscyril/stem_studio/internal/timeline"
	"github.com/jscyril/stem_studio/internal/ui/components"
	"github.com/jscyril/stem_studio/internal/ui/views"
	"github.com/jscyril/stem_studio/pkg/events"
)

// Transport is the playback surface the editor drives
type Transport interface {
	api.Player
	Scrub(seconds float64) error
	Rewind() error
	Forward() error
	TogglePlay() error
}

// Project opens sources, runs separation and imports clips
type Project interface {
	Open(ctx context.Context, path string) (api.ProjectInfo, error)
	Info() api.ProjectInfo
	Separate(ctx context.Context) (<-chan error, error)
	ImportClip(path string, track int, start float64) (timeline.Clip, error)
	Timeline() *timeline.Timeline
}

// Mode is what the keyboard currently drives
type Mode int

const (
	ModeEdit Mode = iota
	ModeOpen
	ModeImport
)

const (
	scrubStep = 0.1
	nudgeStep = 0.25
	jumpStep  = 1.0
)

// Options configures the editor
type Options struct {
	Tracks    []string // lane names, by track index
	StartDir  string   // where the file browser starts
	OpenPath  string   // opened on start when set
	TickEvery time.Duration
}

// Model is the main bubbletea model
type Model struct {
	// Dimensions
	width  int
	height int

	mode Mode

	// Views
	transportView views.TransportView
	timelineView  views.TimelineView
	browser       components.FileBrowser
	help          help.Model
	keys          keyMap

	// Components
	transport Transport
	project   Project
	timeline  *timeline.Timeline
	bus       *events.EventBus
	events    <-chan api.Event
	opts      Options

	// Editing state
	selected string
	moving   bool

	// State
	ctx    context.Context
	cancel context.CancelFunc
	err    error

	// Styles
	headerStyle lipgloss.Style
	modeStyle   lipgloss.Style
	errorStyle  lipgloss.Style
}

// TickMsg is sent periodically to refresh the playhead
type TickMsg time.Time

// EventMsg wraps an event from the bus
type EventMsg api.Event

// OpenedMsg reports the result of opening a source
type OpenedMsg struct {
	Info api.ProjectInfo
	Err  error
}

// SeparationStartedMsg carries the channel the separation result arrives on
type SeparationStartedMsg struct {
	Done <-chan error
}

// SeparationDoneMsg reports the end of a separation
type SeparationDoneMsg struct {
	Err error
}

// NewModel creates a new application model
func NewModel(transport Transport, project Project, bus *events.EventBus, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.TickEvery <= 0 {
		opts.TickEvery = 100 * time.Millisecond
	}

	m := Model{
		width:     80,
		height:    24,
		mode:      ModeEdit,
		transport: transport,
		project:   project,
		timeline:  project.Timeline(),
		bus:       bus,
		opts:      opts,
		keys:      defaultKeyMap(),
		help:      help.New(),
		ctx:       ctx,
		cancel:    cancel,
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		modeStyle: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("62")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
	}
	if bus != nil {
		m.events = bus.SubscribeAll()
	}

	m.transportView = views.NewTransportView(m.width)
	m.timelineView = views.NewTimelineView(m.width, opts.Tracks)
	m.browser = components.NewFileBrowser(opts.StartDir, m.width, m.height-4)
	m.refresh()

	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.opts.TickEvery), m.listenForEvents()}
	if m.opts.OpenPath != "" {
		cmds = append(cmds, m.openCmd(m.opts.OpenPath))
	}
	return tea.Batch(cmds...)
}

func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// listenForEvents returns a command that waits for the next bus event
func (m Model) listenForEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch, ctx := m.events, m.ctx
	return func() tea.Msg {
		select {
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			return EventMsg(event)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) openCmd(path string) tea.Cmd {
	transport, project, ctx := m.transport, m.project, m.ctx
	return func() tea.Msg {
		if err := transport.Stop(); err != nil {
			return OpenedMsg{Err: err}
		}
		info, err := project.Open(ctx, path)
		return OpenedMsg{Info: info, Err: err}
	}
}

func (m Model) separateCmd() tea.Cmd {
	project, ctx := m.project, m.ctx
	return func() tea.Msg {
		done, err := project.Separate(ctx)
		if err != nil {
			return SeparationDoneMsg{Err: err}
		}
		return SeparationStartedMsg{Done: done}
	}
}

func waitSeparation(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return SeparationDoneMsg{Err: <-done}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewSizes()

	case TickMsg:
		m.refresh()
		cmds = append(cmds, tickCmd(m.opts.TickEvery))

	case EventMsg:
		cmds = append(cmds, m.handleEvent(api.Event(msg)), m.listenForEvents())

	case OpenedMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.err = nil
			m.transportView.Project = msg.Info
			m.transportView.Status = "opened " + filepath.Base(msg.Info.SourcePath)
			m.selected = ""
		}
		m.refresh()

	case SeparationStartedMsg:
		cmds = append(cmds, waitSeparation(msg.Done))

	case SeparationDoneMsg:
		m.transportView.Separating = false
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.transportView.Status = "separation finished"
		}
		m.refresh()

	case tea.KeyMsg:
		return m.handleKey(msg)

	default:
		var cmd tea.Cmd
		m.transportView, cmd = m.transportView.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(ev api.Event) tea.Cmd {
	switch ev.Type {
	case api.EventStateChange:
		if st, ok := ev.Payload.(api.PlaybackState); ok {
			m.transportView.SetState(st)
		}
	case api.EventPlaybackEnded:
		m.transportView.Status = "playback ended"
	case api.EventError:
		if err, ok := ev.Payload.(error); ok {
			m.err = err
		}
	case api.EventProjectLoaded:
		if info, ok := ev.Payload.(api.ProjectInfo); ok {
			m.transportView.Project = info
		}
	case api.EventClipsChanged:
		m.transportView.Project = m.project.Info()
		m.refresh()
	case api.EventSeparationStarted:
		m.transportView.Separating = true
		if name, ok := ev.Payload.(string); ok {
			m.transportView.Backend = name
		}
		return m.transportView.Spinner.Tick
	case api.EventSeparationDone:
		if paths, ok := ev.Payload.([]string); ok {
			m.transportView.Status = fmt.Sprintf("wrote %d stems", len(paths))
		}
	case api.EventStemsDetected:
		m.transportView.Status = "stems changed on disk, reloading"
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancel()
		return m, tea.Quit
	}
	if m.mode != ModeEdit {
		return m.handleBrowserKey(msg)
	}

	// Any key that is not part of a move gesture ends it
	if m.moving && !m.keys.isMove(msg) {
		m.drop()
	}

	var err error
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.PlayPause):
		err = m.transport.TogglePlay()
	case key.Matches(msg, m.keys.Stop):
		err = m.transport.Stop()
	case key.Matches(msg, m.keys.Rewind):
		err = m.transport.Rewind()
	case key.Matches(msg, m.keys.Forward):
		err = m.transport.Forward()
	case key.Matches(msg, m.keys.ScrubBack):
		err = m.transport.Scrub(m.transport.GetState().Position - scrubStep)
	case key.Matches(msg, m.keys.ScrubFwd):
		err = m.transport.Scrub(m.transport.GetState().Position + scrubStep)

	case key.Matches(msg, m.keys.NextClip):
		m.cycle(1)
	case key.Matches(msg, m.keys.PrevClip):
		m.cycle(-1)

	case key.Matches(msg, m.keys.NudgeLeft):
		err = m.move(0, -nudgeStep)
	case key.Matches(msg, m.keys.NudgeRight):
		err = m.move(0, nudgeStep)
	case key.Matches(msg, m.keys.JumpLeft):
		err = m.move(0, -jumpStep)
	case key.Matches(msg, m.keys.JumpRight):
		err = m.move(0, jumpStep)
	case key.Matches(msg, m.keys.TrackUp):
		err = m.move(-1, 0)
	case key.Matches(msg, m.keys.TrackDown):
		err = m.move(1, 0)
	case key.Matches(msg, m.keys.Drop):
		m.drop()

	case key.Matches(msg, m.keys.Mute):
		if m.selected != "" {
			_, err = m.timeline.ToggleMute(m.selected)
		}
	case key.Matches(msg, m.keys.Delete):
		if m.selected != "" {
			err = m.timeline.Remove(m.selected)
			m.selected = ""
		}

	case key.Matches(msg, m.keys.Open):
		m.showBrowser(ModeOpen)
	case key.Matches(msg, m.keys.Import):
		m.showBrowser(ModeImport)
	case key.Matches(msg, m.keys.Separate):
		m.refresh()
		return m, m.separateCmd()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	if err != nil {
		m.err = err
	}
	m.refresh()
	return m, nil
}

func (m Model) handleBrowserKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.browser.Keys.Cancel):
		m.mode = ModeEdit
		return m, nil
	case key.Matches(msg, m.browser.Keys.Choose):
		entry, ok := m.browser.Enter()
		if !ok {
			return m, nil
		}
		mode := m.mode
		m.mode = ModeEdit
		if mode == ModeOpen {
			m.transportView.Status = "opening " + entry.Name
			return m, m.openCmd(entry.Path)
		}
		m.importClip(entry.Path)
		return m, nil
	}
	var cmd tea.Cmd
	m.browser, cmd = m.browser.Update(msg)
	return m, cmd
}

func (m *Model) showBrowser(mode Mode) {
	m.mode = mode
	if mode == ModeOpen {
		m.browser.SetPurpose(components.PickSource, "Open recording")
	} else {
		m.browser.SetPurpose(components.PickClip, "Import clip")
	}
}

// importClip places a file at the playhead. A stem file goes to its own
// lane, anything else to the selected clip's track.
func (m *Model) importClip(path string) {
	track := 0
	if c, ok := m.selectedClip(); ok {
		track = c.Track
	}
	if name, ok := stems.NameOf(path); ok {
		track = stems.TrackFor(name, track)
	}
	clip, err := m.project.ImportClip(path, track, m.transport.GetState().Position)
	if err != nil {
		m.err = err
		return
	}
	m.selected = clip.ID
	m.transportView.Status = "imported " + clip.Name
	m.refresh()
}

// move shifts the selected clip; the start is snapped when the gesture ends
func (m *Model) move(dTrack int, dStart float64) error {
	c, ok := m.selectedClip()
	if !ok {
		return nil
	}
	m.moving = true
	return m.timeline.MoveTo(c.ID, c.Track+dTrack, c.Start+dStart)
}

func (m *Model) drop() {
	m.moving = false
	if m.selected == "" {
		return
	}
	if err := m.timeline.Drop(m.selected); err != nil {
		m.err = err
	}
}

// cycle selects the next clip in lane order
func (m *Model) cycle(dir int) {
	clips := orderedClips(m.timeline.Snapshot())
	if len(clips) == 0 {
		m.selected = ""
		return
	}
	idx := -1
	for i, c := range clips {
		if c.ID == m.selected {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && dir < 0:
		idx = len(clips) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + dir + len(clips)) % len(clips)
	}
	m.selected = clips[idx].ID
}

func (m *Model) selectedClip() (timeline.Clip, bool) {
	if m.selected == "" {
		return timeline.Clip{}, false
	}
	return m.timeline.Snapshot().Find(m.selected)
}

// orderedClips sorts clips by track, then start
func orderedClips(s *timeline.Snapshot) []timeline.Clip {
	clips := append([]timeline.Clip(nil), s.Clips...)
	sort.SliceStable(clips, func(i, j int) bool {
		if clips[i].Track != clips[j].Track {
			return clips[i].Track < clips[j].Track
		}
		return clips[i].Start < clips[j].Start
	})
	return clips
}

// refresh pulls the transport state and the current snapshot
func (m *Model) refresh() {
	state := m.transport.GetState()
	m.transportView.SetState(state)

	snap := m.timeline.Snapshot()
	if _, ok := snap.Find(m.selected); !ok {
		m.selected = ""
		m.moving = false
	}
	if len(snap.Clips) == 0 && m.transportView.Project.SourcePath == "" {
		m.timelineView.Snapshot = nil
	} else {
		m.timelineView.Snapshot = snap
	}
	m.timelineView.Position = state.Position
	m.timelineView.SelectedID = m.selected
}

// updateViewSizes updates view dimensions
func (m *Model) updateViewSizes() {
	m.transportView.SetWidth(m.width)
	m.timelineView.Width = m.width
	m.browser.Width = m.width
	m.browser.Height = m.height - 4
	m.help.Width = m.width
}

// View renders the UI
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.headerStyle.Render("♪ Stem Studio"))
	sb.WriteString(" ")
	sb.WriteString(m.modeStyle.Render(m.modeLabel()))
	sb.WriteString("\n")

	switch m.mode {
	case ModeOpen, ModeImport:
		sb.WriteString(m.browser.View())
	default:
		sb.WriteString(m.transportView.View())
		sb.WriteString("\n")
		sb.WriteString(m.timelineView.View())
		sb.WriteString("\n")
		sb.WriteString(m.help.View(m.keys))
	}

	// Error display
	if m.err != nil {
		sb.WriteString("\n" + m.errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return sb.String()
}

func (m Model) modeLabel() string {
	switch m.mode {
	case ModeOpen:
		return "OPEN"
	case ModeImport:
		return "IMPORT"
	}
	if m.moving {
		return "MOVE"
	}
	return "EDIT"
}

// Run starts the bubbletea program
func Run(transport Transport, project Project, bus *events.EventBus, opts Options) error {
	model := NewModel(transport, project, bus, opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	model.cancel()
	return err
}
