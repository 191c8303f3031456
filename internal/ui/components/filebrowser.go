package components

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/stems"
)

// Purpose decides what the browser lists and how files are annotated
type Purpose int

const (
	// PickSource lists recordings to open. Stem files are hidden since they
	// load together with their source, and each source shows the stems
	// already separated next to it.
	PickSource Purpose = iota
	// PickClip lists every audio file. Stem files show the lane they land on.
	PickClip
)

// Entry is one row of the browser
type Entry struct {
	Name  string
	Path  string
	IsDir bool
	Stems []string // PickSource: stems found next to this recording
	Stem  string   // PickClip: the stem this file holds, if any
}

// BrowserKeys are the bindings the browser reacts to. Choose and Cancel are
// handled by the owner, which knows what a chosen file means.
type BrowserKeys struct {
	Up     key.Binding
	Down   key.Binding
	PageUp key.Binding
	PageDn key.Binding
	Top    key.Binding
	Bottom key.Binding
	Parent key.Binding
	Home   key.Binding
	Choose key.Binding
	Cancel key.Binding
}

func defaultBrowserKeys() BrowserKeys {
	return BrowserKeys{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp: key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
		PageDn: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
		Top:    key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom: key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Parent: key.NewBinding(key.WithKeys("backspace", "left", "h"), key.WithHelp("⌫", "parent")),
		Home:   key.NewBinding(key.WithKeys("~"), key.WithHelp("~", "home")),
		Choose: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
		Cancel: key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp implements help.KeyMap
func (k BrowserKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Choose, k.Parent, k.Home, k.Cancel}
}

// FullHelp implements help.KeyMap
func (k BrowserKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDn},
		{k.Top, k.Bottom, k.Parent, k.Home},
		{k.Choose, k.Cancel},
	}
}

// FileBrowser picks a recording to open or a file to import as a clip
type FileBrowser struct {
	Purpose Purpose
	Title   string
	Dir     string
	Entries []Entry
	Cursor  int
	Width   int
	Height  int
	Err     error
	Keys    BrowserKeys

	offset int
	help   help.Model
	styles browserStyles
}

type browserStyles struct {
	frame    lipgloss.Style
	title    lipgloss.Style
	dir      lipgloss.Style
	file     lipgloss.Style
	cursor   lipgloss.Style
	tag      lipgloss.Style
	complete lipgloss.Style
	dim      lipgloss.Style
	err      lipgloss.Style
}

func newBrowserStyles() browserStyles {
	return browserStyles{
		frame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		title:    lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		dir:      lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
		file:     lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		cursor:   lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("255")).Bold(true),
		tag:      lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		complete: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// NewFileBrowser lists dir, or the home directory when dir is empty
func NewFileBrowser(dir string, width, height int) FileBrowser {
	if dir == "" {
		dir = homeDir()
	}
	fb := FileBrowser{
		Width:  width,
		Height: height,
		Keys:   defaultBrowserKeys(),
		help:   help.New(),
		styles: newBrowserStyles(),
	}
	fb.Load(dir)
	return fb
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return string(filepath.Separator)
}

// SetPurpose switches what is listed and rescans the current directory
func (fb *FileBrowser) SetPurpose(p Purpose, title string) {
	fb.Purpose = p
	fb.Title = title
	fb.Load(fb.Dir)
}

// Load lists dir: the parent first, then directories, then audio files,
// each group sorted case-insensitively. Hidden entries are skipped.
func (fb *FileBrowser) Load(dir string) {
	fb.Dir = dir
	fb.Cursor, fb.offset = 0, 0
	fb.Entries = nil

	items, err := os.ReadDir(dir)
	if err != nil {
		fb.Err = err
		return
	}
	fb.Err = nil

	var dirs, files []Entry
	for _, it := range items {
		name := it.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if it.IsDir() {
			dirs = append(dirs, Entry{Name: name, Path: path, IsDir: true})
			continue
		}
		if e, ok := fb.fileEntry(name, path); ok {
			files = append(files, e)
		}
	}
	byName := func(list []Entry) {
		sort.Slice(list, func(i, j int) bool {
			return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
		})
	}
	byName(dirs)
	byName(files)

	if parent := filepath.Dir(dir); parent != dir {
		fb.Entries = append(fb.Entries, Entry{Name: "..", Path: parent, IsDir: true})
	}
	fb.Entries = append(fb.Entries, dirs...)
	fb.Entries = append(fb.Entries, files...)
}

func (fb *FileBrowser) fileEntry(name, path string) (Entry, bool) {
	if !audio.IsSupported(name) {
		return Entry{}, false
	}
	e := Entry{Name: name, Path: path}
	stem, isStem := stems.NameOf(name)
	switch fb.Purpose {
	case PickSource:
		if isStem {
			return Entry{}, false
		}
		for _, f := range stems.Existing(path) {
			e.Stems = append(e.Stems, f.Name)
		}
	case PickClip:
		e.Stem = stem
	}
	return e, true
}

// Selected returns the entry under the cursor
func (fb *FileBrowser) Selected() (Entry, bool) {
	if fb.Cursor < 0 || fb.Cursor >= len(fb.Entries) {
		return Entry{}, false
	}
	return fb.Entries[fb.Cursor], true
}

// Enter descends into a selected directory, or returns the selected file
func (fb *FileBrowser) Enter() (Entry, bool) {
	e, ok := fb.Selected()
	if !ok {
		return Entry{}, false
	}
	if e.IsDir {
		fb.Load(e.Path)
		return Entry{}, false
	}
	return e, true
}

// Update moves the cursor and navigates directories
func (fb FileBrowser) Update(msg tea.Msg) (FileBrowser, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return fb, nil
	}
	page := fb.rows()
	switch {
	case key.Matches(km, fb.Keys.Up):
		fb.moveCursor(-1)
	case key.Matches(km, fb.Keys.Down):
		fb.moveCursor(1)
	case key.Matches(km, fb.Keys.PageUp):
		fb.moveCursor(-page)
	case key.Matches(km, fb.Keys.PageDn):
		fb.moveCursor(page)
	case key.Matches(km, fb.Keys.Top):
		fb.moveCursor(-len(fb.Entries))
	case key.Matches(km, fb.Keys.Bottom):
		fb.moveCursor(len(fb.Entries))
	case key.Matches(km, fb.Keys.Parent):
		if parent := filepath.Dir(fb.Dir); parent != fb.Dir {
			fb.Load(parent)
		}
	case key.Matches(km, fb.Keys.Home):
		fb.Load(homeDir())
	}
	return fb, nil
}

func (fb *FileBrowser) moveCursor(delta int) {
	if len(fb.Entries) == 0 {
		return
	}
	fb.Cursor = max(0, min(fb.Cursor+delta, len(fb.Entries)-1))
	rows := fb.rows()
	if fb.Cursor < fb.offset {
		fb.offset = fb.Cursor
	} else if fb.Cursor >= fb.offset+rows {
		fb.offset = fb.Cursor - rows + 1
	}
}

// rows is how many entries fit between the header and the footer
func (fb *FileBrowser) rows() int {
	return max(1, fb.Height-8)
}

// tag is the annotation shown at the right edge of a row
func (fb *FileBrowser) tag(e Entry) string {
	switch {
	case e.IsDir:
		return ""
	case len(e.Stems) == len(stems.Order):
		return fb.styles.complete.Render("separated")
	case len(e.Stems) > 0:
		return fb.styles.tag.Render(strings.Join(e.Stems, " "))
	case e.Stem != "":
		return fb.styles.tag.Render("→ " + e.Stem + " lane")
	}
	return ""
}

// View renders the browser
func (fb FileBrowser) View() string {
	inner := max(20, fb.Width-4)
	var sb strings.Builder

	if fb.Title != "" {
		sb.WriteString(fb.styles.title.Render(fb.Title))
		sb.WriteString("  ")
	}
	sb.WriteString(fb.styles.dim.Render(fb.Dir))
	sb.WriteString("\n\n")

	if fb.Err != nil {
		sb.WriteString(fb.styles.err.Render("Error: " + fb.Err.Error()))
		sb.WriteString("\n")
	}

	rows := fb.rows()
	end := min(fb.offset+rows, len(fb.Entries))
	for i := fb.offset; i < end; i++ {
		e := fb.Entries[i]
		icon, style := "♪ ", fb.styles.file
		if e.IsDir {
			icon, style = "▸ ", fb.styles.dir
		}
		if i == fb.Cursor {
			style = fb.styles.cursor
		}

		tag := fb.tag(e)
		nameWidth := inner - lipgloss.Width(tag) - 1
		name := lipgloss.NewStyle().MaxWidth(max(1, nameWidth)).Render(icon + e.Name)
		gap := max(1, inner-lipgloss.Width(name)-lipgloss.Width(tag))
		sb.WriteString(style.Render(name))
		sb.WriteString(strings.Repeat(" ", gap))
		sb.WriteString(tag)
		sb.WriteString("\n")
	}
	for i := end - fb.offset; i < rows; i++ {
		sb.WriteString("\n")
	}

	sb.WriteString(fb.styles.dim.Render(fb.summary()))
	sb.WriteString("\n")
	sb.WriteString(fb.help.ShortHelpView(fb.Keys.ShortHelp()))

	return fb.styles.frame.Width(inner + 2).Render(sb.String())
}

func (fb *FileBrowser) summary() string {
	var files, marked int
	for _, e := range fb.Entries {
		if e.IsDir {
			continue
		}
		files++
		if len(e.Stems) > 0 || e.Stem != "" {
			marked++
		}
	}
	if fb.Purpose == PickSource {
		return fmt.Sprintf("%d recordings, %d with stems", files, marked)
	}
	return fmt.Sprintf("%d files, %d stems", files, marked)
}
