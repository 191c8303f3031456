package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// keyMap holds the editor bindings
type keyMap struct {
	PlayPause  key.Binding
	Stop       key.Binding
	Rewind     key.Binding
	Forward    key.Binding
	ScrubBack  key.Binding
	ScrubFwd   key.Binding
	NextClip   key.Binding
	PrevClip   key.Binding
	NudgeLeft  key.Binding
	NudgeRight key.Binding
	JumpLeft   key.Binding
	JumpRight  key.Binding
	TrackUp    key.Binding
	TrackDown  key.Binding
	Drop       key.Binding
	Mute       key.Binding
	Delete     key.Binding
	Open       key.Binding
	Import     key.Binding
	Separate   key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		PlayPause:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Rewind:     key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "back 5s")),
		Forward:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "fwd 5s")),
		ScrubBack:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "scrub back")),
		ScrubFwd:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "scrub fwd")),
		NextClip:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next clip")),
		PrevClip:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev clip")),
		NudgeLeft:  key.NewBinding(key.WithKeys("h"), key.WithHelp("h/l", "nudge clip")),
		NudgeRight: key.NewBinding(key.WithKeys("l")),
		JumpLeft:   key.NewBinding(key.WithKeys("H"), key.WithHelp("H/L", "move clip 1s")),
		JumpRight:  key.NewBinding(key.WithKeys("L")),
		TrackUp:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("j/k", "change track")),
		TrackDown:  key.NewBinding(key.WithKeys("j", "down")),
		Drop:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop clip")),
		Mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Delete:     key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete clip")),
		Open:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Import:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "import clip")),
		Separate:   key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "separate")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Stop, k.Rewind, k.Forward, k.Open, k.Separate, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Stop, k.Rewind, k.Forward, k.ScrubBack, k.ScrubFwd},
		{k.NextClip, k.PrevClip, k.NudgeLeft, k.JumpLeft, k.TrackUp, k.Drop},
		{k.Mute, k.Delete, k.Open, k.Import, k.Separate, k.Help, k.Quit},
	}
}

// isMove reports whether a key continues a clip move gesture
func (k keyMap) isMove(msg tea.KeyMsg) bool {
	return key.Matches(msg, k.NudgeLeft, k.NudgeRight, k.JumpLeft, k.JumpRight, k.TrackUp, k.TrackDown)
}
