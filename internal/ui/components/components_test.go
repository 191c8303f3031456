package components

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00.00"},
		{1.5, "00:01.50"},
		{61.25, "01:01.25"},
		{59.999, "01:00.00"},
		{-3, "00:00.00"},
		{600, "10:00.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTime(tt.seconds); got != tt.want {
				t.Errorf("FormatTime(%v) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestProgressBarShowsTimes(t *testing.T) {
	p := NewProgressBar(40)
	p.SetProgress(30, 60)
	out := p.View()
	for _, want := range []string{"00:30.00", "01:00.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q: %q", want, out)
		}
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFileBrowserPurpose(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "song.mp3", "song_vocals.wav", "song_drums.wav", "demo.wav", "notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "takes"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		purpose Purpose
		want    []string
	}{
		{"sources", PickSource, []string{"..", "takes", "demo.wav", "song.mp3"}},
		{"clips", PickClip, []string{"..", "takes", "demo.wav", "song.mp3", "song_drums.wav", "song_vocals.wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := NewFileBrowser(dir, 80, 20)
			fb.SetPurpose(tt.purpose, "")

			var got []string
			for _, e := range fb.Entries {
				got = append(got, e.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("entries = %v, want %v", got, tt.want)
			}
		})
	}
}

func entryNamed(t *testing.T, fb FileBrowser, name string) Entry {
	t.Helper()
	for _, e := range fb.Entries {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no entry %q in %v", name, fb.Entries)
	return Entry{}
}

func TestFileBrowserAnnotatesStems(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "song.mp3", "song_vocals.wav", "song_drums.wav",
		"full.wav", "full_vocals.wav", "full_drums.wav", "full_bass.wav", "full_other.wav",
		"demo.wav")

	fb := NewFileBrowser(dir, 80, 30)
	fb.SetPurpose(PickSource, "Open recording")

	if got := entryNamed(t, fb, "song.mp3").Stems; strings.Join(got, ",") != "vocals,drums" {
		t.Errorf("song.mp3 stems = %v, want vocals then drums", got)
	}
	if got := entryNamed(t, fb, "demo.wav").Stems; len(got) != 0 {
		t.Errorf("demo.wav stems = %v, want none", got)
	}
	out := fb.View()
	for _, want := range []string{"Open recording", "separated", "vocals drums", "3 recordings, 2 with stems"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	fb.SetPurpose(PickClip, "Import clip")
	if got := entryNamed(t, fb, "full_bass.wav").Stem; got != "bass" {
		t.Errorf("full_bass.wav stem = %q, want bass", got)
	}
	if got := entryNamed(t, fb, "demo.wav").Stem; got != "" {
		t.Errorf("demo.wav stem = %q, want none", got)
	}
	if out := fb.View(); !strings.Contains(out, "→ bass lane") {
		t.Error("View() missing lane tag for a stem file")
	}
}

func TestFileBrowserNavigation(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "a")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, sub, "mix.wav")

	fb := NewFileBrowser(dir, 80, 20)
	fb, _ = fb.Update(tea.KeyMsg{Type: tea.KeyDown}) // skip ".."
	if _, ok := fb.Enter(); ok {
		t.Fatal("entering a directory should not choose a file")
	}
	if fb.Dir != sub {
		t.Fatalf("Dir = %q, want %q", fb.Dir, sub)
	}

	fb, _ = fb.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	e, ok := fb.Enter()
	if !ok || e.Path != filepath.Join(sub, "mix.wav") {
		t.Errorf("Enter() = %+v, %v", e, ok)
	}

	fb, _ = fb.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if fb.Dir != dir {
		t.Errorf("Dir after backspace = %q, want %q", fb.Dir, dir)
	}
}

func TestFileBrowserCursorScrolls(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 30; i++ {
		touch(t, dir, fmt.Sprintf("take%02d.wav", i))
	}
	fb := NewFileBrowser(dir, 80, 12) // four rows

	for i := 0; i < 6; i++ {
		fb, _ = fb.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if fb.Cursor != 6 || fb.offset != 3 {
		t.Errorf("cursor %d offset %d, want 6 and 3", fb.Cursor, fb.offset)
	}
	fb, _ = fb.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	fb, _ = fb.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	if fb.Cursor != 0 || fb.offset != 0 {
		t.Errorf("cursor %d offset %d after paging up, want 0 and 0", fb.Cursor, fb.offset)
	}
	fb, _ = fb.Update(tea.KeyMsg{Type: tea.KeyEnd})
	if fb.Cursor != len(fb.Entries)-1 {
		t.Errorf("cursor %d after end, want %d", fb.Cursor, len(fb.Entries)-1)
	}
}
