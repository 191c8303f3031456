// Package stems implements the on-disk convention for separated stems:
// each stem of `song.mp3` lives next to it as `song_<stem>.wav`.
package stems

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jscyril/stem_studio/internal/audio"
)

// Order is the canonical stem order; a stem's position is its default track
var Order = []string{"vocals", "drums", "bass", "other"}

// Stem is one separated component of a source recording
type Stem struct {
	Name   string
	Index  int // position reported by the backend, used when Name is not canonical
	Buffer *audio.Buffer
}

// File is a stem found on disk
type File struct {
	Name string
	Path string
}

// TrackFor maps a stem name to its track. Only the first word of the name is
// considered, case-insensitively; unknown names get fallback.
func TrackFor(name string, fallback int) int {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return fallback
	}
	for i, s := range Order {
		if fields[0] == s {
			return i
		}
	}
	return fallback
}

// SiblingPath returns where stem of source is stored
func SiblingPath(source, stem string) string {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	return base + "_" + strings.ToLower(stem) + ".wav"
}

// Existing lists the sibling stem files of source that exist, in Order
func Existing(source string) []File {
	var found []File
	for _, name := range Order {
		p := SiblingPath(source, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			found = append(found, File{Name: name, Path: p})
		}
	}
	return found
}

// NameOf returns the stem a file holds when it is named like a sibling
// stem, e.g. "vocals" for song_vocals.wav
func NameOf(path string) (string, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return "", false
	}
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, name := range Order {
		if len(base) > len(name)+1 && strings.HasSuffix(base, "_"+name) {
			return name, true
		}
	}
	return "", false
}

// IsSibling reports whether path is one of source's stem files
func IsSibling(source, path string) bool {
	for _, name := range Order {
		if filepath.Clean(path) == filepath.Clean(SiblingPath(source, name)) {
			return true
		}
	}
	return false
}

// Write stores every stem next to source as 16-bit WAV. Each file is written
// under a temporary name first and the set is renamed into place only after
// all of them were written. If a rename fails the stems already moved into
// place are removed again, so a failure never leaves a partial set behind.
func Write(source string, set []Stem) ([]string, error) {
	if len(set) == 0 {
		return nil, errors.New("no stems to write")
	}

	dir := filepath.Dir(source)
	temps := make([]string, 0, len(set))
	cleanup := func() {
		for _, p := range temps {
			os.Remove(p)
		}
	}

	for _, s := range set {
		if s.Buffer == nil {
			cleanup()
			return nil, fmt.Errorf("stem %s has no audio", s.Name)
		}
		f, err := os.CreateTemp(dir, ".stem-*.wav.tmp")
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create temp for %s: %w", s.Name, err)
		}
		tmp := f.Name()
		f.Close()
		temps = append(temps, tmp)

		if err := audio.WriteWAV16(tmp, s.Buffer); err != nil {
			cleanup()
			return nil, fmt.Errorf("write stem %s: %w", s.Name, err)
		}
	}

	paths := make([]string, len(set))
	for i, s := range set {
		paths[i] = SiblingPath(source, s.Name)
		if err := os.Rename(temps[i], paths[i]); err != nil {
			for _, p := range paths[:i] {
				os.Remove(p)
			}
			cleanup()
			return nil, fmt.Errorf("rename stem %s: %w", s.Name, err)
		}
	}
	return paths, nil
}
