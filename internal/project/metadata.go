package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata is what the source file says about itself
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// ReadMetadata reads tags from an audio file. Files without tags, or that
// cannot be read, fall back to the file name as title.
func ReadMetadata(filePath string) Metadata {
	fallback := Metadata{Title: baseName(filePath)}

	file, err := os.Open(filePath)
	if err != nil {
		return fallback
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil {
		return fallback
	}

	return Metadata{
		Title:  getOrDefault(m.Title(), fallback.Title),
		Artist: m.Artist(),
		Album:  m.Album(),
	}
}

func baseName(filePath string) string {
	return strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
}

// getOrDefault returns the value if non-empty, otherwise returns the default
func getOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
