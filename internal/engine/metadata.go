package engine

import (
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
)

// ReadMetadata reads tag metadata from a local file. Tags are best-effort:
// files without tags get the filename as title. Duration is filled in later
// from the decoded stream when available.
func ReadMetadata(path string) Metadata {
	meta := Metadata{Title: filepath.Base(path)}

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return meta
	}

	if t := m.Title(); t != "" {
		meta.Title = t
	}
	meta.Artist = m.Artist()
	meta.Album = m.Album()
	meta.Year = m.Year()
	meta.Track, _ = m.Track()
	return meta
}
