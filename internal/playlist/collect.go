package playlist

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avigny/baton/internal/engine"
)

// audioExtensions lists the file types the engines can decode.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
}

// IsAudioFile reports whether path looks like a playable audio file.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// FromPath creates a track from a local file path by reading its metadata.
func FromPath(path string) Track {
	meta := engine.ReadMetadata(path)
	return Track{
		URL:    path,
		Title:  meta.Title,
		Artist: meta.Artist,
		Album:  meta.Album,
	}
}

// Collect expands a mix of files, directories and URLs into tracks.
// Directories are walked recursively; non-audio files are skipped. Locations
// with a URL scheme are kept as-is for handler resolution at play time.
func Collect(locations []string) ([]Track, error) {
	var tracks []Track
	for _, loc := range locations {
		if strings.Contains(loc, "://") {
			tracks = append(tracks, Track{URL: loc, Title: loc})
			continue
		}

		info, err := os.Stat(loc)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if IsAudioFile(loc) {
				tracks = append(tracks, FromPath(loc))
			}
			continue
		}

		var dirTracks []Track
		err = filepath.WalkDir(loc, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				// Skip unreadable entries, continue walking
				return nil //nolint:nilerr // intentionally skipping errors
			}
			if d.IsDir() || !IsAudioFile(path) {
				return nil
			}
			dirTracks = append(dirTracks, FromPath(path))
			return nil
		})
		if err != nil {
			return nil, err
		}

		// Sort by path for consistent ordering
		sort.Slice(dirTracks, func(i, j int) bool {
			return dirTracks[i].URL < dirTracks[j].URL
		})
		tracks = append(tracks, dirTracks...)
	}
	return tracks, nil
}
