package mpris

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// artStems are generic cover file stems, in priority order. An image named
// after the track itself outranks all of them.
var artStems = []string{"cover", "folder", "album", "front"}

var artExtensions = []string{".jpg", ".png", ".jpeg"}

// FindAlbumArt looks next to the track for an image to use as album art.
// location may be a plain path or a file:// URL; remote locations have no
// directory to scan and yield no art.
func FindAlbumArt(location string) string {
	path := localPath(location)
	if path == "" {
		return ""
	}

	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, s := range append([]string{stem}, artStems...) {
		for _, ext := range artExtensions {
			candidate := filepath.Join(dir, s+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

// localPath extracts a filesystem path from a playable location, or returns
// empty for locations that do not point at a local file.
func localPath(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		if u.Scheme != "file" {
			return ""
		}
		return u.Path
	}
	return location
}
