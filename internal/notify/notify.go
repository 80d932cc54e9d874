// Package notify surfaces playback events as desktop notifications.
package notify

import (
	"fmt"
	"strings"

	"github.com/avigny/baton/internal/player"
)

// Urgency is the freedesktop notification urgency level.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// trackTimeoutMs is how long a now-playing notification stays on screen.
const trackTimeoutMs = 5000

// Notification is one message for the desktop notification server.
type Notification struct {
	Title      string
	Body       string
	Icon       string // image path or icon name
	Timeout    int32  // ms; -1 server default, 0 sticky
	ReplacesID uint32 // replaces an earlier notification when non-zero
	Urgency    Urgency
}

// Notifier delivers notifications to the desktop.
type Notifier interface {
	// Notify sends n and returns the server-assigned ID, or 0 when
	// notifications are unavailable.
	Notify(n Notification) (uint32, error)
	// Close dismisses a notification by ID.
	Close(id uint32) error
}

// forTrack shapes a now-playing notification. Untitled tracks fall back to
// their location; replaces keeps playlist skipping from stacking messages.
func forTrack(e player.TrackChange, icon string, replaces uint32) Notification {
	track := e.Item.Track
	title := track.Title
	if title == "" {
		title = track.URL
	}

	var parts []string
	if track.Artist != "" {
		parts = append(parts, track.Artist)
	}
	if track.Album != "" {
		parts = append(parts, track.Album)
	}

	return Notification{
		Title:      title,
		Body:       strings.Join(parts, " - "),
		Icon:       icon,
		Timeout:    trackTimeoutMs,
		ReplacesID: replaces,
		Urgency:    UrgencyLow,
	}
}

// forError shapes a playback-stopped notification: critical and sticky, since
// playback halting is the one thing worth interrupting the user for.
func forError(e player.ErrorEvent) Notification {
	return Notification{
		Title:   "Playback error",
		Body:    fmt.Sprintf("Playback stopped: %s", e.Message),
		Timeout: 0,
		Urgency: UrgencyCritical,
	}
}
