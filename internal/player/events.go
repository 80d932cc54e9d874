package player

import (
	"time"

	"github.com/avigny/baton/internal/playlist"
)

// Status is the controller-level playback state.
//
// Transitions: Stopped → Loading → Playing ⇄ Paused. Loading is also entered
// from Playing/Paused on a new manual selection, and returns to Stopped on
// unrecoverable error. Error is never a resting state: engine errors are
// counted and converted into a retry-advance or an abort to Stopped.
type Status int

const (
	Stopped Status = iota
	Loading
	Playing
	Paused
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Loading:
		return "Loading"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// StateChange is emitted when the controller status changes.
type StateChange struct {
	Status Status

	// PlaylistFinished is set on the Stopped change that follows natural
	// exhaustion of the playlist.
	PlaylistFinished bool
}

// TrackChange is emitted when playback starts on a different item.
type TrackChange struct {
	Item playlist.Item
}

// TrackSkipped is emitted when a manual selection replaces an item that was
// still current.
type TrackSkipped struct {
	Previous playlist.Item
}

// MetadataChange is emitted when the current item's metadata is updated by
// the engine (e.g. a stream title change).
type MetadataChange struct {
	Item playlist.Item
}

// Seeked is emitted on a manual change to the playback position.
type Seeked struct {
	Position time.Duration
}

// VolumeChange is emitted when the effective volume changes.
type VolumeChange struct {
	Volume int
	Muted  bool
}

// ChangeRequestProcessed is emitted when a request to play a location has
// been fully processed, successfully or not.
type ChangeRequestProcessed struct {
	Location string
	Valid    bool
}

// ErrorEvent carries aggregate, user-facing playback errors. Per-track
// failures are absorbed by the retry policy and never appear here.
type ErrorEvent struct {
	Message string
}
