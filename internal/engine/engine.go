// Package engine defines the capability contract audio rendering backends
// must satisfy, and the backends shipped with baton. The controller never
// assumes backend internals; it only reacts to the normalized event set.
package engine

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// Metadata describes the track currently loaded in the engine. Streaming
// backends may replace it mid-track (e.g. radio song changes).
type Metadata struct {
	Location string
	Title    string
	Artist   string
	Album    string
	Year     int
	Track    int
	Duration time.Duration
}

// Event is the base interface for engine notifications.
type Event interface{ engineEvent() }

// StateChanged is emitted whenever the engine state changes.
type StateChanged struct {
	State State
}

// MetadataChanged is emitted when the loaded track's metadata is known or
// replaced.
type MetadataChanged struct {
	Metadata Metadata
}

// TrackAboutToEnd is emitted once per track shortly before natural end, so
// the controller can prefetch the next item.
type TrackAboutToEnd struct{}

// TrackEnded is emitted when the loaded track finishes naturally.
type TrackEnded struct{}

// Error is emitted on a backend failure while a track is loaded.
type Error struct {
	Err error
}

func (StateChanged) engineEvent()    {}
func (MetadataChanged) engineEvent() {}
func (TrackAboutToEnd) engineEvent() {}
func (TrackEnded) engineEvent()      {}
func (Error) engineEvent()           {}

// Engine is the contract any rendering backend implements.
//
// Load either accepts or rejects a location; all other control methods are
// no-ops when no track is loaded. Events are delivered on a buffered channel
// and never block the backend: consumers that fall behind lose events.
type Engine interface {
	Load(location string) error
	Play() error
	Pause()
	Stop()
	Seek(position time.Duration)
	SetVolume(percent int)
	State() State
	Position() time.Duration
	Duration() time.Duration
	Events() <-chan Event
	Close() error
}

// Type identifies an engine backend.
type Type string

const (
	TypeBeep Type = "beep"
	TypeNull Type = "null"
)

// New constructs the engine for the given type. An unknown type falls back
// to the beep backend so a stale preference never prevents playback.
func New(t Type) (Engine, error) {
	switch t {
	case TypeBeep, "":
		return newBeepEngine()
	case TypeNull:
		return newNullEngine(), nil
	default:
		log.Warn().Str("component", "engine").Str("type", string(t)).
			Msg("unknown engine type, falling back to beep")
		return newBeepEngine()
	}
}

const eventBufferSize = 16

// sendEvent delivers e without blocking, dropping it when the buffer is full.
func sendEvent(ch chan Event, e Event) {
	select {
	case ch <- e:
	default:
	}
}

// ErrUnsupportedLocation is returned by Load for locations the backend
// cannot render (wrong scheme or unknown container format).
var ErrUnsupportedLocation = errors.New("engine: unsupported location")
