// internal/engine/null.go
package engine

import (
	"sync"
	"time"
)

// nullEngine accepts any location and renders silence. It is used when no
// audio device is available and as a harness for end-to-end runs.
type nullEngine struct {
	mu sync.Mutex

	state    State
	meta     *Metadata
	position time.Duration

	volumePct int
	events    chan Event
}

var _ Engine = (*nullEngine)(nil)

func newNullEngine() *nullEngine {
	return &nullEngine{
		state:     Empty,
		volumePct: 100,
		events:    make(chan Event, eventBufferSize),
	}
}

func (e *nullEngine) Load(location string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if location == "" {
		return ErrUnsupportedLocation
	}
	e.meta = &Metadata{Location: location, Title: location}
	e.position = 0
	e.state = Idle
	sendEvent(e.events, MetadataChanged{Metadata: *e.meta})
	sendEvent(e.events, StateChanged{State: Idle})
	return nil
}

func (e *nullEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case Idle, Paused:
		e.state = Playing
		sendEvent(e.events, StateChanged{State: Playing})
		return nil
	case Playing:
		return nil
	default:
		return ErrUnsupportedLocation
	}
}

func (e *nullEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Playing {
		return
	}
	e.state = Paused
	sendEvent(e.events, StateChanged{State: Paused})
}

func (e *nullEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Empty {
		return
	}
	e.meta = nil
	e.position = 0
	e.state = Empty
	sendEvent(e.events, StateChanged{State: Empty})
}

func (e *nullEngine) Seek(position time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.IsActive() {
		return
	}
	e.position = max(position, 0)
}

func (e *nullEngine) SetVolume(percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volumePct = min(max(percent, 0), 100)
}

func (e *nullEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *nullEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *nullEngine) Duration() time.Duration { return 0 }

func (e *nullEngine) Events() <-chan Event { return e.events }

func (e *nullEngine) Close() error {
	e.Stop()
	return nil
}
