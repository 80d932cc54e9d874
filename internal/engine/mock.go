// internal/engine/mock.go
package engine

import (
	"sync"
	"time"
)

// Mock is a test double for Engine.
type Mock struct {
	mu sync.Mutex

	state    State
	position time.Duration
	duration time.Duration
	volume   int

	loadErr error
	playErr error

	loadCalls   []string
	seekCalls   []time.Duration
	volumeCalls []int

	events chan Event
	closed bool
}

// NewMock creates a new mock engine for testing.
func NewMock() *Mock {
	return &Mock{
		state:  Empty,
		volume: 100,
		events: make(chan Event, eventBufferSize),
	}
}

func (m *Mock) Load(location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls = append(m.loadCalls, location)
	if m.loadErr != nil {
		return m.loadErr
	}
	m.state = Idle
	m.position = 0
	sendEvent(m.events, StateChanged{State: Idle})
	return nil
}

func (m *Mock) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	if m.state == Idle || m.state == Paused {
		m.state = Playing
		sendEvent(m.events, StateChanged{State: Playing})
	}
	return nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		m.state = Paused
		sendEvent(m.events, StateChanged{State: Paused})
	}
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Empty {
		return
	}
	m.state = Empty
	m.position = 0
	sendEvent(m.events, StateChanged{State: Empty})
}

func (m *Mock) Seek(position time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	position = max(position, 0)
	if m.duration > 0 && position > m.duration {
		position = m.duration
	}
	m.position = position
	m.seekCalls = append(m.seekCalls, position)
}

func (m *Mock) SetVolume(percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = min(max(percent, 0), 100)
	m.volumeCalls = append(m.volumeCalls, m.volume)
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) Events() <-chan Event { return m.events }

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) SetState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Mock) SetPosition(d time.Duration) {
	m.mu.Lock()
	m.position = d
	m.mu.Unlock()
}

func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	m.duration = d
	m.mu.Unlock()
}

func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

func (m *Mock) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

func (m *Mock) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// EmitTrackEnded simulates the loaded track finishing naturally.
func (m *Mock) EmitTrackEnded() {
	m.mu.Lock()
	m.state = Idle
	m.mu.Unlock()
	sendEvent(m.events, TrackEnded{})
}

// EmitAboutToEnd simulates the prefetch point being reached.
func (m *Mock) EmitAboutToEnd() {
	sendEvent(m.events, TrackAboutToEnd{})
}

// EmitState pushes a state change event without going through controls.
func (m *Mock) EmitState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	sendEvent(m.events, StateChanged{State: s})
}

// EmitMetadata pushes a metadata change event.
func (m *Mock) EmitMetadata(meta Metadata) {
	sendEvent(m.events, MetadataChanged{Metadata: meta})
}

// EmitError pushes a backend error event.
func (m *Mock) EmitError(err error) {
	m.mu.Lock()
	m.state = StateError
	m.mu.Unlock()
	sendEvent(m.events, Error{Err: err})
	sendEvent(m.events, StateChanged{State: StateError})
}

// Verify Mock implements Engine at compile time.
var _ Engine = (*Mock)(nil)
