// internal/engine/state.go
package engine

// State represents the engine playback state as reported by a backend.
//
// Valid transitions:
//   - Empty   → Idle    (via Load)
//   - Idle    → Playing (via Play)
//   - Playing → Paused  (via Pause)
//   - Paused  → Playing (via Play)
//   - any     → Empty   (via Stop)
//   - any     → Error   (backend failure while loaded)
//
// Error is transient: the next Load or Stop leaves it.
type State int

const (
	Empty State = iota
	Idle
	Playing
	Paused
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Idle:
		return "Idle"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsActive returns true if the engine holds a track (playing or paused).
func (s State) IsActive() bool {
	return s == Playing || s == Paused
}

// ChangeFlags describes why a track transition happens. It is a bitmask:
// Manual and Auto are mutually exclusive in practice, the remaining bits
// qualify the change.
type ChangeFlags uint8

const (
	// ChangeManual is a user-initiated track change.
	ChangeManual ChangeFlags = 1 << iota
	// ChangeAuto is a natural end-of-track advance.
	ChangeAuto
	// ChangeIntro seeks to an intro marker instead of the track start.
	ChangeIntro
	// ChangeRetry is an advance caused by a failed load of the prior track.
	ChangeRetry
	// ChangeEnqueue queues the track behind the current one.
	ChangeEnqueue
)

// Has returns true if all bits of f are set.
func (c ChangeFlags) Has(f ChangeFlags) bool {
	return c&f == f
}
