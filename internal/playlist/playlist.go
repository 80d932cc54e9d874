// Package playlist holds the ordered track sequence the controller plays
// from. The controller addresses items by index and never mutates the
// sequence itself.
package playlist

import (
	"math/rand"
	"sync"
	"time"

	"github.com/avigny/baton/internal/engine"
)

// Track is one playable entry.
type Track struct {
	URL      string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// Item couples a track with its stable index in the sequence.
type Item struct {
	Index int
	Track Track
}

// Repeat defines what happens at the sequence boundaries.
type Repeat int

const (
	RepeatOff Repeat = iota
	RepeatAll
	RepeatOne
)

// String returns the repeat mode name.
func (r Repeat) String() string {
	switch r {
	case RepeatOff:
		return "Off"
	case RepeatAll:
		return "All"
	case RepeatOne:
		return "One"
	default:
		return "Unknown"
	}
}

// Provider is the playlist contract the controller consumes.
type Provider interface {
	// ItemAt returns the item at index i, or nil when out of range.
	ItemAt(i int) *Item
	// NextIndex returns the index to play after current, or -1 when the
	// sequence is exhausted. current < 0 asks for the first index.
	NextIndex(current int, flags engine.ChangeFlags) int
	// PreviousIndex returns the index before current, or -1 when there is
	// none.
	PreviousIndex(current int) int
	// RequestReshuffle reorders the remaining shuffle order. A no-op when
	// shuffle is off.
	RequestReshuffle()
}

// Playlist is the default in-memory Provider.
type Playlist struct {
	mu      sync.Mutex
	tracks  []Track
	order   []int // play order over track indices, identity when shuffle is off
	shuffle bool
	repeat  Repeat
	rng     *rand.Rand
}

var _ Provider = (*Playlist)(nil)

// New creates a playlist over the given tracks.
func New(tracks ...Track) *Playlist {
	p := &Playlist{
		tracks: append([]Track(nil), tracks...),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.resetOrderLocked()
	return p
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

// Add appends tracks to the sequence.
func (p *Playlist) Add(tracks ...Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, tracks...)
	p.resetOrderLocked()
}

// ItemAt returns the item at index i, or nil when out of range.
func (p *Playlist) ItemAt(i int) *Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.tracks) {
		return nil
	}
	return &Item{Index: i, Track: p.tracks[i]}
}

// NextIndex returns the index to play after current.
func (p *Playlist) NextIndex(current int, flags engine.ChangeFlags) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tracks) == 0 {
		return -1
	}
	if current < 0 {
		return p.order[0]
	}
	// Natural end repeats the same track under RepeatOne; manual skips
	// still advance.
	if p.repeat == RepeatOne && flags.Has(engine.ChangeAuto) {
		return current
	}

	pos := p.orderPosLocked(current)
	if pos < 0 {
		return p.order[0]
	}
	if pos+1 < len(p.order) {
		return p.order[pos+1]
	}
	if p.repeat == RepeatAll {
		return p.order[0]
	}
	return -1
}

// PreviousIndex returns the index before current, or -1.
func (p *Playlist) PreviousIndex(current int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.tracks) == 0 || current < 0 {
		return -1
	}
	pos := p.orderPosLocked(current)
	if pos > 0 {
		return p.order[pos-1]
	}
	if p.repeat == RepeatAll {
		return p.order[len(p.order)-1]
	}
	return -1
}

// RequestReshuffle reorders the shuffle order in place.
func (p *Playlist) RequestReshuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.shuffle {
		return
	}
	p.rng.Shuffle(len(p.order), func(i, j int) {
		p.order[i], p.order[j] = p.order[j], p.order[i]
	})
}

// SetShuffle toggles shuffle mode, rebuilding the play order.
func (p *Playlist) SetShuffle(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuffle == enabled {
		return
	}
	p.shuffle = enabled
	p.resetOrderLocked()
	if enabled {
		p.rng.Shuffle(len(p.order), func(i, j int) {
			p.order[i], p.order[j] = p.order[j], p.order[i]
		})
	}
}

// Shuffle returns whether shuffle mode is on.
func (p *Playlist) Shuffle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuffle
}

// SetRepeat sets the repeat mode.
func (p *Playlist) SetRepeat(r Repeat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = r
}

// RepeatMode returns the repeat mode.
func (p *Playlist) RepeatMode() Repeat {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeat
}

// resetOrderLocked rebuilds the identity play order. Callers hold p.mu.
func (p *Playlist) resetOrderLocked() {
	p.order = make([]int, len(p.tracks))
	for i := range p.order {
		p.order[i] = i
	}
}

// orderPosLocked finds index's position in the play order. Callers hold p.mu.
func (p *Playlist) orderPosLocked(index int) int {
	for pos, idx := range p.order {
		if idx == index {
			return pos
		}
	}
	return -1
}
