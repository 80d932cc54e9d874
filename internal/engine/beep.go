// internal/engine/beep.go
package engine

import (
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// aboutToEndLead is how long before natural end TrackAboutToEnd fires.
const aboutToEndLead = 2 * time.Second

var (
	speakerOnce sync.Once
	// speakerSampleRate is the rate the speaker was initialized with; tracks
	// at other rates are resampled to it.
	speakerSampleRate beep.SampleRate
)

// beepEngine renders local files through the beep speaker.
type beepEngine struct {
	mu sync.Mutex

	state    State
	streamer beep.StreamSeekCloser
	format   beep.Format
	file     *os.File
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	volumePct int
	meta      *Metadata

	// gen increments on every Load/Stop so callbacks from a replaced
	// track are discarded.
	gen int

	events chan Event
	closed chan struct{}
	logger zerolog.Logger
}

var _ Engine = (*beepEngine)(nil)

func newBeepEngine() (*beepEngine, error) {
	return &beepEngine{
		state:     Empty,
		volumePct: 100,
		events:    make(chan Event, eventBufferSize),
		closed:    make(chan struct{}),
		logger:    log.With().Str("component", "engine").Str("backend", "beep").Logger(),
	}, nil
}

// Load opens the location and prepares it for playback. Only local files
// (plain paths or file:// URLs) are accepted; anything else must be resolved
// to a file by a URL handler first.
func (e *beepEngine) Load(location string) error {
	path, err := locationToPath(location)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.unloadLocked()

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "engine: open")
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return errors.Wrapf(ErrUnsupportedLocation, "format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return errors.Wrap(err, "engine: decode")
	}

	var initErr error
	speakerOnce.Do(func() {
		speakerSampleRate = format.SampleRate
		initErr = speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10))
	})
	if initErr != nil {
		streamer.Close()
		f.Close()
		return errors.Wrap(initErr, "engine: speaker init")
	}

	meta := ReadMetadata(path)
	meta.Location = location
	meta.Duration = format.SampleRate.D(streamer.Len())

	e.file = f
	e.streamer = streamer
	e.format = format
	e.meta = &meta
	e.gen++
	e.state = Idle

	sendEvent(e.events, MetadataChanged{Metadata: meta})
	sendEvent(e.events, StateChanged{State: Idle})
	e.logger.Debug().Str("path", path).Dur("duration", meta.Duration).Msg("track loaded")
	return nil
}

// Play starts the loaded track, or resumes when paused.
func (e *beepEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case Paused:
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
		e.state = Playing
		sendEvent(e.events, StateChanged{State: Playing})
		return nil
	case Idle:
		// Fall through to start the loaded streamer.
	default:
		return errors.New("engine: no track loaded")
	}

	e.ctrl = &beep.Ctrl{Streamer: playbackStreamer(e.streamer, e.format.SampleRate, speakerSampleRate)}
	e.volume = &effects.Volume{Streamer: e.ctrl, Base: 2, Volume: percentToVolume(e.volumePct)}
	if e.volumePct <= 0 {
		e.volume.Silent = true
	}

	gen := e.gen
	speaker.Play(beep.Seq(e.volume, beep.Callback(func() {
		e.trackFinished(gen)
	})))
	go e.watchPosition(gen)

	e.state = Playing
	sendEvent(e.events, StateChanged{State: Playing})
	return nil
}

// Pause pauses playback; a no-op unless playing.
func (e *beepEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Playing || e.ctrl == nil {
		return
	}
	speaker.Lock()
	e.ctrl.Paused = true
	speaker.Unlock()
	e.state = Paused
	sendEvent(e.events, StateChanged{State: Paused})
}

// Stop halts playback and unloads the track.
func (e *beepEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Empty {
		return
	}
	e.unloadLocked()
	sendEvent(e.events, StateChanged{State: Empty})
}

// Seek moves the playhead to position, clamped to [0, duration].
func (e *beepEngine) Seek(position time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.streamer == nil || !e.state.IsActive() {
		return
	}

	n := e.format.SampleRate.N(position)
	n = max(n, 0)
	if maxN := e.streamer.Len() - 1; n > maxN {
		n = maxN
	}

	speaker.Lock()
	err := e.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		e.logger.Warn().Err(err).Msg("seek failed")
	}
}

// SetVolume sets the output volume in percent, clamped to [0, 100].
func (e *beepEngine) SetVolume(percent int) {
	percent = min(max(percent, 0), 100)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.volumePct = percent
	if e.volume == nil {
		return
	}
	speaker.Lock()
	e.volume.Volume = percentToVolume(percent)
	e.volume.Silent = percent <= 0
	speaker.Unlock()
}

func (e *beepEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *beepEngine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *beepEngine) positionLocked() time.Duration {
	if e.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := e.format.SampleRate.D(e.streamer.Position())
	speaker.Unlock()
	return pos
}

func (e *beepEngine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.meta == nil {
		return 0
	}
	return e.meta.Duration
}

func (e *beepEngine) Events() <-chan Event {
	return e.events
}

// Close unloads and invalidates the engine.
func (e *beepEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	select {
	case <-e.closed:
		return nil
	default:
	}
	e.unloadLocked()
	close(e.closed)
	return nil
}

// unloadLocked releases the current track. Callers hold e.mu.
func (e *beepEngine) unloadLocked() {
	if e.state == Empty {
		return
	}
	speaker.Clear()
	if e.streamer != nil {
		e.streamer.Close()
		e.streamer = nil
	}
	if e.file != nil {
		e.file.Close()
		e.file = nil
	}
	e.ctrl = nil
	e.volume = nil
	e.meta = nil
	e.gen++
	e.state = Empty
}

// trackFinished is the speaker completion callback. It runs with the
// speaker lock held, so the mutex work moves to a fresh goroutine; Position
// takes the locks in the opposite order.
func (e *beepEngine) trackFinished(gen int) {
	go func() {
		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		e.state = Idle
		e.mu.Unlock()
		sendEvent(e.events, TrackEnded{})
	}()
}

// watchPosition polls the playhead and emits TrackAboutToEnd once when the
// remaining time drops under the lead window. It exits when the track is
// replaced or the engine closes.
func (e *beepEngine) watchPosition(gen int) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-e.closed:
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if gen != e.gen || e.streamer == nil {
			e.mu.Unlock()
			return
		}
		if err := e.streamer.Err(); err != nil {
			e.state = StateError
			e.mu.Unlock()
			sendEvent(e.events, Error{Err: err})
			sendEvent(e.events, StateChanged{State: StateError})
			return
		}
		remaining := e.meta.Duration - e.positionLocked()
		e.mu.Unlock()

		if remaining <= aboutToEndLead {
			sendEvent(e.events, TrackAboutToEnd{})
			return
		}
	}
}

// playbackStreamer resamples the track to the speaker rate when the two
// differ; mismatched rates would otherwise play at the wrong pitch.
func playbackStreamer(streamer beep.Streamer, trackRate, speakerRate beep.SampleRate) beep.Streamer {
	if trackRate != speakerRate {
		return beep.Resample(4, trackRate, speakerRate, streamer)
	}
	return streamer
}

// percentToVolume maps 0–100 onto beep's base-2 logarithmic volume scale.
// 100 -> 0 (unity), 50 -> -1 (half), 25 -> -2, 0 -> silent.
func percentToVolume(percent int) float64 {
	if percent <= 0 {
		return -10
	}
	if percent >= 100 {
		return 0
	}
	return math.Log2(float64(percent) / 100)
}

// locationToPath converts a playable location to a filesystem path.
func locationToPath(location string) (string, error) {
	if location == "" {
		return "", errors.Wrap(ErrUnsupportedLocation, "empty location")
	}
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		if u.Scheme != "file" {
			return "", errors.Wrapf(ErrUnsupportedLocation, "scheme %q", u.Scheme)
		}
		return u.Path, nil
	}
	return location, nil
}
