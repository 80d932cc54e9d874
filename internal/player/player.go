// Package player implements the playback controller: the single authority
// for what should be playing and why. It owns the engine adapter, mediates
// track transitions, resolves locations through registered URL handlers and
// applies the error/retry policy around track loading.
//
// All public operations are non-blocking: asynchronous resolutions and
// engine completions are delivered as events marshalled onto the
// controller's event loop, and a newer PlayAt supersedes any pending
// resolution (cancellation by supersession).
package player

import (
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avigny/baton/internal/engine"
	"github.com/avigny/baton/internal/playlist"
	"github.com/avigny/baton/internal/urlhandler"
)

// PreviousBehaviour selects what the Previous operation does on a quick
// re-press.
type PreviousBehaviour int

const (
	// PreviousRestart seeks the current track to zero when Previous is
	// pressed again within the rewind threshold.
	PreviousRestart PreviousBehaviour = iota
	// PreviousNavigate always loads the prior playlist index.
	PreviousNavigate
)

// restartPositionThreshold is how far into a track RestartOrPrevious
// restarts instead of navigating back.
const restartPositionThreshold = 4 * time.Second

// Options tune the controller. Zero values take the documented defaults.
type Options struct {
	SeekStep             time.Duration // default 5s
	VolumeStep           int           // default 5
	MaxConsecutiveErrors int           // default 3
	RewindThreshold      time.Duration // default 8s
	PreviousBehaviour    PreviousBehaviour
}

func (o *Options) applyDefaults() {
	if o.SeekStep <= 0 {
		o.SeekStep = 5 * time.Second
	}
	if o.VolumeStep <= 0 {
		o.VolumeStep = 5
	}
	if o.MaxConsecutiveErrors <= 0 {
		o.MaxConsecutiveErrors = 3
	}
	if o.RewindThreshold <= 0 {
		o.RewindThreshold = 8 * time.Second
	}
}

// VolumeStore persists the volume across sessions. volumeBeforeMute is -1
// when not muted.
type VolumeStore interface {
	GetVolume() (volume, volumeBeforeMute int, err error)
	SaveVolume(volume, volumeBeforeMute int) error
}

// pendingLoad tracks the single asynchronous resolution that may be in
// flight. seq implements last-writer-wins: completions whose seq no longer
// matches are stale and silently dropped.
type pendingLoad struct {
	seq        uint64
	item       *playlist.Item
	original   *url.URL
	resolving  *url.URL // the URL currently at a handler; differs from original after a redirect
	flags      engine.ChangeFlags
	redirected bool
}

type loadCompletion struct {
	seq    uint64
	result urlhandler.Result
}

type prefetchCompletion struct {
	seq    uint64
	index  int
	result urlhandler.Result
}

// prefetched caches an early resolution triggered by TrackAboutToEnd.
type prefetched struct {
	index int
	final string
	meta  *engine.Metadata
}

// Player is the playback controller.
type Player struct {
	mu sync.Mutex

	engine   engine.Engine
	playlist playlist.Provider
	registry *urlhandler.Registry
	store    VolumeStore

	lastState       engine.State
	currentItem     *playlist.Item
	lastPlayedIndex int

	pending     *pendingLoad
	seq         uint64
	prefetch    *prefetched
	prefetchSeq uint64

	consecErrors     int
	finishedPending  bool
	stopAfterCurrent bool

	volume           int
	volumeBeforeMute int // -1 when not muted

	lastPreviousPress time.Time

	opts Options

	loadResults     chan loadCompletion
	prefetchResults chan prefetchCompletion
	loopStop        chan struct{}

	subs   []*Subscription
	subsMu sync.RWMutex

	done   chan struct{}
	closed bool
	logger zerolog.Logger
}

// New creates a controller over the given engine and playlist. registry and
// store may be nil; a nil registry gets a private empty one.
func New(eng engine.Engine, pl playlist.Provider, reg *urlhandler.Registry, opts Options, store VolumeStore) (*Player, error) {
	if eng == nil {
		return nil, ErrEngineUnavailable
	}
	opts.applyDefaults()
	if reg == nil {
		reg = urlhandler.NewRegistry()
	}

	p := &Player{
		engine:           eng,
		playlist:         pl,
		registry:         reg,
		store:            store,
		lastState:        engine.Empty,
		lastPlayedIndex:  -1,
		volume:           70,
		volumeBeforeMute: -1,
		opts:             opts,
		loadResults:      make(chan loadCompletion, eventBufferSize),
		prefetchResults:  make(chan prefetchCompletion, eventBufferSize),
		loopStop:         make(chan struct{}),
		done:             make(chan struct{}),
		logger:           log.With().Str("component", "player").Logger(),
	}

	if store != nil {
		if vol, beforeMute, err := store.GetVolume(); err == nil {
			p.volume = vol
			p.volumeBeforeMute = beforeMute
		} else {
			p.logger.Warn().Err(err).Msg("loading saved volume failed")
		}
	}
	eng.SetVolume(p.volume)

	go p.runLoop(eng.Events(), p.loopStop)
	return p, nil
}

// runLoop marshals engine events and resolution completions onto the
// controller. One loop runs per engine instance; an engine swap stops it.
func (p *Player) runLoop(events <-chan engine.Event, stop <-chan struct{}) {
	for {
		select {
		case <-p.done:
			return
		case <-stop:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			p.handleEngineEvent(e)
		case c := <-p.loadResults:
			p.handleLoadCompletion(c)
		case c := <-p.prefetchResults:
			p.handlePrefetchCompletion(c)
		}
	}
}

// --- control surface ---

// PlayAt starts playback of the item at index i. reshuffle asks the playlist
// to reorder the remaining items before the selection takes effect. A new
// PlayAt supersedes any pending asynchronous resolution.
func (p *Player) PlayAt(i int, flags engine.ChangeFlags, reshuffle bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if reshuffle {
		p.playlist.RequestReshuffle()
	}
	p.playAtLocked(i, flags)
}

// PlayPause pauses when playing, resumes when paused, and otherwise starts
// the last-known (or first playable) item.
func (p *Player) PlayPause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.pending != nil:
		// A selection is already loading.
	case p.lastState == engine.Playing:
		p.engine.Pause()
	case p.lastState == engine.Paused:
		_ = p.engine.Play()
	default:
		idx := p.lastPlayedIndex
		if idx < 0 {
			idx = p.playlist.NextIndex(-1, engine.ChangeManual)
		}
		if idx < 0 {
			return
		}
		p.playAtLocked(idx, engine.ChangeManual)
	}
}

// Play resumes paused playback or starts the last-known item.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastState == engine.Playing {
		return
	}
	if p.lastState == engine.Paused {
		_ = p.engine.Play()
		return
	}
	idx := p.lastPlayedIndex
	if idx < 0 {
		idx = p.playlist.NextIndex(-1, engine.ChangeManual)
	}
	if idx >= 0 {
		p.playAtLocked(idx, engine.ChangeManual)
	}
}

// Pause pauses playback; a no-op unless playing.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastState == engine.Playing {
		p.engine.Pause()
	}
}

// Next skips to the next item as a manual change.
func (p *Player) Next() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextItemLocked(engine.ChangeManual)
}

// Previous goes back. A re-press within the rewind threshold restarts the
// current track instead, when the behaviour preference says so. The press
// timestamp is recorded unconditionally.
func (p *Player) Previous() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	last := p.lastPreviousPress
	p.lastPreviousPress = now

	if p.opts.PreviousBehaviour == PreviousRestart &&
		!last.IsZero() && now.Sub(last) < p.opts.RewindThreshold {
		p.seekToLocked(0)
		return
	}
	p.previousItemLocked(engine.ChangeManual)
}

// RestartOrPrevious restarts the current track when well into it, otherwise
// navigates to the previous item.
func (p *Player) RestartOrPrevious() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastState.IsActive() && p.engine.Position() >= restartPositionThreshold {
		p.seekToLocked(0)
		return
	}
	p.previousItemLocked(engine.ChangeManual)
}

// Stop halts playback immediately. stopAfter records that the request came
// from a stop-after-this-track intent; the stop itself is unconditional.
func (p *Player) Stop(stopAfter bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if stopAfter {
		p.logger.Debug().Msg("stop requested with stop-after intent")
	}
	p.stopLocked(false)
}

// StopAfterCurrent toggles the flag that lets the current track finish and
// then stops instead of advancing. Consumed once on natural track end.
func (p *Player) StopAfterCurrent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopAfterCurrent = !p.stopAfterCurrent
	p.logger.Debug().Bool("armed", p.stopAfterCurrent).Msg("stop after current")
}

// IntroPointReached advances past the current track's intro section while
// playing.
func (p *Player) IntroPointReached() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastState == engine.Playing {
		p.nextItemLocked(engine.ChangeIntro)
	}
}

// SeekTo moves the playhead to position, clamped to [0, duration].
func (p *Player) SeekTo(position time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekToLocked(position)
}

// SeekForward moves the playhead forward by the seek step.
func (p *Player) SeekForward() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekToLocked(p.engine.Position() + p.opts.SeekStep)
}

// SeekBackward moves the playhead back by the seek step.
func (p *Player) SeekBackward() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekToLocked(p.engine.Position() - p.opts.SeekStep)
}

// SetVolume sets the volume, clamped to [0, 100]. An explicit set cancels
// mute memory: the new value becomes the last explicit volume.
func (p *Player) SetVolume(value int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumeBeforeMute = -1
	p.setVolumeLocked(value)
}

// VolumeUp raises the volume by the volume step.
func (p *Player) VolumeUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumeBeforeMute = -1
	p.setVolumeLocked(p.volume + p.opts.VolumeStep)
}

// VolumeDown lowers the volume by the volume step.
func (p *Player) VolumeDown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumeBeforeMute = -1
	p.setVolumeLocked(p.volume - p.opts.VolumeStep)
}

// Mute toggles mute, storing exactly one pre-mute volume and restoring it on
// the next call.
func (p *Player) Mute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.volumeBeforeMute < 0 {
		p.volumeBeforeMute = p.volume
		p.setVolumeLocked(0)
		return
	}
	restored := p.volumeBeforeMute
	p.volumeBeforeMute = -1
	p.setVolumeLocked(restored)
}

// RegisterUrlHandler registers h for its scheme, replacing any previous
// handler.
func (p *Player) RegisterUrlHandler(h urlhandler.Handler) {
	p.registry.Register(h)
}

// UnregisterUrlHandler removes h. Safe to call from the handler's own
// teardown path; a resolution in flight through h is abandoned without any
// state change.
func (p *Player) UnregisterUrlHandler(h urlhandler.Handler) {
	p.registry.Unregister(h)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil && p.pending.resolving.Scheme == h.Scheme() {
		p.logger.Debug().Str("scheme", h.Scheme()).
			Msg("abandoning pending load of unregistered handler")
		p.pending = nil
		p.seq++
	}
	// Revoke any prefetched or in-flight prefetch resolution too; it may
	// have come from the departing handler.
	p.prefetch = nil
	p.prefetchSeq++
}

// SwitchEngine replaces the rendering backend at runtime. Controller-level
// session state (volume, current item reference) is preserved; playback does
// not resume automatically.
func (p *Player) SwitchEngine(t engine.Type) error {
	eng, err := engine.New(t)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.engine
	oldStop := p.loopStop
	p.engine = eng
	p.loopStop = make(chan struct{})
	p.lastState = engine.Empty
	p.pending = nil
	p.prefetch = nil
	p.seq++
	eng.SetVolume(p.volume)
	newStop := p.loopStop
	p.mu.Unlock()

	close(oldStop)
	old.Stop()
	_ = old.Close()
	go p.runLoop(eng.Events(), newStop)

	p.logger.Info().Str("engine", string(t)).Msg("engine switched")
	return nil
}

// --- accessors ---

// Status returns the controller-level playback status.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		return Loading
	}
	switch p.lastState {
	case engine.Playing:
		return Playing
	case engine.Paused:
		return Paused
	default:
		return Stopped
	}
}

// LastState returns the engine state as last reported.
func (p *Player) LastState() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastState
}

// Volume returns the current volume in percent.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Muted reports whether mute is engaged.
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volumeBeforeMute >= 0
}

// CurrentItem returns a copy of the current item, or nil when none.
func (p *Player) CurrentItem() *playlist.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentItem == nil {
		return nil
	}
	item := *p.currentItem
	return &item
}

// Position returns the engine playhead position.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()
	return eng.Position()
}

// Duration returns the current track duration.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	eng := p.engine
	p.mu.Unlock()
	return eng.Duration()
}

// Subscribe creates a new event subscription.
func (p *Player) Subscribe() *Subscription {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	sub := newSubscription()
	p.subs = append(p.subs, sub)
	return sub
}

// Close stops playback and shuts the controller down.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.engine.Stop()
	err := p.engine.Close()
	p.mu.Unlock()

	p.subsMu.Lock()
	for _, sub := range p.subs {
		sub.close()
	}
	p.subs = nil
	p.subsMu.Unlock()
	return err
}

// --- track change core (callers hold p.mu) ---

func (p *Player) playAtLocked(i int, flags engine.ChangeFlags) {
	// Supersede whatever was loading.
	p.seq++
	p.pending = nil

	item := p.playlist.ItemAt(i)
	if item == nil {
		p.logger.Warn().Int("index", i).Msg("no item at index")
		return
	}

	if p.currentItem != nil && flags.Has(engine.ChangeManual) && p.currentItem.Index != item.Index {
		p.emitSkipped(TrackSkipped{Previous: *p.currentItem})
	}

	if pf := p.prefetch; pf != nil && pf.index == item.Index {
		p.prefetch = nil
		p.directLoadLocked(item, pf.final, pf.meta, flags)
		return
	}
	p.prefetch = nil

	u, err := url.Parse(item.Track.URL)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", item.Track.URL).Msg("unparseable location")
		p.emitChange(ChangeRequestProcessed{Location: item.Track.URL, Valid: false})
		p.failTrackLocked(item.Index, flags)
		return
	}

	if p.registry.HasHandler(u) {
		p.pending = &pendingLoad{seq: p.seq, item: item, original: u, flags: flags}
		p.resolveLocked(u)
		return
	}
	p.directLoadLocked(item, item.Track.URL, nil, flags)
}

// resolveLocked dispatches u to its handler, tagging the completion with the
// current sequence number.
func (p *Player) resolveLocked(u *url.URL) {
	seq := p.seq
	pend := p.pending
	pend.resolving = u
	err := p.registry.Resolve(u, func(res urlhandler.Result) {
		select {
		case p.loadResults <- loadCompletion{seq: seq, result: res}:
		case <-p.done:
		}
	})
	if err != nil {
		// Handler vanished between the scheme check and dispatch.
		p.logger.Warn().Err(err).Str("url", u.String()).Msg("resolution dispatch failed")
		p.pending = nil
		p.emitChange(ChangeRequestProcessed{Location: u.String(), Valid: false})
		p.failTrackLocked(pend.item.Index, pend.flags)
	}
}

// directLoadLocked hands a concrete location to the engine and starts it.
func (p *Player) directLoadLocked(item *playlist.Item, location string, meta *engine.Metadata, flags engine.ChangeFlags) {
	if meta != nil {
		applyMetadata(&item.Track, meta)
	}

	if err := p.engine.Load(location); err != nil {
		p.logger.Warn().Err(err).Str("location", location).Msg("engine rejected location")
		p.emitChange(ChangeRequestProcessed{Location: location, Valid: false})
		p.failTrackLocked(item.Index, flags)
		return
	}
	p.engine.SetVolume(p.volume)
	if err := p.engine.Play(); err != nil {
		p.logger.Warn().Err(err).Str("location", location).Msg("engine failed to start")
		p.emitChange(ChangeRequestProcessed{Location: location, Valid: false})
		p.failTrackLocked(item.Index, flags)
		return
	}

	p.currentItem = item
	p.lastPlayedIndex = item.Index
	p.consecErrors = 0
	p.emitChange(ChangeRequestProcessed{Location: location, Valid: true})
	p.emitTrack(TrackChange{Item: *item})
	p.logger.Info().Int("index", item.Index).Str("title", item.Track.Title).Msg("playing")
}

// failTrackLocked applies the retry policy after a track failed to load or
// play. A single broken track advances the playlist; crossing the
// consecutive-error threshold stops playback and surfaces one aggregate
// error.
func (p *Player) failTrackLocked(failedIndex int, flags engine.ChangeFlags) {
	p.consecErrors++
	p.logger.Warn().Int("index", failedIndex).Int("consecutive", p.consecErrors).
		Msg("track failed")

	if p.consecErrors >= p.opts.MaxConsecutiveErrors {
		p.consecErrors = 0
		p.stopLocked(false)
		p.emitError(ErrorEvent{Message: ErrTooManyConsecutiveErrors.Error()})
		return
	}

	next := p.playlist.NextIndex(failedIndex, flags|engine.ChangeRetry)
	if next < 0 || next == failedIndex {
		p.stopLocked(false)
		return
	}
	p.playAtLocked(next, engine.ChangeAuto|engine.ChangeRetry)
}

func (p *Player) nextItemLocked(flags engine.ChangeFlags) {
	cur := p.currentIndexLocked()
	next := p.playlist.NextIndex(cur, flags)
	if next < 0 {
		p.currentItem = nil
		p.stopLocked(true)
		return
	}
	p.playAtLocked(next, flags)
}

func (p *Player) previousItemLocked(flags engine.ChangeFlags) {
	cur := p.currentIndexLocked()
	prev := p.playlist.PreviousIndex(cur)
	if prev < 0 {
		return
	}
	p.playAtLocked(prev, flags)
}

func (p *Player) currentIndexLocked() int {
	if p.currentItem != nil {
		return p.currentItem.Index
	}
	return p.lastPlayedIndex
}

// stopLocked halts the engine and invalidates any pending resolution.
// playlistFinished marks the resulting Stopped notification.
func (p *Player) stopLocked(playlistFinished bool) {
	p.seq++
	p.pending = nil
	p.prefetch = nil
	p.stopAfterCurrent = false
	p.finishedPending = playlistFinished
	p.engine.Stop()
}

func (p *Player) seekToLocked(position time.Duration) {
	if !p.lastState.IsActive() {
		return
	}
	position = max(position, 0)
	if d := p.engine.Duration(); d > 0 && position > d {
		position = d
	}
	p.engine.Seek(position)
	p.emitSeeked(Seeked{Position: position})
}

// setVolumeLocked clamps, applies and persists the volume. Mute bookkeeping
// belongs to the callers.
func (p *Player) setVolumeLocked(value int) {
	value = min(max(value, 0), 100)
	if value == p.volume {
		return
	}
	p.volume = value
	p.engine.SetVolume(value)
	if p.store != nil {
		if err := p.store.SaveVolume(p.volume, p.volumeBeforeMute); err != nil {
			p.logger.Warn().Err(err).Msg("persisting volume failed")
		}
	}
	p.emitVolume(VolumeChange{Volume: value, Muted: p.volumeBeforeMute >= 0})
}

// --- event loop handlers ---

func (p *Player) handleEngineEvent(e engine.Event) {
	switch ev := e.(type) {
	case engine.StateChanged:
		p.handleEngineState(ev.State)
	case engine.TrackEnded:
		p.handleTrackEnded()
	case engine.TrackAboutToEnd:
		p.mu.Lock()
		p.prefetchNextLocked()
		p.mu.Unlock()
	case engine.MetadataChanged:
		p.handleEngineMetadata(ev.Metadata)
	case engine.Error:
		p.mu.Lock()
		p.logger.Warn().Err(ev.Err).Msg("engine error")
		p.failTrackLocked(p.currentIndexLocked(), engine.ChangeAuto)
		p.mu.Unlock()
	}
}

func (p *Player) handleEngineState(s engine.State) {
	p.mu.Lock()
	prev := p.lastState
	p.lastState = s

	var change *StateChange
	switch s {
	case engine.Playing:
		change = &StateChange{Status: Playing}
	case engine.Paused:
		change = &StateChange{Status: Paused}
	case engine.Empty:
		if prev != engine.Empty {
			change = &StateChange{Status: Stopped, PlaylistFinished: p.finishedPending}
		}
		p.finishedPending = false
	case engine.Idle, engine.StateError:
		// Transitional, no outward notification.
	}
	p.mu.Unlock()

	if change != nil {
		p.emitState(*change)
	}
}

func (p *Player) handleTrackEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopAfterCurrent {
		p.stopAfterCurrent = false
		p.logger.Debug().Msg("stopping after current track")
		p.stopLocked(false)
		return
	}

	next := p.playlist.NextIndex(p.currentIndexLocked(), engine.ChangeAuto)
	if next < 0 {
		p.currentItem = nil
		p.stopLocked(true)
		return
	}
	p.playAtLocked(next, engine.ChangeAuto)
}

func (p *Player) handleEngineMetadata(meta engine.Metadata) {
	p.mu.Lock()
	if p.currentItem == nil {
		p.mu.Unlock()
		return
	}
	applyMetadata(&p.currentItem.Track, &meta)
	item := *p.currentItem
	p.mu.Unlock()

	p.emitMetadata(MetadataChange{Item: item})
}

func (p *Player) handleLoadCompletion(c loadCompletion) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil || c.seq != p.pending.seq {
		// Superseded by a newer request; drop without surfacing.
		p.logger.Debug().Uint64("seq", c.seq).Msg("discarding stale load result")
		return
	}
	pend := p.pending
	res := c.result

	switch res.Kind {
	case urlhandler.Success:
		p.pending = nil
		if res.FinalURL == nil {
			p.emitChange(ChangeRequestProcessed{Location: pend.original.String(), Valid: false})
			p.failTrackLocked(pend.item.Index, pend.flags)
			return
		}
		p.directLoadLocked(pend.item, res.FinalURL.String(), res.Metadata, pend.flags)

	case urlhandler.Redirect:
		if pend.redirected || res.FinalURL == nil {
			// One redirect hop per item; a second one counts as invalid.
			p.pending = nil
			p.emitChange(ChangeRequestProcessed{Location: pend.original.String(), Valid: false})
			p.failTrackLocked(pend.item.Index, pend.flags)
			return
		}
		pend.redirected = true
		if p.registry.HasHandler(res.FinalURL) {
			p.resolveLocked(res.FinalURL)
			return
		}
		p.pending = nil
		p.directLoadLocked(pend.item, res.FinalURL.String(), res.Metadata, pend.flags)

	case urlhandler.Invalid, urlhandler.TimedOut:
		p.pending = nil
		p.logger.Warn().Str("url", pend.original.String()).
			Stringer("kind", res.Kind).Str("reason", res.Reason).Msg("resolution failed")
		p.emitChange(ChangeRequestProcessed{Location: pend.original.String(), Valid: false})
		p.failTrackLocked(pend.item.Index, pend.flags)
	}
}

// prefetchNextLocked resolves the upcoming item's location ahead of the
// track end so the auto-advance can commit without waiting on a handler.
func (p *Player) prefetchNextLocked() {
	if p.stopAfterCurrent || p.pending != nil {
		return
	}
	next := p.playlist.NextIndex(p.currentIndexLocked(), engine.ChangeAuto)
	if next < 0 {
		return
	}
	item := p.playlist.ItemAt(next)
	if item == nil {
		return
	}
	u, err := url.Parse(item.Track.URL)
	if err != nil || !p.registry.HasHandler(u) {
		return
	}

	p.prefetchSeq++
	seq := p.prefetchSeq
	idx := item.Index
	err = p.registry.Resolve(u, func(res urlhandler.Result) {
		select {
		case p.prefetchResults <- prefetchCompletion{seq: seq, index: idx, result: res}:
		case <-p.done:
		}
	})
	if err != nil {
		p.logger.Debug().Err(err).Msg("prefetch dispatch failed")
	}
}

func (p *Player) handlePrefetchCompletion(c prefetchCompletion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c.seq != p.prefetchSeq || c.result.Kind != urlhandler.Success || c.result.FinalURL == nil {
		return
	}
	p.prefetch = &prefetched{
		index: c.index,
		final: c.result.FinalURL.String(),
		meta:  c.result.Metadata,
	}
}

// applyMetadata overlays non-zero resolver/engine fields onto the track.
func applyMetadata(t *playlist.Track, meta *engine.Metadata) {
	if meta.Title != "" {
		t.Title = meta.Title
	}
	if meta.Artist != "" {
		t.Artist = meta.Artist
	}
	if meta.Album != "" {
		t.Album = meta.Album
	}
	if meta.Duration > 0 {
		t.Duration = meta.Duration
	}
}

// --- notification fanout ---

func (p *Player) forEachSub(fn func(*Subscription)) {
	p.subsMu.RLock()
	defer p.subsMu.RUnlock()
	for _, sub := range p.subs {
		fn(sub)
	}
}

func (p *Player) emitState(e StateChange) {
	p.forEachSub(func(s *Subscription) { s.sendState(e) })
}

func (p *Player) emitTrack(e TrackChange) {
	p.forEachSub(func(s *Subscription) { s.sendTrack(e) })
}

func (p *Player) emitSkipped(e TrackSkipped) {
	p.forEachSub(func(s *Subscription) { s.sendSkipped(e) })
}

func (p *Player) emitMetadata(e MetadataChange) {
	p.forEachSub(func(s *Subscription) { s.sendMetadata(e) })
}

func (p *Player) emitSeeked(e Seeked) {
	p.forEachSub(func(s *Subscription) { s.sendSeeked(e) })
}

func (p *Player) emitVolume(e VolumeChange) {
	p.forEachSub(func(s *Subscription) { s.sendVolume(e) })
}

func (p *Player) emitChange(e ChangeRequestProcessed) {
	p.forEachSub(func(s *Subscription) { s.sendChange(e) })
}

func (p *Player) emitError(e ErrorEvent) {
	p.forEachSub(func(s *Subscription) { s.sendError(e) })
}
