package player

import (
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/avigny/baton/internal/engine"
	"github.com/avigny/baton/internal/playlist"
	"github.com/avigny/baton/internal/urlhandler"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// settle gives the event loop a moment to process anything in flight, for
// asserting that something did NOT happen.
func settle() { time.Sleep(50 * time.Millisecond) }

func fileTracks(n int) []playlist.Track {
	tracks := make([]playlist.Track, n)
	names := []string{"a", "b", "c", "d", "e", "f"}
	for i := range tracks {
		tracks[i] = playlist.Track{URL: "/music/" + names[i] + ".mp3", Title: names[i]}
	}
	return tracks
}

func newTestPlayer(t *testing.T, opts Options, tracks ...playlist.Track) (*Player, *engine.Mock, *playlist.Mock) {
	t.Helper()
	eng := engine.NewMock()
	pl := playlist.NewMock(tracks...)
	p, err := New(eng, pl, nil, opts, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, eng, pl
}

// blockingHandler parks resolutions until the test completes them. Redirect
// resolutions dispatch from the controller's loop, so access is locked.
type blockingHandler struct {
	mu     sync.Mutex
	scheme string
	calls  []*url.URL
	dones  []func(urlhandler.Result)
}

func (h *blockingHandler) Scheme() string { return h.scheme }

func (h *blockingHandler) StartLoading(original *url.URL, done func(urlhandler.Result)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, original)
	h.dones = append(h.dones, done)
	return nil
}

func (h *blockingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *blockingHandler) call(i int) *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[i]
}

func (h *blockingHandler) complete(i int, res urlhandler.Result) {
	h.mu.Lock()
	done := h.dones[i]
	h.mu.Unlock()
	done(res)
}

func TestNew_NilEngine(t *testing.T) {
	_, err := New(nil, playlist.NewMock(), nil, Options{}, nil)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("New(nil engine) error = %v, want ErrEngineUnavailable", err)
	}
}

func TestPlayAt_DirectLoad(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(2)...)
	sub := p.Subscribe()

	p.PlayAt(0, engine.ChangeManual, false)

	calls := eng.LoadCalls()
	if len(calls) != 1 || calls[0] != "/music/a.mp3" {
		t.Fatalf("LoadCalls = %v, want [/music/a.mp3]", calls)
	}
	waitFor(t, "playing status", func() bool { return p.Status() == Playing })

	item := p.CurrentItem()
	if item == nil || item.Index != 0 {
		t.Fatalf("CurrentItem = %+v, want index 0", item)
	}

	select {
	case e := <-sub.ChangeProcessed:
		if !e.Valid || e.Location != "/music/a.mp3" {
			t.Errorf("ChangeProcessed = %+v, want valid /music/a.mp3", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no ChangeRequestProcessed event")
	}
	select {
	case e := <-sub.TrackChanged:
		if e.Item.Index != 0 {
			t.Errorf("TrackChanged index = %d, want 0", e.Item.Index)
		}
	case <-time.After(time.Second):
		t.Fatal("no TrackChanged event")
	}
}

func TestPlayAt_Reshuffle(t *testing.T) {
	p, _, pl := newTestPlayer(t, Options{}, fileTracks(3)...)

	p.PlayAt(1, engine.ChangeManual, true)

	if pl.Reshuffles() != 1 {
		t.Errorf("reshuffles = %d, want 1", pl.Reshuffles())
	}
}

func TestPlayAt_SkippedNotification(t *testing.T) {
	p, _, _ := newTestPlayer(t, Options{}, fileTracks(3)...)
	sub := p.Subscribe()

	p.PlayAt(0, engine.ChangeManual, false)
	p.PlayAt(2, engine.ChangeManual, false)

	select {
	case e := <-sub.TrackSkipped:
		if e.Previous.Index != 0 {
			t.Errorf("TrackSkipped previous index = %d, want 0", e.Previous.Index)
		}
	case <-time.After(time.Second):
		t.Fatal("no TrackSkipped event")
	}
}

// Only the last PlayAt's resolution, if it completes, is ever acted upon.
func TestPlayAt_StaleResolutionDiscarded(t *testing.T) {
	tracks := []playlist.Track{
		{URL: "radio://station/1", Title: "one"},
		{URL: "/music/b.mp3", Title: "b"},
	}
	p, eng, _ := newTestPlayer(t, Options{}, tracks...)
	h := &blockingHandler{scheme: "radio"}
	p.RegisterUrlHandler(h)

	p.PlayAt(0, engine.ChangeManual, false)
	if p.Status() != Loading {
		t.Fatalf("Status = %v, want Loading while resolving", p.Status())
	}

	// Supersede before the handler finishes.
	p.PlayAt(1, engine.ChangeManual, false)
	waitFor(t, "second track playing", func() bool { return p.Status() == Playing })

	// The stale completion must be ignored.
	final, _ := url.Parse("file:///cache/one.mp3")
	h.complete(0, urlhandler.Succeeded(h.call(0), final))
	settle()

	for _, loc := range eng.LoadCalls() {
		if loc == "file:///cache/one.mp3" {
			t.Fatal("stale resolution was loaded into the engine")
		}
	}
	if item := p.CurrentItem(); item == nil || item.Index != 1 {
		t.Errorf("CurrentItem = %+v, want index 1", item)
	}
}

func TestResolution_SuccessLoadsFinalURL(t *testing.T) {
	tracks := []playlist.Track{{URL: "radio://station/7", Title: "seven"}}
	p, eng, _ := newTestPlayer(t, Options{}, tracks...)
	h := &blockingHandler{scheme: "radio"}
	p.RegisterUrlHandler(h)

	p.PlayAt(0, engine.ChangeManual, false)
	final, _ := url.Parse("file:///cache/seven.mp3")
	res := urlhandler.Succeeded(h.call(0), final)
	res.Metadata = &engine.Metadata{Title: "Station Seven"}
	h.complete(0, res)

	waitFor(t, "final url loaded", func() bool {
		calls := eng.LoadCalls()
		return len(calls) == 1 && calls[0] == "file:///cache/seven.mp3"
	})
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	if item := p.CurrentItem(); item == nil || item.Track.Title != "Station Seven" {
		t.Errorf("CurrentItem = %+v, want replacement metadata applied", item)
	}
}

func TestResolution_RedirectResolvesAgain(t *testing.T) {
	tracks := []playlist.Track{{URL: "radio://station/1"}}
	p, eng, _ := newTestPlayer(t, Options{}, tracks...)
	h := &blockingHandler{scheme: "radio"}
	p.RegisterUrlHandler(h)

	p.PlayAt(0, engine.ChangeManual, false)

	// Redirect to a plain file: handed straight to the engine.
	final, _ := url.Parse("file:///cache/redirected.mp3")
	h.complete(0, urlhandler.Redirected(h.call(0), final))

	waitFor(t, "redirect target loaded", func() bool {
		calls := eng.LoadCalls()
		return len(calls) == 1 && calls[0] == "file:///cache/redirected.mp3"
	})
}

func TestResolution_SecondRedirectFails(t *testing.T) {
	tracks := []playlist.Track{
		{URL: "radio://station/1"},
		{URL: "/music/b.mp3"},
	}
	p, eng, _ := newTestPlayer(t, Options{}, tracks...)
	h := &blockingHandler{scheme: "radio"}
	p.RegisterUrlHandler(h)

	p.PlayAt(0, engine.ChangeManual, false)

	loop, _ := url.Parse("radio://station/2")
	h.complete(0, urlhandler.Redirected(h.call(0), loop))
	waitFor(t, "second resolution dispatched", func() bool { return h.callCount() == 2 })

	loop2, _ := url.Parse("radio://station/3")
	h.complete(1, urlhandler.Redirected(h.call(1), loop2))

	// Two hops exhaust the redirect budget: retry-advance to the next item.
	waitFor(t, "retry advance", func() bool {
		calls := eng.LoadCalls()
		return len(calls) == 1 && calls[0] == "/music/b.mp3"
	})
}

func TestResolution_InvalidAdvancesWithRetry(t *testing.T) {
	tracks := []playlist.Track{
		{URL: "radio://station/1"},
		{URL: "/music/b.mp3"},
	}
	p, eng, pl := newTestPlayer(t, Options{}, tracks...)
	h := &blockingHandler{scheme: "radio"}
	p.RegisterUrlHandler(h)
	sub := p.Subscribe()

	p.PlayAt(0, engine.ChangeManual, false)
	h.complete(0, urlhandler.Rejected(h.call(0), "gone"))

	waitFor(t, "advance to next track", func() bool {
		calls := eng.LoadCalls()
		return len(calls) == 1 && calls[0] == "/music/b.mp3"
	})

	select {
	case e := <-sub.ChangeProcessed:
		if e.Valid || e.Location != "radio://station/1" {
			t.Errorf("first ChangeProcessed = %+v, want invalid radio url", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no ChangeRequestProcessed event")
	}

	var sawRetry bool
	for _, flags := range pl.NextCalls() {
		if flags.Has(engine.ChangeRetry) {
			sawRetry = true
		}
	}
	if !sawRetry {
		t.Error("advance after failure should carry the Retry flag")
	}
}

// Three consecutive failures with a threshold of three stop playback and
// emit exactly one error notification.
func TestConsecutiveFailures_SingleAggregateError(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{MaxConsecutiveErrors: 3}, fileTracks(5)...)
	sub := p.Subscribe()

	eng.SetLoadError(errors.New("decoder exploded"))
	p.PlayAt(0, engine.ChangeManual, false)

	select {
	case <-sub.Error:
	case <-time.After(time.Second):
		t.Fatal("no aggregate error notification")
	}
	settle()
	select {
	case e := <-sub.Error:
		t.Fatalf("second error notification: %+v", e)
	default:
	}

	if got := len(eng.LoadCalls()); got != 3 {
		t.Errorf("load attempts = %d, want 3", got)
	}
	if p.Status() != Stopped {
		t.Errorf("Status = %v, want Stopped", p.Status())
	}
}

func TestFailure_StopsAtPlaylistEnd(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{MaxConsecutiveErrors: 10}, fileTracks(2)...)

	eng.SetLoadError(errors.New("bad file"))
	p.PlayAt(0, engine.ChangeManual, false)

	if got := len(eng.LoadCalls()); got != 2 {
		t.Errorf("load attempts = %d, want 2 (playlist exhausted)", got)
	}
	if p.Status() != Stopped {
		t.Errorf("Status = %v, want Stopped", p.Status())
	}
}

func TestUnregister_InflightCompletionIgnored(t *testing.T) {
	tracks := []playlist.Track{{URL: "radio://station/1"}}
	p, eng, _ := newTestPlayer(t, Options{}, tracks...)
	h := &blockingHandler{scheme: "radio"}
	p.RegisterUrlHandler(h)
	sub := p.Subscribe()

	p.PlayAt(0, engine.ChangeManual, false)
	p.UnregisterUrlHandler(h)

	final, _ := url.Parse("file:///cache/one.mp3")
	h.complete(0, urlhandler.Succeeded(h.call(0), final))
	settle()

	if len(eng.LoadCalls()) != 0 {
		t.Error("completion after unregister must not reach the engine")
	}
	if p.Status() != Stopped {
		t.Errorf("Status = %v, want Stopped", p.Status())
	}
	select {
	case e := <-sub.Error:
		t.Fatalf("unexpected error notification: %+v", e)
	default:
	}
}

func TestUnregister_AfterRedirectClearsPending(t *testing.T) {
	tracks := []playlist.Track{{URL: "radio://station/1"}, {URL: "/music/b.mp3"}}
	p, eng, _ := newTestPlayer(t, Options{}, tracks...)
	a := &blockingHandler{scheme: "radio"}
	b := &blockingHandler{scheme: "stream"}
	p.RegisterUrlHandler(a)
	p.RegisterUrlHandler(b)

	p.PlayAt(0, engine.ChangeManual, false)
	next, _ := url.Parse("stream://live/1")
	a.complete(0, urlhandler.Redirected(a.call(0), next))
	waitFor(t, "redirect handler called", func() bool { return p.Status() == Loading && b.callCount() == 1 })

	// The resolution now lives with the stream handler; dropping that handler
	// must abandon the load even though the original scheme differs.
	p.UnregisterUrlHandler(b)

	if p.Status() != Stopped {
		t.Fatalf("Status = %v, want Stopped", p.Status())
	}

	final, _ := url.Parse("file:///cache/one.mp3")
	b.complete(0, urlhandler.Succeeded(b.call(0), final))
	settle()
	if len(eng.LoadCalls()) != 0 {
		t.Error("completion after unregister must not reach the engine")
	}

	// Transport controls work again instead of waiting on the dead load.
	p.PlayPause()
	waitFor(t, "playback restarts", func() bool { return p.Status() != Stopped })
}

func TestPlayPause_Cycle(t *testing.T) {
	p, _, _ := newTestPlayer(t, Options{}, fileTracks(2)...)

	// Stopped: starts the first playable item.
	p.PlayPause()
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	p.PlayPause()
	waitFor(t, "paused", func() bool { return p.Status() == Paused })

	p.PlayPause()
	waitFor(t, "resumed", func() bool { return p.Status() == Playing })
}

func TestPlayPause_ResumesLastKnownItem(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(3)...)

	p.PlayAt(2, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })
	p.Stop(false)
	waitFor(t, "stopped", func() bool { return p.Status() == Stopped })

	p.PlayPause()
	calls := eng.LoadCalls()
	if len(calls) != 2 || calls[1] != "/music/c.mp3" {
		t.Errorf("LoadCalls = %v, want last-known item replayed", calls)
	}
}

func TestTrackEnded_AutoAdvance(t *testing.T) {
	p, eng, pl := newTestPlayer(t, Options{}, fileTracks(2)...)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	eng.EmitTrackEnded()
	waitFor(t, "advanced to next", func() bool {
		calls := eng.LoadCalls()
		return len(calls) == 2 && calls[1] == "/music/b.mp3"
	})

	last := pl.NextCalls()[len(pl.NextCalls())-1]
	if !last.Has(engine.ChangeAuto) {
		t.Errorf("auto advance flags = %v, want ChangeAuto", last)
	}
}

func TestTrackEnded_PlaylistFinished(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(1)...)
	sub := p.Subscribe()

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })
	eng.EmitTrackEnded()

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-sub.StateChanged:
			if e.Status == Stopped {
				if !e.PlaylistFinished {
					t.Error("Stopped change should carry PlaylistFinished")
				}
				if p.CurrentItem() != nil {
					t.Error("current item should be cleared with no successor")
				}
				return
			}
		case <-deadline:
			t.Fatal("no Stopped state change")
		}
	}
}

func TestStopAfterCurrent_StopsInsteadOfAdvancing(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(3)...)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	p.StopAfterCurrent()
	eng.EmitTrackEnded()

	waitFor(t, "stopped", func() bool { return p.Status() == Stopped })
	if got := len(eng.LoadCalls()); got != 1 {
		t.Errorf("load calls = %d, want 1 (no advance)", got)
	}
}

func TestStopAfterCurrent_Toggles(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(2)...)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	p.StopAfterCurrent()
	p.StopAfterCurrent() // disarm again
	eng.EmitTrackEnded()

	waitFor(t, "advanced", func() bool { return len(eng.LoadCalls()) == 2 })
}

func TestSetVolume_Clamps(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{})

	p.SetVolume(150)
	if p.Volume() != 100 {
		t.Errorf("SetVolume(150): volume = %d, want 100", p.Volume())
	}
	p.SetVolume(-10)
	if p.Volume() != 0 {
		t.Errorf("SetVolume(-10): volume = %d, want 0", p.Volume())
	}
	if eng.Volume() != 0 {
		t.Errorf("engine volume = %d, want 0", eng.Volume())
	}
}

func TestMute_RestoresExactPreMuteVolume(t *testing.T) {
	for _, vol := range []int{0, 1, 37, 70, 100} {
		p, _, _ := newTestPlayer(t, Options{})
		p.SetVolume(vol)

		p.Mute()
		if p.Volume() != 0 {
			t.Errorf("vol %d: after Mute volume = %d, want 0", vol, p.Volume())
		}
		if !p.Muted() {
			t.Errorf("vol %d: Muted() = false after Mute", vol)
		}

		p.Mute()
		if p.Volume() != vol {
			t.Errorf("vol %d: after unmute volume = %d, want %d", vol, p.Volume(), vol)
		}
		if p.Muted() {
			t.Errorf("vol %d: Muted() = true after unmute", vol)
		}
		p.Close()
	}
}

func TestVolumeUpDown_Steps(t *testing.T) {
	p, _, _ := newTestPlayer(t, Options{VolumeStep: 10})

	p.SetVolume(50)
	p.VolumeUp()
	if p.Volume() != 60 {
		t.Errorf("VolumeUp: volume = %d, want 60", p.Volume())
	}
	p.VolumeDown()
	p.VolumeDown()
	if p.Volume() != 40 {
		t.Errorf("VolumeDown x2: volume = %d, want 40", p.Volume())
	}
}

func TestPrevious_QuickRepressRestarts(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{
		PreviousBehaviour: PreviousRestart,
		RewindThreshold:   time.Hour,
	}, fileTracks(3)...)

	p.PlayAt(2, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	// First press navigates back.
	p.Previous()
	waitFor(t, "previous item playing", func() bool {
		item := p.CurrentItem()
		return item != nil && item.Index == 1 && p.Status() == Playing
	})

	// Second press within the threshold restarts instead of navigating.
	eng.SetPosition(30 * time.Second)
	p.Previous()

	seeks := eng.SeekCalls()
	if len(seeks) == 0 || seeks[len(seeks)-1] != 0 {
		t.Errorf("SeekCalls = %v, want trailing seek to 0", seeks)
	}
	if item := p.CurrentItem(); item == nil || item.Index != 1 {
		t.Errorf("CurrentItem = %+v, want index 1 unchanged", item)
	}
}

func TestPrevious_PastThresholdNavigates(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{
		PreviousBehaviour: PreviousRestart,
		RewindThreshold:   10 * time.Millisecond,
	}, fileTracks(3)...)

	p.PlayAt(2, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	p.Previous()
	time.Sleep(20 * time.Millisecond)
	p.Previous()

	waitFor(t, "two steps back", func() bool {
		item := p.CurrentItem()
		return item != nil && item.Index == 0
	})
	if len(eng.SeekCalls()) != 0 {
		t.Errorf("SeekCalls = %v, want none", eng.SeekCalls())
	}
}

func TestPrevious_NavigateBehaviourIgnoresTiming(t *testing.T) {
	p, _, _ := newTestPlayer(t, Options{
		PreviousBehaviour: PreviousNavigate,
		RewindThreshold:   time.Hour,
	}, fileTracks(3)...)

	p.PlayAt(2, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	p.Previous()
	p.Previous()

	waitFor(t, "two steps back", func() bool {
		item := p.CurrentItem()
		return item != nil && item.Index == 0
	})
}

// SeekForward then SeekBackward returns to the starting position unless
// clamped at a boundary.
func TestSeekForwardBackward_RoundTrip(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{SeekStep: 5 * time.Second}, fileTracks(1)...)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })
	eng.SetDuration(3 * time.Minute)
	eng.SetPosition(30 * time.Second)

	p.SeekForward()
	if eng.Position() != 35*time.Second {
		t.Fatalf("after SeekForward position = %v, want 35s", eng.Position())
	}
	p.SeekBackward()
	if eng.Position() != 30*time.Second {
		t.Errorf("after SeekBackward position = %v, want 30s", eng.Position())
	}
}

func TestSeek_ClampsAtBoundaries(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{SeekStep: 5 * time.Second}, fileTracks(1)...)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })
	eng.SetDuration(time.Minute)

	eng.SetPosition(2 * time.Second)
	p.SeekBackward()
	if eng.Position() != 0 {
		t.Errorf("backward from 2s: position = %v, want 0", eng.Position())
	}

	eng.SetPosition(58 * time.Second)
	p.SeekForward()
	if eng.Position() != time.Minute {
		t.Errorf("forward from 58s: position = %v, want 60s", eng.Position())
	}
}

func TestSeekTo_EmitsSeeked(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(1)...)
	sub := p.Subscribe()

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })
	eng.SetDuration(time.Minute)

	p.SeekTo(42 * time.Second)

	select {
	case e := <-sub.Seeked:
		if e.Position != 42*time.Second {
			t.Errorf("Seeked position = %v, want 42s", e.Position)
		}
	case <-time.After(time.Second):
		t.Fatal("no Seeked event")
	}
}

func TestSeek_IgnoredWhenStopped(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(1)...)

	p.SeekTo(10 * time.Second)
	if len(eng.SeekCalls()) != 0 {
		t.Errorf("SeekCalls = %v, want none while stopped", eng.SeekCalls())
	}
}

func TestNext_ManualFlagAndEndStops(t *testing.T) {
	p, eng, pl := newTestPlayer(t, Options{}, fileTracks(2)...)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	p.Next()
	waitFor(t, "second track", func() bool { return len(eng.LoadCalls()) == 2 })
	calls := pl.NextCalls()
	if !calls[len(calls)-1].Has(engine.ChangeManual) {
		t.Error("Next should advance with the Manual flag")
	}

	p.Next() // past the end
	waitFor(t, "stopped", func() bool { return p.Status() == Stopped })
}

func TestEngineError_RetryAdvance(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{MaxConsecutiveErrors: 5}, fileTracks(2)...)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	eng.EmitError(errors.New("stream died"))

	waitFor(t, "retry advance", func() bool {
		calls := eng.LoadCalls()
		return len(calls) == 2 && calls[1] == "/music/b.mp3"
	})
}

func TestMetadataChanged_UpdatesCurrentItem(t *testing.T) {
	p, eng, _ := newTestPlayer(t, Options{}, fileTracks(1)...)
	sub := p.Subscribe()

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	eng.EmitMetadata(engine.Metadata{Title: "New Title", Artist: "Someone"})

	select {
	case e := <-sub.MetadataChanged:
		if e.Item.Track.Title != "New Title" {
			t.Errorf("metadata title = %q, want New Title", e.Item.Track.Title)
		}
	case <-time.After(time.Second):
		t.Fatal("no MetadataChanged event")
	}
	waitFor(t, "item updated", func() bool {
		item := p.CurrentItem()
		return item != nil && item.Track.Artist == "Someone"
	})
}

func TestPrefetch_UsedOnAutoAdvance(t *testing.T) {
	tracks := []playlist.Track{
		{URL: "/music/a.mp3"},
		{URL: "radio://station/2"},
	}
	p, eng, _ := newTestPlayer(t, Options{}, tracks...)
	h := &blockingHandler{scheme: "radio"}
	p.RegisterUrlHandler(h)

	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	eng.EmitAboutToEnd()
	waitFor(t, "prefetch dispatched", func() bool { return h.callCount() == 1 })

	final, _ := url.Parse("file:///cache/two.mp3")
	h.complete(0, urlhandler.Succeeded(h.call(0), final))
	settle()

	eng.EmitTrackEnded()
	waitFor(t, "prefetched location loaded", func() bool {
		calls := eng.LoadCalls()
		return len(calls) == 2 && calls[1] == "file:///cache/two.mp3"
	})
	// The cached resolution is committed without a second handler round trip.
	if h.callCount() != 1 {
		t.Errorf("handler calls = %d, want 1", h.callCount())
	}
}

type fakeStore struct {
	volume     int
	beforeMute int
	saves      int
}

func (f *fakeStore) GetVolume() (int, int, error) { return f.volume, f.beforeMute, nil }

func (f *fakeStore) SaveVolume(volume, beforeMute int) error {
	f.volume = volume
	f.beforeMute = beforeMute
	f.saves++
	return nil
}

func TestVolume_RoundTripsThroughStore(t *testing.T) {
	store := &fakeStore{volume: 33, beforeMute: -1}
	eng := engine.NewMock()
	p, err := New(eng, playlist.NewMock(), nil, Options{}, store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	if p.Volume() != 33 {
		t.Fatalf("restored volume = %d, want 33", p.Volume())
	}

	p.SetVolume(80)
	if store.volume != 80 || store.saves != 1 {
		t.Errorf("store = %+v, want volume 80 after one save", store)
	}

	p.Mute()
	if store.volume != 0 || store.beforeMute != 80 {
		t.Errorf("store after mute = %+v, want volume 0, beforeMute 80", store)
	}
}

func TestSwitchEngine_PreservesSessionState(t *testing.T) {
	p, _, _ := newTestPlayer(t, Options{}, fileTracks(1)...)

	p.SetVolume(42)
	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	if err := p.SwitchEngine(engine.TypeNull); err != nil {
		t.Fatalf("SwitchEngine() error = %v", err)
	}

	if p.Volume() != 42 {
		t.Errorf("volume after switch = %d, want 42", p.Volume())
	}
	if item := p.CurrentItem(); item == nil || item.Index != 0 {
		t.Errorf("CurrentItem after switch = %+v, want index 0 preserved", item)
	}
	if p.Status() != Stopped {
		t.Errorf("Status after switch = %v, want Stopped", p.Status())
	}
}

// Position and Duration stay readable from other goroutines (session saving,
// MPRIS) while the backend is being swapped.
func TestSwitchEngine_ConcurrentPositionReads(t *testing.T) {
	p, _, _ := newTestPlayer(t, Options{}, fileTracks(1)...)
	p.PlayAt(0, engine.ChangeManual, false)
	waitFor(t, "playing", func() bool { return p.Status() == Playing })

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = p.Position()
				_ = p.Duration()
			}
		}
	}()

	for i := 0; i < 20; i++ {
		if err := p.SwitchEngine(engine.TypeNull); err != nil {
			t.Fatalf("SwitchEngine() error = %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestClose_Idempotent(t *testing.T) {
	p, _, _ := newTestPlayer(t, Options{})
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
