//go:build linux

package mpris

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/avigny/baton/internal/player"
	"github.com/avigny/baton/internal/playlist"
)

// Adapter exposes the playback controller over MPRIS on the session bus.
type Adapter struct {
	player *player.Player
	server *server.Server
	done   chan struct{}
}

// New creates and starts a new MPRIS adapter.
func New(p *player.Player, pl *playlist.Playlist) (*Adapter, error) {
	a := &Adapter{
		player: p,
		done:   make(chan struct{}),
	}

	// Create adapters that delegate to the controller
	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{player: p, playlist: pl}

	a.server = server.NewServer("baton", rootAdapter, playerAdapter)

	// Start the server in background
	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "Baton", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/mp3", "audio/ogg", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and optional
// interfaces.
type playerAdapter struct {
	player   *player.Player
	playlist *playlist.Playlist
}

func (p *playerAdapter) Next() error {
	p.player.Next()
	return nil
}

func (p *playerAdapter) Previous() error {
	p.player.Previous()
	return nil
}

func (p *playerAdapter) Pause() error {
	p.player.Pause()
	return nil
}

func (p *playerAdapter) PlayPause() error {
	p.player.PlayPause()
	return nil
}

func (p *playerAdapter) Stop() error {
	p.player.Stop(false)
	return nil
}

func (p *playerAdapter) Play() error {
	p.player.Play()
	return nil
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	p.player.SeekTo(p.player.Position() + time.Duration(offset)*time.Microsecond)
	return nil
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	p.player.SeekTo(time.Duration(position) * time.Microsecond)
	return nil
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.player.Status() {
	case player.Playing, player.Loading:
		return types.PlaybackStatusPlaying, nil
	case player.Paused:
		return types.PlaybackStatusPaused, nil
	case player.Stopped:
		return types.PlaybackStatusStopped, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	item := p.player.CurrentItem()
	if item == nil {
		return types.Metadata{}, nil
	}
	track := item.Track

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(track.URL)),
		Length:  types.Microseconds(track.Duration.Microseconds()),
		Title:   track.Title,
		Artist:  []string{track.Artist},
		Album:   track.Album,
	}

	if artPath := FindAlbumArt(track.URL); artPath != "" {
		meta.ArtUrl = "file://" + artPath
	}

	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return float64(p.player.Volume()) / 100.0, nil
}

func (p *playerAdapter) SetVolume(v float64) error {
	p.player.SetVolume(int(v * 100))
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return p.player.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return p.playlist.Len() > 0, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	item := p.player.CurrentItem()
	if item == nil {
		return false, nil
	}
	return p.playlist.PreviousIndex(item.Index) >= 0, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.playlist.Len() > 0, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.playlist.RepeatMode() {
	case playlist.RepeatOne:
		return types.LoopStatusTrack, nil
	case playlist.RepeatAll:
		return types.LoopStatusPlaylist, nil
	case playlist.RepeatOff:
		return types.LoopStatusNone, nil
	}
	return types.LoopStatusNone, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusNone:
		p.playlist.SetRepeat(playlist.RepeatOff)
	case types.LoopStatusTrack:
		p.playlist.SetRepeat(playlist.RepeatOne)
	case types.LoopStatusPlaylist:
		p.playlist.SetRepeat(playlist.RepeatAll)
	}
	return nil
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.playlist.Shuffle(), nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	p.playlist.SetShuffle(shuffle)
	return nil
}

func formatTrackID(location string) string {
	h := fnv.New64a()
	h.Write([]byte(location))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
