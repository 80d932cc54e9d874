//go:build !linux

package mpris

import (
	"github.com/avigny/baton/internal/player"
	"github.com/avigny/baton/internal/playlist"
)

// Adapter is a no-op on non-Linux platforms.
type Adapter struct{}

// New returns a no-op adapter on non-Linux platforms.
func New(_ *player.Player, _ *playlist.Playlist) (*Adapter, error) {
	return &Adapter{}, nil
}

// Close is a no-op on non-Linux platforms.
func (a *Adapter) Close() error {
	return nil
}
