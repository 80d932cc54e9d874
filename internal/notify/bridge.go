package notify

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/avigny/baton/internal/mpris"
	"github.com/avigny/baton/internal/player"
)

// Bridge turns controller events into desktop notifications. Track changes
// replace the previous notification instead of stacking; errors are sent as
// critical and left on screen.
type Bridge struct {
	notifier Notifier
	sub      *player.Subscription
	lastID   uint32
	logger   zerolog.Logger
}

// NewBridge creates a bridge over an event subscription. The caller owns the
// subscription's lifetime: the bridge runs until it is closed.
func NewBridge(notifier Notifier, sub *player.Subscription) *Bridge {
	return &Bridge{
		notifier: notifier,
		sub:      sub,
		logger:   log.With().Str("component", "notify").Logger(),
	}
}

// Run consumes events until the subscription closes. Call in a goroutine.
func (b *Bridge) Run() {
	for {
		select {
		case <-b.sub.Done:
			return
		case e := <-b.sub.TrackChanged:
			b.notifyTrack(e)
		case e := <-b.sub.Error:
			b.notifyError(e)
		}
	}
}

func (b *Bridge) notifyTrack(e player.TrackChange) {
	art := mpris.FindAlbumArt(e.Item.Track.URL)
	id, err := b.notifier.Notify(forTrack(e, art, b.lastID))
	if err != nil {
		b.logger.Debug().Err(err).Msg("track notification failed")
		return
	}
	b.lastID = id
}

func (b *Bridge) notifyError(e player.ErrorEvent) {
	if _, err := b.notifier.Notify(forError(e)); err != nil {
		b.logger.Debug().Err(err).Msg("error notification failed")
	}
}
