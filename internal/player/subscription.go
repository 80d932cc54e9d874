// internal/player/subscription.go
package player

const eventBufferSize = 16

// Subscription provides event channels for one observer. Sends never block:
// observers that fall behind lose events.
type Subscription struct {
	StateChanged    <-chan StateChange
	TrackChanged    <-chan TrackChange
	TrackSkipped    <-chan TrackSkipped
	MetadataChanged <-chan MetadataChange
	Seeked          <-chan Seeked
	VolumeChanged   <-chan VolumeChange
	ChangeProcessed <-chan ChangeRequestProcessed
	Error           <-chan ErrorEvent
	Done            <-chan struct{}

	// Internal write channels
	stateCh   chan StateChange
	trackCh   chan TrackChange
	skippedCh chan TrackSkipped
	metaCh    chan MetadataChange
	seekedCh  chan Seeked
	volumeCh  chan VolumeChange
	changeCh  chan ChangeRequestProcessed
	errorCh   chan ErrorEvent
	doneCh    chan struct{}
}

// newSubscription creates a subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:   make(chan StateChange, eventBufferSize),
		trackCh:   make(chan TrackChange, eventBufferSize),
		skippedCh: make(chan TrackSkipped, eventBufferSize),
		metaCh:    make(chan MetadataChange, eventBufferSize),
		seekedCh:  make(chan Seeked, eventBufferSize),
		volumeCh:  make(chan VolumeChange, eventBufferSize),
		changeCh:  make(chan ChangeRequestProcessed, eventBufferSize),
		errorCh:   make(chan ErrorEvent, eventBufferSize),
		doneCh:    make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.TrackChanged = s.trackCh
	s.TrackSkipped = s.skippedCh
	s.MetadataChanged = s.metaCh
	s.Seeked = s.seekedCh
	s.VolumeChanged = s.volumeCh
	s.ChangeProcessed = s.changeCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals observers to stop.
func (s *Subscription) close() {
	close(s.doneCh)
}

func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
		// Drop if buffer full
	}
}

func (s *Subscription) sendTrack(e TrackChange) {
	select {
	case s.trackCh <- e:
	default:
	}
}

func (s *Subscription) sendSkipped(e TrackSkipped) {
	select {
	case s.skippedCh <- e:
	default:
	}
}

func (s *Subscription) sendMetadata(e MetadataChange) {
	select {
	case s.metaCh <- e:
	default:
	}
}

func (s *Subscription) sendSeeked(e Seeked) {
	select {
	case s.seekedCh <- e:
	default:
	}
}

func (s *Subscription) sendVolume(e VolumeChange) {
	select {
	case s.volumeCh <- e:
	default:
	}
}

func (s *Subscription) sendChange(e ChangeRequestProcessed) {
	select {
	case s.changeCh <- e:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
