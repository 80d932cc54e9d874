package player

import "github.com/cockroachdb/errors"

// Errors. Per the controller's propagation policy these never cross the
// public control surface: per-track failures are absorbed into playlist
// advancement and only construction-time failures are returned to callers.
var (
	// ErrEngineUnavailable means no engine adapter was constructed;
	// playback cannot start at all.
	ErrEngineUnavailable = errors.New("player: no engine available")

	// ErrTooManyConsecutiveErrors is the aggregate failure surfaced when
	// the consecutive-error threshold is crossed.
	ErrTooManyConsecutiveErrors = errors.New("player: too many consecutive playback errors")
)
