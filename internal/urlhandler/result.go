package urlhandler

import (
	"net/url"

	"github.com/avigny/baton/internal/engine"
)

// Kind tags the outcome of an asynchronous load.
type Kind int

const (
	// Success means the handler produced a final, engine-loadable location.
	Success Kind = iota
	// Redirect means the handler produced a new location that must be
	// resolved again.
	Redirect
	// Invalid means the original location cannot be played.
	Invalid
	// TimedOut means the handler gave up waiting on its upstream.
	TimedOut
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Success:
		return "Success"
	case Redirect:
		return "Redirect"
	case Invalid:
		return "Invalid"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Result is the outcome of resolving a location through a handler.
type Result struct {
	Kind Kind

	// OriginalURL is the location resolution started from.
	OriginalURL *url.URL

	// FinalURL is set on Success and Redirect.
	FinalURL *url.URL

	// Metadata optionally replaces the item's metadata on Success
	// (e.g. a stream title the handler learned during resolution).
	Metadata *engine.Metadata

	// Reason describes an Invalid result.
	Reason string
}

// Succeeded builds a Success result.
func Succeeded(original, final *url.URL) Result {
	return Result{Kind: Success, OriginalURL: original, FinalURL: final}
}

// Redirected builds a Redirect result pointing at next.
func Redirected(original, next *url.URL) Result {
	return Result{Kind: Redirect, OriginalURL: original, FinalURL: next}
}

// Rejected builds an Invalid result.
func Rejected(original *url.URL, reason string) Result {
	return Result{Kind: Invalid, OriginalURL: original, Reason: reason}
}

// Expired builds a TimedOut result.
func Expired(original *url.URL) Result {
	return Result{Kind: TimedOut, OriginalURL: original}
}
