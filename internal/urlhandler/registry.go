// Package urlhandler provides pluggable asynchronous resolution of non-file
// locations: a handler registered for a URL scheme exchanges an opaque
// reference for a concrete, engine-loadable location.
package urlhandler

import (
	"net/url"

	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler resolves locations for one URL scheme.
//
// StartLoading must return promptly: resolution work runs on the handler's
// own goroutines and the eventual outcome is delivered through done, exactly
// once. done may be called from any goroutine.
type Handler interface {
	Scheme() string
	StartLoading(original *url.URL, done func(Result)) error
}

// ErrNoHandler is returned by Resolve when no handler covers the scheme.
var ErrNoHandler = errors.New("urlhandler: no handler for scheme")

// registration pairs a handler with the generation it was registered under.
// Completions carry the generation so results from a replaced or removed
// handler can be told apart from live ones.
type registration struct {
	handler Handler
	gen     uint64
}

// Registry holds at most one handler per scheme. It does not own the
// handlers: their lifetime is managed externally and Unregister must be
// called before a handler is torn down. Completions from handlers that are
// no longer registered are dropped, never delivered.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]registration
	gen      uint64
	logger   zerolog.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]registration),
		logger:   log.With().Str("component", "urlhandler").Logger(),
	}
}

// Register associates h with its scheme, replacing any previous handler for
// the same scheme.
func (r *Registry) Register(h Handler) {
	scheme := h.Scheme()

	r.mu.Lock()
	prev, replaced := r.handlers[scheme]
	r.gen++
	r.handlers[scheme] = registration{handler: h, gen: r.gen}
	r.mu.Unlock()

	if replaced && prev.handler != h {
		r.logger.Warn().Str("scheme", scheme).Msg("handler replaced")
	} else {
		r.logger.Debug().Str("scheme", scheme).Msg("handler registered")
	}
}

// Unregister removes h. Safe to call from the handler's own teardown path;
// in-flight resolutions started through h are revoked and their completions
// silently dropped. Unregistering a handler that was already replaced leaves
// the replacement untouched.
func (r *Registry) Unregister(h Handler) {
	scheme := h.Scheme()

	r.mu.Lock()
	if reg, ok := r.handlers[scheme]; ok && reg.handler == h {
		delete(r.handlers, scheme)
	}
	r.mu.Unlock()

	r.logger.Debug().Str("scheme", scheme).Msg("handler unregistered")
}

// HasHandler reports whether a handler is registered for u's scheme.
func (r *Registry) HasHandler(u *url.URL) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[u.Scheme]
	return ok
}

// Resolve dispatches u to its scheme's handler. The handler's completion is
// forwarded to done only while the same registration is still live; if the
// handler is unregistered or replaced first, the completion is dropped.
func (r *Registry) Resolve(u *url.URL, done func(Result)) error {
	r.mu.Lock()
	reg, ok := r.handlers[u.Scheme]
	r.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrNoHandler, "scheme %q", u.Scheme)
	}

	guarded := func(res Result) {
		if !r.live(u.Scheme, reg.gen) {
			r.logger.Debug().Str("url", u.String()).
				Msg("dropping completion from unregistered handler")
			return
		}
		done(res)
	}
	return reg.handler.StartLoading(u, guarded)
}

// live reports whether the registration identified by gen still backs scheme.
func (r *Registry) live(scheme string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.handlers[scheme]
	return ok && reg.gen == gen
}
