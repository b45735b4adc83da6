package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/session"
)

// SessionWatcher starts a watcher on one session.
type SessionWatcher interface {
	Watch(ctx context.Context, code string, handler session.Handler) (*session.Watcher, error)
}

type follow struct {
	code    string
	created bool
}

// Relay follows sessions and publishes every derived event. Register it as a
// synchronizer listener so new sessions are followed as soon as they exist.
type Relay struct {
	session.NopListener

	pub     Publisher
	follows chan follow

	mu        sync.Mutex
	following map[string]struct{}
}

func NewRelay(pub Publisher) *Relay {
	return &Relay{
		pub:       pub,
		follows:   make(chan follow, 64),
		following: make(map[string]struct{}),
	}
}

// SessionCreated publishes the creation and follows the new session.
func (r *Relay) SessionCreated(code string) {
	r.enqueue(follow{code: code, created: true})
}

// Follow starts relaying an existing session.
func (r *Relay) Follow(code string) {
	r.enqueue(follow{code: session.NormalizeCode(code)})
}

func (r *Relay) enqueue(f follow) {
	select {
	case r.follows <- f:
	default:
		log.Warn().Str("session_code", f.code).Msg("relay queue full, session not followed")
	}
}

// Following reports whether code is being relayed.
func (r *Relay) Following(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.following[code]
	return ok
}

// Run starts watchers for queued sessions until ctx is done.
func (r *Relay) Run(ctx context.Context, sessions SessionWatcher) error {
	log.Info().Msg("event relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event relay shutting down")
			return nil
		case f := <-r.follows:
			if f.created {
				r.publish(ctx, session.Event{Type: session.EventSessionCreated, SessionCode: f.code, Version: 1})
			}
			r.start(ctx, sessions, f.code)
		}
	}
}

func (r *Relay) start(ctx context.Context, sessions SessionWatcher, code string) {
	r.mu.Lock()
	if _, ok := r.following[code]; ok {
		r.mu.Unlock()
		return
	}
	r.following[code] = struct{}{}
	r.mu.Unlock()

	w, err := sessions.Watch(ctx, code, func(ev session.Event) { r.publish(ctx, ev) })
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to follow session")
		r.forget(code)
		return
	}
	go func() {
		<-w.Done()
		r.forget(code)
		log.Debug().Str("session_code", code).Msg("stopped relaying session")
	}()
}

func (r *Relay) forget(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.following, code)
}

func (r *Relay) publish(ctx context.Context, ev session.Event) {
	if err := r.pub.Publish(ctx, ev); err != nil {
		log.Error().
			Err(err).
			Str("session_code", ev.SessionCode).
			Str("event_type", string(ev.Type)).
			Msg("failed to publish session event")
	}
}
