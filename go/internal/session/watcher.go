package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrWatcherClosed is returned by Await once the watcher has stopped.
var ErrWatcherClosed = errors.New("session watcher closed")

// Handler receives derived events in order on the watcher's goroutine.
type Handler func(Event)

// ListenerHandler adapts a Listener to a Handler.
func ListenerHandler(l Listener) Handler {
	return func(ev Event) { Dispatch(l, ev) }
}

type waiter struct {
	cond func(models.Session) bool
	ch   chan awaitResult
}

type awaitResult struct {
	sess models.Session
	err  error
}

// Watcher follows one session document, derives events from each change and
// completes Await calls when the document reaches the awaited state. Events
// for a document are handed to the handler before any Await sees it.
type Watcher struct {
	code    string
	tracker *Tracker
	handler Handler
	done    chan struct{}

	mu      sync.Mutex
	latest  Document
	have    bool
	waiters map[*waiter]struct{}
}

// Watch subscribes to code and starts delivering events to handler until ctx
// is done or the session is deleted.
func (s *Synchronizer) Watch(ctx context.Context, code string, handler Handler) (*Watcher, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: malformed code %q", ErrSessionNotFound, code)
	}
	if handler == nil {
		handler = func(Event) {}
	}

	docs, err := s.repo.Watch(ctx, code, func(err error) {
		log.Error().Err(err).Str("session_code", code).Msg("skipping undecodable session document")
	})
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		code:    code,
		tracker: NewTracker(code),
		handler: handler,
		done:    make(chan struct{}),
		waiters: make(map[*waiter]struct{}),
	}
	go w.run(docs)
	return w, nil
}

func (w *Watcher) run(docs <-chan Document) {
	defer w.close()
	for doc := range docs {
		for _, ev := range w.tracker.Observe(doc) {
			w.handler(ev)
		}
		w.update(doc)
		if doc.Deleted {
			return
		}
	}
}

func (w *Watcher) update(doc Document) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.have && doc.Version <= w.latest.Version {
		return
	}
	w.latest = doc
	w.have = true

	for wt := range w.waiters {
		switch {
		case doc.Deleted:
			wt.ch <- awaitResult{err: fmt.Errorf("%w: %s", ErrSessionNotFound, w.code)}
		case wt.cond(doc.Session):
			wt.ch <- awaitResult{sess: cloneSession(doc.Session)}
		default:
			continue
		}
		delete(w.waiters, wt)
	}
}

func (w *Watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for wt := range w.waiters {
		wt.ch <- awaitResult{err: ErrWatcherClosed}
		delete(w.waiters, wt)
	}
	close(w.done)
}

// Done is closed once the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Latest returns the most recent document seen.
func (w *Watcher) Latest() (Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.have
}

// Await returns the first document, current or future, for which cond holds.
// It replaces polling the store while waiting for another client to act.
func (w *Watcher) Await(ctx context.Context, cond func(models.Session) bool) (models.Session, error) {
	wt := &waiter{cond: cond, ch: make(chan awaitResult, 1)}

	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return models.Session{}, ErrWatcherClosed
	default:
	}
	if w.have {
		if w.latest.Deleted {
			w.mu.Unlock()
			return models.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, w.code)
		}
		if cond(w.latest.Session) {
			sess := cloneSession(w.latest.Session)
			w.mu.Unlock()
			return sess, nil
		}
	}
	w.waiters[wt] = struct{}{}
	w.mu.Unlock()

	select {
	case res := <-wt.ch:
		return res.sess, res.err
	case <-ctx.Done():
		w.mu.Lock()
		delete(w.waiters, wt)
		w.mu.Unlock()
		return models.Session{}, ctx.Err()
	}
}

// CurrentPlayerIs is an Await condition for "it is player's turn".
func CurrentPlayerIs(player int) func(models.Session) bool {
	return func(s models.Session) bool {
		return s.Game != nil && s.Game.CurrentPlayer == player
	}
}

// NotAwaitingSelection is an Await condition for "no pawn selection is
// pending".
func NotAwaitingSelection(s models.Session) bool {
	return s.Game == nil || !s.Game.AwaitingPawnSelection
}

// GameStarted is an Await condition for "the host started the game".
func GameStarted(s models.Session) bool {
	return s.GameStarted
}
