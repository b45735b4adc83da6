package session

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/mcdev12/ludotime/go/internal/store/memory"
)

var players = []struct{ id, name string }{
	{"p-red", "Ruby"},
	{"p-green", "Gus"},
	{"p-yellow", "Yara"},
	{"p-blue", "Bo"},
}

func newTestSync(t *testing.T, opts ...Option) (*Synchronizer, *memory.Store) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	opts = append([]Option{WithClock(clockwork.NewFakeClockAt(time.Unix(1700000000, 0)))}, opts...)
	return NewSynchronizer(st, opts...), st
}

// lobby creates a session hosted by players[0] and joins the next n-1
// players, marking each ready when ready is set.
func lobby(t *testing.T, s *Synchronizer, n int, ready bool) string {
	t.Helper()
	ctx := context.Background()
	sess, err := s.CreateSession(ctx, players[0].id, players[0].name)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, p := range players[1:n] {
		if _, err := s.JoinSession(ctx, sess.Code, p.id, p.name); err != nil {
			t.Fatalf("JoinSession(%s): %v", p.id, err)
		}
		if ready {
			if _, err := s.SetReady(ctx, sess.Code, p.id, true); err != nil {
				t.Fatalf("SetReady(%s): %v", p.id, err)
			}
		}
	}
	return sess.Code
}

func startedGame(t *testing.T, s *Synchronizer) string {
	t.Helper()
	code := lobby(t, s, 4, true)
	if _, err := s.StartSession(context.Background(), code, players[0].id); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return code
}

// rewriteGame replaces the embedded game state of a started session.
func rewriteGame(t *testing.T, s *Synchronizer, code string, edit func(g *models.GameState)) {
	t.Helper()
	ctx := context.Background()
	doc, err := s.repo.Load(ctx, code)
	if err != nil {
		t.Fatal(err)
	}
	edit(doc.Session.Game)
	if _, err := s.repo.Swap(ctx, doc.Version, doc.Session); err != nil {
		t.Fatal(err)
	}
}

// barrierStore holds the first n Gets until all n have been made, so that n
// concurrent transactions read the same version.
type barrierStore struct {
	store.Store

	mu      sync.Mutex
	pending int
	release chan struct{}
}

func newBarrierStore(inner store.Store, n int) *barrierStore {
	return &barrierStore{Store: inner, pending: n, release: make(chan struct{})}
}

func (b *barrierStore) Get(ctx context.Context, key string) (store.Record, error) {
	rec, err := b.Store.Get(ctx, key)

	b.mu.Lock()
	if b.pending == 0 {
		b.mu.Unlock()
		return rec, err
	}
	b.pending--
	if b.pending == 0 {
		close(b.release)
	}
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
		return store.Record{}, ctx.Err()
	}
	return rec, err
}

type recordingListener struct {
	NopListener

	mu      sync.Mutex
	created []string
	errs    []error
}

func (l *recordingListener) SessionCreated(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, code)
}

func (l *recordingListener) SessionError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
