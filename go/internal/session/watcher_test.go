package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/models"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return types(l.events)
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWatcherDerivesEvents(t *testing.T) {
	s, _ := newTestSync(t, WithRoller(&FixedRoller{Values: []int{6}}))
	ctx := awaitCtx(t)
	code := lobby(t, s, 1, false)

	log := &eventLog{}
	w, err := s.Watch(ctx, code, log.handle)
	if err != nil {
		t.Fatal(err)
	}
	step := func(cond func(models.Session) bool) {
		t.Helper()
		if _, err := w.Await(ctx, cond); err != nil {
			t.Fatalf("Await: %v", err)
		}
	}

	step(func(sess models.Session) bool { return sess.OccupiedSlots() == 1 })
	for i, p := range players[1:] {
		if _, err := s.JoinSession(ctx, code, p.id, p.name); err != nil {
			t.Fatal(err)
		}
		n := i + 2
		step(func(sess models.Session) bool { return sess.OccupiedSlots() == n })
		if _, err := s.SetReady(ctx, code, p.id, true); err != nil {
			t.Fatal(err)
		}
		step(func(sess models.Session) bool { return sess.ReadySlots() == n })
	}

	if _, err := s.StartSession(ctx, code, players[0].id); err != nil {
		t.Fatal(err)
	}
	step(GameStarted)
	if _, err := s.RollDice(ctx, code, players[0].id); err != nil {
		t.Fatal(err)
	}
	step(func(sess models.Session) bool { return sess.Game.DiceRolled })
	if _, err := s.PlayRound(ctx, code, players[0].id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SelectPawn(ctx, code, players[0].id, 0); err != nil {
		t.Fatal(err)
	}
	step(CurrentPlayerIs(board.Green))

	want := []EventType{
		EventPlayerJoined,
		EventPlayerJoined, EventPlayerJoined, EventPlayerJoined,
		EventGameStarted, EventTurnChanged,
		EventDiceRolled,
		EventPawnMoved, EventTurnChanged,
	}
	if diff := cmp.Diff(want, log.types()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestWatcherAwaitsRemoteSelection(t *testing.T) {
	s, _ := newTestSync(t, WithRoller(&FixedRoller{Values: []int{6}}))
	ctx := awaitCtx(t)
	code := startedGame(t, s)

	w, err := s.Watch(ctx, code, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan models.Session, 1)
	go func() {
		sess, err := w.Await(ctx, func(sess models.Session) bool {
			return sess.LastMove != nil && !sess.Game.AwaitingPawnSelection
		})
		if err != nil {
			t.Errorf("Await: %v", err)
		}
		done <- sess
	}()

	if _, err := s.RollDice(ctx, code, "p-red"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PlayRound(ctx, code, "p-red"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
		t.Fatal("Await completed before the pawn was selected")
	default:
	}
	if _, err := s.SelectPawn(ctx, code, "p-red", 0); err != nil {
		t.Fatal(err)
	}

	select {
	case sess := <-done:
		if sess.LastMove.To != models.TrackPawn(0) {
			t.Errorf("awaited move = %+v", sess.LastMove)
		}
	case <-ctx.Done():
		t.Fatal("Await never completed")
	}
}

func TestWatcherStopsWhenHostLeaves(t *testing.T) {
	s, _ := newTestSync(t)
	ctx := awaitCtx(t)
	code := lobby(t, s, 2, false)

	var (
		mu    sync.Mutex
		lefts []string
		errs  []error
	)
	l := &funcListener{
		left: func(id string) {
			mu.Lock()
			defer mu.Unlock()
			lefts = append(lefts, id)
		},
		err: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		},
	}
	guest := NewClient(s, players[1].id, players[1].name)
	if err := guest.JoinSession(ctx, code); !errors.Is(err, ErrJoinRejected) {
		t.Fatalf("rejoin err = %v, want ErrJoinRejected", err)
	}
	guest.setCode(code)
	w, err := guest.Watch(ctx, l)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Await(ctx, func(sess models.Session) bool { return sess.OccupiedSlots() == 2 }); err != nil {
		t.Fatal(err)
	}

	if err := s.LeaveSession(ctx, code, players[0].id); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Done():
	case <-ctx.Done():
		t.Fatal("watcher did not stop after the session was deleted")
	}

	if doc, ok := w.Latest(); !ok || !doc.Deleted {
		t.Errorf("Latest = %+v, %v; want deletion", doc, ok)
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{players[0].id, players[1].id}, lefts); diff != "" {
		t.Errorf("PlayerLeft (-want +got):\n%s", diff)
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrSessionNotFound) {
		t.Errorf("SessionError = %v, want one ErrSessionNotFound", errs)
	}
	if _, err := w.Await(ctx, GameStarted); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Await after deletion err = %v", err)
	}
}

type funcListener struct {
	NopListener
	left   func(string)
	err    func(error)
}

func (f *funcListener) PlayerLeft(id string)   { f.left(id) }
func (f *funcListener) SessionError(err error) { f.err(err) }

func TestAwaitHonoursContext(t *testing.T) {
	s, _ := newTestSync(t)
	code := lobby(t, s, 1, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := s.Watch(ctx, code, nil)
	if err != nil {
		t.Fatal(err)
	}

	short, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	if _, err := w.Await(short, GameStarted); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Await err = %v, want deadline exceeded", err)
	}

	cancel()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	if _, err := w.Await(context.Background(), GameStarted); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Await after stop err = %v, want ErrWatcherClosed", err)
	}
}

func TestSlowHandlerMissesNoTurnEvents(t *testing.T) {
	s, _ := newTestSync(t, WithRoller(&FixedRoller{Values: []int{1}}))
	ctx := awaitCtx(t)
	code := startedGame(t, s)

	release := make(chan struct{})
	var once sync.Once
	log := &eventLog{}
	w, err := s.Watch(ctx, code, func(ev Event) {
		once.Do(func() { <-release })
		log.handle(ev)
	})
	if err != nil {
		t.Fatal(err)
	}

	// Everyone is at home and rolls a 1, so each round passes the turn.
	for _, p := range players[:3] {
		if _, err := s.RollDice(ctx, code, p.id); err != nil {
			t.Fatalf("RollDice(%s): %v", p.id, err)
		}
		if passed, err := s.PlayRound(ctx, code, p.id); err != nil || !passed {
			t.Fatalf("PlayRound(%s) = %v, %v", p.id, passed, err)
		}
	}
	close(release)
	if _, err := w.Await(ctx, CurrentPlayerIs(board.Blue)); err != nil {
		t.Fatalf("Await: %v", err)
	}

	want := []EventType{
		EventPlayerJoined, EventPlayerJoined, EventPlayerJoined, EventPlayerJoined,
		EventGameStarted, EventTurnChanged,
		EventDiceRolled, EventTurnChanged,
		EventDiceRolled, EventTurnChanged,
		EventDiceRolled, EventTurnChanged,
	}
	if diff := cmp.Diff(want, log.types()); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}

	var turns, rolls []int
	for _, ev := range log.events {
		switch ev.Type {
		case EventTurnChanged:
			turns = append(turns, ev.Player)
		case EventDiceRolled:
			rolls = append(rolls, ev.Player)
		}
	}
	if diff := cmp.Diff([]int{board.Red, board.Green, board.Yellow, board.Blue}, turns); diff != "" {
		t.Errorf("turns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{board.Red, board.Green, board.Yellow}, rolls); diff != "" {
		t.Errorf("rolls (-want +got):\n%s", diff)
	}
}
