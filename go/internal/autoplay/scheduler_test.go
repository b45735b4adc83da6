package autoplay

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/session"
	"github.com/mcdev12/ludotime/go/internal/store/memory"
)

const timeout = 30 * time.Second

type fixture struct {
	ctx   context.Context
	clock *clockwork.FakeClock
	sched *Scheduler
	sync  *session.Synchronizer
	code  string
	watch *session.Watcher
}

// newFixture starts a four player game with autoplay following it. Every roll
// is a six.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	clock := clockwork.NewFakeClock()
	sched, err := NewScheduler(Config{TurnTimeout: timeout}, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	sync := session.NewSynchronizer(st,
		session.WithListener(sched),
		session.WithRoller(&session.FixedRoller{Values: []int{6}}),
	)
	go sched.Run(ctx, sync)

	ids := []string{"p-red", "p-green", "p-yellow", "p-blue"}
	sess, err := sync.CreateSession(ctx, ids[0], "Ruby")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids[1:] {
		if _, err := sync.JoinSession(ctx, sess.Code, id, id); err != nil {
			t.Fatal(err)
		}
		if _, err := sync.SetReady(ctx, sess.Code, id, true); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := sync.StartSession(ctx, sess.Code, ids[0]); err != nil {
		t.Fatal(err)
	}
	w, err := sync.Watch(ctx, sess.Code, nil)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{ctx: ctx, clock: clock, sched: sched, sync: sync, code: sess.Code, watch: w}
	f.waitArmed(t, board.Red)
	return f
}

// waitArmed blocks until the scheduler times player's turn.
func (f *fixture) waitArmed(t *testing.T, player int) {
	t.Helper()
	for {
		if got, ok := f.sched.Armed(f.code); ok && got == player {
			return
		}
		select {
		case <-f.ctx.Done():
			t.Fatalf("turn timer for player %d never armed", player)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (f *fixture) await(t *testing.T, cond func(models.Session) bool) models.Session {
	t.Helper()
	sess, err := f.watch.Await(f.ctx, cond)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	return sess
}

func TestIdleTurnIsAutoplayed(t *testing.T) {
	f := newFixture(t)

	f.clock.Advance(timeout)
	sess := f.await(t, session.CurrentPlayerIs(board.Green))
	if got := sess.Game.Pawns[board.Red][0]; got != models.TrackPawn(0) {
		t.Errorf("red pawn 0 = %s, want TRACK(0)", got)
	}
	if sess.LastMove == nil || sess.LastMove.Player != board.Red {
		t.Errorf("last move = %+v", sess.LastMove)
	}

	f.waitArmed(t, board.Green)
	f.clock.Advance(timeout)
	sess = f.await(t, session.CurrentPlayerIs(board.Yellow))
	if got := sess.Game.Pawns[board.Green][0]; got != models.TrackPawn(board.StartPosition(board.Green)) {
		t.Errorf("green pawn 0 = %s", got)
	}
}

func TestActingInTimeRearms(t *testing.T) {
	f := newFixture(t)

	f.clock.Advance(timeout / 2)
	if _, err := f.sync.RollDice(f.ctx, f.code, "p-red"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sync.PlayRound(f.ctx, f.code, "p-red"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sync.SelectPawn(f.ctx, f.code, "p-red", 3); err != nil {
		t.Fatal(err)
	}
	f.waitArmed(t, board.Green)

	// Red's original deadline passes; Green still has half a turn left.
	f.clock.Advance(timeout / 2)
	sess, err := f.sync.GetSession(f.ctx, f.code)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Game.CurrentPlayer != board.Green {
		t.Fatalf("current player = %d, want Green", sess.Game.CurrentPlayer)
	}

	f.clock.Advance(timeout / 2)
	sess = f.await(t, session.CurrentPlayerIs(board.Yellow))
	if got := sess.Game.Pawns[board.Red]; got[3] != models.TrackPawn(0) || got[0] != models.HomePawn() {
		t.Errorf("red pawns = %v; autoplay must not touch a turn played in time", got)
	}
}

func TestRollRestartsTurnTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched, err := NewScheduler(Config{TurnTimeout: timeout}, WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	handle := sched.handler("ABC123")

	handle(session.Event{Type: session.EventTurnChanged, Version: 1, Player: board.Red})
	clock.Advance(20 * time.Second)
	handle(session.Event{Type: session.EventDiceRolled, Version: 2, Player: board.Red, Value: 6})
	// A stale move by another seat does not take over the timer.
	handle(session.Event{Type: session.EventPawnMoved, Version: 2, Player: board.Blue})
	if got, ok := sched.Armed("ABC123"); !ok || got != board.Red {
		t.Fatalf("Armed = %d, %v; want Red", got, ok)
	}

	clock.Advance(20 * time.Second)
	clock.Advance(10 * time.Second)
	select {
	case got := <-sched.workCh:
		want := turn{code: "ABC123", player: board.Red, version: 2}
		if got != want {
			t.Errorf("expired turn = %+v, want %+v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("restarted timer never expired")
	}
	select {
	case extra := <-sched.workCh:
		t.Errorf("unexpected second expiry %+v", extra)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSchedulerForgetsDeletedSession(t *testing.T) {
	f := newFixture(t)

	if err := f.sync.LeaveSession(f.ctx, f.code, "p-red"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-f.watch.Done():
	case <-f.ctx.Done():
		t.Fatal("session watcher did not stop")
	}
	for {
		if _, ok := f.sched.Armed(f.code); !ok {
			break
		}
		select {
		case <-f.ctx.Done():
			t.Fatal("timer still armed for a deleted session")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestNewSchedulerValidates(t *testing.T) {
	if _, err := NewScheduler(Config{}); err == nil {
		t.Error("NewScheduler accepted a zero timeout")
	}
	s, err := NewScheduler(Config{TurnTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.config.Strategy.(FirstMovable); !ok {
		t.Errorf("default strategy = %T", s.config.Strategy)
	}
}
