package session

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/engine"
	"github.com/mcdev12/ludotime/go/internal/models"
)

// Tracker turns successive session documents into events. It keeps the last
// document it saw and diffs each new one against it, so every transition is
// reported once no matter how many clients observe it. The first document is
// diffed against an empty lobby.
//
// Rolls, moves and turn changes are replayed from the document's turn log, so
// a tracker that skipped documents still reports each of them in commit
// order. Only when the log no longer reaches back far enough does it fall back
// to the newest roll, move and turn.
type Tracker struct {
	code    string
	prev    models.Session
	version int64
	gone    bool
}

func NewTracker(code string) *Tracker {
	return &Tracker{code: code}
}

// Observe returns the events between the previous document and doc.
func (t *Tracker) Observe(doc Document) []Event {
	if t.gone || doc.Version <= t.version {
		return nil
	}
	first := t.version == 0
	t.version = doc.Version

	if doc.Deleted {
		t.gone = true
		var events []Event
		for i, slot := range t.prev.Slots {
			if slot.Occupied() {
				events = append(events, t.event(EventPlayerLeft, doc, func(e *Event) {
					e.PlayerID = slot.PlayerID
					e.DisplayName = slot.DisplayName
					e.Slot = i
				}))
			}
		}
		err := fmt.Errorf("%w: %s was closed by the host", ErrSessionNotFound, t.code)
		return append(events, t.event(EventSessionError, doc, func(e *Event) {
			e.Message = err.Error()
			e.Err = err
		}))
	}

	prev, next := t.prev, doc.Session
	t.prev = cloneSession(next)

	var events []Event
	events = append(events, t.diffSlots(prev, next, doc)...)

	if next.GameStarted && !prev.GameStarted {
		events = append(events, t.event(EventGameStarted, doc, nil))
	}
	switch {
	case next.Seq <= prev.Seq && len(next.Log) > 0:
	case !first && replayable(prev.Seq, next):
		events = append(events, t.replay(prev.Seq, next, doc)...)
	default:
		if !first && len(next.Log) > 0 {
			log.Warn().
				Str("session_code", t.code).
				Int64("seen_seq", prev.Seq).
				Int64("oldest_seq", next.Log[0].Seq).
				Msg("turn log overrun, reporting newest turn only")
		}
		events = append(events, t.latest(prev, next, doc)...)
	}

	if g := next.Game; g != nil && gameOver(g) && (prev.Game == nil || !gameOver(prev.Game)) {
		events = append(events, t.event(EventGameEnded, doc, func(e *Event) {
			e.WinnerOrder = finalOrder(g)
		}))
	}
	return events
}

// replayable reports whether next's log still holds every record after seq.
func replayable(seq int64, next models.Session) bool {
	return len(next.Log) > 0 && next.Log[0].Seq <= seq+1
}

// replay reports every logged record after seq in commit order.
func (t *Tracker) replay(seq int64, next models.Session, doc Document) []Event {
	var events []Event
	for _, rec := range next.Log {
		if rec.Seq <= seq {
			continue
		}
		switch rec.Kind {
		case models.TurnRecordRoll:
			events = append(events, t.event(EventDiceRolled, doc, func(e *Event) {
				e.Seq = rec.Seq
				e.Player = rec.Player
				e.Value = rec.Value
			}))
		case models.TurnRecordMove:
			if rec.Move != nil {
				events = append(events, t.moved(doc, rec.Seq, *rec.Move))
			}
		case models.TurnRecordTurn:
			events = append(events, t.event(EventTurnChanged, doc, func(e *Event) {
				e.Seq = rec.Seq
				e.Player = rec.Player
			}))
		}
	}
	return events
}

// latest reports the newest roll, move and turn that differ from prev.
func (t *Tracker) latest(prev, next models.Session, doc Document) []Event {
	var events []Event
	if r := next.LastRoll; r != nil && (prev.LastRoll == nil || r.Seq > prev.LastRoll.Seq) {
		events = append(events, t.event(EventDiceRolled, doc, func(e *Event) {
			e.Seq = r.Seq
			e.Player = r.Player
			e.Value = r.Value
		}))
	}
	if m := next.LastMove; m != nil && (prev.LastMove == nil || m.Seq > prev.LastMove.Seq) {
		events = append(events, t.moved(doc, m.Seq, m.Move))
	}
	if g := next.Game; g != nil && !gameOver(g) {
		if prev.Game == nil || prev.Game.CurrentPlayer != g.CurrentPlayer {
			events = append(events, t.event(EventTurnChanged, doc, func(e *Event) {
				if rec, ok := next.LastTurn(); ok && rec.Player == g.CurrentPlayer {
					e.Seq = rec.Seq
				}
				e.Player = g.CurrentPlayer
			}))
		}
	}
	return events
}

func (t *Tracker) moved(doc Document, seq int64, m models.Move) Event {
	to := m.To
	return t.event(EventPawnMoved, doc, func(e *Event) {
		e.Seq = seq
		e.Player = m.Player
		e.Pawn = m.Pawn
		e.Value = m.Roll
		e.To = &to
		e.Captures = m.Captures
	})
}

func (t *Tracker) diffSlots(prev, next models.Session, doc Document) []Event {
	var left, joined []Event
	for i := 0; i < len(next.Slots) || i < len(prev.Slots); i++ {
		var was, is models.Slot
		if i < len(prev.Slots) {
			was = prev.Slots[i]
		}
		if i < len(next.Slots) {
			is = next.Slots[i]
		}
		if was.PlayerID == is.PlayerID {
			continue
		}
		if was.Occupied() {
			left = append(left, t.event(EventPlayerLeft, doc, func(e *Event) {
				e.PlayerID = was.PlayerID
				e.DisplayName = was.DisplayName
				e.Slot = i
			}))
		}
		if is.Occupied() {
			joined = append(joined, t.event(EventPlayerJoined, doc, func(e *Event) {
				e.PlayerID = is.PlayerID
				e.DisplayName = is.DisplayName
				e.Slot = i
			}))
		}
	}
	return append(left, joined...)
}

func (t *Tracker) event(typ EventType, doc Document, fill func(e *Event)) Event {
	e := Event{Type: typ, SessionCode: t.code, Version: doc.Version}
	if fill != nil {
		fill(&e)
	}
	return e
}

func gameOver(g *models.GameState) bool {
	return g.WinnersCount >= board.Players-1
}

func finalOrder(g *models.GameState) []int {
	game, err := engine.FromState(*g)
	if err != nil {
		return append([]int(nil), g.WinnerOrder...)
	}
	return game.FinalOrder()
}
