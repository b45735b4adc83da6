package session

import (
	"errors"

	"github.com/mcdev12/ludotime/go/internal/models"
)

var (
	// ErrJoinRejected covers a full, started or duplicate join.
	ErrJoinRejected = errors.New("join rejected")
	// ErrTransactionConflict means another client committed first. The
	// whole operation must be re-driven.
	ErrTransactionConflict = errors.New("transaction conflict")
	// ErrSessionNotFound means the code names no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotHost is returned for host-only operations.
	ErrNotHost = errors.New("only the host may do that")
	// ErrNotInSession means the caller holds no slot in the session.
	ErrNotInSession = errors.New("player not in session")
)

// EventType names a derived session event.
type EventType string

const (
	EventSessionCreated EventType = "SessionCreated"
	EventPlayerJoined   EventType = "PlayerJoined"
	EventPlayerLeft     EventType = "PlayerLeft"
	EventGameStarted    EventType = "GameStarted"
	EventTurnChanged    EventType = "TurnChanged"
	EventDiceRolled     EventType = "DiceRolled"
	EventPawnMoved      EventType = "PawnMoved"
	EventSessionError   EventType = "SessionError"
	EventGameEnded      EventType = "GameEnded"
)

// Event is one transition observed on a session document.
type Event struct {
	Type        EventType        `json:"type"`
	SessionCode string           `json:"session_code"`
	Version     int64            `json:"version,omitempty"`
	Seq         int64            `json:"seq,omitempty"`
	PlayerID    string           `json:"player_id,omitempty"`
	DisplayName string           `json:"display_name,omitempty"`
	Slot        int              `json:"slot"`
	Player      int              `json:"player"`
	Value       int              `json:"value,omitempty"`
	Pawn        int              `json:"pawn"`
	To          *models.Pawn     `json:"to,omitempty"`
	Captures    []models.Capture `json:"captures,omitempty"`
	WinnerOrder []int            `json:"winner_order,omitempty"`
	Message     string           `json:"message,omitempty"`
	Err         error            `json:"-"`
}

// Listener receives session events. Embed NopListener to implement only the
// callbacks you need.
type Listener interface {
	SessionCreated(code string)
	PlayerJoined(playerID, displayName string)
	PlayerLeft(playerID string)
	GameStarted()
	TurnChanged(player int)
	DiceRolled(player, value int)
	PawnMoved(player, pawn int, to models.Pawn)
	SessionError(err error)
	GameEnded(winnerOrder []int)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) SessionCreated(string) {}
func (NopListener) PlayerJoined(string, string) {}
func (NopListener) PlayerLeft(string) {}
func (NopListener) GameStarted() {}
func (NopListener) TurnChanged(int) {}
func (NopListener) DiceRolled(int, int) {}
func (NopListener) PawnMoved(int, int, models.Pawn) {}
func (NopListener) SessionError(error) {}
func (NopListener) GameEnded([]int) {}

// Dispatch calls the Listener method matching ev.
func Dispatch(l Listener, ev Event) {
	switch ev.Type {
	case EventSessionCreated:
		l.SessionCreated(ev.SessionCode)
	case EventPlayerJoined:
		l.PlayerJoined(ev.PlayerID, ev.DisplayName)
	case EventPlayerLeft:
		l.PlayerLeft(ev.PlayerID)
	case EventGameStarted:
		l.GameStarted()
	case EventTurnChanged:
		l.TurnChanged(ev.Player)
	case EventDiceRolled:
		l.DiceRolled(ev.Player, ev.Value)
	case EventPawnMoved:
		if ev.To != nil {
			l.PawnMoved(ev.Player, ev.Pawn, *ev.To)
		}
	case EventSessionError:
		err := ev.Err
		if err == nil {
			err = errors.New(ev.Message)
		}
		l.SessionError(err)
	case EventGameEnded:
		l.GameEnded(ev.WinnerOrder)
	}
}

type multiListener []Listener

// MultiListener fans every callback out to ls in order.
func MultiListener(ls ...Listener) Listener {
	return multiListener(ls)
}

func (m multiListener) SessionCreated(code string) {
	for _, l := range m {
		l.SessionCreated(code)
	}
}

func (m multiListener) PlayerJoined(playerID, displayName string) {
	for _, l := range m {
		l.PlayerJoined(playerID, displayName)
	}
}

func (m multiListener) PlayerLeft(playerID string) {
	for _, l := range m {
		l.PlayerLeft(playerID)
	}
}

func (m multiListener) GameStarted() {
	for _, l := range m {
		l.GameStarted()
	}
}

func (m multiListener) TurnChanged(player int) {
	for _, l := range m {
		l.TurnChanged(player)
	}
}

func (m multiListener) DiceRolled(player, value int) {
	for _, l := range m {
		l.DiceRolled(player, value)
	}
}

func (m multiListener) PawnMoved(player, pawn int, to models.Pawn) {
	for _, l := range m {
		l.PawnMoved(player, pawn, to)
	}
}

func (m multiListener) SessionError(err error) {
	for _, l := range m {
		l.SessionError(err)
	}
}

func (m multiListener) GameEnded(winnerOrder []int) {
	for _, l := range m {
		l.GameEnded(winnerOrder)
	}
}
