package models

// MaxPlayers is the number of colour slots in every session.
const MaxPlayers = 4

// Slot is one colour seat in a session. An empty PlayerID means the seat is
// free.
type Slot struct {
	PlayerID    string `json:"player_id,omitempty"`
	DisplayName string `json:"display_name"`
	IsReady     bool   `json:"is_ready"`
}

// Occupied reports whether a player holds the slot.
func (s Slot) Occupied() bool {
	return s.PlayerID != ""
}

// RollRecord is the most recent dice roll committed to a session.
type RollRecord struct {
	Seq    int64 `json:"seq"`
	Player int   `json:"player"`
	Value  int   `json:"value"`
}

// MoveRecord is the most recent pawn movement committed to a session.
type MoveRecord struct {
	Seq int64 `json:"seq"`
	Move
}

// TurnLogSize bounds how many turn records a session keeps.
const TurnLogSize = 64

// TurnRecordKind names what a turn record describes.
type TurnRecordKind string

const (
	TurnRecordTurn TurnRecordKind = "turn"
	TurnRecordRoll TurnRecordKind = "roll"
	TurnRecordMove TurnRecordKind = "move"
)

// TurnRecord is one committed turn transition: a new turn, a roll or a move.
// Records are numbered from the session's Seq counter so a watcher that
// skipped documents can replay everything it missed.
type TurnRecord struct {
	Seq    int64          `json:"seq"`
	Kind   TurnRecordKind `json:"kind"`
	Player int            `json:"player"`
	Value  int            `json:"value,omitempty"`
	Move   *Move          `json:"move,omitempty"`
}

// Session is the shared document every client of one game reads and writes.
type Session struct {
	Code                string       `json:"session_code"`
	HostPlayerID        string       `json:"host_player_id"`
	MaxPlayers          int          `json:"max_players"`
	CurrentPlayerCount  int          `json:"current_player_count"`
	GameStarted         bool         `json:"game_started"`
	LastUpdateTimestamp int64        `json:"last_update_timestamp"`
	Slots               []Slot       `json:"slots"`
	Game                *GameState   `json:"game,omitempty"`
	LastRoll            *RollRecord  `json:"last_roll,omitempty"`
	LastMove            *MoveRecord  `json:"last_move,omitempty"`
	Seq                 int64        `json:"seq"`
	Log                 []TurnRecord `json:"log,omitempty"`
}

// Record appends a turn record stamped with the next sequence number, keeping
// only the newest TurnLogSize records.
func (s *Session) Record(rec TurnRecord) TurnRecord {
	s.Seq++
	rec.Seq = s.Seq
	s.Log = append(s.Log, rec)
	if n := len(s.Log); n > TurnLogSize {
		s.Log = append([]TurnRecord(nil), s.Log[n-TurnLogSize:]...)
	}
	return rec
}

// LastTurn returns the newest TurnRecordTurn record in the log.
func (s *Session) LastTurn() (TurnRecord, bool) {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].Kind == TurnRecordTurn {
			return s.Log[i], true
		}
	}
	return TurnRecord{}, false
}

// SlotOf returns the slot index held by playerID, or -1.
func (s *Session) SlotOf(playerID string) int {
	if playerID == "" {
		return -1
	}
	for i, slot := range s.Slots {
		if slot.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// OccupiedSlots counts seats held by a player.
func (s *Session) OccupiedSlots() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Occupied() {
			n++
		}
	}
	return n
}

// ReadySlots counts occupied seats whose player is ready.
func (s *Session) ReadySlots() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Occupied() && slot.IsReady {
			n++
		}
	}
	return n
}
