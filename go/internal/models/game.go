package models

// GameState is the serialized form of a turn engine. It is the only shape in
// which engine state crosses the store boundary.
type GameState struct {
	CurrentPlayer         int      `json:"current_player"`
	LastDiceRoll          int      `json:"last_dice_roll"`
	DiceRolled            bool     `json:"dice_rolled"`
	MoveMade              bool     `json:"move_made"`
	AwaitingPawnSelection bool     `json:"awaiting_pawn_selection"`
	Pawns                 [][]Pawn `json:"pawns"`
	WinnerOrder           []int    `json:"winner_order"`
	WinnersCount          int      `json:"winners_count"`
}

// Capture records an opposing pawn sent home by a move.
type Capture struct {
	Player   int `json:"player"`
	Pawn     int `json:"pawn"`
	Position int `json:"position"`
}

// Move describes one applied pawn movement.
type Move struct {
	Player   int       `json:"player"`
	Pawn     int       `json:"pawn"`
	Roll     int       `json:"roll"`
	From     Pawn      `json:"from"`
	To       Pawn      `json:"to"`
	Captures []Capture `json:"captures,omitempty"`
}
