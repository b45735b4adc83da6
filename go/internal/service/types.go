package service

import "github.com/mcdev12/ludotime/go/internal/models"

type CreateSessionRequest struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

type JoinSessionRequest struct {
	Code        string `json:"code"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

type SetReadyRequest struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
	Ready    bool   `json:"ready"`
}

// PlayerRequest names a player acting in a session.
type PlayerRequest struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

type SelectPawnRequest struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
	Pawn     int    `json:"pawn"`
}

type GetSessionRequest struct {
	Code string `json:"code"`
}

type SessionResponse struct {
	Session models.Session `json:"session"`
}

type RollDiceResponse struct {
	Value int `json:"value"`
}

type PlayRoundResponse struct {
	// Passed is set when the roll had no legal move and the turn moved on.
	Passed bool `json:"passed"`
}

type SelectPawnResponse struct {
	Move models.Move `json:"move"`
}

type LeaveSessionResponse struct{}
