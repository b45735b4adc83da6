package engine

import (
	"fmt"

	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/models"
)

// Snapshot converts the game into its wire form.
func (g *Game) Snapshot() models.GameState {
	pawns := make([][]models.Pawn, board.Players)
	for p := range g.pawns {
		pawns[p] = make([]models.Pawn, board.PawnsPerPlayer)
		copy(pawns[p], g.pawns[p][:])
	}
	return models.GameState{
		CurrentPlayer:         g.currentPlayer,
		LastDiceRoll:          g.lastDiceRoll,
		DiceRolled:            g.diceRolled,
		MoveMade:              g.moveMade,
		AwaitingPawnSelection: g.awaitingPawnSelection,
		Pawns:                 pawns,
		WinnerOrder:           g.WinnerOrder(),
		WinnersCount:          g.winnersCount,
	}
}

// FromState rebuilds a game from its wire form, rejecting documents that break
// the engine's invariants.
func FromState(s models.GameState, opts ...Option) (*Game, error) {
	g := New(opts...)

	if err := checkPlayer(s.CurrentPlayer); err != nil {
		return nil, fmt.Errorf("current player: %w", err)
	}
	if s.DiceRolled {
		if s.LastDiceRoll < 1 || s.LastDiceRoll > 6 {
			return nil, fmt.Errorf("%w: rolled dice value %d", ErrInvalidInput, s.LastDiceRoll)
		}
	} else if s.LastDiceRoll != 0 || s.MoveMade || s.AwaitingPawnSelection {
		return nil, fmt.Errorf("%w: turn state set without a roll", ErrInvalidInput)
	}

	if len(s.Pawns) != board.Players {
		return nil, fmt.Errorf("%w: %d pawn rows, want %d", ErrInvalidInput, len(s.Pawns), board.Players)
	}
	for p, row := range s.Pawns {
		if len(row) != board.PawnsPerPlayer {
			return nil, fmt.Errorf("%w: player %d has %d pawns, want %d", ErrInvalidInput, p, len(row), board.PawnsPerPlayer)
		}
		for i, pawn := range row {
			if err := pawn.Validate(); err != nil {
				return nil, fmt.Errorf("%w: player %d pawn %d: %v", ErrInvalidInput, p, i, err)
			}
			g.pawns[p][i] = pawn
		}
	}

	if s.WinnersCount < 0 || s.WinnersCount > board.Players || len(s.WinnerOrder) > board.Players {
		return nil, fmt.Errorf("%w: winners count %d", ErrInvalidInput, s.WinnersCount)
	}
	seen := make(map[int]bool, board.Players)
	filled := 0
	for i, w := range s.WinnerOrder {
		if w == noWinner {
			continue
		}
		if err := checkPlayer(w); err != nil {
			return nil, fmt.Errorf("winner slot %d: %w", i, err)
		}
		if seen[w] {
			return nil, fmt.Errorf("%w: player %d placed twice", ErrInvalidInput, w)
		}
		if i >= s.WinnersCount {
			return nil, fmt.Errorf("%w: winner slot %d beyond count %d", ErrInvalidInput, i, s.WinnersCount)
		}
		seen[w] = true
		g.winnerOrder[i] = w
		filled++
	}
	if filled != s.WinnersCount {
		return nil, fmt.Errorf("%w: %d placed players but count %d", ErrInvalidInput, filled, s.WinnersCount)
	}

	g.currentPlayer = s.CurrentPlayer
	g.lastDiceRoll = s.LastDiceRoll
	g.diceRolled = s.DiceRolled
	g.moveMade = s.MoveMade
	g.awaitingPawnSelection = s.AwaitingPawnSelection
	g.winnersCount = s.WinnersCount
	return g, nil
}
