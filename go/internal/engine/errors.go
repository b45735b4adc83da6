package engine

import "errors"

var (
	// ErrInvalidInput is returned for out-of-range dice values, players or
	// pawn indexes.
	ErrInvalidInput = errors.New("invalid input")
	// ErrIllegalMove is returned when an action is not allowed in the current
	// turn state: wrong player, dice not rolled, move already made or a pawn
	// that cannot move with the current roll.
	ErrIllegalMove = errors.New("illegal move")
)
