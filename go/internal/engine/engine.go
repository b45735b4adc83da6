package engine

import (
	"fmt"

	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/models"
)

const noWinner = -1

// Game is the authoritative Ludo rules state machine for one match. It is not
// safe for concurrent use; the multiplayer layer gives every transaction its
// own copy.
//
// Every mutator validates before it writes, so a returned error always leaves
// the game untouched.
type Game struct {
	pawns [board.Players][board.PawnsPerPlayer]models.Pawn

	currentPlayer         int
	lastDiceRoll          int
	diceRolled            bool
	moveMade              bool
	awaitingPawnSelection bool

	winnerOrder  [board.Players]int
	winnersCount int

	safeCells board.SafeCellPolicy
}

// Option configures a Game.
type Option func(*Game)

// WithSafeCells selects the capture protection rule.
func WithSafeCells(policy board.SafeCellPolicy) Option {
	return func(g *Game) {
		g.safeCells = policy
	}
}

// New returns a game with every pawn at home and Red to roll.
func New(opts ...Option) *Game {
	g := &Game{safeCells: board.SafeStarts}
	for p := range g.pawns {
		for i := range g.pawns[p] {
			g.pawns[p][i] = models.HomePawn()
		}
	}
	for i := range g.winnerOrder {
		g.winnerOrder[i] = noWinner
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) CurrentPlayer() int { return g.currentPlayer }
func (g *Game) LastDiceRoll() int { return g.lastDiceRoll }
func (g *Game) IsDiceRolled() bool { return g.diceRolled }
func (g *Game) IsMoveMade() bool { return g.moveMade }
func (g *Game) IsAwaitingPawnSelection() bool { return g.awaitingPawnSelection }

// Pawn returns the lifecycle state of one pawn.
func (g *Game) Pawn(player, pawn int) (models.Pawn, error) {
	if err := checkPawn(player, pawn); err != nil {
		return models.Pawn{}, err
	}
	return g.pawns[player][pawn], nil
}

// CanRoll reports why player may not roll right now, or nil.
func (g *Game) CanRoll(player int) error {
	if err := checkPlayer(player); err != nil {
		return err
	}
	if g.IsGameOver() {
		return fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	if player != g.currentPlayer {
		return fmt.Errorf("%w: it is %s's turn, not %s's", ErrIllegalMove, board.ColorName(g.currentPlayer), board.ColorName(player))
	}
	if g.diceRolled {
		return fmt.Errorf("%w: dice already rolled this turn", ErrIllegalMove)
	}
	return nil
}

// RollDice records the current player's roll. player must be the current
// player and the dice must not have been rolled yet this turn.
func (g *Game) RollDice(player, value int) error {
	if err := checkPlayer(player); err != nil {
		return err
	}
	if value < 1 || value > 6 {
		return fmt.Errorf("%w: dice value %d must be between 1 and 6", ErrInvalidInput, value)
	}
	if err := g.CanRoll(player); err != nil {
		return err
	}

	g.lastDiceRoll = value
	g.diceRolled = true
	g.moveMade = false
	return nil
}

// SubmitDiceRoll records a roll for whoever's turn it is.
func (g *Game) SubmitDiceRoll(value int) error {
	return g.RollDice(g.currentPlayer, value)
}

// PlayRound resolves the current roll. When the current player has no legal
// move the turn passes to the next player and PlayRound reports true. When at
// least one pawn can move the game waits for a pawn selection and PlayRound
// reports false, even if only a single pawn is movable.
func (g *Game) PlayRound() (bool, error) {
	if !g.diceRolled {
		return false, fmt.Errorf("%w: dice not rolled", ErrIllegalMove)
	}
	if g.moveMade {
		return false, fmt.Errorf("%w: move already made this turn", ErrIllegalMove)
	}
	if g.awaitingPawnSelection {
		return false, nil
	}

	if !g.HasValidMoves() {
		g.AdvanceTurn()
		return true, nil
	}
	g.awaitingPawnSelection = true
	return false, nil
}

// HasValidMoves reports whether the current player can move any pawn with the
// current roll.
func (g *Game) HasValidMoves() bool {
	if !g.diceRolled || g.moveMade {
		return false
	}
	for pawn := 0; pawn < board.PawnsPerPlayer; pawn++ {
		if g.canMove(g.currentPlayer, pawn) {
			return true
		}
	}
	return false
}

// IsPawnMovable reports whether a pawn could be selected right now. It is
// false for every pawn outside the current player's turn.
func (g *Game) IsPawnMovable(player, pawn int) bool {
	if checkPawn(player, pawn) != nil {
		return false
	}
	if player != g.currentPlayer || !g.diceRolled || g.moveMade {
		return false
	}
	return g.canMove(player, pawn)
}

func (g *Game) canMove(player, pawn int) bool {
	switch p := g.pawns[player][pawn]; p.Zone {
	case models.PawnZoneHome:
		return g.lastDiceRoll == board.ExitRoll
	case models.PawnZoneTrack, models.PawnZoneFinalPath:
		return true
	default:
		return false
	}
}

// SelectPawn moves one of player's pawns by the current roll, resolves
// captures and passes the turn. The game must be waiting for a selection.
func (g *Game) SelectPawn(player, pawn int) (models.Move, error) {
	if err := checkPawn(player, pawn); err != nil {
		return models.Move{}, err
	}
	if player != g.currentPlayer {
		return models.Move{}, fmt.Errorf("%w: it is %s's turn, not %s's", ErrIllegalMove, board.ColorName(g.currentPlayer), board.ColorName(player))
	}
	if !g.diceRolled {
		return models.Move{}, fmt.Errorf("%w: dice not rolled", ErrIllegalMove)
	}
	if g.moveMade {
		return models.Move{}, fmt.Errorf("%w: move already made this turn", ErrIllegalMove)
	}
	if !g.awaitingPawnSelection {
		return models.Move{}, fmt.Errorf("%w: not awaiting a pawn selection", ErrIllegalMove)
	}
	if !g.canMove(player, pawn) {
		return models.Move{}, fmt.Errorf("%w: %s pawn %d in %s cannot move with a %d",
			ErrIllegalMove, board.ColorName(player), pawn, g.pawns[player][pawn], g.lastDiceRoll)
	}

	move := g.applyMove(player, pawn)
	g.moveMade = true
	g.awaitingPawnSelection = false
	g.AdvanceTurn()
	return move, nil
}

// SubmitPawnSelection moves a pawn of whoever's turn it is.
func (g *Game) SubmitPawnSelection(pawn int) (models.Move, error) {
	return g.SelectPawn(g.currentPlayer, pawn)
}

func (g *Game) applyMove(player, pawn int) models.Move {
	roll := g.lastDiceRoll
	from := g.pawns[player][pawn]
	var to models.Pawn

	switch from.Zone {
	case models.PawnZoneHome:
		to = models.TrackPawn(board.StartPosition(player))

	case models.PawnZoneFinalPath:
		step := from.Step + roll
		if step >= board.FinalPathLength {
			to = models.FinishedPawn()
		} else {
			to = models.FinalPathPawn(step)
		}

	case models.PawnZoneTrack:
		distance := board.DistanceToThreshold(player, from.Position)
		if roll > distance {
			// Entry is by distance: the pawn may land anywhere in the lane
			// and a remainder past the last cell finishes it.
			step := roll - distance - 1
			if step >= board.FinalPathLength {
				to = models.FinishedPawn()
			} else {
				to = models.FinalPathPawn(step)
			}
		} else {
			to = models.TrackPawn((from.Position + roll) % board.TrackLength)
		}
	}

	g.pawns[player][pawn] = to
	move := models.Move{Player: player, Pawn: pawn, Roll: roll, From: from, To: to}
	if to.OnTrack() {
		move.Captures = g.capture(player, to.Position)
	}
	return move
}

// capture sends every opposing track pawn on position back home unless the
// cell is safe.
func (g *Game) capture(mover, position int) []models.Capture {
	if g.safeCells.IsSafe(position) {
		return nil
	}
	var captured []models.Capture
	for player := 0; player < board.Players; player++ {
		if player == mover {
			continue
		}
		for pawn := 0; pawn < board.PawnsPerPlayer; pawn++ {
			p := g.pawns[player][pawn]
			if p.OnTrack() && p.Position == position {
				g.pawns[player][pawn] = models.HomePawn()
				captured = append(captured, models.Capture{Player: player, Pawn: pawn, Position: position})
			}
		}
	}
	return captured
}

// AdvanceTurn passes the turn to the next colour and clears the roll. It does
// not skip finished players; callers that know which seats are still playing
// loop on HasPlayerWon.
func (g *Game) AdvanceTurn() {
	g.currentPlayer = (g.currentPlayer + 1) % board.Players
	g.diceRolled = false
	g.moveMade = false
	g.awaitingPawnSelection = false
	g.lastDiceRoll = 0
}

// HasPlayerWon reports whether all of player's pawns are finished.
func (g *Game) HasPlayerWon(player int) bool {
	if checkPlayer(player) != nil {
		return false
	}
	for _, p := range g.pawns[player] {
		if !p.Finished() {
			return false
		}
	}
	return true
}

// GetWinner records and returns the lowest-indexed player that has finished
// but is not yet placed, or -1. A player is reported only once.
func (g *Game) GetWinner() int {
	for player := 0; player < board.Players; player++ {
		if g.HasPlayerWon(player) && g.PlayerPlacement(player) == 0 {
			g.winnerOrder[g.winnersCount] = player
			g.winnersCount++
			return player
		}
	}
	return noWinner
}

// RecordWinners drains GetWinner and returns every newly placed player.
func (g *Game) RecordWinners() []int {
	var placed []int
	for w := g.GetWinner(); w != noWinner; w = g.GetWinner() {
		placed = append(placed, w)
	}
	return placed
}

// Place records player at the next placement without requiring their pawns
// to be finished. It settles standings when a game cannot be finished by play,
// for example because too many seats were vacated.
func (g *Game) Place(player int) error {
	if err := checkPlayer(player); err != nil {
		return err
	}
	if g.PlayerPlacement(player) != 0 {
		return fmt.Errorf("%w: %s is already placed", ErrIllegalMove, board.ColorName(player))
	}
	if g.IsGameOver() {
		return fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	g.winnerOrder[g.winnersCount] = player
	g.winnersCount++
	return nil
}

// IsGameOver reports whether three players have been placed.
func (g *Game) IsGameOver() bool {
	return g.winnersCount >= board.Players-1
}

// PlayerPlacement returns player's 1-based finishing rank, or 0.
func (g *Game) PlayerPlacement(player int) int {
	for i := 0; i < g.winnersCount; i++ {
		if g.winnerOrder[i] == player {
			return i + 1
		}
	}
	return 0
}

// WinnerOrder returns the placement slots, -1 for slots not yet filled.
func (g *Game) WinnerOrder() []int {
	order := make([]int, board.Players)
	copy(order, g.winnerOrder[:])
	return order
}

// WinnersCount returns how many players have been placed.
func (g *Game) WinnersCount() int {
	return g.winnersCount
}

// FinalOrder returns the full placement once the game is over, with the one
// unplaced player last. Before that it is the same as WinnerOrder.
func (g *Game) FinalOrder() []int {
	order := g.WinnerOrder()
	if !g.IsGameOver() || g.winnersCount == board.Players {
		return order
	}
	for player := 0; player < board.Players; player++ {
		if g.PlayerPlacement(player) == 0 {
			order[g.winnersCount] = player
			break
		}
	}
	return order
}

// PawnsOnBoard counts player's pawns that are out of home and not finished.
func (g *Game) PawnsOnBoard(player int) int {
	if checkPlayer(player) != nil {
		return 0
	}
	n := 0
	for _, p := range g.pawns[player] {
		if p.OnTrack() || p.OnFinalPath() {
			n++
		}
	}
	return n
}

// PawnCell is the grid cell a renderer should draw a pawn on.
func (g *Game) PawnCell(player, pawn int) (board.Coordinate, error) {
	p, err := g.Pawn(player, pawn)
	if err != nil {
		return board.Coordinate{}, err
	}
	switch p.Zone {
	case models.PawnZoneTrack:
		return board.TrackCell(p.Position), nil
	case models.PawnZoneFinalPath:
		return board.FinalPathCell(player, p.Step), nil
	case models.PawnZoneFinished:
		return board.Center, nil
	default:
		return board.HomeCell(player, pawn), nil
	}
}

func checkPlayer(player int) error {
	if player < 0 || player >= board.Players {
		return fmt.Errorf("%w: player %d out of range", ErrInvalidInput, player)
	}
	return nil
}

func checkPawn(player, pawn int) error {
	if err := checkPlayer(player); err != nil {
		return err
	}
	if pawn < 0 || pawn >= board.PawnsPerPlayer {
		return fmt.Errorf("%w: pawn %d out of range", ErrInvalidInput, pawn)
	}
	return nil
}
