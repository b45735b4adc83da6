package autoplay

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/engine"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// ErrNoMovablePawn is returned when a strategy is asked to choose for a roll
// with no legal move.
var ErrNoMovablePawn = errors.New("no movable pawn")

// FirstMovable picks the lowest-numbered pawn that can move.
type FirstMovable struct{}

func (FirstMovable) ChoosePawn(g *engine.Game) (int, error) {
	movable := movablePawns(g)
	if len(movable) == 0 {
		return 0, ErrNoMovablePawn
	}
	return movable[0], nil
}

// Random picks uniformly among the movable pawns.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom constructs a Random strategy with its own seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) ChoosePawn(g *engine.Game) (int, error) {
	movable := movablePawns(g)
	if len(movable) == 0 {
		return 0, ErrNoMovablePawn
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return movable[r.rng.Intn(len(movable))], nil
}

// ParseStrategy maps a configured name to a strategy.
func ParseStrategy(name string) (session.PawnChooser, error) {
	switch name {
	case "", "first":
		return FirstMovable{}, nil
	case "random":
		return NewRandom(time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("unknown autoplay strategy %q", name)
	}
}

func movablePawns(g *engine.Game) []int {
	var movable []int
	player := g.CurrentPlayer()
	for pawn := 0; pawn < board.PawnsPerPlayer; pawn++ {
		if g.IsPawnMovable(player, pawn) {
			movable = append(movable, pawn)
		}
	}
	return movable
}
