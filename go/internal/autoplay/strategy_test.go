package autoplay

import (
	"errors"
	"testing"

	"github.com/mcdev12/ludotime/go/internal/board"
	"github.com/mcdev12/ludotime/go/internal/engine"
	"github.com/mcdev12/ludotime/go/internal/models"
)

// rolled returns a game where Red has rolled value with the given pawns.
func rolled(t *testing.T, value int, red ...models.Pawn) *engine.Game {
	t.Helper()
	g := engine.New()
	st := g.Snapshot()
	copy(st.Pawns[board.Red], red)
	g, err := engine.FromState(st)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.RollDice(board.Red, value); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestFirstMovable(t *testing.T) {
	home := models.HomePawn()
	tests := []struct {
		name  string
		value int
		red   []models.Pawn
		want  int
	}{
		{"six exits first pawn", 6, nil, 0},
		{"skips pawns stuck at home", 3, []models.Pawn{home, home, models.TrackPawn(4), home}, 2},
		{"skips finished pawns", 2, []models.Pawn{models.FinishedPawn(), models.FinalPathPawn(1), home, home}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FirstMovable{}.ChoosePawn(rolled(t, tt.value, tt.red...))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ChoosePawn = %d, want %d", got, tt.want)
			}
		})
	}

	if _, err := (FirstMovable{}).ChoosePawn(rolled(t, 3)); !errors.Is(err, ErrNoMovablePawn) {
		t.Errorf("all home on a 3: err = %v, want ErrNoMovablePawn", err)
	}
}

func TestRandomPicksMovablePawns(t *testing.T) {
	g := rolled(t, 4, models.TrackPawn(1), models.HomePawn(), models.TrackPawn(9), models.HomePawn())
	r := NewRandom(42)
	seen := map[int]bool{}
	for range 100 {
		pawn, err := r.ChoosePawn(g)
		if err != nil {
			t.Fatal(err)
		}
		if !g.IsPawnMovable(board.Red, pawn) {
			t.Fatalf("chose immovable pawn %d", pawn)
		}
		seen[pawn] = true
	}
	if !seen[0] || !seen[2] {
		t.Errorf("random strategy never chose some movable pawn: %v", seen)
	}

	if _, err := r.ChoosePawn(rolled(t, 2)); !errors.Is(err, ErrNoMovablePawn) {
		t.Errorf("err = %v, want ErrNoMovablePawn", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"", "first", "random"} {
		if _, err := ParseStrategy(name); err != nil {
			t.Errorf("ParseStrategy(%q): %v", name, err)
		}
	}
	if _, err := ParseStrategy("greedy"); err == nil {
		t.Error("ParseStrategy accepted an unknown name")
	}
}
