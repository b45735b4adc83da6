package board

import "fmt"

const (
	// Players is the number of colours seated at the board.
	Players = 4
	// PawnsPerPlayer is the number of pawns each colour owns.
	PawnsPerPlayer = 4
	// TrackLength is the number of cells on the shared circular track.
	TrackLength = 52
	// FinalPathLength is the number of cells in a colour's private lane.
	FinalPathLength = 5
	// GridSize is the width and height of the square board grid.
	GridSize = 15
	// ExitRoll is the dice value required to bring a pawn out of home.
	ExitRoll = 6

	cellsPerQuadrant = TrackLength / Players
)

// Player colours in seating order, clockwise from the top-left corner.
const (
	Red = iota
	Green
	Yellow
	Blue
)

var colorNames = [Players]string{"RED", "GREEN", "YELLOW", "BLUE"}

// ColorName returns the display name of a player colour.
func ColorName(player int) string {
	if player < 0 || player >= Players {
		return fmt.Sprintf("PLAYER_%d", player)
	}
	return colorNames[player]
}

// Coordinate is a (column, row) cell on the board grid.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Center is where finished pawns are drawn.
var Center = Coordinate{X: 7, Y: 7}

// Tables are built once at package init and never mutated afterwards.
var (
	trackCells     [TrackLength]Coordinate
	homeCells      [Players][PawnsPerPlayer]Coordinate
	finalPathCells [Players][FinalPathLength]Coordinate
)

func init() {
	trackCells = buildTrack()
	homeCells = buildHomes()
	finalPathCells = buildFinalPaths()
}

// buildTrack walks the perimeter of the cross clockwise starting at Red's
// start cell (1,6). Each arm contributes a run of cells and the corners turn
// the walk by 90 degrees.
func buildTrack() [TrackLength]Coordinate {
	type run struct {
		x, y   int
		dx, dy int
		n      int
	}
	runs := []run{
		{1, 6, 1, 0, 5},   // left arm, top row, heading right
		{6, 5, 0, -1, 6},  // top arm, left column, heading up
		{7, 0, 0, 0, 1},   // top arm tip
		{8, 0, 0, 1, 6},   // top arm, right column, heading down
		{9, 6, 1, 0, 6},   // right arm, top row, heading right
		{14, 7, 0, 0, 1},  // right arm tip
		{14, 8, -1, 0, 6}, // right arm, bottom row, heading left
		{8, 9, 0, 1, 6},   // bottom arm, right column, heading down
		{7, 14, 0, 0, 1},  // bottom arm tip
		{6, 14, 0, -1, 6}, // bottom arm, left column, heading up
		{5, 8, -1, 0, 6},  // left arm, bottom row, heading left
		{0, 7, 0, 0, 1},   // left arm tip
		{0, 6, 0, 0, 1},   // corner back to the top row
	}

	var cells [TrackLength]Coordinate
	i := 0
	for _, r := range runs {
		for step := 0; step < r.n; step++ {
			cells[i] = Coordinate{X: r.x + r.dx*step, Y: r.y + r.dy*step}
			i++
		}
	}
	if i != TrackLength {
		panic(fmt.Sprintf("board: track has %d cells, want %d", i, TrackLength))
	}
	return cells
}

func buildHomes() [Players][PawnsPerPlayer]Coordinate {
	origins := [Players]Coordinate{
		Red:    {X: 2, Y: 2},
		Green:  {X: 11, Y: 2},
		Yellow: {X: 11, Y: 11},
		Blue:   {X: 2, Y: 11},
	}
	var homes [Players][PawnsPerPlayer]Coordinate
	for p, o := range origins {
		homes[p] = [PawnsPerPlayer]Coordinate{
			{X: o.X, Y: o.Y},
			{X: o.X + 1, Y: o.Y},
			{X: o.X, Y: o.Y + 1},
			{X: o.X + 1, Y: o.Y + 1},
		}
	}
	return homes
}

// buildFinalPaths lays each lane from the arm tip the colour turns at toward
// the centre.
func buildFinalPaths() [Players][FinalPathLength]Coordinate {
	type lane struct{ x, y, dx, dy int }
	lanes := [Players]lane{
		Red:    {1, 7, 1, 0},
		Green:  {7, 1, 0, 1},
		Yellow: {13, 7, -1, 0},
		Blue:   {7, 13, 0, -1},
	}
	var paths [Players][FinalPathLength]Coordinate
	for p, l := range lanes {
		for step := 0; step < FinalPathLength; step++ {
			paths[p][step] = Coordinate{X: l.x + l.dx*step, Y: l.y + l.dy*step}
		}
	}
	return paths
}

// HomeCell returns the home-yard cell of a pawn.
func HomeCell(player, pawn int) Coordinate {
	return homeCells[player][pawn]
}

// TrackCell returns the grid cell of a main-track position.
func TrackCell(position int) Coordinate {
	return trackCells[position]
}

// FinalPathCell returns the grid cell of a step on a colour's private lane.
func FinalPathCell(player, step int) Coordinate {
	return finalPathCells[player][step]
}

// StartPosition is the track cell a pawn enters when it leaves home.
func StartPosition(player int) int {
	return player * cellsPerQuadrant
}

// FinalPathEntryThreshold is the last track cell a pawn visits before it turns
// onto its colour's final path.
func FinalPathEntryThreshold(player int) int {
	return (StartPosition(player) + TrackLength - 2) % TrackLength
}

// DistanceToThreshold is how many forward steps separate a track position
// from the colour's final path entry threshold.
func DistanceToThreshold(player, position int) int {
	return (FinalPathEntryThreshold(player) - position + TrackLength) % TrackLength
}
