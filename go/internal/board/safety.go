package board

import "fmt"

// SafeCellPolicy decides which track cells protect a pawn from capture.
type SafeCellPolicy string

const (
	// SafeStarts protects every colour's start cell and nothing else.
	SafeStarts SafeCellPolicy = "starts"
	// SafeStartsAndStars additionally protects the star cells eight steps
	// past each start.
	SafeStartsAndStars SafeCellPolicy = "starts_and_stars"
)

var starCells = [Players]int{8, 21, 34, 47}

// ParseSafeCellPolicy validates a configured policy name. An empty name
// selects SafeStarts.
func ParseSafeCellPolicy(name string) (SafeCellPolicy, error) {
	switch SafeCellPolicy(name) {
	case "", SafeStarts:
		return SafeStarts, nil
	case SafeStartsAndStars:
		return SafeStartsAndStars, nil
	default:
		return "", fmt.Errorf("unknown safe cell policy %q", name)
	}
}

// IsSafe reports whether a pawn standing on position cannot be captured.
func (p SafeCellPolicy) IsSafe(position int) bool {
	for player := 0; player < Players; player++ {
		if StartPosition(player) == position {
			return true
		}
	}
	if p != SafeStartsAndStars {
		return false
	}
	for _, star := range starCells {
		if star == position {
			return true
		}
	}
	return false
}
