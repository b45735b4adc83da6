package models

import (
	"fmt"

	"github.com/mcdev12/ludotime/go/internal/board"
)

// PawnZone defines which lifecycle zone a pawn is in.
type PawnZone string

const (
	PawnZoneHome      PawnZone = "HOME"
	PawnZoneTrack     PawnZone = "TRACK"
	PawnZoneFinalPath PawnZone = "FINAL_PATH"
	PawnZoneFinished  PawnZone = "FINISHED"
)

// Pawn is the tagged lifecycle state of one pawn. Position is meaningful only
// on the track and Step only on the final path.
type Pawn struct {
	Zone     PawnZone `json:"zone"`
	Position int      `json:"position,omitempty"`
	Step     int      `json:"step,omitempty"`
}

func HomePawn() Pawn { return Pawn{Zone: PawnZoneHome} }

func TrackPawn(position int) Pawn { return Pawn{Zone: PawnZoneTrack, Position: position} }

func FinalPathPawn(step int) Pawn { return Pawn{Zone: PawnZoneFinalPath, Step: step} }

func FinishedPawn() Pawn { return Pawn{Zone: PawnZoneFinished} }

func (p Pawn) InHome() bool { return p.Zone == PawnZoneHome }
func (p Pawn) OnTrack() bool { return p.Zone == PawnZoneTrack }
func (p Pawn) OnFinalPath() bool { return p.Zone == PawnZoneFinalPath }
func (p Pawn) Finished() bool { return p.Zone == PawnZoneFinished }

// Validate checks that the pawn is in exactly one zone with an in-range
// coordinate for that zone.
func (p Pawn) Validate() error {
	switch p.Zone {
	case PawnZoneHome, PawnZoneFinished:
		if p.Position != 0 || p.Step != 0 {
			return fmt.Errorf("%s pawn carries position %d step %d", p.Zone, p.Position, p.Step)
		}
	case PawnZoneTrack:
		if p.Position < 0 || p.Position >= board.TrackLength {
			return fmt.Errorf("track position %d out of range", p.Position)
		}
		if p.Step != 0 {
			return fmt.Errorf("track pawn carries step %d", p.Step)
		}
	case PawnZoneFinalPath:
		if p.Step < 0 || p.Step >= board.FinalPathLength {
			return fmt.Errorf("final path step %d out of range", p.Step)
		}
		if p.Position != 0 {
			return fmt.Errorf("final path pawn carries position %d", p.Position)
		}
	default:
		return fmt.Errorf("unknown pawn zone %q", p.Zone)
	}
	return nil
}

func (p Pawn) String() string {
	switch p.Zone {
	case PawnZoneTrack:
		return fmt.Sprintf("TRACK(%d)", p.Position)
	case PawnZoneFinalPath:
		return fmt.Sprintf("FINAL_PATH(%d)", p.Step)
	default:
		return string(p.Zone)
	}
}
