package entity

import (
	"fmt"

	"github.com/playludo/ludo-backend/internal/apperror"
)

// PieceRef identifies a piece by seat and index.
type PieceRef struct {
	Color Color `json:"color"`
	Index int   `json:"index"`
}

// ColorState holds the locations of one color's 4 pieces.
type ColorState struct {
	Pieces [PiecesPerColor]Location `json:"pieces"`
}

// Board maps every color to its piece locations. All four colors are always
// present; seats without a player simply keep their pieces at home.
type Board map[Color]*ColorState

func NewBoard() Board {
	board := make(Board, len(AllColors))
	for _, color := range AllColors {
		state := &ColorState{}
		for i := range state.Pieces {
			state.Pieces[i] = HomeLocation()
		}
		board[color] = state
	}
	return board
}

func (that Board) PieceLocation(color Color, index int) Location {
	return that[color].Pieces[index]
}

func (that Board) PlaceAtHome(color Color, index int) {
	that[color].Pieces[index] = HomeLocation()
}

// EnterPath moves a home piece onto its color's start cell.
func (that Board) EnterPath(color Color, index int) error {
	if !that[color].Pieces[index].IsHome() {
		return fmt.Errorf("%w: piece %d of %s is not at home", apperror.ErrIllegalMove, index, color)
	}

	that[color].Pieces[index] = PathLocation(color.StartCell())

	return nil
}

// Traveled converts a location into the distance covered from the color's
// start cell: 0..50 on the track, 51..55 in the stretch, 56 when finished.
func (that Board) Traveled(color Color, loc Location) int {
	switch loc.Kind {
	case LocationPath:
		return (loc.Cell - color.StartCell() + TrackCells) % TrackCells
	case LocationStretch:
		return TrackDistance + loc.Step
	case LocationFinished:
		return FinishDistance
	default:
		return 0
	}
}

// Destination computes where a piece would land after the given steps, without
// mutating anything. ok is false when the piece cannot move that far: it is at
// home, already finished, or the steps overshoot the finish.
func (that Board) Destination(color Color, index, steps int) (Location, bool) {
	current := that[color].Pieces[index]
	if current.IsHome() || current.IsFinished() {
		return Location{}, false
	}

	traveled := that.Traveled(color, current) + steps
	switch {
	case traveled <= TrackDistance-1:
		return PathLocation((color.StartCell() + traveled) % TrackCells), true
	case traveled < FinishDistance:
		return StretchLocation(traveled - TrackDistance), true
	case traveled == FinishDistance:
		return FinishedLocation(), true
	default:
		// overshoot past the last stretch cell is illegal, not clamped
		return Location{}, false
	}
}

// Advance moves a path or stretch piece forward. It fails without mutation
// when the move would overshoot the finish.
func (that Board) Advance(color Color, index, steps int) (Location, error) {
	dest, ok := that.Destination(color, index, steps)
	if !ok {
		return Location{}, fmt.Errorf("%w: piece %d of %s cannot advance %d", apperror.ErrIllegalMove, index, color, steps)
	}

	that[color].Pieces[index] = dest

	return dest, nil
}

// OccupantsAt lists every piece currently standing on a track cell. Stretch
// cells are private and never shared, so only path locations are considered.
func (that Board) OccupantsAt(cell int) []PieceRef {
	var occupants []PieceRef
	for _, color := range AllColors {
		for index, loc := range that[color].Pieces {
			if loc.IsPath() && loc.Cell == cell {
				occupants = append(occupants, PieceRef{Color: color, Index: index})
			}
		}
	}
	return occupants
}

func (that Board) FinishedCount(color Color) int {
	count := 0
	for _, loc := range that[color].Pieces {
		if loc.IsFinished() {
			count++
		}
	}
	return count
}

// Clone returns a deep copy; snapshots must never alias room-owned state.
func (that Board) Clone() Board {
	clone := make(Board, len(that))
	for color, state := range that {
		copied := *state
		clone[color] = &copied
	}
	return clone
}
