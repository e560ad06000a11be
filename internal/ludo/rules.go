// Package ludo implements the move rules: which pieces may move for a rolled
// value, and what applying a move does to the board (entry, advance, capture,
// finish). It operates on entities and holds no state of its own.
package ludo

import (
	"errors"
	"fmt"

	"github.com/playludo/ludo-backend/internal/apperror"
	"github.com/playludo/ludo-backend/internal/entity"
)

var ErrInvalidPiece = errors.New("invalid piece index")

// Move is one legal option for a rolled value.
type Move struct {
	Piece int
	From  entity.Location
	To    entity.Location
}

// MoveResult describes the effect of an applied move.
type MoveResult struct {
	Piece    int
	From     entity.Location
	To       entity.Location
	Captured *entity.PieceRef
	Finished bool
	Won      bool
}

// CandidateMoves enumerates every legal move for the color and dice value.
// An empty result means the turn must pass.
func CandidateMoves(board entity.Board, color entity.Color, dice int) []Move {
	var moves []Move

	for index := 0; index < entity.PiecesPerColor; index++ {
		from := board.PieceLocation(color, index)

		if from.IsHome() {
			// leaving home requires an exact 6 and lands on the start cell
			if dice == 6 {
				moves = append(moves, Move{
					Piece: index,
					From:  from,
					To:    entity.PathLocation(color.StartCell()),
				})
			}
			continue
		}

		if to, ok := board.Destination(color, index, dice); ok {
			moves = append(moves, Move{Piece: index, From: from, To: to})
		}
	}

	return moves
}

// HasLegalMove reports whether the color can use the dice value at all.
func HasLegalMove(board entity.Board, color entity.Color, dice int) bool {
	return len(CandidateMoves(board, color, dice)) > 0
}

// Apply validates and executes a move for the rolled value. On any illegal
// move it returns an error and leaves the board untouched.
//
// Capture rule: landing on a non-safe track cell occupied by exactly one
// opposing piece sends that piece home. Own pieces stack. Safe cells never
// capture, and neither does a cell already held by two or more opponents.
func Apply(board entity.Board, color entity.Color, piece, dice int) (*MoveResult, error) {
	if piece < 0 || piece >= entity.PiecesPerColor {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPiece, piece)
	}

	from := board.PieceLocation(color, piece)

	var to entity.Location
	switch {
	case from.IsHome():
		if dice != 6 {
			return nil, fmt.Errorf("%w: need a 6 to leave home, rolled %d", apperror.ErrIllegalMove, dice)
		}
		to = entity.PathLocation(color.StartCell())
	case from.IsFinished():
		return nil, fmt.Errorf("%w: piece %d already finished", apperror.ErrIllegalMove, piece)
	default:
		dest, ok := board.Destination(color, piece, dice)
		if !ok {
			return nil, fmt.Errorf("%w: piece %d would overshoot the finish", apperror.ErrIllegalMove, piece)
		}
		to = dest
	}

	captured := resolveCapture(board, color, to)

	if from.IsHome() {
		if err := board.EnterPath(color, piece); err != nil {
			return nil, err
		}
	} else {
		if _, err := board.Advance(color, piece, dice); err != nil {
			return nil, err
		}
	}

	if captured != nil {
		board.PlaceAtHome(captured.Color, captured.Index)
	}

	return &MoveResult{
		Piece:    piece,
		From:     from,
		To:       to,
		Captured: captured,
		Finished: to.IsFinished(),
		Won:      board.FinishedCount(color) == entity.PiecesPerColor,
	}, nil
}

func resolveCapture(board entity.Board, mover entity.Color, to entity.Location) *entity.PieceRef {
	if !to.IsPath() || entity.IsSafeCell(to.Cell) {
		return nil
	}

	var opponents []entity.PieceRef
	for _, occupant := range board.OccupantsAt(to.Cell) {
		if occupant.Color != mover {
			opponents = append(opponents, occupant)
		}
	}

	if len(opponents) != 1 {
		return nil
	}

	return &opponents[0]
}
