package board

import "errors"

// Domain failure kinds. Callers classify with errors.Is; the concrete
// errors returned by Board operations wrap these with position and
// identifier context.
var (
	// ErrInvalidPosition marks a coordinate outside 1..8 on either axis.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrPositionOccupied marks a destination or target square that
	// already holds a piece. Captures do not exist: an occupied
	// destination is illegal for every piece type.
	ErrPositionOccupied = errors.New("position occupied")

	// ErrInvalidPieceType marks an unsupported piece type or an attempt
	// to add a piece under an identifier that was already removed.
	// Identifiers are single-use across their add/remove lifecycle.
	ErrInvalidPieceType = errors.New("invalid piece type")

	// ErrPieceNotFound marks an identifier or source square that resolves
	// to no piece, on the board or in the removed registry.
	ErrPieceNotFound = errors.New("piece not found")

	// ErrInvalidMove marks a move whose geometry is wrong for the piece
	// type or whose path is blocked.
	ErrInvalidMove = errors.New("invalid move")
)
