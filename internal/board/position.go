package board

import "fmt"

// Board dimensions. Coordinates are 1-based on both axes.
const (
	MinCoord = 1
	MaxCoord = 8
)

// Position is a square on the board.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Valid reports whether the position lies within the 8x8 board.
func (p Position) Valid() bool {
	return p.X >= MinCoord && p.X <= MaxCoord && p.Y >= MinCoord && p.Y <= MaxCoord
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// PieceType determines the movement rule of a piece.
type PieceType string

const (
	Rook   PieceType = "ROOK"
	Bishop PieceType = "BISHOP"
)

// Valid reports whether the type is part of the supported set.
func (t PieceType) Valid() bool {
	switch t {
	case Rook, Bishop:
		return true
	default:
		return false
	}
}

// Piece is a uniquely identified occupant of a single square.
type Piece struct {
	ID   string    `json:"id"`
	Type PieceType `json:"type"`
}

// movePath returns the strictly intermediate squares of the move from->to
// when the move's geometry is legal for the piece type, and ok=false
// otherwise. Rooks move along ranks and files, bishops along non-degenerate
// diagonals. Occupancy of the returned squares is the caller's concern.
func movePath(t PieceType, from, to Position) (path []Position, ok bool) {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if dx == 0 && dy == 0 {
		return nil, false
	}

	switch t {
	case Rook:
		if dx != 0 && dy != 0 {
			return nil, false
		}
	case Bishop:
		if abs(dx) != abs(dy) {
			return nil, false
		}
	default:
		return nil, false
	}

	sx := sign(dx)
	sy := sign(dy)
	for x, y := from.X+sx, from.Y+sy; x != to.X || y != to.Y; x, y = x+sx, y+sy {
		path = append(path, Position{X: x, Y: y})
	}
	return path, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
