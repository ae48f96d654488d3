package board

import (
	"fmt"
	"sync"
)

// Board holds the current occupancy of the 8x8 grid together with the
// registry of removed piece identifiers. All compound operations run
// under a single lock so that no caller observes or produces a state
// between a validation read and its mutation.
type Board struct {
	mu      sync.RWMutex
	pieces  map[Position]Piece
	removed map[string]Position // identifier -> last occupied position
}

// New creates an empty board with an empty removed registry.
func New() *Board {
	return &Board{
		pieces:  make(map[Position]Piece),
		removed: make(map[string]Position),
	}
}

// Snapshot is a consistent copy of the board state for external reads.
type Snapshot struct {
	Pieces  map[Position]Piece
	Removed map[string]Position
}

// Snapshot returns a deep copy of the occupancy map and the removed
// registry taken at a single point in time.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{
		Pieces:  make(map[Position]Piece, len(b.pieces)),
		Removed: make(map[string]Position, len(b.removed)),
	}
	for pos, pc := range b.pieces {
		snap.Pieces[pos] = pc
	}
	for id, pos := range b.removed {
		snap.Removed[id] = pos
	}
	return snap
}

// PieceAt returns the piece occupying pos, if any.
func (b *Board) PieceAt(pos Position) (Piece, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pc, ok := b.pieces[pos]
	return pc, ok
}

// Place puts a piece on an empty square. It fails with ErrPositionOccupied
// if the square holds a piece and with ErrInvalidPieceType if the piece's
// identifier was already removed once; removed identifiers can never
// re-enter the board.
func (b *Board) Place(pos Position, pc Piece) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if occupant, ok := b.pieces[pos]; ok {
		return fmt.Errorf("%w: %s holds piece %s", ErrPositionOccupied, pos, occupant.ID)
	}
	if last, ok := b.removed[pc.ID]; ok {
		return fmt.Errorf("%w: identifier %s was removed at %s", ErrInvalidPieceType, pc.ID, last)
	}
	b.pieces[pos] = pc
	return nil
}

// Move relocates the piece at from to an empty, reachable square. It fails
// with ErrPieceNotFound if from is empty, ErrPositionOccupied if to holds a
// piece, and ErrInvalidMove if the geometry is wrong for the piece type or
// an intermediate square is occupied.
func (b *Board) Move(from, to Position) (Piece, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pc, ok := b.pieces[from]
	if !ok {
		return Piece{}, fmt.Errorf("%w: no piece at %s", ErrPieceNotFound, from)
	}
	if err := b.relocateLocked(pc, from, to); err != nil {
		return Piece{}, err
	}
	return pc, nil
}

// MoveByID relocates the piece carrying the given identifier. It fails with
// ErrPieceNotFound if the identifier is not on the board, then with the same
// kinds as Move.
func (b *Board) MoveByID(id string, to Position) (Piece, Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, ok := b.locateLocked(id)
	if !ok {
		return Piece{}, Position{}, fmt.Errorf("%w: identifier %s is not on the board", ErrPieceNotFound, id)
	}
	pc := b.pieces[from]
	if err := b.relocateLocked(pc, from, to); err != nil {
		return Piece{}, Position{}, err
	}
	return pc, from, nil
}

// Remove deletes the piece carrying the given identifier from the board and
// records its last position in the removed registry. The transition is
// one-way: the identifier can never be placed again.
func (b *Board) Remove(id string) (Piece, Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.locateLocked(id)
	if !ok {
		return Piece{}, Position{}, fmt.Errorf("%w: identifier %s is not on the board", ErrPieceNotFound, id)
	}
	pc := b.pieces[pos]
	delete(b.pieces, pos)
	b.removed[id] = pos
	return pc, pos, nil
}

// LastRemovedPosition returns the square a removed piece occupied at the
// moment of its removal.
func (b *Board) LastRemovedPosition(id string) (Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	pos, ok := b.removed[id]
	if !ok {
		return Position{}, fmt.Errorf("%w: identifier %s is not in the removed registry", ErrPieceNotFound, id)
	}
	return pos, nil
}

// relocateLocked validates occupancy, geometry and path under the held lock
// and performs the relocation. Destination occupancy is checked before
// geometry so that a blocked target reports ErrPositionOccupied, not
// ErrInvalidMove.
func (b *Board) relocateLocked(pc Piece, from, to Position) error {
	if occupant, ok := b.pieces[to]; ok {
		return fmt.Errorf("%w: %s holds piece %s", ErrPositionOccupied, to, occupant.ID)
	}
	path, ok := movePath(pc.Type, from, to)
	if !ok || !to.Valid() {
		return fmt.Errorf("%w: %s cannot move %s -> %s", ErrInvalidMove, pc.Type, from, to)
	}
	for _, square := range path {
		if blocker, occupied := b.pieces[square]; occupied {
			return fmt.Errorf("%w: path %s -> %s blocked at %s by piece %s",
				ErrInvalidMove, from, to, square, blocker.ID)
		}
	}
	delete(b.pieces, from)
	b.pieces[to] = pc
	return nil
}

func (b *Board) locateLocked(id string) (Position, bool) {
	for pos, pc := range b.pieces {
		if pc.ID == id {
			return pos, true
		}
	}
	return Position{}, false
}

// Replay operations: trusted, unchecked applies used only while rebuilding
// state from the event log. They skip the occupancy and removed-identifier
// checks entirely; the log is the authority.

// ReplayInsert places a piece without validation.
func (b *Board) ReplayInsert(pos Position, pc Piece) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pieces[pos] = pc
}

// ReplayRelocate deletes from and inserts the piece at to without validation.
func (b *Board) ReplayRelocate(from, to Position, pc Piece) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.pieces, from)
	b.pieces[to] = pc
}

// ReplayDelete clears a square without validation. The removed registry is
// not repopulated from the log: tombstones are known only to the process
// that performed the removal.
func (b *Board) ReplayDelete(pos Position) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.pieces, pos)
}
