package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chessfree/chessboard-server-go/internal/board"
	"github.com/chessfree/chessboard-server-go/internal/event"
	"github.com/chessfree/chessboard-server-go/internal/stream"
)

func newTestService() (*Service, *stream.Memory) {
	log := stream.NewMemory()
	svc := NewService(board.New(), log, zap.NewNop())
	return svc, log
}

func waitForEvents(t *testing.T, log *stream.Memory, n int) []event.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(log.Events()) >= n
	}, 2*time.Second, 10*time.Millisecond, "expected %d published events", n)
	return log.Events()
}

func TestAddPieceEveryPosition(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for x := board.MinCoord; x <= board.MaxCoord; x++ {
		for y := board.MinCoord; y <= board.MaxCoord; y++ {
			pos := board.Position{X: x, Y: y}
			pc, err := svc.AddPiece(ctx, board.Rook, pos, fmt.Sprintf("r-%d-%d", x, y))
			require.NoError(t, err, "add at %s", pos)

			got, ok := svc.Board().Pieces[pos]
			require.True(t, ok, "expected a piece at %s", pos)
			assert.Equal(t, pc.ID, got.ID)
		}
	}
	assert.Len(t, svc.Board().Pieces, 64)
}

func TestAddPieceOutOfBounds(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, pos := range []board.Position{{X: 0, Y: 4}, {X: 4, Y: 0}, {X: 9, Y: 4}, {X: 4, Y: 9}} {
		_, err := svc.AddPiece(ctx, board.Rook, pos, "")
		assert.ErrorIs(t, err, board.ErrInvalidPosition, "position %s", pos)
	}
}

func TestAddPieceOccupied(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	pos := board.Position{X: 2, Y: 2}

	_, err := svc.AddPiece(ctx, board.Rook, pos, "r1")
	require.NoError(t, err)

	_, err = svc.AddPiece(ctx, board.Rook, pos, "r2")
	assert.ErrorIs(t, err, board.ErrPositionOccupied)
	_, err = svc.AddPiece(ctx, board.Bishop, pos, "b1")
	assert.ErrorIs(t, err, board.ErrPositionOccupied)
}

func TestAddPieceUnsupportedType(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddPiece(context.Background(), board.PieceType("QUEEN"), board.Position{X: 1, Y: 1}, "")
	assert.ErrorIs(t, err, board.ErrInvalidPieceType)
}

func TestAddPieceGeneratesIdentifier(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 1, Y: 1}, "")
	require.NoError(t, err)
	second, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 2, Y: 1}, "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRemovedIdentifierNeverReadded(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 3, Y: 3}, "r1")
	require.NoError(t, err)
	_, err = svc.RemovePieceByID(ctx, "r1")
	require.NoError(t, err)

	// Reuse is rejected even at a different position.
	_, err = svc.AddPiece(ctx, board.Rook, board.Position{X: 6, Y: 6}, "r1")
	assert.ErrorIs(t, err, board.ErrInvalidPieceType)
}

func TestRookMove(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 7, Y: 1}, "r1")
	require.NoError(t, err)

	require.NoError(t, svc.MovePiece(ctx, board.Position{X: 7, Y: 1}, board.Position{X: 7, Y: 7}))

	snap := svc.Board()
	_, stillThere := snap.Pieces[board.Position{X: 7, Y: 1}]
	assert.False(t, stillThere, "source square should be vacated")
	moved, ok := snap.Pieces[board.Position{X: 7, Y: 7}]
	require.True(t, ok)
	assert.Equal(t, "r1", moved.ID)
}

func TestBishopMove(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Bishop, board.Position{X: 6, Y: 1}, "b1")
	require.NoError(t, err)

	require.NoError(t, svc.MovePiece(ctx, board.Position{X: 6, Y: 1}, board.Position{X: 7, Y: 2}))

	// A non-diagonal target is always illegal for a bishop.
	err = svc.MovePiece(ctx, board.Position{X: 7, Y: 2}, board.Position{X: 7, Y: 6})
	assert.ErrorIs(t, err, board.ErrInvalidMove)
}

func TestMovePieceByID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 4, Y: 4}, "r1")
	require.NoError(t, err)

	require.NoError(t, svc.MovePieceByID(ctx, "r1", board.Position{X: 4, Y: 8}))
	moved, ok := svc.Board().Pieces[board.Position{X: 4, Y: 8}]
	require.True(t, ok)
	assert.Equal(t, "r1", moved.ID)

	err = svc.MovePieceByID(ctx, "r1", board.Position{X: 0, Y: 5})
	assert.ErrorIs(t, err, board.ErrInvalidPosition)
}

func TestUnknownIdentifier(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	err := svc.MovePieceByID(ctx, "ghost", board.Position{X: 4, Y: 4})
	assert.ErrorIs(t, err, board.ErrPieceNotFound)

	_, err = svc.RemovePieceByID(ctx, "ghost")
	assert.ErrorIs(t, err, board.ErrPieceNotFound)

	_, err = svc.LastPositionOfRemovedPiece("ghost")
	assert.ErrorIs(t, err, board.ErrPieceNotFound)
}

func TestRemovedPieceRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Bishop, board.Position{X: 2, Y: 2}, "b1")
	require.NoError(t, err)
	require.NoError(t, svc.MovePieceByID(ctx, "b1", board.Position{X: 5, Y: 5}))

	removedAt, err := svc.RemovePieceByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, board.Position{X: 5, Y: 5}, removedAt)

	last, err := svc.LastPositionOfRemovedPiece("b1")
	require.NoError(t, err)
	assert.Equal(t, removedAt, last)
}

func TestBoardReadIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 1, Y: 1}, "r1")
	require.NoError(t, err)

	first := svc.Board()
	second := svc.Board()
	assert.Equal(t, first, second)
}

func TestEventEmission(t *testing.T) {
	svc, log := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 1, Y: 1}, "r1")
	require.NoError(t, err)
	require.NoError(t, svc.MovePieceByID(ctx, "r1", board.Position{X: 1, Y: 5}))
	_, err = svc.RemovePieceByID(ctx, "r1")
	require.NoError(t, err)

	events := waitForEvents(t, log, 3)
	require.Len(t, events, 3)

	kinds := map[event.Kind]bool{}
	for _, ev := range events {
		kinds[ev.Kind] = true
		assert.Equal(t, "r1", ev.Key())
		assert.Equal(t, board.Rook, ev.Type)
	}
	assert.True(t, kinds[event.PieceAdded])
	assert.True(t, kinds[event.PieceMoved])
	assert.True(t, kinds[event.PieceRemoved])
}

func TestFailedMoveEmitsNothing(t *testing.T) {
	svc, log := newTestService()
	ctx := context.Background()

	_, err := svc.AddPiece(ctx, board.Rook, board.Position{X: 1, Y: 1}, "r1")
	require.NoError(t, err)
	waitForEvents(t, log, 1)

	err = svc.MovePiece(ctx, board.Position{X: 1, Y: 1}, board.Position{X: 2, Y: 3})
	require.ErrorIs(t, err, board.ErrInvalidMove)

	// Close flushes the publish queue; only the add is on the log.
	svc.Close()
	assert.Len(t, log.Events(), 1)
}
