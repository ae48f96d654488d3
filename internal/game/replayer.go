package game

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chessfree/chessboard-server-go/internal/board"
	"github.com/chessfree/chessboard-server-go/internal/event"
)

// Replayer rebuilds board state by consuming the event stream from the
// earliest offset and applying each event through the board's unchecked
// replay operations. The log is trusted: no business rule is re-validated.
// Transport and decode errors end the replay task; they do not affect
// requests already served from the rebuilt state.
type Replayer struct {
	board  *board.Board
	source EventSource
	logger *zap.Logger
}

// NewReplayer creates a replayer applying events from source to b.
func NewReplayer(b *board.Board, source EventSource, logger *zap.Logger) *Replayer {
	return &Replayer{
		board:  b,
		source: source,
		logger: logger,
	}
}

// Run consumes the stream until the context is canceled or the source
// fails. It blocks; callers run it on its own goroutine.
func (r *Replayer) Run(ctx context.Context) error {
	r.logger.Info("replay started")

	err := r.source.Consume(ctx, r.apply)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("replay failed", zap.Error(err))
		return err
	}

	r.logger.Info("replay stopped")
	return nil
}

// CaughtUp closes once every event committed before the subscription was
// established has been applied. Bootstrap waits on it before accepting
// live traffic.
func (r *Replayer) CaughtUp() <-chan struct{} {
	return r.source.CaughtUp()
}

func (r *Replayer) apply(ev event.Event) error {
	switch ev.Kind {
	case event.PieceAdded:
		r.board.ReplayInsert(*ev.Position, board.Piece{ID: ev.PieceID, Type: ev.Type})
	case event.PieceMoved:
		r.board.ReplayRelocate(*ev.From, *ev.To, board.Piece{ID: ev.PieceID, Type: ev.Type})
	case event.PieceRemoved:
		// The removed registry is not rebuilt from the log; see DESIGN.md.
		r.board.ReplayDelete(*ev.Position)
	default:
		return fmt.Errorf("cannot replay event of kind %q", ev.Kind)
	}

	r.logger.Debug("event replayed",
		zap.String("kind", string(ev.Kind)),
		zap.String("piece_id", ev.PieceID),
	)
	return nil
}
