// Package game orchestrates validation, board mutation and event emission
// for the public board operations, and rebuilds board state from the event
// log on recovery.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chessfree/chessboard-server-go/internal/board"
	"github.com/chessfree/chessboard-server-go/internal/event"
)

const (
	// publishTimeout bounds a single background publish attempt.
	publishTimeout = 5 * time.Second
	// publishQueueSize is the backlog of committed but not yet published
	// events. When it overflows, events are dropped with a warning; a
	// publish failure never fails the operation that committed the
	// mutation.
	publishQueueSize = 1024
)

// EventPublisher delivers a domain event to the log, keyed by the event's
// piece identifier. The service never blocks an operation on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, ev event.Event) error
}

// EventSource yields the committed event stream in commit order, starting
// from the earliest available offset, until the context is canceled.
// CaughtUp closes once every event committed before the subscription was
// established has been delivered.
type EventSource interface {
	Consume(ctx context.Context, handler func(event.Event) error) error
	CaughtUp() <-chan struct{}
}

// Service validates requests against the current board state, performs the
// mutation and emits the corresponding event. Operations are serialized:
// validation, mutation and event enqueueing happen inside one critical
// section, so the queue carries events in commit order. Publication itself
// runs on a background goroutine and its failures never roll back a
// committed mutation.
type Service struct {
	mu        sync.Mutex
	board     *board.Board
	publisher EventPublisher
	logger    *zap.Logger

	queue chan event.Event
	done  chan struct{}
}

// NewService creates a game service over the given board and publisher and
// starts its publish loop.
func NewService(b *board.Board, publisher EventPublisher, logger *zap.Logger) *Service {
	s := &Service{
		board:     b,
		publisher: publisher,
		logger:    logger,
		queue:     make(chan event.Event, publishQueueSize),
		done:      make(chan struct{}),
	}
	go s.publishLoop()
	return s
}

// Close stops the publish loop. Events still queued are published before
// the loop exits.
func (s *Service) Close() {
	close(s.queue)
	<-s.done
}

// AddPiece places a new piece of the given type. When id is empty a fresh
// identifier is generated. An identifier that was removed once is rejected:
// identifiers are single-use across their add/remove lifecycle.
func (s *Service) AddPiece(ctx context.Context, t board.PieceType, pos board.Position, id string) (board.Piece, error) {
	if !pos.Valid() {
		return board.Piece{}, fmt.Errorf("%w: %s is outside the board", board.ErrInvalidPosition, pos)
	}
	if !t.Valid() {
		return board.Piece{}, fmt.Errorf("%w: unsupported type %q", board.ErrInvalidPieceType, t)
	}
	if id == "" {
		id = uuid.NewString()
	}
	pc := board.Piece{ID: id, Type: t}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.board.Place(pos, pc); err != nil {
		return board.Piece{}, err
	}

	s.logger.Info("piece added",
		zap.String("piece_id", pc.ID),
		zap.String("piece_type", string(pc.Type)),
		zap.String("position", pos.String()),
	)
	s.emit(event.Added(pc, pos))
	return pc, nil
}

// MovePiece relocates the piece at from to to, subject to the piece type's
// movement rule and path clearance.
func (s *Service) MovePiece(ctx context.Context, from, to board.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, err := s.board.Move(from, to)
	if err != nil {
		return err
	}

	s.logger.Info("piece moved",
		zap.String("piece_id", pc.ID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	s.emit(event.Moved(pc, from, to))
	return nil
}

// MovePieceByID relocates the piece carrying the given identifier to to.
func (s *Service) MovePieceByID(ctx context.Context, id string, to board.Position) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %s is outside the board", board.ErrInvalidPosition, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pc, from, err := s.board.MoveByID(id, to)
	if err != nil {
		return err
	}

	s.logger.Info("piece moved",
		zap.String("piece_id", pc.ID),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	s.emit(event.Moved(pc, from, to))
	return nil
}

// RemovePieceByID deletes the piece carrying the given identifier and
// returns the square it occupied. The identifier is tombstoned and can
// never be added again.
func (s *Service) RemovePieceByID(ctx context.Context, id string) (board.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, pos, err := s.board.Remove(id)
	if err != nil {
		return board.Position{}, err
	}

	s.logger.Info("piece removed",
		zap.String("piece_id", pc.ID),
		zap.String("position", pos.String()),
	)
	s.emit(event.Removed(pc, pos))
	return pos, nil
}

// LastPositionOfRemovedPiece returns the square a removed piece occupied
// immediately before its removal.
func (s *Service) LastPositionOfRemovedPiece(id string) (board.Position, error) {
	return s.board.LastRemovedPosition(id)
}

// Board returns a consistent snapshot of the current occupancy and the
// removed registry. Reads do not take the operation lock; they observe the
// state at some consistent point in time.
func (s *Service) Board() board.Snapshot {
	return s.board.Snapshot()
}

// emit queues the event for publication. Called with the operation lock
// held, so queue order is commit order. A full queue drops the event with
// a warning rather than blocking the operation.
func (s *Service) emit(ev event.Event) {
	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("publish queue full, event dropped",
			zap.String("kind", string(ev.Kind)),
			zap.String("piece_id", ev.PieceID),
		)
	}
}

func (s *Service) publishLoop() {
	defer close(s.done)

	for ev := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := s.publisher.Publish(ctx, ev)
		cancel()
		if err != nil {
			s.logger.Warn("event publish failed",
				zap.String("kind", string(ev.Kind)),
				zap.String("piece_id", ev.PieceID),
				zap.Error(err),
			)
		}
	}
}
