package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chessfree/chessboard-server-go/internal/event"
)

// JetStream publishes and consumes domain events through a NATS JetStream
// stream. Events are published to <prefix>.<piece-id>, so the per-subject
// ordering NATS offers applies per piece, and the stream sequence is the
// commit order replay relies on.
type JetStream struct {
	js     nats.JetStreamContext
	stream string
	prefix string
	logger *zap.Logger

	caughtUp     chan struct{}
	caughtUpOnce sync.Once
}

// NewJetStream binds to the named stream, creating it when missing.
func NewJetStream(nc *nats.Conn, streamName, subjectPrefix string, logger *zap.Logger) (*JetStream, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to open jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(streamName); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("failed to look up stream %s: %w", streamName, err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{subjectPrefix + ".>"},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
		logger.Info("created event stream",
			zap.String("stream", streamName),
			zap.String("subjects", subjectPrefix+".>"),
		)
	}

	return &JetStream{
		js:       js,
		stream:   streamName,
		prefix:   subjectPrefix,
		logger:   logger,
		caughtUp: make(chan struct{}),
	}, nil
}

// Publish writes the event to the stream, keyed by piece identifier.
func (s *JetStream) Publish(ctx context.Context, ev event.Event) error {
	payload, err := ev.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", s.prefix, ev.Key())
	if _, err := s.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Consume delivers every event in the stream in commit order through an
// ordered consumer, starting from the earliest offset, then follows the
// live tail until the context is canceled. A decode or handler error ends
// consumption.
func (s *JetStream) Consume(ctx context.Context, handler func(event.Event) error) error {
	failed := make(chan error, 1)
	fail := func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	sub, err := s.js.Subscribe(s.prefix+".>", func(msg *nats.Msg) {
		ev, err := event.Unmarshal(msg.Data)
		if err != nil {
			fail(err)
			return
		}
		if err := handler(ev); err != nil {
			fail(err)
			return
		}
		if meta, err := msg.Metadata(); err == nil && meta.NumPending == 0 {
			s.markCaughtUp()
		}
	}, nats.OrderedConsumer(), nats.DeliverAll())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.prefix+".>", err)
	}
	defer sub.Unsubscribe()

	// An empty stream delivers nothing, so signal catch-up directly.
	if info, err := s.js.StreamInfo(s.stream); err == nil && info.State.Msgs == 0 {
		s.markCaughtUp()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-failed:
		return err
	}
}

// CaughtUp closes once the consumer has delivered every event that was
// already in the stream when consumption started.
func (s *JetStream) CaughtUp() <-chan struct{} {
	return s.caughtUp
}

func (s *JetStream) markCaughtUp() {
	s.caughtUpOnce.Do(func() { close(s.caughtUp) })
}
