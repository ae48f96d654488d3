package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingPeriod   = 30 * time.Second
	wsFeedBuffer   = 256
)

// EventFeed forwards every published domain event to connected WebSocket
// observers. It taps the same NATS subjects the publisher writes to, so
// observers see exactly the wire payloads of the log.
type EventFeed struct {
	nc       *nats.Conn
	subjects string
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewEventFeed creates a feed over the given subject space
// (e.g. "chessboard.events.>").
func NewEventFeed(nc *nats.Conn, subjects string, logger *zap.Logger) *EventFeed {
	return &EventFeed{
		nc:       nc,
		subjects: subjects,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the connection and streams events until the client
// disconnects.
func (f *EventFeed) Handle(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	msgs := make(chan *nats.Msg, wsFeedBuffer)
	sub, err := f.nc.ChanSubscribe(f.subjects, msgs)
	if err != nil {
		f.logger.Error("event feed subscribe failed", zap.Error(err))
		return
	}
	defer sub.Unsubscribe()

	f.logger.Info("event feed client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain reads so close/ping control frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case msg := <-msgs:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				f.logger.Debug("event feed client dropped", zap.Error(err))
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
