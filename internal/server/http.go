// Package server exposes the game service over HTTP and streams published
// events to WebSocket observers. It is a thin adapter: every request maps
// onto one service operation and every domain error kind onto one status
// code.
package server

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chessfree/chessboard-server-go/internal/board"
	"github.com/chessfree/chessboard-server-go/internal/game"
)

// Server is the HTTP adapter over the game service.
type Server struct {
	svc    *game.Service
	feed   *EventFeed
	logger *zap.Logger
}

// New creates the HTTP adapter. feed may be nil; the /ws route is only
// registered when a feed is present.
func New(svc *game.Service, feed *EventFeed, logger *zap.Logger) *Server {
	return &Server{
		svc:    svc,
		feed:   feed,
		logger: logger,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/pieces", s.addPiece)
		api.GET("/board", s.getBoard)
		api.POST("/board/move", s.movePiece)
		api.POST("/pieces/:id/move", s.movePieceByID)
		api.DELETE("/pieces/:id", s.removePieceByID)
		api.GET("/pieces/:id/last-position", s.lastPosition)
	}

	if s.feed != nil {
		r.GET("/ws", s.feed.Handle)
	}
	return r
}

type positionJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type pieceJSON struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type addPieceRequest struct {
	Type string `json:"type" binding:"required"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	ID   string `json:"id"`
}

func (s *Server) addPiece(c *gin.Context) {
	var req addPieceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pos := board.Position{X: req.X, Y: req.Y}
	pc, err := s.svc.AddPiece(c.Request.Context(), board.PieceType(req.Type), pos, req.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pieceJSON{ID: pc.ID, Type: string(pc.Type), X: pos.X, Y: pos.Y})
}

func (s *Server) getBoard(c *gin.Context) {
	snap := s.svc.Board()

	pieces := make([]pieceJSON, 0, len(snap.Pieces))
	for pos, pc := range snap.Pieces {
		pieces = append(pieces, pieceJSON{ID: pc.ID, Type: string(pc.Type), X: pos.X, Y: pos.Y})
	}
	// Map iteration order is random; keep the response stable.
	sort.Slice(pieces, func(i, j int) bool {
		if pieces[i].X != pieces[j].X {
			return pieces[i].X < pieces[j].X
		}
		return pieces[i].Y < pieces[j].Y
	})
	c.JSON(http.StatusOK, gin.H{"pieces": pieces})
}

type moveRequest struct {
	From positionJSON `json:"from"`
	To   positionJSON `json:"to"`
}

func (s *Server) movePiece(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from := board.Position{X: req.From.X, Y: req.From.Y}
	to := board.Position{X: req.To.X, Y: req.To.Y}
	if err := s.svc.MovePiece(c.Request.Context(), from, to); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "moved"})
}

func (s *Server) movePieceByID(c *gin.Context) {
	var req positionJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	to := board.Position{X: req.X, Y: req.Y}
	if err := s.svc.MovePieceByID(c.Request.Context(), c.Param("id"), to); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "moved"})
}

func (s *Server) removePieceByID(c *gin.Context) {
	pos, err := s.svc.RemovePieceByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, positionJSON{X: pos.X, Y: pos.Y})
}

func (s *Server) lastPosition(c *gin.Context) {
	pos, err := s.svc.LastPositionOfRemovedPiece(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, positionJSON{X: pos.X, Y: pos.Y})
}

func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, board.ErrInvalidPosition),
		errors.Is(err, board.ErrInvalidPieceType),
		errors.Is(err, board.ErrInvalidMove):
		status = http.StatusBadRequest
	case errors.Is(err, board.ErrPieceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, board.ErrPositionOccupied):
		status = http.StatusConflict
	default:
		s.logger.Error("unexpected error", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
