// Package event defines the domain events published for every committed
// board mutation. Events are immutable facts; replaying them in commit
// order rebuilds the board.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/chessfree/chessboard-server-go/internal/board"
)

// Kind identifies the state transition an event records.
type Kind string

const (
	PieceAdded   Kind = "PIECE_ADDED"
	PieceMoved   Kind = "PIECE_MOVED"
	PieceRemoved Kind = "PIECE_REMOVED"
)

// Event is a committed state transition of a single piece.
//
// Position carries the affected square for PieceAdded and PieceRemoved;
// From and To carry the relocation for PieceMoved.
type Event struct {
	Kind     Kind            `json:"kind"`
	PieceID  string          `json:"piece_id"`
	Type     board.PieceType `json:"piece_type"`
	Position *board.Position `json:"position,omitempty"`
	From     *board.Position `json:"from,omitempty"`
	To       *board.Position `json:"to,omitempty"`
}

// Added builds a PieceAdded event.
func Added(pc board.Piece, pos board.Position) Event {
	return Event{Kind: PieceAdded, PieceID: pc.ID, Type: pc.Type, Position: &pos}
}

// Moved builds a PieceMoved event.
func Moved(pc board.Piece, from, to board.Position) Event {
	return Event{Kind: PieceMoved, PieceID: pc.ID, Type: pc.Type, From: &from, To: &to}
}

// Removed builds a PieceRemoved event.
func Removed(pc board.Piece, pos board.Position) Event {
	return Event{Kind: PieceRemoved, PieceID: pc.ID, Type: pc.Type, Position: &pos}
}

// Key is the ordering key of the event. All events about one piece share a
// key, so a transport with per-key ordering keeps a piece's history in order.
func (e Event) Key() string {
	return e.PieceID
}

// Marshal encodes the event as its JSON wire form.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes an event from its JSON wire form and rejects payloads
// missing the fields replay needs.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	switch e.Kind {
	case PieceAdded, PieceRemoved:
		if e.Position == nil {
			return Event{}, fmt.Errorf("event %s for piece %s has no position", e.Kind, e.PieceID)
		}
	case PieceMoved:
		if e.From == nil || e.To == nil {
			return Event{}, fmt.Errorf("event %s for piece %s has no from/to", e.Kind, e.PieceID)
		}
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return e, nil
}
