// Package pieceflow implements the Piece-Flow Coordinator (C4):
// routing a capture on one board into the partner board's holdings of
// the same color, per spec.md §4.4. Grounded on the teacher's
// internal/model/game.go executeMove, which appends to
// CapturedPieces.White/Black on every capture; generalized here from
// "track captures for display" to "deliver captures to the other
// board's pool."
package pieceflow

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
)

// Event is emitted once per delivered capture, for the chat side-channel
// and any observers, per spec.md §9's "explicit message passing over
// callbacks" note.
type Event struct {
	FromBoard bgtypes.BoardID
	ToBoard   bgtypes.BoardID
	Piece     position.DroppablePiece
	Color     chess.Color
}

// Coordinator tracks, per board, how many history entries have already
// been processed, so delivery is idempotent under repeated calls (the
// controller may invoke ProcessNewMoves after every applied move on
// either board).
type Coordinator struct {
	boards        map[bgtypes.BoardID]*position.BughousePosition
	lastProcessed map[bgtypes.BoardID]int
}

// New builds a coordinator over the two live boards.
func New(boardA, boardB *position.BughousePosition) *Coordinator {
	return &Coordinator{
		boards: map[bgtypes.BoardID]*position.BughousePosition{
			bgtypes.BoardA: boardA,
			bgtypes.BoardB: boardB,
		},
		lastProcessed: map[bgtypes.BoardID]int{bgtypes.BoardA: 0, bgtypes.BoardB: 0},
	}
}

func other(b bgtypes.BoardID) bgtypes.BoardID {
	if b == bgtypes.BoardA {
		return bgtypes.BoardB
	}
	return bgtypes.BoardA
}

// ProcessNewMoves delivers any unprocessed captures recorded on board's
// history into the partner board's holdings, returning the events
// emitted (in commit order). Per spec.md §5's ordering guarantee, this
// must be called — and must complete — before the next decision cycle
// on the partner board begins.
func (c *Coordinator) ProcessNewMoves(board bgtypes.BoardID) ([]Event, error) {
	bp, ok := c.boards[board]
	if !ok {
		return nil, fmt.Errorf("pieceflow: unknown board %v", board)
	}
	history := bp.History()
	from := c.lastProcessed[board]
	if from > len(history) {
		return nil, fmt.Errorf("pieceflow: last-processed index %d exceeds history length %d on board %v", from, len(history), board)
	}

	partner := c.boards[other(board)]
	var events []Event
	for i := from; i < len(history); i++ {
		rec := history[i]
		if rec.IsDrop || !rec.HasCapture {
			continue
		}
		partner.AddHoldings(rec.CapturedColor, rec.CapturedPiece)
		events = append(events, Event{
			FromBoard: board,
			ToBoard:   other(board),
			Piece:     rec.CapturedPiece,
			Color:     rec.CapturedColor,
		})
	}
	c.lastProcessed[board] = len(history)
	return events, nil
}
