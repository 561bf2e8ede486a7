package orchestrator

import (
	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
)

// BoardView is the read-only snapshot of one board the relay needs to
// render a client-facing game state, per spec.md §6's control-plane
// surface.
type BoardView struct {
	FEN        string
	Turn       string
	Holdings   position.Holdings
	Evaluation string
}

// StallView is the read-only snapshot of one bot's stall state.
type StallView struct {
	Seat    bgtypes.BotIdentity
	Sitting bool
	Piece   position.DroppablePiece
	HasPiece bool
	Reason  bgtypes.StallReason
}

// HumanColor reports which color the human plays on board A.
func (c *Controller) HumanColor() chess.Color { return c.cfg.HumanColor }

// PartnerColor reports which color Partner plays on board B.
func (c *Controller) PartnerColor() chess.Color { return c.cfg.PartnerColor }

// BoardSnapshot returns the current client-facing view of board.
func (c *Controller) BoardSnapshot(board bgtypes.BoardID) BoardView {
	bp := c.boardFor(board)
	turn := "white"
	if bp.Turn() == chess.Black {
		turn = "black"
	}
	return BoardView{
		FEN:        bp.FENWithHoldings(),
		Turn:       turn,
		Holdings:   bp.Holdings(),
		Evaluation: c.Evaluation(board),
	}
}

// History returns every move and drop applied to board so far, in
// order, for persistence to the move log (spec.md §6).
func (c *Controller) History(board bgtypes.BoardID) []position.MoveRecord {
	return c.boardFor(board).History()
}

// StallSnapshot returns the current stall state of every bot seat.
func (c *Controller) StallSnapshot() []StallView {
	seats := []bgtypes.BotIdentity{bgtypes.Partner, bgtypes.Bot1, bgtypes.Bot2}
	out := make([]StallView, 0, len(seats))
	for _, seat := range seats {
		m, ok := c.machines[seat]
		if !ok {
			continue
		}
		v := StallView{Seat: seat, Sitting: m.IsSitting()}
		if rec := m.Record(); rec != nil {
			v.Piece, v.HasPiece, v.Reason = rec.RequestedPiece, true, rec.ReasonTag
		}
		out = append(out, v)
	}
	return out
}
