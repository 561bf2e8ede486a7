package orchestrator

import (
	"context"
	"fmt"

	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

// verifierSeat is the seat whose borrowed handle probes true checkmate
// on board, since any engine attached to that board can answer "is
// there a legal queen drop" without needing a dedicated handle.
func verifierSeat(board bgtypes.BoardID) bgtypes.BotIdentity {
	if board == bgtypes.BoardA {
		return bgtypes.Bot1
	}
	return bgtypes.Partner
}

// handleTermination checks board for checkmate/stalemate and, on a
// checkmate, runs the true-checkmate verification of spec.md §4.5: a
// mate reported by the chess library can be a "holdable" mate that a
// same-side queen drop would answer, so before declaring the game over
// the mated side's holdings are temporarily given a queen and the board
// is re-probed for a legal response.
func (c *Controller) handleTermination(ctx context.Context, board bgtypes.BoardID) bool {
	bp := c.boardFor(board)

	if bp.IsStalemate() {
		c.finish(bgtypes.Draw)
		return true
	}
	if !bp.IsCheckmate() {
		return false
	}

	matedColor := bp.Turn()
	trueMate, err := c.verifyTrueCheckmate(ctx, board, bp, matedColor)
	if err != nil {
		c.log.Warn().Err(err).Str("board", board.String()).Msg("true-checkmate verification failed, trusting chess library's call")
		trueMate = true
	}
	if !trueMate {
		return false
	}

	c.finish(statusForCheckmate(board, matedColor, c.cfg.HumanColor, c.cfg.PartnerColor))
	return true
}

// verifyTrueCheckmate temporarily adds a queen to the mated side's
// holdings on a clone and asks the board's engine for a best move; if
// the engine returns a legal (non-"no move") response, the mate was
// only a chess-library mate, not a true bughouse mate, since the real
// holdings may or may not contain a queen but the position is
// structurally answerable by one. The check plays out on a clone so the
// live position's holdings are never speculatively mutated.
func (c *Controller) verifyTrueCheckmate(ctx context.Context, board bgtypes.BoardID, bp *position.BughousePosition, matedColor chess.Color) (bool, error) {
	probe := bp.Clone()
	probe.AddHoldings(matedColor, position.Queen)

	engine := c.engineFor(verifierSeat(board))
	mv, err := engine.BestMove(ctx, probe.FENWithHoldings(), 500)
	if err != nil {
		return false, fmt.Errorf("orchestrator: true-checkmate probe: %w", err)
	}
	return uci.IsNoMove(mv.Move), nil
}

func statusForCheckmate(board bgtypes.BoardID, matedColor, humanColor, partnerColor chess.Color) bgtypes.GameStatus {
	if board == bgtypes.BoardA {
		if matedColor == humanColor {
			return bgtypes.PlayerLost
		}
		return bgtypes.PlayerWon
	}
	if matedColor == partnerColor {
		return bgtypes.PartnerLost
	}
	return bgtypes.PartnerWon
}

func (c *Controller) finish(status bgtypes.GameStatus) {
	c.mu.Lock()
	if c.status.IsTerminal() {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()
	for _, seat := range []bgtypes.BotIdentity{bgtypes.Human, bgtypes.Partner, bgtypes.Bot1, bgtypes.Bot2} {
		c.clocks.For(seat).Stop()
	}
	close(c.stopLoop)
	c.cancelLoopCtx()
}

// annotate queries the board's position at evaluation depth through
// seat's engine and records a human-readable evaluation string
// (spec.md §4.5's "evaluation annotation") from the raw, non-normalized
// score: a mate distance is read relative to the side to move, and a
// centipawn score is printed as reported (White-relative, per uci.Score).
func (c *Controller) annotate(ctx context.Context, board bgtypes.BoardID, seat bgtypes.BotIdentity) {
	bp := c.boardFor(board)
	engine := c.engineFor(seat)
	score, err := engine.Evaluate(ctx, bp.FENWithHoldings(), evaluationDepthForAnnotation)
	if err != nil {
		c.mu.Lock()
		c.evals[board] = "evaluation unavailable"
		c.mu.Unlock()
		return
	}
	text := formatEvaluation(score, bp.Turn())
	c.mu.Lock()
	c.evals[board] = text
	c.mu.Unlock()
}

const evaluationDepthForAnnotation = 12

func formatEvaluation(score uci.Score, turn chess.Color) string {
	mover := "White"
	if turn == chess.Black {
		mover = "Black"
	}
	if score.Mate != nil {
		n := *score.Mate
		if n >= 0 {
			return fmt.Sprintf("%s mates in %d", mover, n)
		}
		return fmt.Sprintf("%s is mated in %d", mover, -n)
	}
	if score.CP != nil {
		return fmt.Sprintf("%+.1f", float64(*score.CP)/10)
	}
	return "evaluation unavailable"
}
