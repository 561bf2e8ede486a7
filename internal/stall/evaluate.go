package stall

import (
	"context"
	"fmt"

	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

// longMateCutoff is spec.md §4.6.1 step 3: any mate score with absolute
// value greater than this is re-expressed as a ±longMateCentipawns
// positional value.
const longMateCutoff = 5

// longMateCentipawns is the sentinel magnitude spec.md §9 Open Question
// 2 discusses; it must sit comfortably above the lost_to_winning
// thresholds (300/200cp) so a collapsed long mate is never ambiguous
// with an ordinary positional evaluation.
const longMateCentipawns = 5000

// lostThresholdCP and winningThresholdCP are the lost_to_winning
// scenario's thresholds (spec.md §4.6.1 step 6): currently losing by
// more than lostThresholdCP, hypothetical flips to winning by more than
// winningThresholdCP.
const (
	lostThresholdCP    = 300
	winningThresholdCP = 200
)

// NormalizedScore is a UCI score re-expressed from the side-to-move's
// own perspective, with the long-mate cutoff already applied: positive
// means good for the side to move.
type NormalizedScore struct {
	Mate *int // non-nil only for |mate| <= longMateCutoff
	CP   int  // always populated; holds the ±longMateCentipawns sentinel when Mate is nil but the raw score was a long mate
}

// Normalize implements spec.md §4.6.1 steps 2-3. Mate scores from UCI
// are already side-to-move-relative and pass through unchanged;
// centipawn scores are White-relative and are flipped when White is to
// move, per the letter of the specification.
func Normalize(score uci.Score, turn chess.Color) NormalizedScore {
	if score.Mate != nil {
		m := *score.Mate
		if abs(m) > longMateCutoff {
			cp := longMateCentipawns
			if m < 0 {
				cp = -longMateCentipawns
			}
			return NormalizedScore{CP: cp}
		}
		mCopy := m
		return NormalizedScore{Mate: &mCopy}
	}
	cp := 0
	if score.CP != nil {
		cp = *score.CP
	}
	if turn == chess.White {
		cp = -cp
	}
	return NormalizedScore{CP: cp}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Decision is the should-stall evaluation's output, spec.md §4.6.1.
type Decision struct {
	Piece        position.DroppablePiece
	Scenario     bgtypes.StallReason
	ShouldStall  bool
	MateDistance *int
}

// Input bundles the should-stall evaluation's inputs (spec.md §4.6.1):
// the board the bot is about to move on, the bot's identity (for the
// diagonal-time rule), a live engine handle, and the clock bank.
type Input struct {
	Board   *position.BughousePosition
	Bot     bgtypes.BotIdentity
	Engine  Engine
	Clocks  UpOnTimer
	Decider *Decider
}

// UpOnTimer reports whether seat is currently up on time against its
// diagonal, per spec.md §4.6.1's diagonal-time rule. Satisfied by
// *internal/clock.Bank; abstracted here so stall tests don't need a
// real clock bank.
type UpOnTimer interface {
	UpOnTime(seat bgtypes.BotIdentity) bool
}

const evaluationDepth = 12

// Evaluate runs the should-stall evaluation procedure of spec.md
// §4.6.1, returning nil if no stall is warranted.
func Evaluate(ctx context.Context, in Input) (*Decision, error) {
	current, err := in.Engine.Evaluate(ctx, in.Board.FENWithHoldings(), evaluationDepth)
	if err != nil {
		return nil, fmt.Errorf("stall: current evaluation: %w", err)
	}
	turn := in.Board.Turn()
	normCurrent := Normalize(current, turn)

	// Step 4: never sit on a line where we are already mating in <= 5.
	if normCurrent.Mate != nil && *normCurrent.Mate > 0 {
		return nil, nil
	}

	upOnTime := in.Clocks.UpOnTime(in.Bot)

	// Step 5: mated in exactly 1 — probe every piece type for a save.
	if normCurrent.Mate != nil && *normCurrent.Mate == -1 {
		saved, ok, err := probeSavesMateIn1(ctx, in, turn)
		if err != nil {
			return nil, err
		}
		if ok {
			one := 1
			return &Decision{
				Piece:        saved,
				Scenario:     bgtypes.SavesMateIn1,
				ShouldStall:  upOnTime,
				MateDistance: &one,
			}, nil
		}
		return &Decision{
			Piece:       position.Queen,
			Scenario:    bgtypes.Mated,
			ShouldStall: upOnTime,
		}, nil
	}

	// Step 6: iterate candidate pieces in p,n,b,r,q order.
	for _, piece := range position.AllDroppablePieces {
		hypo, err := evaluateHypothetical(ctx, in, turn, piece)
		if err != nil {
			return nil, err
		}
		normHypo := Normalize(hypo, turn)

		scenario, matched := classify(normCurrent, normHypo, piece)
		if !matched {
			continue
		}
		if in.Decider.Draw(piece, scenario, upOnTime) {
			return &Decision{
				Piece:       piece,
				Scenario:    scenario,
				ShouldStall: true,
			}, nil
		}
		// spec.md §4.6.1 step 7 returns the *first matching piece* in
		// iteration order, win or lose the probability draw, and the
		// outcome of that single draw is should_stall. A losing draw on
		// the first match is a definitive "no stall", not a fallthrough
		// to the next piece.
		return &Decision{
			Piece:       piece,
			Scenario:    scenario,
			ShouldStall: false,
		}, nil
	}
	return nil, nil
}

// classify implements spec.md §4.6.1 step 6's three scenario rules.
func classify(current, hypo NormalizedScore, piece position.DroppablePiece) (bgtypes.StallReason, bool) {
	currentlyMatingUs := current.Mate != nil && *current.Mate > 0
	currentlyMated := current.Mate != nil && *current.Mate < 0
	hypoMatingUs := hypo.Mate != nil && *hypo.Mate > 0

	if !currentlyMatingUs && hypoMatingUs {
		return bgtypes.ForcesMate, true
	}
	if currentlyMated {
		hypoRemovesOrFlips := hypo.Mate == nil || *hypo.Mate > 0
		if hypoRemovesOrFlips {
			return bgtypes.SavesFromMate, true
		}
	}
	if piece == position.Pawn || piece == position.Knight || piece == position.Bishop {
		currentlyLosing := current.Mate == nil && current.CP < -lostThresholdCP
		hypoWinning := hypo.Mate == nil && hypo.CP > winningThresholdCP
		if currentlyLosing && hypoWinning {
			return bgtypes.LostToWinning, true
		}
	}
	return bgtypes.NoReason, false
}

// evaluateHypothetical clones the board, adds one unit of piece to the
// side-to-move's holdings, and re-queries the engine at the same depth,
// without mutating the live position.
func evaluateHypothetical(ctx context.Context, in Input, turn chess.Color, piece position.DroppablePiece) (uci.Score, error) {
	clone := in.Board.Clone()
	clone.AddHoldings(turn, piece)
	score, err := in.Engine.Evaluate(ctx, clone.FENWithHoldings(), evaluationDepth)
	if err != nil {
		return uci.Score{}, fmt.Errorf("stall: hypothetical evaluation (%v): %w", piece, err)
	}
	return score, nil
}

// probeSavesMateIn1 implements spec.md §4.6.1 step 5: try each piece
// type in order, returning the first that removes the mate-in-1 or
// flips it to us mating. ok is false if none save us (Pawn, index 0 in
// iteration order, is a valid save and must not be confused with "no
// save", hence the explicit ok rather than a zero-value sentinel).
func probeSavesMateIn1(ctx context.Context, in Input, turn chess.Color) (piece position.DroppablePiece, ok bool, err error) {
	for _, p := range position.AllDroppablePieces {
		hypo, err := evaluateHypothetical(ctx, in, turn, p)
		if err != nil {
			return 0, false, err
		}
		normHypo := Normalize(hypo, turn)
		removesOrFlips := normHypo.Mate == nil || *normHypo.Mate > 0
		if removesOrFlips {
			return p, true, nil
		}
	}
	return 0, false, nil
}
