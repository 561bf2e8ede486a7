package stall

import (
	"context"
	"fmt"

	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

func opposite(c chess.Color) chess.Color {
	if c == chess.White {
		return chess.Black
	}
	return chess.White
}

// ForcingLineMode selects which of spec.md §4.6.4 step 3's three
// interchangeable biasing implementations this build uses. The
// specification allows any; we pick one at build time via this
// constant rather than a runtime switch, per its own phrasing
// ("chosen at build time").
type ForcingLineMode int

const (
	// ForcingLineHighValue overrides the requested piece's material
	// value via a transient UCI option, biasing the engine's own search
	// toward winning it without restricting the move list. Chosen over
	// royal-piece and proximity because it needs only the option-setting
	// hook C1 already exposes (SetOptions), not a second variant-file
	// format or multi-PV parsing neither the UCI transport nor the
	// engines observed in the pack implement.
	ForcingLineHighValue ForcingLineMode = iota
)

// highValueOptionName is the UCI option the transient override writes;
// the concrete value is engine-specific configuration, out of this
// package's scope per spec.md §6's "variant file" external interface.
const highValueOptionName = "BughouseHighValuePiece"

// BiasedSelection is the outcome of move-biasing: the move to play and
// whether it was selected because it specifically serves the inbound
// request.
type BiasedSelection struct {
	Move             uci.BestMove
	RequestSatisfied bool
}

// SelectMove implements spec.md §4.6.4: given a board, a pending
// inbound request (nil if none), and a live engine handle, choose the
// move this bot should play this turn.
func SelectMove(ctx context.Context, engine Engine, bp *position.BughousePosition, request *Request, timeMS int) (BiasedSelection, error) {
	fen := bp.FENWithHoldings()

	// Step 1: a mate-in-<=5 is always played outright, request or not.
	eval, err := engine.Evaluate(ctx, fen, evaluationDepth)
	if err != nil {
		return BiasedSelection{}, fmt.Errorf("stall: bias evaluation: %w", err)
	}
	norm := Normalize(eval, bp.Turn())
	if norm.Mate != nil && *norm.Mate > 0 && *norm.Mate <= longMateCutoff {
		mv, err := engine.BestMove(ctx, fen, timeMS)
		if err != nil {
			return BiasedSelection{}, fmt.Errorf("stall: mating best move: %w", err)
		}
		return BiasedSelection{Move: mv}, nil
	}

	if request == nil {
		mv, err := engine.BestMove(ctx, fen, timeMS)
		if err != nil {
			return BiasedSelection{}, fmt.Errorf("stall: ordinary best move: %w", err)
		}
		return BiasedSelection{Move: mv}, nil
	}

	opponent := opposite(bp.Turn())

	// Step 2: restrict the search root to captures of a satisfying piece.
	var candidates []candidate
	for _, target := range squaresHolding(bp, opponent, equivalentPieces(request.RequestedPiece)) {
		candidates = append(candidates, reachers(bp, target, bp.Turn())...)
	}
	if len(candidates) > 0 {
		strs := make([]string, len(candidates))
		for i, c := range candidates {
			strs[i] = c.uci()
		}
		mv, err := engine.BestMoveWithSearchMoves(ctx, fen, timeMS, strs)
		if err != nil {
			return BiasedSelection{}, fmt.Errorf("stall: restricted-search best move: %w", err)
		}
		if !uci.IsNoMove(mv.Move) && capturesSatisfyingPiece(bp, mv.Move, request.RequestedPiece) {
			return BiasedSelection{Move: mv, RequestSatisfied: true}, nil
		}
	}

	// Step 3: forcing-line mode, scoped so the override is always reverted.
	mv, satisfied, err := forcingLineMove(ctx, engine, bp, request, fen, timeMS)
	if err != nil {
		return BiasedSelection{}, err
	}
	if satisfied {
		return BiasedSelection{Move: mv, RequestSatisfied: true}, nil
	}

	// Step 4: fall back to the ordinary best move.
	plain, err := engine.BestMove(ctx, fen, timeMS)
	if err != nil {
		return BiasedSelection{}, fmt.Errorf("stall: fallback best move: %w", err)
	}
	return BiasedSelection{Move: plain}, nil
}

func forcingLineMove(ctx context.Context, engine Engine, bp *position.BughousePosition, request *Request, fen string, timeMS int) (uci.BestMove, bool, error) {
	value := "99999"
	if err := engine.SetVariantOption(ctx, highValueOptionName, request.RequestedPiece.String()+":"+value); err != nil {
		return uci.BestMove{}, false, fmt.Errorf("stall: setting forcing-line override: %w", err)
	}
	defer func() {
		_ = engine.ResetVariantOption(ctx, highValueOptionName)
	}()

	mv, err := engine.BestMove(ctx, fen, timeMS)
	if err != nil {
		return uci.BestMove{}, false, fmt.Errorf("stall: forcing-line best move: %w", err)
	}
	if uci.IsNoMove(mv.Move) {
		return mv, false, nil
	}
	return mv, capturesSatisfyingPiece(bp, mv.Move, request.RequestedPiece), nil
}

// capturesSatisfyingPiece reports whether the UCI move string captures
// a piece on bp that satisfies a request for requested.
func capturesSatisfyingPiece(bp *position.BughousePosition, moveStr string, requested position.DroppablePiece) bool {
	if len(moveStr) < 4 {
		return false
	}
	to, ok := position.ParseSquare(moveStr[2:4])
	if !ok {
		return false
	}
	kind, _, occupied := bp.PieceAt(to)
	if !occupied {
		return false
	}
	actual, ok := position.DroppablePieceFromChessType(kind)
	if !ok {
		return false
	}
	return Fulfills(requested, actual)
}

func squaresHolding(bp *position.BughousePosition, color chess.Color, pieces []position.DroppablePiece) []position.Square {
	var out []position.Square
	for file := 0; file < 8; file++ {
		for rank := 0; rank < 8; rank++ {
			sq := position.Square{File: file, Rank: rank}
			kind, c, ok := bp.PieceAt(sq)
			if !ok || c != color {
				continue
			}
			dp, ok := position.DroppablePieceFromChessType(kind)
			if !ok {
				continue
			}
			for _, want := range pieces {
				if dp == want {
					out = append(out, sq)
					break
				}
			}
		}
	}
	return out
}
