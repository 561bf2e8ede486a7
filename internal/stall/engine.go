// Package stall implements the Stalling & Partner-Request State Machine
// (C6), spec.md §4.6: the novel subsystem governing whether a bot sits
// out a turn, what it asks its teammate for, and how it biases its own
// move selection toward a teammate's request. No single pack file
// implements anything like this (spec.md §2 calls it out as the novel
// subsystem); it is structured as small mutex-guarded state per bot
// with explicit transition methods, in the spirit of the teacher's
// internal/model/game.go MakeMove's validate→mutate→side-effect shape.
package stall

import (
	"context"

	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

// Engine is the narrow surface the stall machine needs from a borrowed
// engine handle: full-FEN evaluation/search plus the scoped variant
// option hooks used by move-biasing's forcing-line mode (spec.md
// §4.6.4 step 3). The orchestrator adapts a *uci.Transport (via the
// engine pool) to this interface; every call here re-sends the given
// FEN, which is a full bughouse-FEN snapshot, so no incremental move
// list is needed.
type Engine interface {
	Evaluate(ctx context.Context, fenWithHoldings string, depth int) (uci.Score, error)
	BestMove(ctx context.Context, fenWithHoldings string, timeMS int) (uci.BestMove, error)
	BestMoveWithSearchMoves(ctx context.Context, fenWithHoldings string, timeMS int, searchMoves []string) (uci.BestMove, error)

	// SetVariantOption and ResetVariantOption scope a transient UCI
	// option override to the caller: SetVariantOption must be undone by
	// a matching ResetVariantOption on every exit path, per spec.md §5's
	// "callers must reset overrides before release."
	SetVariantOption(ctx context.Context, name, value string) error
	ResetVariantOption(ctx context.Context, name string) error
}
