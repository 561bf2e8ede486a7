package orchestrator

import (
	"context"

	"github.com/benbeisheim/bughouse-orchestrator/internal/enginepool"
	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

// engineAdapter presents a borrowed engine handle as the narrow
// stall.Engine surface, re-issuing "position fen ..." with the caller's
// full bughouse-FEN snapshot before every query since the stall package
// never tracks incremental move lists itself.
type engineAdapter struct {
	handle *enginepool.Handle
}

func (a *engineAdapter) transport() *uci.Transport { return a.handle.Transport }

func (a *engineAdapter) Evaluate(ctx context.Context, fenWithHoldings string, depth int) (uci.Score, error) {
	if err := a.transport().SetPosition(ctx, fenWithHoldings, nil); err != nil {
		return uci.Score{}, err
	}
	return a.transport().Evaluation(ctx, depth)
}

func (a *engineAdapter) BestMove(ctx context.Context, fenWithHoldings string, timeMS int) (uci.BestMove, error) {
	if err := a.transport().SetPosition(ctx, fenWithHoldings, nil); err != nil {
		return uci.BestMove{}, err
	}
	return a.transport().BestMove(ctx, timeMS)
}

func (a *engineAdapter) BestMoveWithSearchMoves(ctx context.Context, fenWithHoldings string, timeMS int, searchMoves []string) (uci.BestMove, error) {
	if err := a.transport().SetPosition(ctx, fenWithHoldings, nil); err != nil {
		return uci.BestMove{}, err
	}
	return a.transport().BestMoveWithSearchMoves(ctx, timeMS, searchMoves)
}

func (a *engineAdapter) SetVariantOption(ctx context.Context, name, value string) error {
	return a.transport().SetOptions(ctx, map[string]string{name: value})
}

func (a *engineAdapter) ResetVariantOption(ctx context.Context, name string) error {
	return a.transport().SetOptions(ctx, map[string]string{name: "baseline"})
}
