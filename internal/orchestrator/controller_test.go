package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/pieceflow"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
	"github.com/benbeisheim/bughouse-orchestrator/internal/stall"
	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

// fakeEngine is a stall.Engine stand-in so these tests never touch a
// real UCI subprocess: Evaluate replays a fixed sequence of scores (the
// last one repeats once exhausted) and BestMove*/variant-option calls
// return canned responses.
type fakeEngine struct {
	mu            sync.Mutex
	calls         int
	evalResponses []uci.Score
	evalErr       error
	bestMove      uci.BestMove
	bestMoveErr   error
}

func (f *fakeEngine) Evaluate(ctx context.Context, fen string, depth int) (uci.Score, error) {
	if f.evalErr != nil {
		return uci.Score{}, f.evalErr
	}
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.mu.Unlock()
	if len(f.evalResponses) == 0 {
		return uci.Score{}, nil
	}
	if i >= len(f.evalResponses) {
		i = len(f.evalResponses) - 1
	}
	return f.evalResponses[i], nil
}

func (f *fakeEngine) BestMove(ctx context.Context, fen string, timeMS int) (uci.BestMove, error) {
	return f.bestMove, f.bestMoveErr
}

func (f *fakeEngine) BestMoveWithSearchMoves(ctx context.Context, fen string, timeMS int, searchMoves []string) (uci.BestMove, error) {
	return f.bestMove, f.bestMoveErr
}

func (f *fakeEngine) SetVariantOption(ctx context.Context, name, value string) error { return nil }

func (f *fakeEngine) ResetVariantOption(ctx context.Context, name string) error { return nil }

func cpScore(cp int) uci.Score     { return uci.Score{CP: &cp} }
func mateScore(mate int) uci.Score { return uci.Score{Mate: &mate} }

// newTestController builds a Controller the way Initialize would,
// minus the pool.Acquire calls: boards, coordinator and all four stall
// machines are wired directly, and c.engines is left for each test to
// populate with fakes. This mirrors enginepool's own pool_test.go,
// which pokes a Pool's private bookkeeping directly rather than
// spawning a real engine subprocess.
func newTestController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c := New(nil, zerolog.Nop(), cfg)
	c.boards = map[bgtypes.BoardID]*position.BughousePosition{
		bgtypes.BoardA: position.NewBughousePosition(),
		bgtypes.BoardB: position.NewBughousePosition(),
	}
	c.coord = pieceflow.New(c.boards[bgtypes.BoardA], c.boards[bgtypes.BoardB])
	for _, seat := range []bgtypes.BotIdentity{bgtypes.Bot1, bgtypes.Partner, bgtypes.Bot2} {
		c.machines[seat] = stall.NewMachine(seat)
	}
	c.machines[bgtypes.Human] = stall.NewMachine(bgtypes.Human)
	c.status = bgtypes.InProgress
	return c
}

func playMove(t *testing.T, bp *position.BughousePosition, uciMove string) {
	t.Helper()
	from, ok := position.ParseSquare(uciMove[0:2])
	if !ok {
		t.Fatalf("bad from-square in %q", uciMove)
	}
	to, ok := position.ParseSquare(uciMove[2:4])
	if !ok {
		t.Fatalf("bad to-square in %q", uciMove)
	}
	if _, err := bp.ApplyNormal(from, to, position.Pawn, false); err != nil {
		t.Fatalf("applying %q: %v", uciMove, err)
	}
}

// newFoolsMateController sets board A to the position just after
// 1.f3 e5 2.g4 Qh4# — a real, forced two-move checkmate — so
// handleTermination's true-checkmate probe has a genuine chess-library
// mate to evaluate.
func newFoolsMateController(t *testing.T) *Controller {
	t.Helper()
	cfg := Config{HumanColor: chess.White, PartnerColor: chess.Black, ClockAllowance: time.Minute, Seed: 1}
	c := newTestController(t, cfg)
	bp := c.boardFor(bgtypes.BoardA)
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		playMove(t, bp, mv)
	}
	if !bp.IsCheckmate() {
		t.Fatalf("setup: expected fool's mate position to be checkmate")
	}
	return c
}

// TestPlayBotTurnRoutesPartnerStallRequestToHumanMachine is the direct
// regression test for the nil c.machines[bgtypes.Human] bug: Partner's
// should-stall evaluation forces a stall with an auto-request, and
// playBotTurn must deliver that request to the human's machine instead
// of panicking on a nil map lookup.
func TestPlayBotTurnRoutesPartnerStallRequestToHumanMachine(t *testing.T) {
	cfg := Config{
		HumanColor:     chess.Black,
		PartnerColor:   chess.White,
		ClockAllowance: time.Minute,
		MoveTimeMS:     100,
		Seed:           1,
		Probabilities:  stall.ProbabilityTable{position.Pawn: {bgtypes.ForcesMate: 1.0}},
	}
	c := newTestController(t, cfg)
	c.engines[bgtypes.Partner] = &fakeEngine{evalResponses: []uci.Score{cpScore(0), mateScore(3)}}

	// Give Partner a diagonal-time advantage over Bot1 so should-stall's
	// upOnTime gate passes.
	c.clocks.For(bgtypes.Bot1).Start()
	time.Sleep(5 * time.Millisecond)
	c.clocks.For(bgtypes.Bot1).Stop()

	if err := c.playBotTurn(context.Background(), bgtypes.Partner); err != nil {
		t.Fatalf("playBotTurn: %v", err)
	}

	if !c.machines[bgtypes.Partner].IsSitting() {
		t.Fatalf("expected partner to enter sitting on a forced-mate piece")
	}
	req := c.machines[bgtypes.Human].InboundRequest()
	if req == nil {
		t.Fatalf("expected partner's outbound request to reach the human's machine")
	}
	if req.RequestedPiece != position.Pawn || req.Reason != bgtypes.ForcesMate {
		t.Fatalf("unexpected inbound request %+v", req)
	}
}

// TestCheckFulfillmentClearsPartnerStallOnHumanCapture exercises
// spec.md's Partner<->Human fulfillment path end to end: once the
// human's capture satisfies Partner's outbound request, Partner's
// machine must exit Sitting.
func TestCheckFulfillmentClearsPartnerStallOnHumanCapture(t *testing.T) {
	cfg := Config{HumanColor: chess.Black, PartnerColor: chess.White, ClockAllowance: time.Minute, Seed: 1}
	c := newTestController(t, cfg)

	c.machines[bgtypes.Partner].EnterSitting(position.Pawn, bgtypes.ForcesMate, false)
	req := c.machines[bgtypes.Partner].OutboundRequest()
	if req == nil {
		t.Fatalf("setup: expected partner to have an outbound request")
	}
	c.machines[bgtypes.Human].SetInboundRequest(req)

	events := []pieceflow.Event{{
		FromBoard: bgtypes.BoardA,
		ToBoard:   bgtypes.BoardB,
		Piece:     position.Pawn,
		Color:     chess.Black,
	}}
	c.checkFulfillment(bgtypes.Human, events)

	if c.machines[bgtypes.Partner].IsSitting() {
		t.Fatalf("expected partner's stall to clear once the human's capture fulfills it")
	}
	if c.machines[bgtypes.Human].InboundRequest() != nil {
		t.Fatalf("expected the human's inbound request to be cleared once fulfilled")
	}
}

// TestPlayBotTurnExitsSittingOnTimeAbandonment covers spec.md's
// diagonal-time abandonment: a non-player-induced sit with no time
// advantage must resume play on the very next decision cycle.
func TestPlayBotTurnExitsSittingOnTimeAbandonment(t *testing.T) {
	cfg := Config{HumanColor: chess.Black, PartnerColor: chess.White, ClockAllowance: time.Minute, MoveTimeMS: 100, Seed: 1}
	c := newTestController(t, cfg)
	c.machines[bgtypes.Partner].EnterSitting(position.Pawn, bgtypes.SavesFromMate, false)
	c.engines[bgtypes.Partner] = &fakeEngine{
		evalResponses: []uci.Score{cpScore(0)},
		bestMove:      uci.BestMove{Move: "g1f3"},
	}

	if err := c.playBotTurn(context.Background(), bgtypes.Partner); err != nil {
		t.Fatalf("playBotTurn: %v", err)
	}

	if c.machines[bgtypes.Partner].IsSitting() {
		t.Fatalf("expected partner to resume play once its diagonal-time advantage lapses")
	}
	if got := len(c.boardFor(bgtypes.BoardB).History()); got != 1 {
		t.Fatalf("history length = %d, want 1", got)
	}
}

// TestHandleTerminationConfirmsTrueCheckmateWithNoQueenDropAnswer
// covers spec.md's true-checkmate verification: when the mated side's
// engine can find no legal response even with a free queen in hand,
// the chess-library mate stands and the game ends.
func TestHandleTerminationConfirmsTrueCheckmateWithNoQueenDropAnswer(t *testing.T) {
	c := newFoolsMateController(t)
	c.engines[bgtypes.Bot1] = &fakeEngine{bestMove: uci.BestMove{Move: "0000"}}

	if !c.handleTermination(context.Background(), bgtypes.BoardA) {
		t.Fatalf("expected handleTermination to end the game")
	}
	if c.Status() != bgtypes.PlayerLost {
		t.Fatalf("status = %v, want PlayerLost", c.Status())
	}
}

// TestHandleTerminationRejectsLibraryMateAnsweredByQueenDrop covers the
// other side of the same verification: a legal queen-drop response
// means the chess library's mate call was only a "holdable" mate, and
// the game must continue.
func TestHandleTerminationRejectsLibraryMateAnsweredByQueenDrop(t *testing.T) {
	c := newFoolsMateController(t)
	c.engines[bgtypes.Bot1] = &fakeEngine{bestMove: uci.BestMove{Move: "e2e3"}}

	if c.handleTermination(context.Background(), bgtypes.BoardA) {
		t.Fatalf("expected a legal queen-drop answer to reject the chess library's mate call")
	}
	if c.Status() != bgtypes.InProgress {
		t.Fatalf("status = %v, want InProgress", c.Status())
	}
}

// TestSendSitAndSendGo covers spec.md §4.6.2's player-forced Sit/Go
// transitions.
func TestSendSitAndSendGo(t *testing.T) {
	cfg := Config{HumanColor: chess.White, PartnerColor: chess.Black, ClockAllowance: time.Minute, Seed: 1}
	c := newTestController(t, cfg)

	if err := c.SendSit(); err != nil {
		t.Fatalf("SendSit: %v", err)
	}
	if !c.machines[bgtypes.Partner].IsSitting() {
		t.Fatalf("expected partner to be sitting after SendSit")
	}
	rec := c.machines[bgtypes.Partner].Record()
	if rec == nil || !rec.PlayerInduced || rec.ReasonTag != bgtypes.PlayerCommand {
		t.Fatalf("unexpected stall record %+v", rec)
	}

	if err := c.SendSit(); err == nil {
		t.Fatalf("expected a second SendSit while already sitting to fail")
	}

	if err := c.SendGo(); err != nil {
		t.Fatalf("SendGo: %v", err)
	}
	if c.machines[bgtypes.Partner].IsSitting() {
		t.Fatalf("expected partner to resume play after SendGo")
	}
	if !c.machines[bgtypes.Partner].ConsumeForcedLatch() {
		t.Fatalf("expected SendGo to set the one-turn forced-to-go latch")
	}
}
