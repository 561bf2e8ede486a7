// Package orchestrator implements the Game Controller (C5): it owns
// both boards, the piece-flow coordinator, the three borrowed engine
// handles, and the four clocks, and drives the partner-board loop and
// each bot's decision cycle. Grounded on the teacher's
// controller→service→model layering (internal/controller/
// game_controller.go → internal/service/game_service.go →
// internal/model/game.go's MakeMove validate/execute/clock-flip
// sequence), restructured so the model layer drives bughouse rules via
// internal/position and internal/pieceflow instead of the teacher's
// hand-rolled board geometry.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgerrors"
	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/chat"
	"github.com/benbeisheim/bughouse-orchestrator/internal/clock"
	"github.com/benbeisheim/bughouse-orchestrator/internal/enginepool"
	"github.com/benbeisheim/bughouse-orchestrator/internal/pieceflow"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
	"github.com/benbeisheim/bughouse-orchestrator/internal/stall"
	"github.com/benbeisheim/bughouse-orchestrator/internal/uci"
)

// variantOptionName is the UCI_Variant-style option every borrowed
// engine is configured with at acquire time (spec.md §4.5 "configure
// all three engines with the bughouse variant option").
const variantOptionName = "UCI_Variant"
const bughouseVariantValue = "bughouse"

// Config configures a new game.
type Config struct {
	HumanColor    chess.Color   // the color the human plays on board A
	PartnerColor  chess.Color   // the color Partner plays on board B
	ClockAllowance time.Duration
	MoveTimeMS    int
	VariantPath   string // spec.md §6's external variant file, optional
	Probabilities stall.ProbabilityTable
	Seed          int64
	ChatSink      chat.Sink
}

func (c Config) moveTimeMS() int {
	if c.MoveTimeMS > 0 {
		return c.MoveTimeMS
	}
	return 1000
}

// Controller is one game's orchestrator.
type Controller struct {
	log  zerolog.Logger
	pool *enginepool.Pool
	cfg  Config

	mu       sync.Mutex
	status   bgtypes.GameStatus
	paused   bool
	boards   map[bgtypes.BoardID]*position.BughousePosition
	coord    *pieceflow.Coordinator
	clocks   *clock.Bank
	chat     *chat.Emitter
	decider  *stall.Decider
	machines map[bgtypes.BotIdentity]*stall.Machine
	handles  map[bgtypes.BotIdentity]*enginepool.Handle
	engines  map[bgtypes.BotIdentity]stall.Engine
	evals    map[bgtypes.BoardID]string

	started     bool
	loopStarted bool
	startSignal chan struct{}
	stopLoop    chan struct{}
	loopDone    chan struct{}

	loopCtx       context.Context
	cancelLoopCtx context.CancelFunc
}

// partnerLoopInterval is the "short delay to avoid engine thrash"
// between iterations of the partner-board loop, per spec.md §4.5.
const partnerLoopInterval = 150 * time.Millisecond

// partnerLoopPauseInterval is how often a paused loop wakes to check
// whether it has been resumed.
const partnerLoopPauseInterval = 200 * time.Millisecond

// New builds a Controller in NotStarted status; Initialize must be
// called before Start.
func New(pool *enginepool.Pool, log zerolog.Logger, cfg Config) *Controller {
	rng := rand.New(rand.NewSource(cfg.Seed))
	loopCtx, cancelLoopCtx := context.WithCancel(context.Background())
	return &Controller{
		log:           log,
		pool:          pool,
		cfg:           cfg,
		status:        bgtypes.NotStarted,
		clocks:        clock.NewBank(cfg.ClockAllowance, log),
		chat:          chat.New(cfg.ChatSink, nil),
		decider:       stall.NewDecider(cfg.Probabilities, rng),
		machines:      map[bgtypes.BotIdentity]*stall.Machine{},
		handles:       map[bgtypes.BotIdentity]*enginepool.Handle{},
		engines:       map[bgtypes.BotIdentity]stall.Engine{},
		evals:         map[bgtypes.BoardID]string{},
		startSignal:   make(chan struct{}),
		stopLoop:      make(chan struct{}),
		loopDone:      make(chan struct{}),
		loopCtx:       loopCtx,
		cancelLoopCtx: cancelLoopCtx,
	}
}

// Status returns the current game status.
func (c *Controller) Status() bgtypes.GameStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Evaluation returns the last evaluation annotation recorded for board.
func (c *Controller) Evaluation(board bgtypes.BoardID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evals[board]
}

// Initialize acquires and configures the three engine handles and sets
// up both boards (spec.md §4.5).
func (c *Controller) Initialize(ctx context.Context) error {
	for _, seat := range []bgtypes.BotIdentity{bgtypes.Bot1, bgtypes.Partner, bgtypes.Bot2} {
		h, err := c.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("orchestrator: acquiring handle for %v: %w", seat, err)
		}
		if err := h.Transport.Initialize(ctx); err != nil {
			return &bgerrors.TransportFailure{EngineID: h.ID, Op: "initialize", Err: err}
		}
		opts := map[string]string{variantOptionName: bughouseVariantValue}
		if c.cfg.VariantPath != "" {
			opts["VariantPath"] = c.cfg.VariantPath
		}
		if err := h.Transport.SetOptions(ctx, opts); err != nil {
			return &bgerrors.TransportFailure{EngineID: h.ID, Op: "setoption", Err: err}
		}
		c.handles[seat] = h
		c.machines[seat] = stall.NewMachine(seat)
		c.engines[seat] = &engineAdapter{handle: h}
	}
	// Human has no engine handle but still needs a stall.Machine: Human
	// is Partner's Partnership() seat (spec.md §3's Partner<->Human
	// pairing), so playBotTurn delivers Partner's outbound requests to
	// c.machines[bgtypes.Human], where checkFulfillment reads them.
	c.machines[bgtypes.Human] = stall.NewMachine(bgtypes.Human)

	c.boards = map[bgtypes.BoardID]*position.BughousePosition{
		bgtypes.BoardA: position.NewBughousePosition(),
		bgtypes.BoardB: position.NewBughousePosition(),
	}
	c.coord = pieceflow.New(c.boards[bgtypes.BoardA], c.boards[bgtypes.BoardB])

	c.mu.Lock()
	c.status = bgtypes.InProgress
	c.mu.Unlock()

	c.clocks.For(c.seatOnMove(bgtypes.BoardA)).Start()
	c.clocks.For(c.seatOnMove(bgtypes.BoardB)).Start()
	return nil
}

// seatOnMove returns whichever seat currently has the move on board,
// per the board's declared colors in cfg.
func (c *Controller) seatOnMove(board bgtypes.BoardID) bgtypes.BotIdentity {
	turn := c.boardFor(board).Turn()
	if board == bgtypes.BoardA {
		if turn == c.cfg.HumanColor {
			return bgtypes.Human
		}
		return bgtypes.Bot1
	}
	if turn == c.cfg.PartnerColor {
		return bgtypes.Partner
	}
	return bgtypes.Bot2
}

// flipClockAfterMove stops mover's clock and starts whichever seat is
// now to move on board, per spec.md §9's note that clocks are driven by
// turn transitions, not by move commits themselves (a Sitting bot's
// turn never transitions, so its clock keeps draining untouched).
func (c *Controller) flipClockAfterMove(board bgtypes.BoardID, mover bgtypes.BotIdentity) {
	c.clocks.For(mover).Stop()
	c.clocks.For(c.seatOnMove(board)).Start()
}

// Start implements spec.md §4.5's start(): if the human plays black,
// Bot1 (white on board A) moves immediately; otherwise the partner loop
// waits for the human's first move to kick it off. ctx governs only
// this synchronous first move; the partner loop that Start launches
// runs for the lifetime of the game, well past the return of whatever
// request context ctx came from, so it is driven by c.loopCtx instead
// — a context this Controller owns and cancels itself from finish.
func (c *Controller) Start(ctx context.Context) error {
	if c.cfg.HumanColor == chess.Black {
		if err := c.playBotTurn(ctx, bgtypes.Bot1); err != nil {
			return err
		}
		c.signalStarted()
	}
	c.mu.Lock()
	c.loopStarted = true
	c.mu.Unlock()
	go c.runPartnerLoop(c.loopCtx)
	return nil
}

func (c *Controller) signalStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		c.started = true
		close(c.startSignal)
	}
}

// Pause suspends the partner-board loop between iterations, per
// spec.md §4.5's pause()/resume().
func (c *Controller) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume lifts a prior Pause.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

func (c *Controller) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Resign sets PlayerLost and freezes the partner loop, per spec.md
// §4.5. finish is idempotent, so a resignation racing a real checkmate
// is resolved by whichever commits status first.
func (c *Controller) Resign() {
	c.finish(bgtypes.PlayerLost)
}

// SendGo implements spec.md §4.6.2's Sitting -> Active (player-forced)
// transition: if Partner is currently sitting, for any reason, it is
// forced back to Active and a one-turn latch suppresses immediate
// re-stall on its very next decision cycle.
func (c *Controller) SendGo() error {
	m, ok := c.machines[bgtypes.Partner]
	if !ok {
		return &bgerrors.IllegalAction{Reason: "no partner seat in this game"}
	}
	if m.IsSitting() {
		m.ExitPlayerForced()
		c.chat.IGo(bgtypes.Partner)
	}
	return nil
}

// SendSit implements spec.md §4.6.2's Active -> Sitting by player
// command: Partner stops moving with reason_tag=player_command,
// player_induced=true, and cannot exit except by a later SendGo.
func (c *Controller) SendSit() error {
	m, ok := c.machines[bgtypes.Partner]
	if !ok {
		return &bgerrors.IllegalAction{Reason: "no partner seat in this game"}
	}
	if m.IsSitting() {
		return &bgerrors.IllegalAction{Reason: "partner is already sitting"}
	}
	m.EnterPlayerCommand()
	return nil
}

// Shutdown ends the game (if not already terminal), waits for the
// partner loop to exit, and releases every borrowed engine handle back
// to the pool. Per spec.md §9, a controller must never keep an engine
// busy past the life of its own game.
func (c *Controller) Shutdown() {
	c.finish(bgtypes.Finished)
	c.mu.Lock()
	started := c.loopStarted
	c.mu.Unlock()
	if started {
		<-c.loopDone
	}
	for _, h := range c.handles {
		c.pool.Release(h)
	}
}

// runPartnerLoop is the continuous turn-taker of spec.md §4.5: each
// iteration picks whichever of Partner/Bot2 is to move on board B and
// runs one decision cycle for it. Time-based stall abandonment is
// checked inside playBotTurn itself (a Sitting machine re-evaluates
// UpOnTime on every cycle); pause is checked here before any engine
// work is attempted.
func (c *Controller) runPartnerLoop(ctx context.Context) {
	defer close(c.loopDone)

	// spec.md §4.5's start(): when the human plays white, the
	// partner-board loop waits for the human's first action before its
	// first iteration; when the human plays black, Start already moved
	// Bot1 and signaled startSignal before launching this goroutine.
	select {
	case <-c.startSignal:
	case <-c.stopLoop:
		return
	case <-ctx.Done():
		return
	}

	for {
		select {
		case <-c.stopLoop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if c.isPaused() {
			if !c.sleep(ctx, partnerLoopPauseInterval) {
				return
			}
			continue
		}
		if c.Status().IsTerminal() {
			return
		}

		seat := c.seatOnMove(bgtypes.BoardB)
		if err := c.playBotTurn(ctx, seat); err != nil {
			c.log.Error().Err(err).Str("seat", seat.String()).Msg("partner-board loop iteration failed")
			return
		}

		if !c.sleep(ctx, partnerLoopInterval) {
			return
		}
	}
}

// sleep waits for d, reporting false if the loop should stop instead.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-c.stopLoop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) boardFor(b bgtypes.BoardID) *position.BughousePosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boards[b]
}

// engineFor returns the stall.Engine borrowed for seat. Initialize
// populates this from a real engine handle; tests substitute a fake
// directly into c.engines without going through the pool at all.
func (c *Controller) engineFor(seat bgtypes.BotIdentity) stall.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engines[seat]
}

// MakePlayerMove applies the human's normal move on board A, then lets
// Bot1 respond, per spec.md §4.5.
func (c *Controller) MakePlayerMove(ctx context.Context, from, to position.Square, promo position.DroppablePiece, hasPromo bool) error {
	if err := c.assertHumanTurn(); err != nil {
		return err
	}
	bp := c.boardFor(bgtypes.BoardA)
	if _, err := bp.ApplyNormal(from, to, promo, hasPromo); err != nil {
		return &bgerrors.IllegalAction{Reason: err.Error()}
	}
	c.flipClockAfterMove(bgtypes.BoardA, bgtypes.Human)
	return c.afterBoardAMove(ctx, bgtypes.Human)
}

// DropPiece applies the human's drop on board A, then lets Bot1 respond.
func (c *Controller) DropPiece(ctx context.Context, sq position.Square, piece position.DroppablePiece) error {
	if err := c.assertHumanTurn(); err != nil {
		return err
	}
	bp := c.boardFor(bgtypes.BoardA)
	if _, err := bp.ApplyDrop(sq, piece, c.cfg.HumanColor); err != nil {
		return &bgerrors.IllegalAction{Reason: err.Error()}
	}
	c.flipClockAfterMove(bgtypes.BoardA, bgtypes.Human)
	return c.afterBoardAMove(ctx, bgtypes.Human)
}

func (c *Controller) assertHumanTurn() error {
	if c.Status() != bgtypes.InProgress {
		return &bgerrors.IllegalAction{Reason: "game is not in progress"}
	}
	bp := c.boardFor(bgtypes.BoardA)
	if bp.Turn() != c.cfg.HumanColor {
		return &bgerrors.IllegalAction{Reason: "not the human's turn"}
	}
	return nil
}

func (c *Controller) afterBoardAMove(ctx context.Context, mover bgtypes.BotIdentity) error {
	events, err := c.coord.ProcessNewMoves(bgtypes.BoardA)
	if err != nil {
		return &bgerrors.LogicInvariantViolation{Invariant: err.Error()}
	}
	c.checkFulfillment(mover, events)
	c.annotate(ctx, bgtypes.BoardA, bgtypes.Bot1)
	if c.handleTermination(ctx, bgtypes.BoardA) {
		return nil
	}
	c.signalStarted()
	return c.playBotTurn(ctx, bgtypes.Bot1)
}

// playBotTurn runs one full decision cycle for seat and, if it elects
// to move, applies the resulting move.
func (c *Controller) playBotTurn(ctx context.Context, seat bgtypes.BotIdentity) error {
	machine := c.machines[seat]
	board := seat.Board()
	bp := c.boardFor(board)
	engine := c.engineFor(seat)

	if machine.IsSitting() {
		rec := machine.Record()
		if rec != nil && !rec.PlayerInduced {
			if !c.clocks.UpOnTime(seat) {
				machine.ExitTimeAbandoned()
				c.chat.IGo(seat)
				// falls through to play a move this turn, below
			} else {
				return nil // still sitting; clock drains, no move
			}
		} else {
			return nil // player-induced sit; only an explicit Go can exit
		}
	} else if !machine.ConsumeForcedLatch() {
		dec, err := stall.Evaluate(ctx, stall.Input{
			Board: bp, Bot: seat, Engine: engine, Clocks: c.clocks, Decider: c.decider,
		})
		if err != nil {
			c.log.Warn().Err(err).Str("seat", seat.String()).Msg("should-stall evaluation failed")
		} else if dec != nil && dec.ShouldStall {
			machine.EnterSitting(dec.Piece, dec.Scenario, false)
			c.emitStallChat(seat, dec)
			if req := machine.OutboundRequest(); req != nil {
				partner := seat.Partnership()
				c.machines[partner].SetInboundRequest(req)
				delay := time.Duration(1000+c.decider.Jitter(1000)) * time.Millisecond
				c.chat.IWillTry(partner, delay)
			}
			return nil // elected to sit; no move this turn
		}
	}

	inbound := machine.InboundRequest()
	sel, err := stall.SelectMove(ctx, engine, bp, inbound, c.cfg.moveTimeMS())
	if err != nil {
		return &bgerrors.TransportFailure{EngineID: "", Op: "select-move", Err: err}
	}
	if uci.IsNoMove(sel.Move.Move) {
		return &bgerrors.LogicInvariantViolation{Invariant: fmt.Sprintf("engine for %v returned no move while to move", seat)}
	}
	if err := applyUCIMove(bp, sel.Move.Move); err != nil {
		return &bgerrors.LogicInvariantViolation{Invariant: fmt.Sprintf("engine for %v returned an unapplicable move %q: %v", seat, sel.Move.Move, err)}
	}
	c.flipClockAfterMove(board, seat)
	if sel.RequestSatisfied && inbound != nil {
		machine.ClearInboundRequest()
	}

	events, err := c.coord.ProcessNewMoves(board)
	if err != nil {
		return &bgerrors.LogicInvariantViolation{Invariant: err.Error()}
	}
	c.checkFulfillment(seat, events)
	c.annotate(ctx, board, seat)
	c.handleTermination(ctx, board)
	return nil
}

func (c *Controller) emitStallChat(seat bgtypes.BotIdentity, dec *stall.Decision) {
	letter := dec.Piece.Letter()
	switch dec.Scenario {
	case bgtypes.ForcesMate:
		distance := 0
		if dec.MateDistance != nil {
			distance = *dec.MateDistance
		}
		c.chat.ForcesMate(seat, letter, distance)
	case bgtypes.SavesFromMate, bgtypes.SavesMateIn1:
		c.chat.SavesFromMate(seat, letter)
	case bgtypes.LostToWinning:
		c.chat.LostToWinning(seat, letter)
	case bgtypes.Mated:
		c.chat.Mated(seat)
	}
}

// checkFulfillment implements spec.md §4.6.3: a capture by the correct
// partner that satisfies a sitting bot's outbound request clears it.
func (c *Controller) checkFulfillment(mover bgtypes.BotIdentity, events []pieceflow.Event) {
	if len(events) == 0 {
		return
	}
	moverMachine, ok := c.machines[mover]
	if !ok {
		return
	}
	inbound := moverMachine.InboundRequest()
	if inbound == nil {
		return
	}
	origin := inbound.RequestedBy
	originMachine, ok := c.machines[origin]
	if !ok {
		return
	}
	for _, ev := range events {
		if stall.Fulfills(inbound.RequestedPiece, ev.Piece) {
			originMachine.ExitFulfilled()
			c.chat.Thanks(origin)
			moverMachine.ClearInboundRequest()
			return
		}
	}
}

// applyUCIMove decodes a "from-to[promo]" or "P@sq" UCI move string and
// applies it to bp.
func applyUCIMove(bp *position.BughousePosition, move string) error {
	if len(move) >= 3 && move[1] == '@' {
		kind, ok := parseDropLetter(move[0])
		if !ok {
			return fmt.Errorf("orchestrator: unrecognized drop piece letter %q", move[0])
		}
		sq, ok := position.ParseSquare(move[2:4])
		if !ok {
			return fmt.Errorf("orchestrator: malformed drop target %q", move)
		}
		_, err := bp.ApplyDrop(sq, kind, bp.Turn())
		return err
	}
	if len(move) < 4 {
		return fmt.Errorf("orchestrator: malformed move %q", move)
	}
	from, ok := position.ParseSquare(move[0:2])
	if !ok {
		return fmt.Errorf("orchestrator: malformed from-square in %q", move)
	}
	to, ok2 := position.ParseSquare(move[2:4])
	if !ok2 {
		return fmt.Errorf("orchestrator: malformed to-square in %q", move)
	}
	var promo position.DroppablePiece
	hasPromo := false
	if len(move) >= 5 {
		p, ok := parsePromoLetter(move[4])
		if ok {
			promo = p
			hasPromo = true
		}
	}
	_, err := bp.ApplyNormal(from, to, promo, hasPromo)
	return err
}

func parseDropLetter(b byte) (position.DroppablePiece, bool) {
	return position.ParseLetter(b)
}

func parsePromoLetter(b byte) (position.DroppablePiece, bool) {
	switch b {
	case 'n':
		return position.Knight, true
	case 'b':
		return position.Bishop, true
	case 'r':
		return position.Rook, true
	case 'q':
		return position.Queen, true
	}
	return 0, false
}
