package stall

import (
	"sync"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
)

// State is one bot's place in the stall state machine (spec.md §4.6.2).
type State int

const (
	Active State = iota
	Sitting
)

func (s State) String() string {
	if s == Sitting {
		return "sitting"
	}
	return "active"
}

// Record is spec.md §3's stall record: present only while Sitting.
type Record struct {
	RequestedPiece position.DroppablePiece
	ReasonTag      bgtypes.StallReason
	PlayerInduced  bool
}

// Request is spec.md §3's partner-request record, held by the
// recipient until cleared.
type Request struct {
	RequestedPiece position.DroppablePiece
	Reason         bgtypes.StallReason
	RequestedBy    bgtypes.BotIdentity
}

// Machine is one bot's stall state, mutex-guarded because the
// controller's decision cycle and an asynchronous fulfillment event
// (a capture completed on the partner board) can both attempt a
// transition.
type Machine struct {
	mu sync.Mutex

	seat  bgtypes.BotIdentity
	state State
	rec   *Record

	outboundRequest *Request
	inboundRequest  *Request

	forcedToGo          bool
	downTimeMessageSent bool
}

// NewMachine builds a Machine for seat, starting Active per spec.md
// §4.6.2.
func NewMachine(seat bgtypes.BotIdentity) *Machine {
	return &Machine{seat: seat, state: Active}
}

// State reports the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsSitting reports whether the bot is currently sitting (spec.md §8
// Invariant 2: a sitting bot's move history must not advance).
func (m *Machine) IsSitting() bool {
	return m.State() == Sitting
}

// Record returns a copy of the active stall record, or nil if Active.
func (m *Machine) Record() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil
	}
	r := *m.rec
	return &r
}

// OutboundRequest returns this bot's currently pending request to its
// teammate, or nil.
func (m *Machine) OutboundRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outboundRequest == nil {
		return nil
	}
	r := *m.outboundRequest
	return &r
}

// EnterSitting transitions Active -> Sitting on a should_stall=true
// decision, per spec.md §4.6.2. It records the outbound partner-request
// itself, except for a mated or player-induced stall, which never
// auto-requests; delivering that request to the teammate and emitting
// the chat line are left to the caller (the controller).
func (m *Machine) EnterSitting(piece position.DroppablePiece, reason bgtypes.StallReason, playerInduced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Sitting
	m.rec = &Record{RequestedPiece: piece, ReasonTag: reason, PlayerInduced: playerInduced}
	m.downTimeMessageSent = false
	if !playerInduced && reason != bgtypes.Mated {
		m.outboundRequest = &Request{RequestedPiece: piece, Reason: reason, RequestedBy: m.seat}
	}
}

// ExitFulfilled transitions Sitting -> Active because a partner's
// capture fulfilled the outbound request (spec.md §4.6.2).
func (m *Machine) ExitFulfilled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Active
	m.rec = nil
	m.outboundRequest = nil
}

// ExitTimeAbandoned transitions Sitting -> Active because the bot's
// diagonal-time advantage lapsed, for any non-player-induced stall.
func (m *Machine) ExitTimeAbandoned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Sitting || (m.rec != nil && m.rec.PlayerInduced) {
		return false
	}
	m.state = Active
	m.rec = nil
	m.outboundRequest = nil
	return true
}

// ExitPlayerForced transitions Sitting -> Active because the human
// issued Go, setting the one-turn forced-to-go latch.
func (m *Machine) ExitPlayerForced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Active
	m.rec = nil
	m.outboundRequest = nil
	m.forcedToGo = true
}

// EnterPlayerCommand transitions Active -> Sitting by explicit player
// Sit command; only a player Go can exit it.
func (m *Machine) EnterPlayerCommand() {
	m.EnterSitting(position.Queen, bgtypes.PlayerCommand, true)
}

// ConsumeForcedLatch reports and clears the one-turn latch set by
// ExitPlayerForced, preventing immediate re-stall on the very next
// decision cycle.
func (m *Machine) ConsumeForcedLatch() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.forcedToGo
	m.forcedToGo = false
	return v
}

// SetInboundRequest records a partner-request addressed to this bot.
func (m *Machine) SetInboundRequest(req *Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inboundRequest = req
}

// InboundRequest returns the pending request addressed to this bot, or
// nil.
func (m *Machine) InboundRequest() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inboundRequest == nil {
		return nil
	}
	r := *m.inboundRequest
	return &r
}

// ClearInboundRequest drops the pending inbound request, e.g. once
// fulfilled or superseded.
func (m *Machine) ClearInboundRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inboundRequest = nil
}
