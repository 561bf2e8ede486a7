// Package clock adapts the teacher's internal/model.Clock into a bank
// of four independently running clocks, one per seat, needed for
// spec.md §4.6.1's diagonal-time rule and §5's "clocks tick during
// Sitting, driven by a separate periodic tick, not by move commits."
package clock

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
)

// Clock is a single countdown timer. Grounded directly on the teacher's
// internal/model.Clock: same lastStarted/isRunning bookkeeping, with
// fmt.Println swapped for structured logging per spec.md's ambient
// logging stack.
type Clock struct {
	mu          sync.Mutex
	log         zerolog.Logger
	timeLeft    time.Duration
	lastStarted time.Time
	isRunning   bool
}

// New returns a stopped clock with the given initial allowance.
func New(initialTime time.Duration, log zerolog.Logger) *Clock {
	return &Clock{timeLeft: initialTime, log: log}
}

// Start begins (or resumes) the countdown. A no-op if already running.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isRunning {
		c.lastStarted = time.Now()
		c.isRunning = true
	}
}

// Stop pauses the countdown, committing elapsed time to timeLeft.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		c.timeLeft -= time.Since(c.lastStarted)
		c.isRunning = false
	}
}

// Remaining returns the time left, accounting for any in-progress run.
func (c *Clock) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return c.timeLeft - time.Since(c.lastStarted)
	}
	return c.timeLeft
}

// Expired reports whether the clock has run out.
func (c *Clock) Expired() bool {
	return c.Remaining() <= 0
}

// Bank holds one Clock per seat at the table (spec.md §3: the four
// clocks the controller consults for the diagonal-time rule and for
// flagging a flag-fall loss).
type Bank struct {
	clocks map[bgtypes.BotIdentity]*Clock
}

// NewBank builds a bank with all four seats set to the same starting
// allowance.
func NewBank(initialTime time.Duration, log zerolog.Logger) *Bank {
	b := &Bank{clocks: make(map[bgtypes.BotIdentity]*Clock, 4)}
	for _, seat := range []bgtypes.BotIdentity{bgtypes.Human, bgtypes.Partner, bgtypes.Bot1, bgtypes.Bot2} {
		b.clocks[seat] = New(initialTime, log)
	}
	return b
}

// For returns the clock belonging to seat.
func (b *Bank) For(seat bgtypes.BotIdentity) *Clock {
	return b.clocks[seat]
}

// UpOnTime implements spec.md §4.6.1's diagonal-time rule: seat is "up
// on time" iff its clock strictly exceeds its diagonal's.
func (b *Bank) UpOnTime(seat bgtypes.BotIdentity) bool {
	return b.For(seat).Remaining() > b.For(seat.Diagonal()).Remaining()
}
