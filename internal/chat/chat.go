// Package chat implements the stall machine's observable side-channel
// (spec.md §4.6.5): scenario-keyed chat lines, plus a delayed
// "I will try." on receipt of a partner-request. These messages are
// observable only — stall state remains the source of truth — so
// emission is fire-and-forget, in the same spirit as the teacher's
// internal/model/game.go dispatching go g.broadcastState() rather than
// threading a channel through every call site.
package chat

import (
	"fmt"
	"time"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
)

// Line is one emitted chat message.
type Line struct {
	Speaker bgtypes.BotIdentity
	Text    string
	At      time.Time
}

// Sink receives emitted lines. The orchestrator wires this to the
// game's broadcast/persistence path; tests can use a simple slice
// collector.
type Sink func(Line)

// Emitter dispatches chat lines for one game.
type Emitter struct {
	sink Sink
	now  func() time.Time
}

// New builds an Emitter. now defaults to time.Now if nil (tests may
// substitute a deterministic clock).
func New(sink Sink, now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{sink: sink, now: now}
}

func (e *Emitter) emit(speaker bgtypes.BotIdentity, text string) {
	if e.sink == nil {
		return
	}
	e.sink(Line{Speaker: speaker, Text: text, At: e.now()})
}

// pieceSymbol renders a piece letter for chat text, e.g. "N" for knight.
func pieceSymbol(letter byte) string { return string(letter) }

// ForcesMate emits the "<P> mates in N" line for a forces_mate stall.
func (e *Emitter) ForcesMate(speaker bgtypes.BotIdentity, pieceLetter byte, mateIn int) {
	e.emit(speaker, fmt.Sprintf("%s mates in %d", pieceSymbol(pieceLetter), mateIn))
}

// SavesFromMate emits the "<N> helps me survive" line.
func (e *Emitter) SavesFromMate(speaker bgtypes.BotIdentity, pieceLetter byte) {
	e.emit(speaker, fmt.Sprintf("%s helps me survive", pieceSymbol(pieceLetter)))
}

// LostToWinning emits the "<B> saves my position" line.
func (e *Emitter) LostToWinning(speaker bgtypes.BotIdentity, pieceLetter byte) {
	e.emit(speaker, fmt.Sprintf("%s saves my position", pieceSymbol(pieceLetter)))
}

// Mated emits "I am mated" when no piece rescues a forced mate.
func (e *Emitter) Mated(speaker bgtypes.BotIdentity) {
	e.emit(speaker, "I am mated")
}

// Thanks emits on request fulfillment.
func (e *Emitter) Thanks(speaker bgtypes.BotIdentity) {
	e.emit(speaker, "Thanks :)")
}

// IGo emits on a forced or time-based exit from Sitting.
func (e *Emitter) IGo(speaker bgtypes.BotIdentity) {
	e.emit(speaker, "I go")
}

// IWillTry schedules the delayed acknowledgment of an inbound partner
// request, 1-2s later per spec.md §4.6.5. delay must be in that range;
// callers pass a randomized duration so concurrent requests don't all
// land in lockstep.
func (e *Emitter) IWillTry(speaker bgtypes.BotIdentity, delay time.Duration) {
	time.AfterFunc(delay, func() {
		e.emit(speaker, "I will try.")
	})
}
