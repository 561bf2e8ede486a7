package stall

import (
	"math/rand"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
)

// ProbabilityTable maps {piece, scenario} to the draw threshold used in
// spec.md §4.6.1 step 7. Missing cells are zero per spec.md §9's Open
// Question 3 resolution: the higher-confidence source variant is
// pinned here verbatim and exposed as overridable configuration rather
// than a compile-time constant.
type ProbabilityTable map[position.DroppablePiece]map[bgtypes.StallReason]float64

// DefaultStallProbabilities is the table from spec.md §4.6.1.
var DefaultStallProbabilities = ProbabilityTable{
	position.Pawn: {
		bgtypes.ForcesMate:    0.98,
		bgtypes.SavesFromMate: 0.90,
		bgtypes.LostToWinning: 0.60,
	},
	position.Knight: {
		bgtypes.ForcesMate:    0.95,
		bgtypes.SavesFromMate: 0.70,
		bgtypes.LostToWinning: 0.50,
	},
	position.Bishop: {
		bgtypes.ForcesMate:    0.95,
		bgtypes.SavesFromMate: 0.70,
		bgtypes.LostToWinning: 0.50,
	},
	position.Rook: {
		bgtypes.ForcesMate:    0.95,
		bgtypes.SavesFromMate: 0.33,
	},
	position.Queen: {
		bgtypes.ForcesMate:    0.95,
		bgtypes.SavesFromMate: 0.25,
	},
}

// At returns the stall probability for (piece, scenario), 0 for any
// cell the table omits.
func (t ProbabilityTable) At(piece position.DroppablePiece, scenario bgtypes.StallReason) float64 {
	byScenario, ok := t[piece]
	if !ok {
		return 0
	}
	return byScenario[scenario]
}

// Decider draws the uniform(0,1) < P_stall comparison from spec.md
// §4.6.1 step 7. Holding the *rand.Rand here (rather than calling the
// global math/rand functions) lets tests seed a deterministic source.
type Decider struct {
	table ProbabilityTable
	rng   *rand.Rand
}

// NewDecider builds a Decider over the given table and random source.
// A nil table defaults to DefaultStallProbabilities; a nil rng defaults
// to a source with the fixed seed 1.
func NewDecider(table ProbabilityTable, rng *rand.Rand) *Decider {
	if table == nil {
		table = DefaultStallProbabilities
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Decider{table: table, rng: rng}
}

// Draw reports should_stall = up_on_time ∧ uniform(0,1) < P_stall(piece, scenario).
func (d *Decider) Draw(piece position.DroppablePiece, scenario bgtypes.StallReason, upOnTime bool) bool {
	if !upOnTime {
		return false
	}
	return d.rng.Float64() < d.table.At(piece, scenario)
}

// Jitter returns a pseudo-random duration in [0, maxMillis) milliseconds,
// used to stagger the "I will try." acknowledgment (spec.md §4.6.5) so
// concurrent requests don't land in lockstep.
func (d *Decider) Jitter(maxMillis int) int {
	if maxMillis <= 0 {
		return 0
	}
	return d.rng.Intn(maxMillis)
}
