// Package matchmaking pairs a human with a free engine seat to start a
// game. This is explicitly not ratings/matchmaking in the sense spec.md
// §1 calls a Non-goal — there is nothing to match humans against each
// other for, since every game is one human plus three engine seats. Its
// only job is the single responsibility spec.md's control-plane surface
// needs: "create game" assigns colors and hands the caller a fresh
// orchestrator.Controller. Grounded on the teacher's internal/model/
// queue.go (FIFO queue of waiting players) and GameManager.
// processMatchmaking (ticker-driven pairing), trimmed down since there
// is only ever one human per table instead of two players to pair.
package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/chat"
	"github.com/benbeisheim/bughouse-orchestrator/internal/enginepool"
	"github.com/benbeisheim/bughouse-orchestrator/internal/orchestrator"
)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Request captures the one decision a human makes when starting a
// table: which color to play on board A. Everything else (Partner's
// and Bot2's colors, the clock allowance, the probability table) is
// table configuration the caller may also override.
type Request struct {
	HumanColor    chess.Color
	PartnerColor  chess.Color
	ClockAllowance durationSeconds
	VariantPath   string
	ChatSink      chat.Sink
}

// durationSeconds documents that ClockAllowance is expressed in whole
// seconds at the API boundary; orchestrator.Config wants a
// time.Duration, converted in NewTable.
type durationSeconds = int

// withDefaults fills in both colors when the caller leaves them unset,
// since spec.md §3 requires every table to have both assigned before
// Initialize runs.
func (r Request) withDefaults() Request {
	if r.HumanColor == chess.NoColor {
		r.HumanColor = chess.White
	}
	if r.PartnerColor == chess.NoColor {
		r.PartnerColor = chess.White
	}
	return r
}

// Table pairs a freshly created game id with its orchestrator.
type Table struct {
	GameID     string
	Controller *orchestrator.Controller
}

// Lobby assigns game ids and builds orchestrator.Controllers against a
// shared engine pool, mirroring the teacher's GameManager acting as the
// single owner of "which games exist right now."
type Lobby struct {
	pool *enginepool.Pool
	log  zerolog.Logger

	mu     sync.Mutex
	tables map[string]*Table
}

// NewLobby builds a Lobby over a shared, already-started engine pool.
func NewLobby(pool *enginepool.Pool, log zerolog.Logger) *Lobby {
	return &Lobby{pool: pool, log: log, tables: make(map[string]*Table)}
}

// CreateGame assigns a new game id, builds a Controller, and runs
// Initialize on it (spec.md §4.5) so the caller can immediately query
// status or make the first move. The caller is responsible for calling
// Start once any client-side setup (e.g. rendering the board) is done.
func (l *Lobby) CreateGame(ctx context.Context, req Request) (*Table, error) {
	req = req.withDefaults()
	cfg := orchestrator.Config{
		HumanColor:    req.HumanColor,
		PartnerColor:  req.PartnerColor,
		VariantPath:   req.VariantPath,
		ChatSink:      req.ChatSink,
		Seed:          time.Now().UnixNano(),
	}
	if req.ClockAllowance > 0 {
		cfg.ClockAllowance = secondsToDuration(req.ClockAllowance)
	}

	ctrl := orchestrator.New(l.pool, l.log, cfg)
	if err := ctrl.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("matchmaking: initializing game: %w", err)
	}

	t := &Table{GameID: uuid.New().String(), Controller: ctrl}
	l.mu.Lock()
	l.tables[t.GameID] = t
	l.mu.Unlock()
	return t, nil
}

// Get returns the table for gameID, if any.
func (l *Lobby) Get(gameID string) (*Table, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tables[gameID]
	return t, ok
}

// List returns every live game id.
func (l *Lobby) List() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.tables))
	for id := range l.tables {
		ids = append(ids, id)
	}
	return ids
}

// Remove drops a finished table's bookkeeping entry after its
// Controller has been shut down; it does not itself call Shutdown.
func (l *Lobby) Remove(gameID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tables, gameID)
}
