package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/matchmaking"
	"github.com/benbeisheim/bughouse-orchestrator/internal/orchestrator"
	"github.com/benbeisheim/bughouse-orchestrator/internal/store"
)

// ErrGameNotFound is returned by any GameManager lookup on an unknown id.
var ErrGameNotFound = errors.New("game not found")

// GameManager owns the live Sessions, generalized from the teacher's
// map[string]*model.Game guarded by sync.RWMutex. There is no
// matchmaking queue to drain here: spec.md §1 excludes human-vs-human
// pairing, so CreateGame replaces the teacher's processMatchmaking
// ticker with a direct call into matchmaking.Lobby — every table is one
// human plus three engine seats, assigned the instant it is requested.
type GameManager struct {
	lobby *matchmaking.Lobby
	store store.Store
	log   zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewGameManager wires a GameManager over an already-running engine
// pool (via lobby) and a persistence backend.
func NewGameManager(lobby *matchmaking.Lobby, st store.Store, log zerolog.Logger) *GameManager {
	return &GameManager{
		lobby:    lobby,
		store:    st,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// CreateRequest is the human-facing decision set for starting a table.
type CreateRequest struct {
	HumanID      string
	HumanColor   chess.Color
	PartnerColor chess.Color
}

// CreateGame builds a fresh table, initializes both boards, and kicks
// off play (spec.md §4.5): if the human plays black, Bot1's first move
// happens before this call returns.
func (gm *GameManager) CreateGame(ctx context.Context, req CreateRequest) (*Session, error) {
	sess := newPendingSession(req.HumanID, gm.store, gm.log)

	table, err := gm.lobby.CreateGame(ctx, matchmaking.Request{
		HumanColor:   req.HumanColor,
		PartnerColor: req.PartnerColor,
		ChatSink:     sess.ChatSink(),
	})
	if err != nil {
		return nil, err
	}
	sess.attach(table.GameID, table.Controller)
	sess.onGameOver(func() { go gm.finishGame(table.GameID, table.Controller) })

	gm.store.PutGame(store.GameRecord{
		GameID:    table.GameID,
		CreatedAt: nowFunc(),
		UpdatedAt: nowFunc(),
		Status:    table.Controller.Status(),
	})

	gm.mu.Lock()
	gm.sessions[table.GameID] = sess
	gm.mu.Unlock()

	if err := table.Controller.Start(ctx); err != nil {
		return nil, err
	}
	sess.BroadcastState()
	return sess, nil
}

// nowFunc is a seam for tests; production code always uses time.Now.
var nowFunc = time.Now

func (gm *GameManager) GetSession(gameID string) (*Session, error) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	sess, ok := gm.sessions[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return sess, nil
}

func (gm *GameManager) ListGames() []string {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	ids := make([]string, 0, len(gm.sessions))
	for id := range gm.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (gm *GameManager) RegisterConnection(gameID, playerID string, conn *websocket.Conn) error {
	sess, err := gm.GetSession(gameID)
	if err != nil {
		return err
	}
	sess.RegisterConnection(playerID, conn)
	return nil
}

func (gm *GameManager) UnregisterConnection(gameID, playerID string) {
	sess, err := gm.GetSession(gameID)
	if err != nil {
		return
	}
	sess.UnregisterConnection(playerID)
}

// finishGame releases ctrl's borrowed engine handles back to the pool
// once its game ends. Run in its own goroutine by the Session's
// onGameOver hook, since Shutdown blocks on the partner loop exiting
// and must never run on the request goroutine that just observed the
// terminal status. The session itself stays registered so its final
// result remains reachable through GetGameState until the caller
// explicitly calls RemoveGame.
func (gm *GameManager) finishGame(gameID string, ctrl *orchestrator.Controller) {
	ctrl.Shutdown()
	gm.log.Info().Str("game_id", gameID).Msg("table finished, engine handles released")
}

// RemoveGame drops bookkeeping for a finished table after its
// Controller has released its engine handles.
func (gm *GameManager) RemoveGame(gameID string) {
	gm.mu.Lock()
	delete(gm.sessions, gameID)
	gm.mu.Unlock()
	gm.lobby.Remove(gameID)
}
