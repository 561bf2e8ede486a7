// Package service is the thin relay layer in front of the orchestrator:
// it owns one Session per live game (connections + broadcast) and the
// GameManager that creates/looks up games, mirroring the teacher's
// controller -> service -> model layering with internal/orchestrator
// standing in for the teacher's from-scratch model.Game rules.
package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/chat"
	"github.com/benbeisheim/bughouse-orchestrator/internal/orchestrator"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
	"github.com/benbeisheim/bughouse-orchestrator/internal/store"
	"github.com/benbeisheim/bughouse-orchestrator/internal/ws"
)

// Session is one game's orchestrator plus the set of WebSocket
// connections observing it. Grounded directly on the teacher's
// GameConnections/broadcastState/RegisterConnection shape in
// internal/model/game.go, generalized from "one connection per color"
// to "any number of observers keyed by player id" since a bughouse
// table only ever has one human seat but may have several spectators.
type Session struct {
	GameID  string
	HumanID string

	ctrl  *orchestrator.Controller
	store store.Store
	log   zerolog.Logger

	connMu sync.RWMutex
	conns  map[string]*websocket.Conn

	moveMu       sync.Mutex
	persistedPly map[bgtypes.BoardID]int

	terminalMu      sync.Mutex
	terminalHandled bool
	onTerminal      func()
}

// newPendingSession builds a Session ahead of its Controller, so its
// ChatSink can be wired into orchestrator.Config before the Controller
// (and thus its chat.Emitter) is constructed. attach fills in the
// Controller and final game id once matchmaking.Lobby.CreateGame
// returns.
func newPendingSession(humanID string, st store.Store, log zerolog.Logger) *Session {
	return &Session{
		HumanID:      humanID,
		store:        st,
		log:          log,
		conns:        make(map[string]*websocket.Conn),
		persistedPly: make(map[bgtypes.BoardID]int),
	}
}

func (s *Session) attach(gameID string, ctrl *orchestrator.Controller) {
	s.GameID = gameID
	s.ctrl = ctrl
}

// onGameOver registers a hook fired exactly once, the first time
// BroadcastState observes a terminal status, so the GameManager can
// release the table once its result has been persisted and pushed to
// every observer.
func (s *Session) onGameOver(fn func()) {
	s.onTerminal = fn
}

// Controller exposes the underlying orchestrator for callers (e.g. the
// HTTP controller) that need to issue commands directly.
func (s *Session) Controller() *orchestrator.Controller { return s.ctrl }

// ChatSink is wired into orchestrator.Config.ChatSink at creation time
// so every emitted chat line both persists and broadcasts.
func (s *Session) ChatSink() chat.Sink {
	return func(line chat.Line) {
		s.store.AppendChat(s.GameID, line)
		s.broadcast(ws.Message{Type: ws.MessageTypeChat, Payload: mustJSON(ws.ChatView{
			Speaker: line.Speaker.String(),
			Text:    line.Text,
		})})
	}
}

// BroadcastState snapshots the controller and pushes it to every
// registered connection, mirroring the teacher's fire-and-forget
// go g.broadcastState() dispatch.
func (s *Session) BroadcastState() {
	s.persistNewMoves()
	s.updateGameRecord()
	s.broadcast(ws.Message{Type: ws.MessageTypeGameState, Payload: mustJSON(s.StateView())})
	s.maybeHandleTermination()
}

// maybeHandleTermination fires the onTerminal hook (if any) the first
// time the controller's status goes terminal, so a finished table's
// engine handles are released back to the pool per spec.md §9 without
// the relay having to poll for it.
func (s *Session) maybeHandleTermination() {
	if !s.ctrl.Status().IsTerminal() {
		return
	}
	s.terminalMu.Lock()
	defer s.terminalMu.Unlock()
	if s.terminalHandled {
		return
	}
	s.terminalHandled = true
	if s.onTerminal != nil {
		s.onTerminal()
	}
}

// updateGameRecord keeps the persisted GameRecord's FENs/turn/status in
// step with the live controller, preserving the original CreatedAt.
func (s *Session) updateGameRecord() {
	rec, _ := s.store.Game(s.GameID)
	rec.GameID = s.GameID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	boardA := s.ctrl.BoardSnapshot(bgtypes.BoardA)
	boardB := s.ctrl.BoardSnapshot(bgtypes.BoardB)
	rec.FENBoardA = boardA.FEN
	rec.FENBoardB = boardB.FEN
	rec.TurnA = boardA.Turn
	rec.TurnB = boardB.Turn
	rec.Status = s.ctrl.Status()
	rec.UpdatedAt = time.Now()
	s.store.PutGame(rec)
}

// persistNewMoves appends every ply played since the last call to the
// store's move log (spec.md §6), tracking per-board progress so a
// broadcast triggered by a chat line or a connection join never
// re-appends moves already recorded.
func (s *Session) persistNewMoves() {
	s.moveMu.Lock()
	defer s.moveMu.Unlock()
	for _, board := range []bgtypes.BoardID{bgtypes.BoardA, bgtypes.BoardB} {
		history := s.ctrl.History(board)
		from := s.persistedPly[board]
		if from >= len(history) {
			continue
		}
		// BughousePosition keeps no per-ply FEN, only the live board, so
		// only the most recently played ply gets the post-move FEN; the
		// rest of this batch (when a human move and its bot reply land
		// between broadcasts) are recorded with their UCI notation alone.
		lastNew := len(history) - 1
		currentFEN := s.ctrl.BoardSnapshot(board).FEN
		for ply := from; ply < len(history); ply++ {
			entry := store.MoveEntry{
				GameID: s.GameID,
				Board:  board,
				Ply:    ply,
				UCI:    history[ply].Notation(),
				At:     time.Now(),
			}
			if ply == lastNew {
				entry.FEN = currentFEN
			}
			s.store.AppendMove(entry)
		}
		s.persistedPly[board] = len(history)
	}
}

// StateView builds the same snapshot BroadcastState pushes, for
// synchronous HTTP reads (spec.md §6's get-game-state endpoint).
func (s *Session) StateView() ws.GameStateView {
	view := ws.GameStateView{
		GameID: s.GameID,
		Status: s.ctrl.Status().String(),
		BoardA: toBoardSnapshot(s.ctrl.BoardSnapshot(bgtypes.BoardA)),
		BoardB: toBoardSnapshot(s.ctrl.BoardSnapshot(bgtypes.BoardB)),
	}
	for _, sv := range s.ctrl.StallSnapshot() {
		view.Stalls = append(view.Stalls, toStallView(sv))
	}
	return view
}

func toBoardSnapshot(v orchestrator.BoardView) ws.BoardSnapshot {
	white := map[string]int{}
	black := map[string]int{}
	for _, p := range position.AllDroppablePieces {
		white[p.String()] = v.Holdings.Count(chess.White, p)
		black[p.String()] = v.Holdings.Count(chess.Black, p)
	}
	return ws.BoardSnapshot{
		FEN:        v.FEN,
		Turn:       v.Turn,
		Evaluation: v.Evaluation,
		Holdings:   ws.HoldingsView{White: white, Black: black},
	}
}

func toStallView(v orchestrator.StallView) ws.StallView {
	out := ws.StallView{Seat: v.Seat.String(), Sitting: v.Sitting}
	if v.HasPiece {
		out.Piece = string(v.Piece.Letter())
		out.Reason = v.Reason.String()
	}
	return out
}

func (s *Session) broadcast(msg ws.Message) {
	s.connMu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(msg); err != nil {
			s.log.Warn().Err(err).Msg("failed to push message to connection")
		}
	}
}

// RegisterConnection attaches conn as an observer of this session.
func (s *Session) RegisterConnection(playerID string, conn *websocket.Conn) {
	s.connMu.Lock()
	s.conns[playerID] = conn
	s.connMu.Unlock()
	s.BroadcastState()
}

// UnregisterConnection detaches playerID's connection, if any.
func (s *Session) UnregisterConnection(playerID string) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, playerID)
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("service: marshaling outbound message: %v", err))
	}
	return json.RawMessage(b)
}
