package service

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgerrors"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
	"github.com/benbeisheim/bughouse-orchestrator/internal/ws"
)

// GameService translates the relay's wire-level requests into calls on
// a Session's Controller, mirroring the teacher's GameService acting as
// the thin layer between internal/controller and the game manager.
type GameService struct {
	gameManager *GameManager
}

func NewGameService(gameManager *GameManager) *GameService {
	return &GameService{gameManager: gameManager}
}

// CreateGame starts a new table for humanID and returns its id.
func (gs *GameService) CreateGame(ctx context.Context, humanID string, humanColor, partnerColor chess.Color) (string, error) {
	sess, err := gs.gameManager.CreateGame(ctx, CreateRequest{
		HumanID:      humanID,
		HumanColor:   humanColor,
		PartnerColor: partnerColor,
	})
	if err != nil {
		return "", err
	}
	return sess.GameID, nil
}

func (gs *GameService) GetSession(gameID string) (*Session, error) {
	return gs.gameManager.GetSession(gameID)
}

func (gs *GameService) ListGames() []string {
	return gs.gameManager.ListGames()
}

// HandleMove applies a normal move on board A on behalf of the human.
func (gs *GameService) HandleMove(ctx context.Context, gameID string, req ws.MoveRequest) error {
	sess, err := gs.gameManager.GetSession(gameID)
	if err != nil {
		return err
	}
	from, ok := position.ParseSquare(req.From)
	if !ok {
		return &bgerrors.IllegalAction{Reason: "malformed from-square " + req.From}
	}
	to, ok := position.ParseSquare(req.To)
	if !ok {
		return &bgerrors.IllegalAction{Reason: "malformed to-square " + req.To}
	}
	var promo position.DroppablePiece
	hasPromo := req.Promotion != ""
	if hasPromo {
		promo, ok = position.ParseLetter(req.Promotion[0])
		if !ok {
			return &bgerrors.IllegalAction{Reason: "malformed promotion piece " + req.Promotion}
		}
	}
	if err := sess.Controller().MakePlayerMove(ctx, from, to, promo, hasPromo); err != nil {
		return err
	}
	sess.BroadcastState()
	return nil
}

// HandleDrop applies a drop on board A on behalf of the human.
func (gs *GameService) HandleDrop(ctx context.Context, gameID string, req ws.DropRequest) error {
	sess, err := gs.gameManager.GetSession(gameID)
	if err != nil {
		return err
	}
	if req.Piece == "" {
		return &bgerrors.IllegalAction{Reason: "drop requires a piece letter"}
	}
	piece, ok := position.ParseLetter(req.Piece[0])
	if !ok {
		return &bgerrors.IllegalAction{Reason: "malformed drop piece " + req.Piece}
	}
	sq, ok := position.ParseSquare(req.Square)
	if !ok {
		return &bgerrors.IllegalAction{Reason: "malformed drop square " + req.Square}
	}
	if err := sess.Controller().DropPiece(ctx, sq, piece); err != nil {
		return err
	}
	sess.BroadcastState()
	return nil
}

func (gs *GameService) Pause(gameID string) error {
	sess, err := gs.gameManager.GetSession(gameID)
	if err != nil {
		return err
	}
	sess.Controller().Pause()
	sess.BroadcastState()
	return nil
}

func (gs *GameService) Resume(gameID string) error {
	sess, err := gs.gameManager.GetSession(gameID)
	if err != nil {
		return err
	}
	sess.Controller().Resume()
	sess.BroadcastState()
	return nil
}

func (gs *GameService) Resign(gameID string) error {
	sess, err := gs.gameManager.GetSession(gameID)
	if err != nil {
		return err
	}
	sess.Controller().Resign()
	sess.BroadcastState()
	return nil
}

func (gs *GameService) SendGo(gameID string) error {
	sess, err := gs.gameManager.GetSession(gameID)
	if err != nil {
		return err
	}
	if err := sess.Controller().SendGo(); err != nil {
		return err
	}
	sess.BroadcastState()
	return nil
}

func (gs *GameService) SendSit(gameID string) error {
	sess, err := gs.gameManager.GetSession(gameID)
	if err != nil {
		return err
	}
	if err := sess.Controller().SendSit(); err != nil {
		return err
	}
	sess.BroadcastState()
	return nil
}

func (gs *GameService) RegisterConnection(gameID, playerID string, conn *websocket.Conn) error {
	return gs.gameManager.RegisterConnection(gameID, playerID, conn)
}

func (gs *GameService) UnregisterConnection(gameID, playerID string) {
	gs.gameManager.UnregisterConnection(gameID, playerID)
}
