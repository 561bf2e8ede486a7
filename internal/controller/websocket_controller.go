package controller

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/benbeisheim/bughouse-orchestrator/internal/service"
	"github.com/benbeisheim/bughouse-orchestrator/internal/ws"
)

// WebSocketController pushes game state to observers and accepts the
// human's moves, drops, and Pause/Resume/Resign/Go/Sit commands over
// the same connection, mirroring the teacher's HandleConnection
// read-loop dispatching on ws.Message.Type.
type WebSocketController struct {
	gameService *service.GameService
	log         zerolog.Logger
}

func NewWebSocketController(gameService *service.GameService, log zerolog.Logger) *WebSocketController {
	return &WebSocketController{gameService: gameService, log: log}
}

// HandleConnection is called when a new WebSocket connection is established.
func (wsc *WebSocketController) HandleConnection(c *websocket.Conn) {
	gameID := c.Params("gameId")
	playerID := c.Locals("playerID").(string)

	if err := wsc.gameService.RegisterConnection(gameID, playerID, c); err != nil {
		wsc.log.Warn().Err(err).Str("gameId", gameID).Msg("failed to register websocket connection")
		c.Close()
		return
	}

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg ws.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			wsc.log.Warn().Err(err).Msg("malformed websocket frame")
			continue
		}
		if err := wsc.handleMessage(context.Background(), gameID, msg); err != nil {
			wsc.sendError(c, err.Error())
		}
	}

	wsc.gameService.UnregisterConnection(gameID, playerID)
}

func (wsc *WebSocketController) handleMessage(ctx context.Context, gameID string, msg ws.Message) error {
	switch msg.Type {
	case ws.MessageTypeMove:
		var req ws.MoveRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return err
		}
		return wsc.gameService.HandleMove(ctx, gameID, req)

	case ws.MessageTypeDrop:
		var req ws.DropRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return err
		}
		return wsc.gameService.HandleDrop(ctx, gameID, req)

	case ws.MessageTypePause:
		return wsc.gameService.Pause(gameID)

	case ws.MessageTypeResume:
		return wsc.gameService.Resume(gameID)

	case ws.MessageTypeResign:
		return wsc.gameService.Resign(gameID)

	case ws.MessageTypeGo:
		return wsc.gameService.SendGo(gameID)

	case ws.MessageTypeSit:
		return wsc.gameService.SendSit(gameID)

	default:
		return &unknownMessageType{msg.Type}
	}
}

type unknownMessageType struct{ t ws.MessageType }

func (e *unknownMessageType) Error() string { return "unknown message type: " + string(e.t) }

func (wsc *WebSocketController) sendError(c *websocket.Conn, errorMsg string) {
	payload, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{errorMsg})
	_ = c.WriteJSON(ws.Message{Type: ws.MessageTypeError, Payload: payload})
}
