package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgerrors"
	"github.com/benbeisheim/bughouse-orchestrator/internal/service"
)

// GameController exposes spec.md §6's control-plane surface over HTTP:
// create a table, read its state, pause/resume, resign, and Go/Sit.
// Grounded on the teacher's GameController delegating one HTTP verb per
// game_service.go method, generalized from join-matchmaking/join-game
// (two humans pairing) to create-game (one human, three borrowed
// engines assigned immediately).
type GameController struct {
	gameService *service.GameService
}

func NewGameController(gameService *service.GameService) *GameController {
	return &GameController{gameService: gameService}
}

type createGameRequest struct {
	HumanColor   string `json:"humanColor"`   // "white" or "black"
	PartnerColor string `json:"partnerColor"` // "white" or "black"
}

func parseColor(s string) chess.Color {
	if s == "black" {
		return chess.Black
	}
	return chess.White
}

func (gc *GameController) CreateGame(c *fiber.Ctx) error {
	var req createGameRequest
	_ = c.BodyParser(&req) // an empty body is valid: both colors default to white

	playerID := c.Locals("playerID").(string)
	gameID, err := gc.gameService.CreateGame(c.Context(), playerID, parseColor(req.HumanColor), parseColor(req.PartnerColor))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"gameId": gameID})
}

func (gc *GameController) ListGames(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"games": gc.gameService.ListGames()})
}

func (gc *GameController) GetGameState(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	sess, err := gc.gameService.GetSession(gameID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sess.StateView())
}

func (gc *GameController) Pause(c *fiber.Ctx) error {
	if err := gc.gameService.Pause(c.Params("gameId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "paused"})
}

func (gc *GameController) Resume(c *fiber.Ctx) error {
	if err := gc.gameService.Resume(c.Params("gameId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "resumed"})
}

func (gc *GameController) Resign(c *fiber.Ctx) error {
	if err := gc.gameService.Resign(c.Params("gameId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "resigned"})
}

func (gc *GameController) SendGo(c *fiber.Ctx) error {
	if err := gc.gameService.SendGo(c.Params("gameId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (gc *GameController) SendSit(c *fiber.Ctx) error {
	if err := gc.gameService.SendSit(c.Params("gameId")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// respondError maps the bgerrors taxonomy (spec.md §7) onto HTTP status
// codes: illegal actions are the caller's fault (400), an unknown game
// id is a 404, anything else is an unexpected server-side failure.
func respondError(c *fiber.Ctx, err error) error {
	var illegal *bgerrors.IllegalAction
	if errors.As(err, &illegal) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if errors.Is(err, service.ErrGameNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
