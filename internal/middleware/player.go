package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// EnsurePlayerID resolves the human's id from a header or query param,
// since spec.md §1 excludes auth/sessions as out of scope: a game's
// human player is whoever presents X-Player-ID.
func EnsurePlayerID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals("playerID") != nil {
			return c.Next()
		}

		playerID := c.Get("X-Player-ID")
		if playerID == "" {
			playerID = c.Query("playerId")
		}
		if playerID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Player ID is required. Please ensure client is properly initialized.",
			})
		}

		c.Locals("playerID", playerID)
		return c.Next()
	}
}
