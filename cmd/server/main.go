package main

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/benbeisheim/bughouse-orchestrator/internal/controller"
	"github.com/benbeisheim/bughouse-orchestrator/internal/enginepool"
	"github.com/benbeisheim/bughouse-orchestrator/internal/matchmaking"
	"github.com/benbeisheim/bughouse-orchestrator/internal/middleware"
	"github.com/benbeisheim/bughouse-orchestrator/internal/service"
	"github.com/benbeisheim/bughouse-orchestrator/internal/store"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	log.Logger = logger

	pool := enginepool.New(enginepool.Config{
		EnginePath: getenv("ENGINE_PATH", "/usr/local/bin/stockfish"),
		Capacity:   getenvInt("ENGINE_POOL_CAPACITY", 8),
		WarmFloor:  getenvInt("ENGINE_POOL_WARM_FLOOR", 3),
	}, logger)
	pool.Start()
	defer pool.Shutdown()

	lobby := matchmaking.NewLobby(pool, logger)
	st := store.NewMemory()
	gameManager := service.NewGameManager(lobby, st, logger)
	gameService := service.NewGameService(gameManager)

	gameController := controller.NewGameController(gameService)
	wsController := controller.NewWebSocketController(gameService, logger)

	app := fiber.New()

	allowedOrigin := getenv("ALLOWED_ORIGIN", "http://localhost:5173")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigin,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Player-ID",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: true,
	}))

	app.Use(func(c *fiber.Ctx) error {
		logger.Debug().Str("method", c.Method()).Str("path", c.Path()).Msg("incoming request")
		return c.Next()
	})

	app.Use("/ws/*", middleware.EnsurePlayerID())
	app.Get("/ws/game/:gameId", middleware.WebSocketUpgrade(), websocket.New(func(c *websocket.Conn) {
		wsController.HandleConnection(c)
	}, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Origins:         []string{allowedOrigin},
	}))

	api := app.Group("/api", middleware.EnsurePlayerID())
	gameRoutes := api.Group("/game")
	gameRoutes.Post("/create", gameController.CreateGame)
	gameRoutes.Get("/", gameController.ListGames)
	gameRoutes.Get("/:gameId", gameController.GetGameState)
	gameRoutes.Post("/:gameId/pause", gameController.Pause)
	gameRoutes.Post("/:gameId/resume", gameController.Resume)
	gameRoutes.Post("/:gameId/resign", gameController.Resign)
	gameRoutes.Post("/:gameId/go", gameController.SendGo)
	gameRoutes.Post("/:gameId/sit", gameController.SendSit)

	log.Fatal().Err(app.Listen(getenv("LISTEN_ADDR", ":3000"))).Msg("server exited")
}
