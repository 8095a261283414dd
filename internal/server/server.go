package server

import (
	"backend-contravento/internal/auth"
	"backend-contravento/internal/config"
	"backend-contravento/internal/route"
	"backend-contravento/internal/stream"
	"backend-contravento/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Pool   *worker.Pool
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
		Pool:   worker.NewPool(cfg.ProcessWorkers),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	opts := route.Options{
		Simplify:        s.Cfg.SimplifyOptions(),
		RetryEpsilonDeg: s.Cfg.RetryEpsilonDeg,
		Stats:           s.Cfg.StatsOptions(),
		ProcessTimeout:  s.Cfg.ProcessTimeout(),
	}
	route.RegisterRoutes(s.App.Group("/routes"), route.NewService(s.DB, s.Redis, s.Pool, s.Stream, opts), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
