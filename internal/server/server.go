package server

import (
	"log"

	"legal-discovery-be/internal/bootstrap"
	"legal-discovery-be/internal/config"
	"legal-discovery-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB, enough for a bulk document submission
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	registerRoutes(app, cfg, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("✅ Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App, cfg *config.Config, c *bootstrap.Container) {
	app.Get("/healthz", func(ctx *fiber.Ctx) error {
		head := map[string]interface{}{"sequence_no": 0}
		if h := c.Ledger.Head(); h != nil {
			head["sequence_no"] = h.Sequence
			head["hash"] = h.Hash
		}
		return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{"audit_head": head}))
	})

	api := app.Group("/api")
	auth := serverutils.JwtMiddleware(cfg.Auth.JWTSecret)

	c.RetrievalController.RegisterRoutes(api, auth)
	c.AuditController.RegisterRoutes(api, auth, cfg.Auth.AuditRoles...)
	c.CorpusController.RegisterRoutes(api, auth, cfg.Auth.IngestRoles...)
}
