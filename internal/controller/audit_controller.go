package controller

import (
	"legal-discovery-be/internal/dto"
	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/internal/pkg/serverutils"
	"legal-discovery-be/internal/service"
	internalWS "legal-discovery-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IAuditController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler, roles ...string)
	Verify(ctx *fiber.Ctx) error
	Events(ctx *fiber.Ctx) error
	Head(ctx *fiber.Ctx) error
	Feed(ctx *fiber.Ctx) error
}

type auditController struct {
	service service.IAuditService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

// NewAuditController builds the controller; without a hub the live feed
// answers 503.
func NewAuditController(service service.IAuditService, hub *internalWS.Hub, log logger.ILogger) IAuditController {
	return &auditController{service: service, hub: hub, logger: log}
}

func (c *auditController) RegisterRoutes(r fiber.Router, auth fiber.Handler, roles ...string) {
	h := r.Group("/audit/v1")
	h.Use(auth, serverutils.RequireRole(roles...))
	h.Get("/verify", c.Verify)
	h.Get("/events", c.Events)
	h.Get("/head", c.Head)
	h.Get("/feed", c.Feed)
}

func (c *auditController) Verify(ctx *fiber.Ctx) error {
	res, err := c.service.Verify(ctx.UserContext())
	if err != nil {
		return err
	}
	msg := "Ledger intact"
	if !res.Ok {
		msg = "Ledger integrity violation"
	}
	return ctx.JSON(serverutils.SuccessResponse(msg, res))
}

func (c *auditController) Events(ctx *fiber.Ctx) error {
	var q dto.AuditEventsQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed query parameters")
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	res, err := c.service.Events(ctx.UserContext(), &q)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get audit events", res))
}

func (c *auditController) Head(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get ledger head", c.service.Head(ctx.UserContext())))
}

// Feed streams every appended ledger event to the reviewer over a websocket.
func (c *auditController) Feed(ctx *fiber.Ctx) error {
	if c.hub == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Live feed disabled")
	}
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	actor := serverutils.Actor(ctx)

	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("AUDIT", "Feed session started", map[string]interface{}{"actor": actor})
		internalWS.ServeWs(c.hub, conn, actor)
		c.logger.Info("AUDIT", "Feed session ended", map[string]interface{}{"actor": actor})
	})(ctx)
}
