package controller

import (
	"legal-discovery-be/internal/dto"
	"legal-discovery-be/internal/pkg/serverutils"
	"legal-discovery-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ICorpusController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler, roles ...string)
	Ingest(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type corpusController struct {
	service service.ICorpusService
}

func NewCorpusController(service service.ICorpusService) ICorpusController {
	return &corpusController{service: service}
}

func (c *corpusController) RegisterRoutes(r fiber.Router, auth fiber.Handler, roles ...string) {
	h := r.Group("/corpus/v1")
	h.Use(auth, serverutils.RequireRole(roles...))
	h.Post("/documents", c.Ingest)
	h.Get("/stats", c.Stats)
}

// Ingest queues the document, or stores it before replying with ?sync=true.
func (c *corpusController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if ctx.QueryBool("sync") {
		if err := c.service.Ingest(ctx.UserContext(), &req); err != nil {
			return err
		}
		return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Document ingested", dto.IngestAcceptedResponse{DocId: req.DocId}))
	}

	if err := c.service.Submit(ctx.UserContext(), &req); err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document queued", dto.IngestAcceptedResponse{DocId: req.DocId, Queued: true}))
}

func (c *corpusController) Stats(ctx *fiber.Ctx) error {
	res, err := c.service.Stats(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get corpus stats", res))
}
