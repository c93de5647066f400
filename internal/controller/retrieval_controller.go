package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"legal-discovery-be/internal/dto"
	"legal-discovery-be/internal/pkg/logger"
	"legal-discovery-be/internal/pkg/serverutils"
	"legal-discovery-be/internal/service"
	"legal-discovery-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.opentelemetry.io/otel/trace"
)

type IRetrievalController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Query(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type retrievalController struct {
	service service.IRetrievalService
	logger  logger.ILogger
}

func NewRetrievalController(service service.IRetrievalService, log logger.ILogger) IRetrievalController {
	return &retrievalController{service: service, logger: log}
}

func (c *retrievalController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/retrieval/v1")
	h.Use(auth)
	h.Post("/query", c.Query)
	h.Post("/stream", c.Stream)
	h.Get("/ws", c.ServeWs)
}

func (c *retrievalController) parse(ctx *fiber.Ctx) (*dto.QueryRequest, error) {
	var req dto.QueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Malformed request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *retrievalController) Query(ctx *fiber.Ctx) error {
	req, err := c.parse(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Query(ctx.UserContext(), serverutils.Actor(ctx), req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Query answered", res))
}

// Stream answers over server-sent events: one "citation_resolved" per
// released document, "answer_token" frames, "done", and finally "result"
// carrying the complete payload (or "error").
func (c *retrievalController) Stream(ctx *fiber.Ctx) error {
	req, err := c.parse(ctx)
	if err != nil {
		return err
	}
	actor := serverutils.Actor(ctx)
	// the body writer outlives the handler, so only the span is carried over
	span := trace.SpanFromContext(ctx.UserContext())

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		runCtx, cancel := context.WithCancel(trace.ContextWithSpan(context.Background(), span))
		defer cancel()

		send := func(name string, v interface{}) {
			if runCtx.Err() != nil {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
			if err := w.Flush(); err != nil {
				// client went away
				cancel()
			}
		}

		res, err := c.service.Stream(runCtx, actor, req, func(ev store.StreamEvent) {
			send(string(ev.Kind), ev)
		})
		if err != nil {
			code, message, _ := serverutils.Classify(err)
			c.logger.Warn("RETRIEVAL", "Streamed query failed", map[string]interface{}{"actor": actor, "error": err.Error()})
			send("error", dto.StreamErrorResponse{Code: code, Message: message})
			return
		}
		send("result", res)
	})
	return nil
}

// ServeWs runs queries over a websocket. Each text message is a QueryRequest;
// the server replies with StreamFrames ending in one that carries the result
// ("result") or an error ("error"). The connection stays open for further
// queries.
func (c *retrievalController) ServeWs(ctx *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(ctx) {
		return fiber.ErrUpgradeRequired
	}
	actor := serverutils.Actor(ctx)

	return websocket.New(func(conn *websocket.Conn) {
		c.logger.Info("RETRIEVAL", "Query websocket opened", map[string]interface{}{"actor": actor})
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if !c.serveWsQuery(conn.WriteJSON, actor, raw) {
				return
			}
		}
	})(ctx)
}

// serveWsQuery answers one message and reports whether the connection is
// still writable. Engine events are relayed as they arrive; the last frame
// has kind "result" or "error".
func (c *retrievalController) serveWsQuery(send func(v interface{}) error, actor string, raw []byte) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writable := true
	write := func(frame dto.StreamFrame) {
		if !writable {
			return
		}
		if err := send(frame); err != nil {
			writable = false
			cancel()
		}
	}
	fail := func(err error) {
		code, message, _ := serverutils.Classify(err)
		write(dto.StreamFrame{
			Event: store.StreamEvent{Kind: dto.FrameError},
			Error: &dto.StreamErrorResponse{Code: code, Message: message},
		})
	}

	var req dto.QueryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		fail(fiber.NewError(fiber.StatusBadRequest, "Malformed query"))
		return writable
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		fail(err)
		return writable
	}

	res, err := c.service.Stream(ctx, actor, &req, func(ev store.StreamEvent) {
		write(dto.StreamFrame{Event: ev})
	})
	if err != nil {
		fail(err)
		return writable
	}
	write(dto.StreamFrame{Event: store.StreamEvent{Kind: dto.FrameResult, Status: res.Status}, Result: res})
	return writable
}
