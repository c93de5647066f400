package serverutils

import (
	"context"
	"errors"

	"legal-discovery-be/pkg/audit"
	"legal-discovery-be/pkg/rag/broker"
	"legal-discovery-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns handler errors into the JSON envelope. Domain
// errors get their own status codes; anything unknown is a 500 whose cause
// stays out of the response.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message, details := Classify(err)
		return ctx.Status(code).JSON(ErrorResponse(code, message, details))
	}
}

// Classify maps an error to a status code, message and optional details.
func Classify(err error) (int, string, interface{}) {
	var (
		fiberErr     *fiber.Error
		validation   *ValidationError
		integrityErr *audit.IntegrityViolationError
	)
	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, "Invalid request", validation.Fields
	case errors.Is(err, store.ErrInvalidQuery):
		return fiber.StatusBadRequest, err.Error(), nil
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message, nil
	case errors.Is(err, broker.ErrRetrievalUnavailable):
		return fiber.StatusServiceUnavailable, "Retrieval backends unavailable", nil
	case errors.Is(err, audit.ErrLedgerClosed):
		return fiber.StatusServiceUnavailable, "Audit ledger unavailable", nil
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "Query deadline exceeded", nil
	case errors.As(err, &integrityErr):
		return fiber.StatusConflict, integrityErr.Error(), nil
	default:
		return fiber.StatusInternalServerError, "Internal server error", nil
	}
}
