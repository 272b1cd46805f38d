package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

// ErrorHandler maps domain sentinel errors onto HTTP status codes and renders
// a uniform error envelope. Unmapped errors surface as 500s.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)

		logger.Error("request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

func statusFor(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrGateNotSatisfied):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}
