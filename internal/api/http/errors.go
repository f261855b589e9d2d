package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-feed/internal/auth"
	"github.com/i474232898/weather-feed/internal/weather"
)

// ErrorHandler renders every error as {"error": true, "message": ...}.
// Domain errors map to 400/401/404; anything else is a 500 whose details
// are logged but not returned.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code, message = fe.Code, fe.Message
		case errors.Is(err, weather.ErrValidation):
			code, message = fiber.StatusBadRequest, err.Error()
		case errors.Is(err, weather.ErrUnauthorized):
			code, message = fiber.StatusUnauthorized, err.Error()
		case errors.Is(err, weather.ErrNotFound):
			code, message = fiber.StatusNotFound, err.Error()
		case errors.Is(err, auth.ErrSignupDisabled):
			code, message = fiber.StatusForbidden, err.Error()
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}
