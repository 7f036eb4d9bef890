package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-notebooks/internal/core/domain"
	"github.com/melih/lighthouse-notebooks/internal/log"
)

// errorResponse maps a domain error to a status code and a JSON body.
func errorResponse(c *fiber.Ctx, err error) error {
	status, msg := classify(err)
	if status >= fiber.StatusInternalServerError {
		logger := log.WithComponent("http")
		logger.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func classify(err error) (int, string) {
	var rtErr *domain.RuntimeError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrImageNotFound):
		return fiber.StatusBadRequest, "Docker image not found. Check the image name."
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, "Container not found."
	case errors.Is(err, domain.ErrPortAllocation):
		return fiber.StatusInternalServerError, "Container did not receive a dynamic port."
	case errors.As(err, &rtErr):
		return fiber.StatusInternalServerError, "Docker API error: " + rtErr.Detail
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, "Container belongs to another user."
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "Incorrect password."
	case errors.Is(err, domain.ErrUserNotFound):
		return fiber.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrEmailTaken):
		return fiber.StatusBadRequest, "Email is already registered."
	case errors.Is(err, domain.ErrInvalidOTP):
		return fiber.StatusBadRequest, "Invalid OTP"
	case errors.Is(err, domain.ErrOTPExpired):
		return fiber.StatusBadRequest, "OTP expired"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}
