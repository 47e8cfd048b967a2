package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/identity"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// StatusFromError maps service and repository errors onto HTTP status codes.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, identity.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrProvider):
		return fiber.StatusBadGateway
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrParcelNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrRiderNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, repository.ErrParcelAlreadyPaid),
		errors.Is(err, repository.ErrParcelStatusConflict),
		errors.Is(err, repository.ErrPaymentAlreadyExists),
		errors.Is(err, repository.ErrRiderAlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// WriteError logs err and answers with {"error": ...}. Server side failures
// are not echoed to the client.
func WriteError(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	status := StatusFromError(err)

	fields := []zap.Field{
		zap.Int("http_code", status),
		zap.String("path", c.Path()),
		zap.Error(err),
	}

	body := err.Error()
	switch {
	case status == fiber.StatusServiceUnavailable:
		mylogger.Warn(c.UserContext(), logger, "Circuit breaker open", fields...)
		body = "service temporarily unavailable"
	case status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway:
		mylogger.Error(c.UserContext(), logger, msg, fields...)
		body = "internal error"
	default:
		mylogger.Warn(c.UserContext(), logger, msg, fields...)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": body,
	})
}
