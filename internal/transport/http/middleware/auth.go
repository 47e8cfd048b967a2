package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/identity"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/internal/transport/http/handler"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.uber.org/zap"
)

const authTimeout = time.Second

// NewAuthMiddleware verifies the bearer token and stores the caller's
// principal with its current role in the request locals.
func NewAuthMiddleware(verifier identity.Verifier, guard *service.RoleGuard, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid header format"})
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), authTimeout)
		defer cancel()

		email, err := verifier.Verify(ctx, parts[1])
		if err != nil {
			mylogger.Debug(ctx, logger, "token rejected", zap.Error(err))

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid token"})
		}

		principal, err := guard.Resolve(ctx, email)
		if err != nil {
			return handler.WriteError(c, logger, "resolve principal failed", err)
		}

		handler.SetPrincipal(c, principal)
		return c.Next()
	}
}

// NewRoleMiddleware lets the request through only when the stored role of the
// authenticated caller is one of roles. It must run after NewAuthMiddleware.
func NewRoleMiddleware(guard *service.RoleGuard, logger *zap.Logger, roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := handler.PrincipalFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed principal"})
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), authTimeout)
		defer cancel()

		if _, err := guard.Authorize(ctx, principal.Email, roles...); err != nil {
			return handler.WriteError(c, logger, "role check failed", err)
		}

		return c.Next()
	}
}
