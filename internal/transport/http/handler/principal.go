package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
)

const principalKey = "principal"

func SetPrincipal(c *fiber.Ctx, principal domain.Principal) {
	c.Locals(principalKey, principal)
}

func PrincipalFrom(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	if !ok || principal.Email == "" {
		return domain.Principal{}, false
	}

	return principal, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed principal"})
}
