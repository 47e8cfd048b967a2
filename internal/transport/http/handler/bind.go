package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
	"go.uber.org/zap"
)

// bind parses the JSON body into out and validates it. When it reports false
// the 400 response has already been written and err is the write result.
func bind(c *fiber.Ctx, validate *validator.Validate, logger *zap.Logger, out any) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		mylogger.Warn(
			c.UserContext(),
			logger,
			"failed to parse body",
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := validate.Struct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	return true, nil
}
