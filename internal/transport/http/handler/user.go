package handler

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
	"go.uber.org/zap"
)

type UserHandler struct {
	users    service.UserService
	guard    *service.RoleGuard
	validate *validator.Validate
	logger   *zap.Logger
}

func NewUserHandler(users service.UserService, guard *service.RoleGuard, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		guard:    guard,
		validate: utils.NewValidator(),
		logger:   logger,
	}
}

type RegisterUserInput struct {
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName" validate:"max=100"`
	PhotoURL    string `json:"photoURL" validate:"omitempty,url"`
}

type UpdateRoleInput struct {
	Role string `json:"role" validate:"required,oneof=user rider admin"`
}

// Register records the caller on first login. The stored email always comes
// from the verified token; a differing body email is refused.
func (h *UserHandler) Register(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	input := new(RegisterUserInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	email := strings.ToLower(principal.Email)
	if input.Email != "" && !strings.EqualFold(strings.TrimSpace(input.Email), email) {
		return WriteError(c, h.logger, "register user denied", service.ErrForbidden)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	user, created, err := h.users.Register(ctx, &domain.User{
		Email:       email,
		DisplayName: input.DisplayName,
		PhotoURL:    input.PhotoURL,
	})
	if err != nil {
		return WriteError(c, h.logger, "register user failed", err)
	}

	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "user already exists",
			"user":    user,
		})
	}

	mylogger.Info(ctx, h.logger, "register user succeeded", zap.String("email", user.Email))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": user,
	})
}

// GetRole answers with the stored role of a user. Unknown users have the
// default role.
func (h *UserHandler) GetRole(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	email := strings.ToLower(c.Params("email"))
	if email != principal.Email && !principal.IsAdmin() {
		return WriteError(c, h.logger, "get role denied", service.ErrForbidden)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()

	resolved, err := h.guard.Resolve(ctx, email)
	if err != nil {
		return WriteError(c, h.logger, "get role failed", err)
	}

	return c.JSON(fiber.Map{
		"role": resolved.Role,
	})
}

func (h *UserHandler) Search(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	users, err := h.users.Search(ctx, c.Query("search"))
	if err != nil {
		return WriteError(c, h.logger, "search users failed", err)
	}

	return c.JSON(users)
}

func (h *UserHandler) UpdateRole(c *fiber.Ctx) error {
	input := new(UpdateRoleInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	user, err := h.users.UpdateRole(ctx, strings.ToLower(c.Params("email")), domain.Role(input.Role))
	if err != nil {
		return WriteError(c, h.logger, "update role failed", err)
	}

	return c.JSON(user)
}
