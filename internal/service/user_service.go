package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const userSearchLimit = 10

type UserService interface {
	// Register records a user on first login. Existing users keep their role.
	Register(ctx context.Context, user *domain.User) (*domain.User, bool, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Search(ctx context.Context, search string) ([]domain.User, error)
	UpdateRole(ctx context.Context, email string, role domain.Role) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	logger *zap.Logger
	tracer trace.Tracer
}

func NewUserService(users repository.UserRepository, logger *zap.Logger) UserService {
	return &userService{
		users:  users,
		logger: logger,
		tracer: otel.Tracer("service/user_service"),
	}
}

func (s *userService) Register(ctx context.Context, user *domain.User) (*domain.User, bool, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return nil, false, fmt.Errorf("%w: email is required", ErrValidation)
	}
	user.Role = domain.RoleUser

	stored, created, err := s.users.Upsert(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}

	if created {
		mylogger.Info(ctx, s.logger, "User registered", zap.String("email", stored.Email))
	}

	return stored, created, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetByEmail")
	defer span.End()

	return s.users.GetByEmail(ctx, email)
}

func (s *userService) Search(ctx context.Context, search string) ([]domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Search")
	defer span.End()

	return s.users.List(ctx, strings.TrimSpace(search), userSearchLimit)
}

func (s *userService) UpdateRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.UpdateRole")
	defer span.End()

	span.SetAttributes(
		attribute.String("email", email),
		attribute.String("role", string(role)),
	)

	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	user, err := s.users.UpdateRole(ctx, email, role)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(ctx, s.logger, "User role changed", zap.String("email", email), zap.String("role", string(role)))

	return user, nil
}
