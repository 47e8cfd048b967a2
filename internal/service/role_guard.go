package service

import (
	"context"
	"errors"
	"slices"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
)

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RoleGuard permits privileged operations by the stored role of a verified
// principal. It never writes.
type RoleGuard struct {
	users UserLookup
}

func NewRoleGuard(users UserLookup) *RoleGuard {
	return &RoleGuard{users: users}
}

// Resolve returns the principal for a verified email. Callers without a user
// record act with the default user role.
func (g *RoleGuard) Resolve(ctx context.Context, email string) (domain.Principal, error) {
	if email == "" {
		return domain.Principal{}, ErrUnauthorized
	}

	user, err := g.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.Principal{Email: email, Role: user.Role}, nil
	case errors.Is(err, repository.ErrUserNotFound):
		return domain.Principal{Email: email, Role: domain.RoleUser}, nil
	default:
		return domain.Principal{}, err
	}
}

// Authorize fails with ErrForbidden unless the stored role of email is one of allowed.
func (g *RoleGuard) Authorize(ctx context.Context, email string, allowed ...domain.Role) (*domain.User, error) {
	if email == "" {
		return nil, ErrUnauthorized
	}

	user, err := g.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrForbidden
		}

		return nil, err
	}

	if !slices.Contains(allowed, user.Role) {
		return nil, ErrForbidden
	}

	return user, nil
}
