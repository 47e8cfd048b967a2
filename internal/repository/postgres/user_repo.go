package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const userColumns = `email, display_name, photo_url, role, created_at, last_login_at`

type userRepo struct {
	db     querier
	logger *zap.Logger
	tracer trace.Tracer
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.Email,
		&u.DisplayName,
		&u.PhotoURL,
		&u.Role,
		&u.CreatedAt,
		&u.LastLoginAt,
	); err != nil {
		return nil, err
	}

	return &u, nil
}

func (r *userRepo) Upsert(ctx context.Context, user *domain.User) (*domain.User, bool, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Upsert")
	defer span.End()

	span.SetAttributes(attribute.String("email", user.Email))

	// xmax is zero only for freshly inserted rows.
	query := `
		INSERT INTO users (email, display_name, photo_url, role, created_at, last_login_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE
		SET last_login_at = NOW(),
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
			photo_url = COALESCE(NULLIF(EXCLUDED.photo_url, ''), users.photo_url)
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`

	var (
		u        domain.User
		inserted bool
	)
	if err := r.db.QueryRow(ctx, query,
		user.Email,
		user.DisplayName,
		user.PhotoURL,
		string(user.Role),
	).Scan(
		&u.Email,
		&u.DisplayName,
		&u.PhotoURL,
		&u.Role,
		&u.CreatedAt,
		&u.LastLoginAt,
		&inserted,
	); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to upsert user", zap.Error(err))

		return nil, false, fmt.Errorf("error upserting user: %w", err)
	}

	return &u, inserted, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByEmail")
	defer span.End()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}

		mylogger.Error(ctx, r.logger, "Failed to get user by email", zap.String("email", email), zap.Error(err))

		return nil, fmt.Errorf("error getting user: %w", err)
	}

	return u, nil
}

func (r *userRepo) List(ctx context.Context, search string, limit int) ([]domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.List")
	defer span.End()

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE $1 = '' OR email ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, search, limit)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to list users", zap.Error(err))

		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	result := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning user: %w", err)
		}

		result = append(result, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return result, nil
}

func (r *userRepo) UpdateRole(ctx context.Context, email string, role domain.Role) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.UpdateRole")
	defer span.End()

	span.SetAttributes(
		attribute.String("email", email),
		attribute.String("role", string(role)),
	)

	query := `
		UPDATE users
		SET role = $2
		WHERE email = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRow(ctx, query, email, string(role)))
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}

		mylogger.Error(ctx, r.logger, "Failed to update user role", zap.Error(err))

		return nil, fmt.Errorf("error updating user role: %w", err)
	}

	return u, nil
}
