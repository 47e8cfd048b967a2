package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	riderColumns = `id, email, name, phone, region, district, nid, bike_brand, bike_reg, status, created_at, updated_at`

	ridersEmailKey = "riders_email_key"
)

type riderRepo struct {
	db     querier
	logger *zap.Logger
	tracer trace.Tracer
}

func scanRider(row pgx.Row) (*domain.Rider, error) {
	var rd domain.Rider
	if err := row.Scan(
		&rd.ID,
		&rd.Email,
		&rd.Name,
		&rd.Phone,
		&rd.Region,
		&rd.District,
		&rd.NID,
		&rd.BikeBrand,
		&rd.BikeReg,
		&rd.Status,
		&rd.CreatedAt,
		&rd.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &rd, nil
}

func (r *riderRepo) Create(ctx context.Context, rider *domain.Rider) error {
	ctx, span := r.tracer.Start(ctx, "RiderRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("email", rider.Email))

	query := `
		INSERT INTO riders (` + riderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`

	if _, err := r.db.Exec(ctx, query,
		rider.ID,
		rider.Email,
		rider.Name,
		rider.Phone,
		rider.Region,
		rider.District,
		rider.NID,
		rider.BikeBrand,
		rider.BikeReg,
		string(rider.Status),
		rider.CreatedAt,
	); err != nil {
		span.RecordError(err)

		if uniqueViolationOn(err, ridersEmailKey) {
			return repository.ErrRiderAlreadyExists
		}

		mylogger.Error(ctx, r.logger, "Failed to insert rider", zap.Error(err))

		return fmt.Errorf("error inserting rider: %w", err)
	}

	rider.UpdatedAt = rider.CreatedAt

	return nil
}

func (r *riderRepo) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	ctx, span := r.tracer.Start(ctx, "RiderRepository.GetByID")
	defer span.End()

	return r.getOne(ctx, span, `SELECT `+riderColumns+` FROM riders WHERE id = $1`, id)
}

func (r *riderRepo) GetByEmail(ctx context.Context, email string) (*domain.Rider, error) {
	ctx, span := r.tracer.Start(ctx, "RiderRepository.GetByEmail")
	defer span.End()

	return r.getOne(ctx, span, `SELECT `+riderColumns+` FROM riders WHERE email = $1`, email)
}

func (r *riderRepo) List(ctx context.Context, status domain.RiderStatus) ([]domain.Rider, error) {
	ctx, span := r.tracer.Start(ctx, "RiderRepository.List")
	defer span.End()

	query := `
		SELECT ` + riderColumns + `
		FROM riders
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, string(status))
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to list riders", zap.Error(err))

		return nil, fmt.Errorf("error listing riders: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Rider, 0)
	for rows.Next() {
		rd, err := scanRider(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning rider: %w", err)
		}

		result = append(result, *rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating riders: %w", err)
	}

	return result, nil
}

func (r *riderRepo) UpdateStatus(ctx context.Context, id string, status domain.RiderStatus, at time.Time) (*domain.Rider, error) {
	ctx, span := r.tracer.Start(ctx, "RiderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("rider_id", id),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE riders
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + riderColumns

	return r.getOne(ctx, span, query, id, string(status), at)
}

func (r *riderRepo) getOne(ctx context.Context, span trace.Span, query string, args ...any) (*domain.Rider, error) {
	rd, err := scanRider(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrRiderNotFound
		}

		mylogger.Error(ctx, r.logger, "Rider query failed", zap.Error(err))

		return nil, fmt.Errorf("error querying rider: %w", err)
	}

	return rd, nil
}
