package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	parcelColumns = `id, parcel_name, parcel_type, description, weight, cost,
		sender_name, sender_email, sender_address,
		receiver_name, receiver_email, receiver_address,
		payment_status, delivery_status, tracking_id, rider_email,
		created_at, updated_at`

	parcelsTrackingIDKey = "parcels_tracking_id_key"
)

type parcelRepo struct {
	db     querier
	logger *zap.Logger
	tracer trace.Tracer
}

func scanParcel(row pgx.Row) (*domain.Parcel, error) {
	var p domain.Parcel
	if err := row.Scan(
		&p.ID,
		&p.ParcelName,
		&p.ParcelType,
		&p.Description,
		&p.Weight,
		&p.Cost,
		&p.SenderName,
		&p.SenderEmail,
		&p.SenderAddress,
		&p.ReceiverName,
		&p.ReceiverEmail,
		&p.ReceiverAddress,
		&p.PaymentStatus,
		&p.DeliveryStatus,
		&p.TrackingID,
		&p.RiderEmail,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *parcelRepo) Create(ctx context.Context, parcel *domain.Parcel) error {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("parcel_id", parcel.ID),
		attribute.String("sender_email", parcel.SenderEmail),
	)

	query := `
		INSERT INTO parcels (
			id, parcel_name, parcel_type, description, weight, cost,
			sender_name, sender_email, sender_address,
			receiver_name, receiver_email, receiver_address,
			payment_status, delivery_status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`

	if _, err := r.db.Exec(ctx, query,
		parcel.ID,
		parcel.ParcelName,
		parcel.ParcelType,
		parcel.Description,
		parcel.Weight,
		parcel.Cost,
		parcel.SenderName,
		parcel.SenderEmail,
		parcel.SenderAddress,
		parcel.ReceiverName,
		parcel.ReceiverEmail,
		parcel.ReceiverAddress,
		string(parcel.PaymentStatus),
		string(parcel.DeliveryStatus),
		parcel.CreatedAt,
	); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to insert parcel", zap.Error(err))

		return fmt.Errorf("error inserting parcel: %w", err)
	}

	parcel.UpdatedAt = parcel.CreatedAt

	return nil
}

func (r *parcelRepo) GetByID(ctx context.Context, id string) (*domain.Parcel, error) {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("parcel_id", id))

	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE id = $1`

	return r.getOne(ctx, span, query, id)
}

func (r *parcelRepo) GetByTrackingID(ctx context.Context, trackingID string) (*domain.Parcel, error) {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.GetByTrackingID")
	defer span.End()

	span.SetAttributes(attribute.String("tracking_id", trackingID))

	query := `SELECT ` + parcelColumns + ` FROM parcels WHERE tracking_id = $1`

	return r.getOne(ctx, span, query, trackingID)
}

func (r *parcelRepo) List(ctx context.Context, filter domain.ParcelFilter) ([]domain.Parcel, error) {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.List")
	defer span.End()

	var (
		conditions []string
		args       []any
	)

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("sender_email", filter.SenderEmail)
	add("rider_email", filter.RiderEmail)
	add("payment_status", string(filter.PaymentStatus))
	add("delivery_status", string(filter.DeliveryStatus))

	query := `SELECT ` + parcelColumns + ` FROM parcels`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to list parcels", zap.Error(err))

		return nil, fmt.Errorf("error listing parcels: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Parcel, 0)
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning parcel: %w", err)
		}

		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcels: %w", err)
	}

	return result, nil
}

func (r *parcelRepo) DeleteUnpaid(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.DeleteUnpaid")
	defer span.End()

	span.SetAttributes(attribute.String("parcel_id", id))

	query := `
		WITH target AS (
			SELECT id, payment_status FROM parcels WHERE id = $1
		), deleted AS (
			DELETE FROM parcels p
			USING target t
			WHERE p.id = t.id AND t.payment_status = 'unpaid'
			RETURNING p.id
		)
		SELECT
			EXISTS (SELECT 1 FROM target),
			EXISTS (SELECT 1 FROM deleted)
	`

	var found, deleted bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&found, &deleted); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to delete parcel", zap.Error(err))

		return fmt.Errorf("error deleting parcel: %w", err)
	}

	switch {
	case !found:
		return repository.ErrParcelNotFound
	case !deleted:
		return repository.ErrParcelAlreadyPaid
	}

	return nil
}

func (r *parcelRepo) MarkPaid(ctx context.Context, id, trackingID string, at time.Time) (*domain.Parcel, error) {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.MarkPaid")
	defer span.End()

	span.SetAttributes(
		attribute.String("parcel_id", id),
		attribute.String("tracking_id", trackingID),
	)

	query := `
		UPDATE parcels
		SET payment_status = 'paid',
			tracking_id = COALESCE(tracking_id, $2),
			delivery_status = CASE WHEN delivery_status = 'none' THEN 'pending-pickup' ELSE delivery_status END,
			updated_at = $3
		WHERE id = $1
		RETURNING ` + parcelColumns

	p, err := scanParcel(r.db.QueryRow(ctx, query, id, trackingID, at))
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, repository.ErrParcelNotFound
		case uniqueViolationOn(err, parcelsTrackingIDKey):
			return nil, repository.ErrTrackingIDTaken
		}

		mylogger.Error(ctx, r.logger, "Failed to mark parcel paid", zap.String("parcel_id", id), zap.Error(err))

		return nil, fmt.Errorf("error marking parcel paid: %w", err)
	}

	return p, nil
}

func (r *parcelRepo) AssignRider(ctx context.Context, id, riderEmail string, at time.Time) (*domain.Parcel, error) {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.AssignRider")
	defer span.End()

	span.SetAttributes(
		attribute.String("parcel_id", id),
		attribute.String("rider_email", riderEmail),
	)

	query := `
		UPDATE parcels
		SET rider_email = $2,
			delivery_status = 'rider-assigned',
			updated_at = $3
		WHERE id = $1 AND payment_status = 'paid' AND delivery_status = 'pending-pickup'
		RETURNING ` + parcelColumns

	p, err := scanParcel(r.db.QueryRow(ctx, query, id, riderEmail, at))
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id)
		}

		mylogger.Error(ctx, r.logger, "Failed to assign rider", zap.String("parcel_id", id), zap.Error(err))

		return nil, fmt.Errorf("error assigning rider: %w", err)
	}

	return p, nil
}

func (r *parcelRepo) UpdateDeliveryStatus(
	ctx context.Context,
	id string,
	from, to domain.DeliveryStatus,
	at time.Time,
) (*domain.Parcel, error) {
	ctx, span := r.tracer.Start(ctx, "ParcelRepository.UpdateDeliveryStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("parcel_id", id),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	query := `
		UPDATE parcels
		SET delivery_status = $3,
			updated_at = $4
		WHERE id = $1 AND delivery_status = $2
		RETURNING ` + parcelColumns

	p, err := scanParcel(r.db.QueryRow(ctx, query, id, string(from), string(to), at))
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id)
		}

		mylogger.Error(ctx, r.logger, "Failed to update delivery status", zap.String("parcel_id", id), zap.Error(err))

		return nil, fmt.Errorf("error updating delivery status: %w", err)
	}

	return p, nil
}

func (r *parcelRepo) getOne(ctx context.Context, span trace.Span, query string, arg any) (*domain.Parcel, error) {
	p, err := scanParcel(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrParcelNotFound
		}

		mylogger.Error(ctx, r.logger, "Failed to get parcel", zap.Error(err))

		return nil, fmt.Errorf("error getting parcel: %w", err)
	}

	return p, nil
}

// missOrConflict tells a missing parcel apart from one whose state no longer
// matches a conditional update.
func (r *parcelRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parcels WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking parcel: %w", err)
	}

	if !exists {
		return repository.ErrParcelNotFound
	}

	return repository.ErrParcelStatusConflict
}
