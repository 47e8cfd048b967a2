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

const (
	paymentColumns = `id, transaction_id, parcel_id, customer_email, amount_minor, currency, status, tracking_id, paid_at`

	paymentsTransactionIDKey = "uq_payments_transaction_id"
)

type paymentRepo struct {
	db     querier
	logger *zap.Logger
	tracer trace.Tracer
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	if err := row.Scan(
		&p.ID,
		&p.TransactionID,
		&p.ParcelID,
		&p.CustomerEmail,
		&p.AmountMinor,
		&p.Currency,
		&p.Status,
		&p.TrackingID,
		&p.PaidAt,
	); err != nil {
		return nil, err
	}

	p.Amount = domain.FromMinorUnits(p.AmountMinor)

	return &p, nil
}

func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("transaction_id", payment.TransactionID),
		attribute.String("parcel_id", payment.ParcelID),
		attribute.Int64("amount_minor", payment.AmountMinor),
	)

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if _, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.TransactionID,
		payment.ParcelID,
		payment.CustomerEmail,
		payment.AmountMinor,
		payment.Currency,
		payment.Status,
		payment.TrackingID,
		payment.PaidAt,
	); err != nil {
		span.RecordError(err)

		if uniqueViolationOn(err, paymentsTransactionIDKey) {
			mylogger.Warn(ctx, r.logger, "Payment already recorded", zap.String("transaction_id", payment.TransactionID))

			return repository.ErrPaymentAlreadyExists
		}

		mylogger.Error(ctx, r.logger, "Create payment failed", zap.Error(err))

		return fmt.Errorf("error inserting payment: %w", err)
	}

	return nil
}

func (r *paymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.GetByTransactionID")
	defer span.End()

	span.SetAttributes(attribute.String("transaction_id", transactionID))

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`

	p, err := scanPayment(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrPaymentNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "GetByTransactionID failed", zap.Error(err))

		return nil, fmt.Errorf("error getting payment: %w", err)
	}

	return p, nil
}

func (r *paymentRepo) List(ctx context.Context, customerEmail string) ([]domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.List")
	defer span.End()

	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE $1 = '' OR customer_email = $1
		ORDER BY paid_at DESC
	`

	rows, err := r.db.Query(ctx, query, customerEmail)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to list payments", zap.Error(err))

		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}

		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return result, nil
}

func (r *paymentRepo) Count(ctx context.Context, transactionID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Count")
	defer span.End()

	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE transaction_id = $1`, transactionID).Scan(&n); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("error counting payments: %w", err)
	}

	return n, nil
}
