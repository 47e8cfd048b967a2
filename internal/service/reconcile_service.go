package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	generalDomain "github.com/sakib404-hub/zap-shit-server/pkg/domain"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	outboxDomain "github.com/sakib404-hub/zap-shit-server/pkg/outbox/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	trackingAttempts = 3

	DefaultEventTopic = "parcel_events"
)

// ReconcileService turns a settled checkout session into a paid parcel and
// exactly one payment record per provider transaction.
type ReconcileService interface {
	Reconcile(ctx context.Context, sessionID string) (*domain.ReconcileResult, error)
}

type ReconcileOption func(*reconcileService)

// Reconcile outcomes reported to ReconcileMetrics.
const (
	OutcomeSettled          = "settled"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeUnpaid           = "unpaid"
	OutcomeFailed           = "failed"
)

type ReconcileMetrics interface {
	ObserveReconcile(outcome string)
	ObserveTrackingCollision()
}

type noopMetrics struct{}

func (noopMetrics) ObserveReconcile(string)   {}
func (noopMetrics) ObserveTrackingCollision() {}

func WithClock(now func() time.Time) ReconcileOption {
	return func(s *reconcileService) {
		s.now = now
	}
}

func WithTrackingIDGenerator(gen TrackingIDGenerator) ReconcileOption {
	return func(s *reconcileService) {
		s.newTrackingID = gen
	}
}

func WithMetrics(m ReconcileMetrics) ReconcileOption {
	return func(s *reconcileService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithEventTopic(topic string) ReconcileOption {
	return func(s *reconcileService) {
		if topic != "" {
			s.topic = topic
		}
	}
}

type reconcileService struct {
	store         repository.Store
	provider      PaymentProvider
	logger        *zap.Logger
	tracer        trace.Tracer
	now           func() time.Time
	newTrackingID TrackingIDGenerator
	topic         string
	metrics       ReconcileMetrics
}

func NewReconcileService(
	store repository.Store,
	provider PaymentProvider,
	logger *zap.Logger,
	opts ...ReconcileOption,
) ReconcileService {
	s := &reconcileService{
		store:         store,
		provider:      provider,
		logger:        logger,
		tracer:        otel.Tracer("service/reconcile_service"),
		now:           time.Now,
		newTrackingID: NewTrackingID,
		topic:         DefaultEventTopic,
		metrics:       noopMetrics{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *reconcileService) Reconcile(ctx context.Context, sessionID string) (*domain.ReconcileResult, error) {
	result, err := s.reconcile(ctx, sessionID)
	s.metrics.ObserveReconcile(outcomeOf(result, err))

	return result, err
}

func outcomeOf(result *domain.ReconcileResult, err error) string {
	switch {
	case err != nil:
		return OutcomeFailed
	case result.AlreadyProcessed:
		return OutcomeAlreadyProcessed
	case result.Success:
		return OutcomeSettled
	default:
		return OutcomeUnpaid
	}
}

func (s *reconcileService) reconcile(ctx context.Context, sessionID string) (*domain.ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "ReconcileService.Reconcile")
	defer span.End()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrValidation)
	}

	span.SetAttributes(attribute.String("session_id", sessionID))

	outcome, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, s.logger, "Retrieve session failed", zap.String("session_id", sessionID), zap.Error(err))

		return nil, asProviderError(err)
	}

	transactionID := outcome.PaymentIntentID
	span.SetAttributes(
		attribute.String("transaction_id", transactionID),
		attribute.String("payment_status", outcome.PaymentStatus),
	)

	if transactionID != "" {
		existing, err := s.store.Payments().GetByTransactionID(ctx, transactionID)
		switch {
		case err == nil:
			return s.alreadyProcessed(ctx, existing)
		case !errors.Is(err, repository.ErrPaymentNotFound):
			span.RecordError(err)
			return nil, fmt.Errorf("failed to look up payment: %w", err)
		}
	}

	if !outcome.Paid() {
		mylogger.Info(
			ctx,
			s.logger,
			"Session not paid",
			zap.String("session_id", sessionID),
			zap.String("payment_status", outcome.PaymentStatus),
		)

		return &domain.ReconcileResult{Success: false}, nil
	}

	if transactionID == "" {
		return nil, fmt.Errorf("%w: paid session %s has no payment intent", ErrProvider, sessionID)
	}

	parcelID := outcome.Metadata[domain.MetadataParcelID]
	if parcelID == "" {
		return nil, fmt.Errorf("%w: session %s carries no parcel id", ErrValidation, sessionID)
	}

	now := s.now().UTC()

	for attempt := 1; attempt <= trackingAttempts; attempt++ {
		trackingID, err := s.newTrackingID(now)
		if err != nil {
			return nil, err
		}

		result, err := s.settle(ctx, outcome, parcelID, trackingID, now)
		switch {
		case err == nil:
			mylogger.Info(
				ctx,
				s.logger,
				"Payment reconciled",
				zap.String("transaction_id", transactionID),
				zap.String("parcel_id", parcelID),
				zap.String("tracking_id", result.TrackingID),
			)

			return result, nil
		case errors.Is(err, repository.ErrTrackingIDTaken):
			s.metrics.ObserveTrackingCollision()
			mylogger.Warn(
				ctx,
				s.logger,
				"Tracking id collision, retrying",
				zap.String("tracking_id", trackingID),
				zap.Int("attempt", attempt),
			)

			continue
		case errors.Is(err, repository.ErrPaymentAlreadyExists):
			// Lost the race against a concurrent reconcile of the same transaction.
			existing, err := s.store.Payments().GetByTransactionID(ctx, transactionID)
			if err != nil {
				return nil, fmt.Errorf("failed to load concurrent payment: %w", err)
			}

			return s.alreadyProcessed(ctx, existing)
		default:
			span.RecordError(err)
			mylogger.Error(ctx, s.logger, "Settle payment failed", zap.String("parcel_id", parcelID), zap.Error(err))

			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to allocate a unique tracking id after %d attempts", trackingAttempts)
}

func (s *reconcileService) settle(
	ctx context.Context,
	outcome *domain.SessionOutcome,
	parcelID, trackingID string,
	now time.Time,
) (*domain.ReconcileResult, error) {
	var result *domain.ReconcileResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		parcel, err := tx.Parcels().MarkPaid(ctx, parcelID, trackingID, now)
		if err != nil {
			return err
		}

		assigned := trackingID
		if parcel.TrackingID != nil {
			assigned = *parcel.TrackingID
		}

		customerEmail := outcome.CustomerEmail
		if customerEmail == "" {
			customerEmail = parcel.SenderEmail
		}

		payment := &domain.Payment{
			ID:            uuid.NewString(),
			TransactionID: outcome.PaymentIntentID,
			ParcelID:      parcel.ID,
			CustomerEmail: customerEmail,
			Amount:        domain.FromMinorUnits(outcome.AmountTotal),
			AmountMinor:   outcome.AmountTotal,
			Currency:      outcome.Currency,
			Status:        outcome.PaymentStatus,
			TrackingID:    assigned,
			PaidAt:        now,
		}

		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}

		parcelName := outcome.Metadata[domain.MetadataParcelName]
		if parcelName == "" {
			parcelName = parcel.ParcelName
		}

		event, err := outboxDomain.NewEvent(s.topic, "parcel", parcel.ID, generalDomain.EventParcelPaid, generalDomain.ParcelPaidEvent{
			ParcelID:      parcel.ID,
			ParcelName:    parcelName,
			SenderEmail:   parcel.SenderEmail,
			TrackingID:    assigned,
			TransactionID: payment.TransactionID,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			PaidAt:        now,
		})
		if err != nil {
			return err
		}

		if err := tx.Outbox().Append(ctx, event); err != nil {
			return fmt.Errorf("failed to append outbox event: %w", err)
		}

		result = &domain.ReconcileResult{
			Success:       true,
			TransactionID: payment.TransactionID,
			TrackingID:    assigned,
			Parcel:        parcel,
			Payment:       payment,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *reconcileService) alreadyProcessed(ctx context.Context, payment *domain.Payment) (*domain.ReconcileResult, error) {
	mylogger.Info(
		ctx,
		s.logger,
		"Payment already reconciled",
		zap.String("transaction_id", payment.TransactionID),
		zap.String("parcel_id", payment.ParcelID),
	)

	result := &domain.ReconcileResult{
		Success:          true,
		AlreadyProcessed: true,
		TransactionID:    payment.TransactionID,
		TrackingID:       payment.TrackingID,
		Payment:          payment,
	}

	parcel, err := s.store.Parcels().GetByID(ctx, payment.ParcelID)
	switch {
	case err == nil:
		result.Parcel = parcel
		if parcel.TrackingID != nil {
			result.TrackingID = *parcel.TrackingID
		}
	case errors.Is(err, repository.ErrParcelNotFound):
		mylogger.Warn(ctx, s.logger, "Parcel of recorded payment is missing", zap.String("parcel_id", payment.ParcelID))
	default:
		return nil, fmt.Errorf("failed to load parcel: %w", err)
	}

	return result, nil
}
