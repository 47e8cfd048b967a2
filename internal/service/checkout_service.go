package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CheckoutRequest struct {
	ParcelID    string
	ParcelName  string
	Cost        float64
	SenderEmail string
}

type CheckoutConfig struct {
	SiteDomain string
	Currency   string
}

type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*domain.CheckoutSession, error)
}

type checkoutService struct {
	parcels  repository.ParcelRepository
	provider PaymentProvider
	cfg      CheckoutConfig
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewCheckoutService(
	parcels repository.ParcelRepository,
	provider PaymentProvider,
	cfg CheckoutConfig,
	logger *zap.Logger,
) CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.SiteDomain = strings.TrimRight(cfg.SiteDomain, "/")

	return &checkoutService{
		parcels:  parcels,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("service/checkout_service"),
	}
}

func (s *checkoutService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*domain.CheckoutSession, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.CreateCheckoutSession")
	defer span.End()

	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("parcel_id", req.ParcelID),
		attribute.Float64("cost", req.Cost),
	)

	parcel, err := s.parcels.GetByID(ctx, req.ParcelID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !strings.EqualFold(parcel.SenderEmail, strings.TrimSpace(req.SenderEmail)) {
		return nil, fmt.Errorf("%w: parcel %s belongs to another sender", ErrForbidden, parcel.ID)
	}

	if parcel.IsPaid() {
		return nil, fmt.Errorf("%w: parcel %s is already paid", ErrConflict, parcel.ID)
	}

	amountMinor := domain.ToMinorUnits(req.Cost)
	if amountMinor != domain.ToMinorUnits(parcel.Cost) {
		return nil, fmt.Errorf("%w: cost does not match the parcel", ErrValidation)
	}

	session, err := s.provider.CreateSession(ctx, domain.CheckoutParams{
		ParcelID:      parcel.ID,
		ParcelName:    parcel.ParcelName,
		AmountMinor:   amountMinor,
		Currency:      s.cfg.Currency,
		CustomerEmail: parcel.SenderEmail,
		SuccessURL:    s.cfg.SiteDomain + "/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.SiteDomain + "/dashboard/payment-cancelled",
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, s.logger, "Create checkout session failed", zap.String("parcel_id", parcel.ID), zap.Error(err))

		return nil, asProviderError(err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Checkout session created",
		zap.String("parcel_id", parcel.ID),
		zap.String("session_id", session.ID),
	)

	return session, nil
}

func validateCheckout(req CheckoutRequest) error {
	var problems []error

	if strings.TrimSpace(req.ParcelID) == "" {
		problems = append(problems, errors.New("parcelId is required"))
	}
	if strings.TrimSpace(req.SenderEmail) == "" {
		problems = append(problems, errors.New("senderEmail is required"))
	}
	if math.IsNaN(req.Cost) || math.IsInf(req.Cost, 0) || req.Cost <= 0 {
		problems = append(problems, errors.New("cost must be a positive amount"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrValidation, errors.Join(problems...))
	}

	return nil
}
