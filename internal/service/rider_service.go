package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type RiderService interface {
	Apply(ctx context.Context, principal domain.Principal, rider *domain.Rider) (*domain.Rider, error)
	List(ctx context.Context, status domain.RiderStatus) ([]domain.Rider, error)
	// UpdateStatus approves or rejects an application. Approval promotes the
	// rider's user to the rider role.
	UpdateStatus(ctx context.Context, id string, status domain.RiderStatus) (*domain.Rider, error)
}

type riderService struct {
	riders repository.RiderRepository
	users  UserService
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewRiderService(riders repository.RiderRepository, users UserService, logger *zap.Logger) RiderService {
	return &riderService{
		riders: riders,
		users:  users,
		logger: logger,
		tracer: otel.Tracer("service/rider_service"),
		now:    time.Now,
	}
}

func (s *riderService) Apply(ctx context.Context, principal domain.Principal, rider *domain.Rider) (*domain.Rider, error) {
	ctx, span := s.tracer.Start(ctx, "RiderService.Apply")
	defer span.End()

	if strings.TrimSpace(rider.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	rider.ID = uuid.NewString()
	rider.Email = principal.Email
	rider.Status = domain.RiderStatusPending
	rider.CreatedAt = s.now().UTC()

	if err := s.riders.Create(ctx, rider); err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(ctx, s.logger, "Rider application received", zap.String("email", rider.Email))

	return rider, nil
}

func (s *riderService) List(ctx context.Context, status domain.RiderStatus) ([]domain.Rider, error) {
	ctx, span := s.tracer.Start(ctx, "RiderService.List")
	defer span.End()

	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown rider status %q", ErrValidation, status)
	}

	return s.riders.List(ctx, status)
}

func (s *riderService) UpdateStatus(ctx context.Context, id string, status domain.RiderStatus) (*domain.Rider, error) {
	ctx, span := s.tracer.Start(ctx, "RiderService.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("rider_id", id),
		attribute.String("status", string(status)),
	)

	if status != domain.RiderStatusActive && status != domain.RiderStatusRejected {
		return nil, fmt.Errorf("%w: status must be active or rejected", ErrValidation)
	}

	rider, err := s.riders.UpdateStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if status == domain.RiderStatusActive {
		// Approval can be repeated if the promotion fails.
		if _, err := s.users.UpdateRole(ctx, rider.Email, domain.RoleRider); err != nil {
			span.RecordError(err)
			mylogger.Error(ctx, s.logger, "Failed to promote rider", zap.String("email", rider.Email), zap.Error(err))

			return nil, fmt.Errorf("failed to promote rider %s: %w", rider.Email, err)
		}
	}

	mylogger.Info(ctx, s.logger, "Rider status changed", zap.String("rider_id", id), zap.String("status", string(status)))

	return rider, nil
}
