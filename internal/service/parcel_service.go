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

type ParcelService interface {
	Create(ctx context.Context, principal domain.Principal, parcel *domain.Parcel) (*domain.Parcel, error)
	GetByID(ctx context.Context, principal domain.Principal, id string) (*domain.Parcel, error)
	// List returns every parcel matching filter for admins and only the
	// caller's own parcels otherwise.
	List(ctx context.Context, principal domain.Principal, filter domain.ParcelFilter) ([]domain.Parcel, error)
	Delete(ctx context.Context, principal domain.Principal, id string) error
	Track(ctx context.Context, trackingID string) (*domain.Parcel, error)
	AssignRider(ctx context.Context, id, riderEmail string) (*domain.Parcel, error)
	UpdateDeliveryStatus(ctx context.Context, principal domain.Principal, id string, to domain.DeliveryStatus) (*domain.Parcel, error)
	ListAssigned(ctx context.Context, riderEmail string, status domain.DeliveryStatus) ([]domain.Parcel, error)
}

type parcelService struct {
	store  repository.Store
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
	topic  string
}

func NewParcelService(store repository.Store, logger *zap.Logger, topic string) ParcelService {
	if topic == "" {
		topic = DefaultEventTopic
	}

	return &parcelService{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("service/parcel_service"),
		now:    time.Now,
		topic:  topic,
	}
}

func (s *parcelService) Create(ctx context.Context, principal domain.Principal, parcel *domain.Parcel) (*domain.Parcel, error) {
	ctx, span := s.tracer.Start(ctx, "ParcelService.Create")
	defer span.End()

	if parcel.SenderEmail == "" {
		parcel.SenderEmail = principal.Email
	}
	if parcel.SenderEmail != principal.Email && !principal.IsAdmin() {
		return nil, fmt.Errorf("%w: parcels can only be booked for yourself", ErrForbidden)
	}
	if strings.TrimSpace(parcel.ParcelName) == "" {
		return nil, fmt.Errorf("%w: parcelName is required", ErrValidation)
	}
	if parcel.Cost <= 0 {
		return nil, fmt.Errorf("%w: cost must be a positive amount", ErrValidation)
	}

	parcel.ID = uuid.NewString()
	parcel.PaymentStatus = domain.PaymentStatusUnpaid
	parcel.DeliveryStatus = domain.DeliveryStatusNone
	parcel.TrackingID = nil
	parcel.RiderEmail = nil
	parcel.CreatedAt = s.now().UTC()

	if err := s.store.Parcels().Create(ctx, parcel); err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(ctx, s.logger, "Parcel created", zap.String("parcel_id", parcel.ID), zap.String("sender_email", parcel.SenderEmail))

	return parcel, nil
}

func (s *parcelService) GetByID(ctx context.Context, principal domain.Principal, id string) (*domain.Parcel, error) {
	ctx, span := s.tracer.Start(ctx, "ParcelService.GetByID")
	defer span.End()

	parcel, err := s.store.Parcels().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !principal.IsAdmin() && parcel.SenderEmail != principal.Email && !parcel.AssignedTo(principal.Email) {
		return nil, ErrForbidden
	}

	return parcel, nil
}

func (s *parcelService) List(ctx context.Context, principal domain.Principal, filter domain.ParcelFilter) ([]domain.Parcel, error) {
	ctx, span := s.tracer.Start(ctx, "ParcelService.List")
	defer span.End()

	if !principal.IsAdmin() {
		if filter.SenderEmail != "" && filter.SenderEmail != principal.Email {
			return nil, ErrForbidden
		}
		filter.SenderEmail = principal.Email
	}

	return s.store.Parcels().List(ctx, filter)
}

func (s *parcelService) Delete(ctx context.Context, principal domain.Principal, id string) error {
	ctx, span := s.tracer.Start(ctx, "ParcelService.Delete")
	defer span.End()

	parcel, err := s.store.Parcels().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if parcel.SenderEmail != principal.Email && !principal.IsAdmin() {
		return ErrForbidden
	}

	if err := s.store.Parcels().DeleteUnpaid(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	mylogger.Info(ctx, s.logger, "Parcel deleted", zap.String("parcel_id", id))

	return nil
}

func (s *parcelService) Track(ctx context.Context, trackingID string) (*domain.Parcel, error) {
	ctx, span := s.tracer.Start(ctx, "ParcelService.Track")
	defer span.End()

	trackingID = strings.ToUpper(strings.TrimSpace(trackingID))
	if trackingID == "" {
		return nil, fmt.Errorf("%w: trackingId is required", ErrValidation)
	}

	return s.store.Parcels().GetByTrackingID(ctx, trackingID)
}

func (s *parcelService) AssignRider(ctx context.Context, id, riderEmail string) (*domain.Parcel, error) {
	ctx, span := s.tracer.Start(ctx, "ParcelService.AssignRider")
	defer span.End()

	span.SetAttributes(
		attribute.String("parcel_id", id),
		attribute.String("rider_email", riderEmail),
	)

	var parcel *domain.Parcel
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		rider, err := tx.Riders().GetByEmail(ctx, riderEmail)
		if err != nil {
			return err
		}
		if rider.Status != domain.RiderStatusActive {
			return fmt.Errorf("%w: rider %s is not active", ErrConflict, riderEmail)
		}

		now := s.now().UTC()

		parcel, err = tx.Parcels().AssignRider(ctx, id, riderEmail, now)
		if err != nil {
			return err
		}

		return s.emitStatusChanged(ctx, tx, parcel, domain.DeliveryStatusPendingPickup, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, conflictOnStatus(err, "parcel must be paid and waiting for pickup")
	}

	mylogger.Info(ctx, s.logger, "Rider assigned", zap.String("parcel_id", id), zap.String("rider_email", riderEmail))

	return parcel, nil
}

func (s *parcelService) UpdateDeliveryStatus(
	ctx context.Context,
	principal domain.Principal,
	id string,
	to domain.DeliveryStatus,
) (*domain.Parcel, error) {
	ctx, span := s.tracer.Start(ctx, "ParcelService.UpdateDeliveryStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("parcel_id", id),
		attribute.String("to", string(to)),
	)

	var parcel *domain.Parcel
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Parcels().GetByID(ctx, id)
		if err != nil {
			return err
		}

		if !current.AssignedTo(principal.Email) {
			return ErrForbidden
		}

		from := current.DeliveryStatus
		if !domain.CanRiderMove(from, to) {
			return fmt.Errorf("%w: cannot move parcel from %s to %s", ErrValidation, from, to)
		}

		now := s.now().UTC()

		parcel, err = tx.Parcels().UpdateDeliveryStatus(ctx, id, from, to, now)
		if err != nil {
			return err
		}

		return s.emitStatusChanged(ctx, tx, parcel, from, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, conflictOnStatus(err, "parcel status changed concurrently")
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Delivery status changed",
		zap.String("parcel_id", id),
		zap.String("status", string(to)),
	)

	return parcel, nil
}

func (s *parcelService) ListAssigned(ctx context.Context, riderEmail string, status domain.DeliveryStatus) ([]domain.Parcel, error) {
	ctx, span := s.tracer.Start(ctx, "ParcelService.ListAssigned")
	defer span.End()

	return s.store.Parcels().List(ctx, domain.ParcelFilter{
		RiderEmail:     riderEmail,
		DeliveryStatus: status,
	})
}

func (s *parcelService) emitStatusChanged(
	ctx context.Context,
	tx repository.Store,
	parcel *domain.Parcel,
	from domain.DeliveryStatus,
	at time.Time,
) error {
	payload := generalDomain.DeliveryStatusChangedEvent{
		ParcelID:    parcel.ID,
		SenderEmail: parcel.SenderEmail,
		From:        string(from),
		To:          string(parcel.DeliveryStatus),
		ChangedAt:   at,
	}
	if parcel.TrackingID != nil {
		payload.TrackingID = *parcel.TrackingID
	}
	if parcel.RiderEmail != nil {
		payload.RiderEmail = *parcel.RiderEmail
	}

	event, err := outboxDomain.NewEvent(s.topic, "parcel", parcel.ID, generalDomain.EventDeliveryStatusChanged, payload)
	if err != nil {
		return err
	}

	return tx.Outbox().Append(ctx, event)
}

func conflictOnStatus(err error, msg string) error {
	if errors.Is(err, repository.ErrParcelStatusConflict) {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}

	return err
}
