package service

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakib404-hub/zap-shit-server/internal/infrastructure/email"
	generalDomain "github.com/sakib404-hub/zap-shit-server/pkg/domain"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	outboxUtils "github.com/sakib404-hub/zap-shit-server/pkg/outbox/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const notificationConsumer = "notification"

// Deduplicator runs action at most once per consumer and event id.
type Deduplicator func(ctx context.Context, consumer string, eventID int64, action func() error) error

func NewPostgresDeduplicator(pool *pgxpool.Pool, logger *zap.Logger) Deduplicator {
	return func(ctx context.Context, consumer string, eventID int64, action func() error) error {
		return outboxUtils.ProcessWithDeduplication(ctx, pool, logger, consumer, eventID, action)
	}
}

type NotificationService struct {
	emailSender email.Sender
	dedup       Deduplicator
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewNotificationService(emailSender email.Sender, dedup Deduplicator, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		emailSender: emailSender,
		dedup:       dedup,
		logger:      logger,
		tracer:      otel.Tracer("service/notification_service"),
	}
}

func (s *NotificationService) HandleParcelPaid(ctx context.Context, eventID int64, event generalDomain.ParcelPaidEvent) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.HandleParcelPaid")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.String("tracking_id", event.TrackingID),
	)

	if event.SenderEmail == "" {
		mylogger.Warn(ctx, s.logger, "ParcelPaid without sender email", zap.Int64("event_id", eventID))
		return nil
	}

	return s.dedup(ctx, notificationConsumer, eventID, func() error {
		return s.emailSender.SendPaymentReceipt(ctx, event.SenderEmail, event)
	})
}

func (s *NotificationService) HandleDeliveryStatusChanged(
	ctx context.Context,
	eventID int64,
	event generalDomain.DeliveryStatusChangedEvent,
) error {
	ctx, span := s.tracer.Start(ctx, "NotificationService.HandleDeliveryStatusChanged")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.String("status", event.To),
	)

	if event.SenderEmail == "" {
		mylogger.Warn(ctx, s.logger, "DeliveryStatusChanged without sender email", zap.Int64("event_id", eventID))
		return nil
	}

	return s.dedup(ctx, notificationConsumer, eventID, func() error {
		return s.emailSender.SendDeliveryUpdate(ctx, event.SenderEmail, event)
	})
}
