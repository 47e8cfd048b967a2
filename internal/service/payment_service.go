package service

import (
	"context"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type PaymentService interface {
	// History lists payments of email. Admins may pass an empty email to
	// list everything; other callers only see their own payments.
	History(ctx context.Context, principal domain.Principal, email string) ([]domain.Payment, error)
}

type paymentService struct {
	payments repository.PaymentRepository
	tracer   trace.Tracer
}

func NewPaymentService(payments repository.PaymentRepository) PaymentService {
	return &paymentService{
		payments: payments,
		tracer:   otel.Tracer("service/payment_service"),
	}
}

func (s *paymentService) History(ctx context.Context, principal domain.Principal, email string) ([]domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.History")
	defer span.End()

	if !principal.IsAdmin() {
		if email != "" && email != principal.Email {
			return nil, ErrForbidden
		}
		email = principal.Email
	}

	return s.payments.List(ctx, email)
}
