package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
)

type PaymentProvider interface {
	CreateSession(ctx context.Context, params domain.CheckoutParams) (*domain.CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*domain.SessionOutcome, error)
}

func asProviderError(err error) error {
	if errors.Is(err, ErrProvider) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrProvider, err)
}
