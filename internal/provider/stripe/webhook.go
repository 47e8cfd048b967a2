package stripe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakib404-hub/zap-shit-server/internal/service"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}

	return &WebhookVerifier{secret: secret}, nil
}

// CompletedSessionID verifies the Stripe-Signature header and returns the
// session id of a checkout.session.completed event. ok is false for every
// other event type.
func (v *WebhookVerifier) CompletedSessionID(payload []byte, signature string) (sessionID string, ok bool, err error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: webhook signature: %w", service.ErrValidation, err)
	}

	if event.Type != stripeapi.EventTypeCheckoutSessionCompleted {
		return "", false, nil
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", false, fmt.Errorf("%w: webhook payload: %w", service.ErrValidation, err)
	}

	if session.ID == "" {
		return "", false, fmt.Errorf("%w: webhook event without session id", service.ErrValidation)
	}

	return session.ID, true, nil
}
