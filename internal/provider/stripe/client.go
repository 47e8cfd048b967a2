// Package stripe adapts the Stripe Checkout API to service.PaymentProvider.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/pkg/config"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
	"github.com/sony/gobreaker"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Client struct {
	api     *client.API
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewClient(cfg config.Stripe, logger *zap.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is not configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	apiConfig := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripeapi.Int64(cfg.MaxRetries),
		LeveledLogger:     &leveledLogger{logger: logger},
	}
	if cfg.APIURL != "" {
		apiConfig.URL = stripeapi.String(cfg.APIURL)
	}

	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, apiConfig),
		Connect: stripeapi.GetBackend(stripeapi.ConnectBackend),
		Uploads: stripeapi.GetBackend(stripeapi.UploadsBackend),
	}

	return &Client{
		api:     client.New(cfg.SecretKey, backends),
		cb:      utils.NewBreaker("stripe", logger, utils.WithSuccessful(healthyResponse)),
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("provider/stripe"),
	}, nil
}

func (c *Client) CreateSession(ctx context.Context, p domain.CheckoutParams) (*domain.CheckoutSession, error) {
	ctx, span := c.tracer.Start(ctx, "Stripe.CreateSession")
	defer span.End()

	span.SetAttributes(
		attribute.String("parcel_id", p.ParcelID),
		attribute.Int64("amount_minor", p.AmountMinor),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripeapi.CheckoutSessionParams{
		Params: stripeapi.Params{Context: ctx},
		Mode:   stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(p.Currency),
					UnitAmount: stripeapi.Int64(p.AmountMinor),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(fmt.Sprintf("Please pay for: %s", p.ParcelName)),
					},
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		CustomerEmail: stripeapi.String(p.CustomerEmail),
		SuccessURL:    stripeapi.String(p.SuccessURL),
		CancelURL:     stripeapi.String(p.CancelURL),
	}
	params.AddMetadata(domain.MetadataParcelID, p.ParcelID)
	params.AddMetadata(domain.MetadataParcelName, p.ParcelName)

	sess, err := utils.ExecuteWithBreaker(c.cb, func() (*stripeapi.CheckoutSession, error) {
		return c.api.CheckoutSessions.New(params)
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, c.logger, "Stripe create session failed", zap.Error(err))

		return nil, providerError("create checkout session", err)
	}

	return &domain.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*domain.SessionOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "Stripe.RetrieveSession")
	defer span.End()

	span.SetAttributes(attribute.String("session_id", sessionID))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sess, err := utils.ExecuteWithBreaker(c.cb, func() (*stripeapi.CheckoutSession, error) {
		return c.api.CheckoutSessions.Get(sessionID, &stripeapi.CheckoutSessionParams{
			Params: stripeapi.Params{Context: ctx},
		})
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, c.logger, "Stripe retrieve session failed", zap.String("session_id", sessionID), zap.Error(err))

		return nil, providerError("retrieve checkout session "+sessionID, err)
	}

	return toOutcome(sess), nil
}

func toOutcome(sess *stripeapi.CheckoutSession) *domain.SessionOutcome {
	outcome := &domain.SessionOutcome{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		CustomerEmail: sess.CustomerEmail,
		Metadata:      sess.Metadata,
	}

	if sess.PaymentIntent != nil {
		outcome.PaymentIntentID = sess.PaymentIntent.ID
	}

	if outcome.CustomerEmail == "" && sess.CustomerDetails != nil {
		outcome.CustomerEmail = sess.CustomerDetails.Email
	}

	if outcome.Metadata == nil {
		outcome.Metadata = map[string]string{}
	}

	return outcome
}

// healthyResponse treats client errors as a working upstream. Only network
// failures, 5xx and rate limiting count towards opening the breaker, so
// unknown session ids sent by callers cannot trip it.
func healthyResponse(err error) bool {
	if err == nil {
		return true
	}

	var stripeErr *stripeapi.Error
	if !errors.As(err, &stripeErr) {
		return false
	}

	code := stripeErr.HTTPStatusCode

	return code >= http.StatusBadRequest && code < http.StatusInternalServerError && code != http.StatusTooManyRequests
}

// providerError keeps the breaker and stripe errors in the chain so callers
// can still tell an open breaker apart.
func providerError(op string, err error) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %s: stripe %d %s: %w", service.ErrProvider, op, stripeErr.HTTPStatusCode, stripeErr.Code, err)
	}

	return fmt.Errorf("%w: %s: %w", service.ErrProvider, op, err)
}

type leveledLogger struct {
	logger *zap.Logger
}

func (l *leveledLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Infof(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l *leveledLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
