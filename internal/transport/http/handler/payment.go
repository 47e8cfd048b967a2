package handler

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
	"go.uber.org/zap"
)

const (
	alreadyProcessedMessage = "Payment Already Exist!"
	signatureHeader         = "Stripe-Signature"
	providerTimeout         = 15 * time.Second
)

// WebhookVerifier authenticates provider webhooks and extracts the session id
// of a completed checkout.
type WebhookVerifier interface {
	CompletedSessionID(payload []byte, signature string) (sessionID string, ok bool, err error)
}

type PaymentHandler struct {
	checkout  service.CheckoutService
	reconcile service.ReconcileService
	payments  service.PaymentService
	webhooks  WebhookVerifier
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewPaymentHandler(
	checkout service.CheckoutService,
	reconcile service.ReconcileService,
	payments service.PaymentService,
	webhooks WebhookVerifier,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		checkout:  checkout,
		reconcile: reconcile,
		payments:  payments,
		webhooks:  webhooks,
		validate:  utils.NewValidator(),
		logger:    logger,
	}
}

type CheckoutInput struct {
	Cost        float64 `json:"cost" validate:"required,gt=0"`
	ParcelName  string  `json:"parcelName" validate:"required,singleline"`
	ParcelID    string  `json:"parcelId" validate:"required"`
	SenderEmail string  `json:"senderEmail" validate:"required,email"`
}

// ReconcileResponse is the body of the payment-success endpoint. Optional
// fields are omitted for unpaid sessions.
type ReconcileResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId,omitempty"`
	TrackingID    string          `json:"trackingId,omitempty"`
	Message       string          `json:"message,omitempty"`
	ModifyParcel  *domain.Parcel  `json:"modifyParcel,omitempty"`
	PaymentInfo   *domain.Payment `json:"paymentInfo,omitempty"`
}

func newReconcileResponse(res *domain.ReconcileResult) ReconcileResponse {
	resp := ReconcileResponse{
		Success:       res.Success,
		TransactionID: res.TransactionID,
		TrackingID:    res.TrackingID,
	}

	if res.AlreadyProcessed {
		resp.Message = alreadyProcessedMessage
		return resp
	}

	resp.ModifyParcel = res.Parcel
	resp.PaymentInfo = res.Payment

	return resp
}

func (h *PaymentHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	input := new(CheckoutInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	if !principal.IsAdmin() && !strings.EqualFold(input.SenderEmail, principal.Email) {
		return WriteError(c, h.logger, "checkout for another sender", service.ErrForbidden)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), providerTimeout)
	defer cancel()

	session, err := h.checkout.CreateCheckoutSession(ctx, service.CheckoutRequest{
		ParcelID:    input.ParcelID,
		ParcelName:  input.ParcelName,
		Cost:        input.Cost,
		SenderEmail: input.SenderEmail,
	})
	if err != nil {
		return WriteError(c, h.logger, "create checkout session failed", err)
	}

	mylogger.Info(ctx, h.logger, "checkout session created",
		zap.String("parcel_id", input.ParcelID),
		zap.String("session_id", session.ID),
	)

	return c.JSON(fiber.Map{
		"url": session.URL,
	})
}

func (h *PaymentHandler) PaymentSuccess(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), providerTimeout)
	defer cancel()

	res, err := h.reconcile.Reconcile(ctx, c.Query("session_id"))
	if err != nil {
		return WriteError(c, h.logger, "payment reconcile failed", err)
	}

	return c.JSON(newReconcileResponse(res))
}

// Webhook reconciles sessions reported by checkout.session.completed events.
// Other event types are acknowledged and ignored.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	sessionID, ok, err := h.webhooks.CompletedSessionID(c.Body(), c.Get(signatureHeader))
	if err != nil {
		return WriteError(c, h.logger, "webhook rejected", err)
	}

	if !ok {
		return c.JSON(fiber.Map{"received": true})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), providerTimeout)
	defer cancel()

	res, err := h.reconcile.Reconcile(ctx, sessionID)
	if err != nil {
		return WriteError(c, h.logger, "webhook reconcile failed", err)
	}

	mylogger.Info(ctx, h.logger, "webhook reconciled",
		zap.String("session_id", sessionID),
		zap.Bool("success", res.Success),
		zap.Bool("already_processed", res.AlreadyProcessed),
	)

	return c.JSON(fiber.Map{"received": true})
}

func (h *PaymentHandler) History(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	payments, err := h.payments.History(ctx, principal, strings.ToLower(c.Query("email")))
	if err != nil {
		return WriteError(c, h.logger, "payment history failed", err)
	}

	return c.JSON(payments)
}

func (h *PaymentHandler) AcceptsWebhooks() bool {
	return h.webhooks != nil
}
