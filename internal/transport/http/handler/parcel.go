package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
	"go.uber.org/zap"
)

type ParcelHandler struct {
	parcels  service.ParcelService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewParcelHandler(parcels service.ParcelService, logger *zap.Logger) *ParcelHandler {
	return &ParcelHandler{
		parcels:  parcels,
		validate: utils.NewValidator(),
		logger:   logger,
	}
}

type CreateParcelInput struct {
	ParcelName      string  `json:"parcelName" validate:"required,max=200,singleline"`
	ParcelType      string  `json:"parcelType" validate:"max=50"`
	Description     string  `json:"description" validate:"max=1000"`
	Weight          float64 `json:"weight" validate:"gte=0"`
	Cost            float64 `json:"cost" validate:"required,gt=0"`
	SenderName      string  `json:"senderName"`
	SenderEmail     string  `json:"senderEmail" validate:"omitempty,email"`
	SenderAddress   string  `json:"senderAddress"`
	ReceiverName    string  `json:"receiverName" validate:"required"`
	ReceiverEmail   string  `json:"receiverEmail" validate:"omitempty,email"`
	ReceiverAddress string  `json:"receiverAddress" validate:"required"`
}

type AssignRiderInput struct {
	RiderEmail string `json:"riderEmail" validate:"required,email"`
}

type DeliveryStatusInput struct {
	DeliveryStatus string `json:"deliveryStatus" validate:"required,oneof=in-transit delivered"`
}

func (h *ParcelHandler) Create(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	input := new(CreateParcelInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	parcel, err := h.parcels.Create(ctx, principal, &domain.Parcel{
		ParcelName:      input.ParcelName,
		ParcelType:      input.ParcelType,
		Description:     input.Description,
		Weight:          input.Weight,
		Cost:            input.Cost,
		SenderName:      input.SenderName,
		SenderEmail:     input.SenderEmail,
		SenderAddress:   input.SenderAddress,
		ReceiverName:    input.ReceiverName,
		ReceiverEmail:   input.ReceiverEmail,
		ReceiverAddress: input.ReceiverAddress,
	})
	if err != nil {
		return WriteError(c, h.logger, "create parcel failed", err)
	}

	mylogger.Info(ctx, h.logger, "create parcel succeeded", zap.String("parcel_id", parcel.ID))

	return c.Status(fiber.StatusCreated).JSON(parcel)
}

func (h *ParcelHandler) List(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	parcels, err := h.parcels.List(ctx, principal, domain.ParcelFilter{
		SenderEmail:    c.Query("email"),
		PaymentStatus:  domain.PaymentStatus(c.Query("paymentStatus")),
		DeliveryStatus: domain.DeliveryStatus(c.Query("deliveryStatus")),
	})
	if err != nil {
		return WriteError(c, h.logger, "list parcels failed", err)
	}

	return c.JSON(parcels)
}

func (h *ParcelHandler) GetByID(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()

	parcel, err := h.parcels.GetByID(ctx, principal, c.Params("id"))
	if err != nil {
		return WriteError(c, h.logger, "get parcel failed", err)
	}

	return c.JSON(parcel)
}

func (h *ParcelHandler) Delete(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.parcels.Delete(ctx, principal, c.Params("id")); err != nil {
		return WriteError(c, h.logger, "delete parcel failed", err)
	}

	return c.JSON(fiber.Map{
		"deletedCount": 1,
	})
}

func (h *ParcelHandler) Track(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()

	parcel, err := h.parcels.Track(ctx, c.Params("trackingId"))
	if err != nil {
		return WriteError(c, h.logger, "track parcel failed", err)
	}

	return c.JSON(fiber.Map{
		"trackingId":     parcel.TrackingID,
		"parcelName":     parcel.ParcelName,
		"paymentStatus":  parcel.PaymentStatus,
		"deliveryStatus": parcel.DeliveryStatus,
		"updatedAt":      parcel.UpdatedAt,
	})
}

func (h *ParcelHandler) AssignRider(c *fiber.Ctx) error {
	input := new(AssignRiderInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	parcel, err := h.parcels.AssignRider(ctx, c.Params("id"), input.RiderEmail)
	if err != nil {
		return WriteError(c, h.logger, "assign rider failed", err)
	}

	return c.JSON(parcel)
}

func (h *ParcelHandler) UpdateDeliveryStatus(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	input := new(DeliveryStatusInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	parcel, err := h.parcels.UpdateDeliveryStatus(ctx, principal, c.Params("id"), domain.DeliveryStatus(input.DeliveryStatus))
	if err != nil {
		return WriteError(c, h.logger, "update delivery status failed", err)
	}

	return c.JSON(parcel)
}

// ListAssigned lists parcels assigned to the calling rider, optionally
// narrowed by ?status=.
func (h *ParcelHandler) ListAssigned(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	parcels, err := h.parcels.ListAssigned(ctx, principal.Email, domain.DeliveryStatus(c.Query("status")))
	if err != nil {
		return WriteError(c, h.logger, "list assigned parcels failed", err)
	}

	return c.JSON(parcels)
}
