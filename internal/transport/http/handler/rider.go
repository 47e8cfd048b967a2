package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/pkg/utils"
	"go.uber.org/zap"
)

type RiderHandler struct {
	riders   service.RiderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewRiderHandler(riders service.RiderService, logger *zap.Logger) *RiderHandler {
	return &RiderHandler{
		riders:   riders,
		validate: utils.NewValidator(),
		logger:   logger,
	}
}

type ApplyRiderInput struct {
	Name             string `json:"name" validate:"required,max=100"`
	Phone            string `json:"phone" validate:"required,max=30"`
	Region           string `json:"region" validate:"required"`
	District         string `json:"district" validate:"required"`
	NID              string `json:"nid"`
	BikeBrand        string `json:"bikeBrand"`
	BikeRegistration string `json:"bikeRegistration"`
}

type RiderStatusInput struct {
	Status string `json:"status" validate:"required,oneof=active rejected"`
}

func (h *RiderHandler) Apply(c *fiber.Ctx) error {
	principal, ok := PrincipalFrom(c)
	if !ok {
		return unauthorized(c)
	}

	input := new(ApplyRiderInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	rider, err := h.riders.Apply(ctx, principal, &domain.Rider{
		Name:      input.Name,
		Phone:     input.Phone,
		Region:    input.Region,
		District:  input.District,
		NID:       input.NID,
		BikeBrand: input.BikeBrand,
		BikeReg:   input.BikeRegistration,
	})
	if err != nil {
		return WriteError(c, h.logger, "rider application failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(rider)
}

func (h *RiderHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	riders, err := h.riders.List(ctx, domain.RiderStatus(c.Query("status")))
	if err != nil {
		return WriteError(c, h.logger, "list riders failed", err)
	}

	return c.JSON(riders)
}

func (h *RiderHandler) UpdateStatus(c *fiber.Ctx) error {
	input := new(RiderStatusInput)
	if ok, err := bind(c, h.validate, h.logger, input); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	rider, err := h.riders.UpdateStatus(ctx, c.Params("id"), domain.RiderStatus(input.Status))
	if err != nil {
		return WriteError(c, h.logger, "update rider status failed", err)
	}

	return c.JSON(rider)
}
