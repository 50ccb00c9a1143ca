package handlers

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/tenant"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Reporter interface {
	Report(ctx context.Context, in services.ReportInput) (*services.ReportResult, error)
}

type Confirmer interface {
	Confirm(ctx context.Context, in services.ConfirmInput) (*services.ConfirmResult, error)
}

type PickupHandler struct {
	reports  Reporter
	verifier Confirmer
	validate *validator.Validate
}

func NewPickupHandler(reports Reporter, verifier Confirmer, validate *validator.Validate) *PickupHandler {
	return &PickupHandler{reports: reports, verifier: verifier, validate: validate}
}

// Report handles POST /api/report.
func (h *PickupHandler) Report(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	res, err := h.reports.Report(c.UserContext(), services.ReportInput{
		UserID:    userID,
		Images:    req.Images,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.ReportResponse{
		PickupID:  res.PickupID,
		Weight:    res.Weight,
		Type:      res.Type,
		Points:    res.Points,
		Latitude:  res.Latitude,
		Longitude: res.Longitude,
	})
}

// Confirm handles POST /api/confirm/:pickupId.
func (h *PickupHandler) Confirm(c *fiber.Ctx) error {
	pickupID, err := uuid.Parse(c.Params("pickupId"))
	if err != nil {
		return badRequest(c, "Invalid pickup id")
	}
	return h.confirm(c, &pickupID)
}

// ConfirmLatest handles POST /api/confirm, which confirms the caller's most
// recent report.
func (h *PickupHandler) ConfirmLatest(c *fiber.Ctx) error {
	return h.confirm(c, nil)
}

func (h *PickupHandler) confirm(c *fiber.Ctx, pickupID *uuid.UUID) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	res, err := h.verifier.Confirm(c.UserContext(), services.ConfirmInput{
		UserID:   userID,
		PickupID: pickupID,
		Images:   req.Images,
	})
	if err != nil {
		return respondError(c, err)
	}

	if !res.Confirmed {
		return c.JSON(dto.ConfirmResponse{
			Success:    false,
			Message:    "We could not confirm the cleanup from these photos. Try again with clearer after photos.",
			Confidence: res.Confidence,
		})
	}

	return c.JSON(dto.ConfirmResponse{
		Success:    true,
		PickupID:   &res.PickupID,
		Message:    fmt.Sprintf("Cleanup confirmed! You earned %d points.", res.Points),
		Confidence: res.Confidence,
		Points:     res.Points,
	})
}
