package dto

import (
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReportRequest struct {
	Images    []string `json:"images" validate:"required,min=1,max=3,dive,required"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type ReportResponse struct {
	PickupID  uuid.UUID       `json:"pickupId"`
	Weight    decimal.Decimal `json:"weight"`
	Type      string          `json:"type"`
	Points    int             `json:"points"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
}

type ConfirmRequest struct {
	Images []string `json:"images" validate:"required,min=1,max=3,dive,required"`
}

// ConfirmResponse covers both scored outcomes. A rejected claim carries only
// confidence and message.
type ConfirmResponse struct {
	Success    bool       `json:"success"`
	PickupID   *uuid.UUID `json:"pickupId,omitempty"`
	Message    string     `json:"message"`
	Confidence int        `json:"confidence"`
	Points     int        `json:"points,omitempty"`
}

type ActivitiesResponse struct {
	Activities []models.Activity `json:"activities"`
	Count      int               `json:"count"`
}
