package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PickupStatus string

const (
	PickupStatusPending PickupStatus = "pending"
	PickupStatusDone    PickupStatus = "done"
)

// Pickup is a reported pile of litter. It is created pending and moves to done
// exactly once, when a cleanup claim is verified.
type Pickup struct {
	ID          uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CommunityID uuid.UUID                   `gorm:"type:uuid;not null;index" json:"community_id"`
	ReporterID  uuid.UUID                   `gorm:"type:uuid;not null;index" json:"reporter_id"`
	Latitude    float64                     `gorm:"type:decimal(10,8);not null" json:"latitude"`
	Longitude   float64                     `gorm:"type:decimal(11,8);not null" json:"longitude"`
	CellID      string                      `gorm:"size:16;not null;index" json:"cell_id"`
	Images      datatypes.JSONSlice[string] `gorm:"type:jsonb;not null" json:"images"`
	Weight      decimal.Decimal             `gorm:"type:numeric(10,3);not null" json:"weight"`
	TrashType   string                      `gorm:"size:255;not null" json:"type"`
	Status      PickupStatus                `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ConfirmedBy *uuid.UUID                  `gorm:"type:uuid" json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time                  `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

func (Pickup) TableName() string {
	return "pickups"
}

// Location is the structured geolocation of a pickup.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p *Pickup) Location() Location {
	return Location{Lat: p.Latitude, Lng: p.Longitude}
}
