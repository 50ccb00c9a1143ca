package store

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPickupNotFound    = errors.New("pickup not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrCommunityNotFound = errors.New("community not found")
	ErrNotPending        = errors.New("pickup is not pending")
	ErrNoPriorReport     = errors.New("no prior report found")
)

// NewPickup is the input of CreatePickup.
type NewPickup struct {
	CommunityID uuid.UUID
	ReporterID  uuid.UUID
	Latitude    float64
	Longitude   float64
	CellID      string
	Images      []string
	Weight      decimal.Decimal
	TrashType   string
}

// Report is a pickup together with the trash_report activity that created it.
type Report struct {
	Pickup   models.Pickup
	Activity models.Activity
}

// Confirmation is the input of ConfirmPickup. UserID is both the confirmer
// and the user credited with Points.
type Confirmation struct {
	PickupID   uuid.UUID
	UserID     uuid.UUID
	Points     int
	Confidence int
}

type UserStats struct {
	UserID  uuid.UUID `json:"user_id"`
	Points  int64     `json:"points"`
	Reports int64     `json:"reports"`
	Pickups int64     `json:"pickups"`
}

// Store is the persistence boundary of the pickup pipeline. Every method is a
// single atomic unit; implementations must be safe for concurrent use.
type Store interface {
	CreatePickup(ctx context.Context, in NewPickup) (*models.Pickup, error)
	FindLatestReportForUser(ctx context.Context, userID uuid.UUID) (*Report, error)
	FindReportForPickup(ctx context.Context, pickupID uuid.UUID) (*Report, error)
	ConfirmPickup(ctx context.Context, in Confirmation) (*models.Pickup, error)

	GetPickup(ctx context.Context, id uuid.UUID) (*models.Pickup, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetCommunity(ctx context.Context, id uuid.UUID) (*models.Community, error)
	ListRecentActivities(ctx context.Context, limit int) ([]models.Activity, error)
	ListPickupsInCell(ctx context.Context, cellID string, status models.PickupStatus) ([]models.Pickup, error)
	ListCommunityPickups(ctx context.Context, communityID uuid.UUID, status models.PickupStatus, limit int) ([]models.Pickup, error)
	UserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error)
}
