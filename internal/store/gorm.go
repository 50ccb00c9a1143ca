package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MaxListLimit  = 100
	maxCellPoints = 200
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ===== Reports =====

func (s *GormStore) CreatePickup(ctx context.Context, in NewPickup) (*models.Pickup, error) {
	pickup := &models.Pickup{
		CommunityID: in.CommunityID,
		ReporterID:  in.ReporterID,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CellID:      in.CellID,
		Images:      datatypes.JSONSlice[string](in.Images),
		Weight:      in.Weight,
		TrashType:   in.TrashType,
		Status:      models.PickupStatusPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pickup).Error; err != nil {
			return fmt.Errorf("failed to create pickup: %w", err)
		}
		activity := &models.Activity{
			UserID:   in.ReporterID,
			Type:     models.ActivityTrashReport,
			PickupID: &pickup.ID,
		}
		if err := tx.Create(activity).Error; err != nil {
			return fmt.Errorf("failed to record report activity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pickup, nil
}

func (s *GormStore) FindLatestReportForUser(ctx context.Context, userID uuid.UUID) (*Report, error) {
	db := s.db.WithContext(ctx)

	var activity models.Activity
	err := db.Where("user_id = ? AND type = ? AND pickup_id IS NOT NULL", userID, models.ActivityTrashReport).
		Order("created_at DESC").
		First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPriorReport
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest report: %w", err)
	}

	var pickup models.Pickup
	err = db.Where("id = ?", *activity.PickupID).First(&pickup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPriorReport
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reported pickup: %w", err)
	}

	return &Report{Pickup: pickup, Activity: activity}, nil
}

func (s *GormStore) FindReportForPickup(ctx context.Context, pickupID uuid.UUID) (*Report, error) {
	pickup, err := s.GetPickup(ctx, pickupID)
	if err != nil {
		return nil, err
	}

	var activity models.Activity
	err = s.db.WithContext(ctx).
		Where("pickup_id = ? AND type = ?", pickupID, models.ActivityTrashReport).
		Order("created_at ASC").
		First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPriorReport
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report activity: %w", err)
	}

	return &Report{Pickup: *pickup, Activity: activity}, nil
}

// ===== Confirmation =====

// ConfirmPickup moves a pending pickup to done, appends the trash_pickup
// activity and credits the user in one transaction. The status change is a
// conditional update, so at most one concurrent caller can succeed; any later
// failure rolls the status back to pending.
func (s *GormStore) ConfirmPickup(ctx context.Context, in Confirmation) (*models.Pickup, error) {
	var pickup models.Pickup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.Model(&models.Pickup{}).
			Where("id = ? AND status = ?", in.PickupID, models.PickupStatusPending).
			Updates(map[string]interface{}{
				"status":       models.PickupStatusDone,
				"confirmed_by": in.UserID,
				"confirmed_at": now,
				"updated_at":   now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update pickup status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Pickup{}).Where("id = ?", in.PickupID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check pickup: %w", err)
			}
			if count == 0 {
				return ErrPickupNotFound
			}
			return ErrNotPending
		}

		confidence := in.Confidence
		activity := &models.Activity{
			UserID:     in.UserID,
			Type:       models.ActivityTrashPickup,
			PickupID:   &in.PickupID,
			Points:     in.Points,
			Confidence: &confidence,
		}
		if err := tx.Create(activity).Error; err != nil {
			return fmt.Errorf("failed to record pickup activity: %w", err)
		}

		result = tx.Model(&models.User{}).
			Where("id = ?", in.UserID).
			UpdateColumn("points", gorm.Expr("points + ?", in.Points))
		if result.Error != nil {
			return fmt.Errorf("failed to award points: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUserNotFound
		}

		if err := tx.Where("id = ?", in.PickupID).First(&pickup).Error; err != nil {
			return fmt.Errorf("failed to reload pickup: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pickup, nil
}

// ===== Lookups =====

func (s *GormStore) GetPickup(ctx context.Context, id uuid.UUID) (*models.Pickup, error) {
	var pickup models.Pickup
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&pickup).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPickupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pickup: %w", err)
	}
	return &pickup, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *GormStore) GetCommunity(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	var community models.Community
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&community).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommunityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return &community, nil
}

func (s *GormStore) ListRecentActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	var activities []models.Activity
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (s *GormStore) ListPickupsInCell(ctx context.Context, cellID string, status models.PickupStatus) ([]models.Pickup, error) {
	var pickups []models.Pickup
	err := s.db.WithContext(ctx).
		Scopes(tenant.WithStatus(string(status))).
		Where("cell_id = ?", cellID).
		Order("created_at DESC").
		Limit(maxCellPoints).
		Find(&pickups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pickups in cell: %w", err)
	}
	return pickups, nil
}

func (s *GormStore) ListCommunityPickups(ctx context.Context, communityID uuid.UUID, status models.PickupStatus, limit int) ([]models.Pickup, error) {
	var pickups []models.Pickup
	err := s.db.WithContext(ctx).
		Scopes(tenant.ForCommunity(communityID), tenant.WithStatus(string(status))).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&pickups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list community pickups: %w", err)
	}
	return pickups, nil
}

func (s *GormStore) UserStats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Type  models.ActivityType
		Count int64
	}
	err = s.db.WithContext(ctx).
		Model(&models.Activity{}).
		Select("type, count(*) AS count").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count activities: %w", err)
	}

	stats := &UserStats{UserID: user.ID, Points: user.Points}
	for _, r := range rows {
		switch r.Type {
		case models.ActivityTrashReport:
			stats.Reports = r.Count
		case models.ActivityTrashPickup:
			stats.Pickups = r.Count
		}
	}
	return stats, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
