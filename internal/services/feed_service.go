package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/store"
	"github.com/google/uuid"
)

// MapView lists the pickups of one S2 map cell.
type MapView struct {
	Cell    string          `json:"cell"`
	Pickups []models.Pickup `json:"pickups"`
}

// FeedService serves the read views that the verification pipeline
// invalidates. Results are cached under the same tags the writers use.
type FeedService struct {
	store store.Store
	cache cache.Cache
}

func NewFeedService(st store.Store, c cache.Cache) *FeedService {
	return &FeedService{store: st, cache: c}
}

func (s *FeedService) Pickup(ctx context.Context, id uuid.UUID) (*models.Pickup, error) {
	key := "pickup:" + id.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.Pickup), nil
	}
	stamp := s.cache.Stamp()

	pickup, err := s.store.GetPickup(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrPickupNotFound) {
			return nil, newError(KindNotFound, "Pickup not found", err)
		}
		return nil, newError(KindInternal, "Failed to load pickup", err)
	}

	s.cache.Put(key, pickup, stamp, cache.PickupTag(id.String()), cache.TagPickups)
	return pickup, nil
}

func (s *FeedService) RecentActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	key := fmt.Sprintf("activities:%d", limit)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.Activity), nil
	}
	stamp := s.cache.Stamp()

	activities, err := s.store.ListRecentActivities(ctx, limit)
	if err != nil {
		return nil, newError(KindInternal, "Failed to load activity feed", err)
	}

	s.cache.Put(key, activities, stamp, cache.TagActivities)
	return activities, nil
}

func (s *FeedService) UserStats(ctx context.Context, userID uuid.UUID) (*store.UserStats, error) {
	key := "stats:" + userID.String()
	if v, ok := s.cache.Get(key); ok {
		return v.(*store.UserStats), nil
	}
	stamp := s.cache.Stamp()

	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, newError(KindNotFound, "User not found", err)
		}
		return nil, newError(KindInternal, "Failed to load stats", err)
	}

	s.cache.Put(key, stats, stamp, cache.UserTag(userID.String()))
	return stats, nil
}

// Map returns the pickups in the map cell containing the point.
func (s *FeedService) Map(ctx context.Context, lat, lng float64, status models.PickupStatus) (*MapView, error) {
	if !validCoordinates(lat, lng) {
		return nil, newError(KindInvalidInput, "Latitude must be within [-90, 90] and longitude within [-180, 180]", nil)
	}

	cell := CellToken(lat, lng)
	key := "map:" + cell + ":" + string(status)
	if v, ok := s.cache.Get(key); ok {
		return v.(*MapView), nil
	}
	stamp := s.cache.Stamp()

	pickups, err := s.store.ListPickupsInCell(ctx, cell, status)
	if err != nil {
		return nil, newError(KindInternal, "Failed to load map", err)
	}

	view := &MapView{Cell: cell, Pickups: pickups}
	s.cache.Put(key, view, stamp, cache.MapTag(cell))
	return view, nil
}

func (s *FeedService) CommunityPickups(ctx context.Context, communityID uuid.UUID, status models.PickupStatus, limit int) ([]models.Pickup, error) {
	key := fmt.Sprintf("community:%s:%s:%d", communityID, status, limit)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.Pickup), nil
	}
	stamp := s.cache.Stamp()

	if _, err := s.store.GetCommunity(ctx, communityID); err != nil {
		if errors.Is(err, store.ErrCommunityNotFound) {
			return nil, newError(KindNotFound, "Community not found", err)
		}
		return nil, newError(KindInternal, "Failed to load community", err)
	}

	pickups, err := s.store.ListCommunityPickups(ctx, communityID, status, limit)
	if err != nil {
		return nil, newError(KindInternal, "Failed to load pickups", err)
	}

	s.cache.Put(key, pickups, stamp, cache.TagPickups)
	return pickups, nil
}
