package handlers

import (
	"context"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type FeedReader interface {
	Pickup(ctx context.Context, id uuid.UUID) (*models.Pickup, error)
	RecentActivities(ctx context.Context, limit int) ([]models.Activity, error)
	UserStats(ctx context.Context, userID uuid.UUID) (*store.UserStats, error)
	Map(ctx context.Context, lat, lng float64, status models.PickupStatus) (*services.MapView, error)
	CommunityPickups(ctx context.Context, communityID uuid.UUID, status models.PickupStatus, limit int) ([]models.Pickup, error)
}

type FeedHandler struct {
	feed FeedReader
}

func NewFeedHandler(feed FeedReader) *FeedHandler {
	return &FeedHandler{feed: feed}
}

func (h *FeedHandler) GetPickup(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid pickup id")
	}

	pickup, err := h.feed.Pickup(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pickup)
}

func (h *FeedHandler) Activities(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > store.MaxListLimit {
		return badRequest(c, "limit must be between 1 and 100")
	}

	activities, err := h.feed.RecentActivities(c.UserContext(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ActivitiesResponse{Activities: activities, Count: len(activities)})
}

func (h *FeedHandler) MyStats(c *fiber.Ctx) error {
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	stats, err := h.feed.UserStats(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

func (h *FeedHandler) Map(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return badRequest(c, "lat and lng query parameters are required")
	}
	status, ok := parseStatus(c.Query("status"))
	if !ok {
		return badRequest(c, "status must be pending or done")
	}

	view, err := h.feed.Map(c.UserContext(), lat, lng, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

func (h *FeedHandler) CommunityPickups(c *fiber.Ctx) error {
	communityID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid community id")
	}
	status, ok := parseStatus(c.Query("status"))
	if !ok {
		return badRequest(c, "status must be pending or done")
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > store.MaxListLimit {
		return badRequest(c, "limit must be between 1 and 100")
	}

	pickups, err := h.feed.CommunityPickups(c.UserContext(), communityID, status, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"pickups": pickups, "count": len(pickups)})
}

func parseStatus(s string) (models.PickupStatus, bool) {
	switch models.PickupStatus(s) {
	case "":
		return "", true
	case models.PickupStatusPending, models.PickupStatusDone:
		return models.PickupStatus(s), true
	default:
		return "", false
	}
}
