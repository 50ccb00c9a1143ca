package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/vision"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReportInput struct {
	UserID    uuid.UUID
	Images    []string
	Latitude  float64
	Longitude float64
}

type ReportResult struct {
	PickupID  uuid.UUID       `json:"pickupId"`
	Weight    decimal.Decimal `json:"weight"`
	Type      string          `json:"type"`
	Points    int             `json:"points"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
}

// ReportService turns before-photos and a location into a pending pickup.
type ReportService struct {
	store  store.Store
	vision vision.Adjudicator
	images storage.ImageStore
	cache  cache.Cache
	budget int
}

func NewReportService(st store.Store, adj vision.Adjudicator, images storage.ImageStore, c cache.Cache, cfg *config.Config) *ReportService {
	return &ReportService{
		store:  st,
		vision: adj,
		images: images,
		cache:  c,
		budget: cfg.ImageByteBudget,
	}
}

func (s *ReportService) Report(ctx context.Context, in ReportInput) (*ReportResult, error) {
	result, err := s.report(ctx, in)
	if err != nil {
		metrics.ReportsTotal.WithLabelValues(string(KindOf(err))).Inc()
		return nil, err
	}
	metrics.ReportsTotal.WithLabelValues("created").Inc()
	return result, nil
}

func (s *ReportService) report(ctx context.Context, in ReportInput) (*ReportResult, error) {
	uploads, err := decodeUploads(in.Images)
	if err != nil {
		return nil, err
	}
	if !validCoordinates(in.Latitude, in.Longitude) {
		return nil, newError(KindInvalidInput, "Latitude must be within [-90, 90] and longitude within [-180, 180]", nil)
	}

	// ===== Resolve reporter =====

	user, err := s.store.GetUser(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, newError(KindNotFound, "User not found", err)
		}
		return nil, newError(KindInternal, "Failed to load user", err)
	}
	if user.CommunityID == nil {
		return nil, newError(KindInvalidInput, "Join a community before reporting trash", nil)
	}
	community, err := s.store.GetCommunity(ctx, *user.CommunityID)
	if err != nil {
		if errors.Is(err, store.ErrCommunityNotFound) {
			return nil, newError(KindNotFound, "Community not found", err)
		}
		return nil, newError(KindInternal, "Failed to load community", err)
	}

	// ===== Classify =====

	images, err := normalizeUploads(ctx, uploads, s.budget)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	classification, err := s.vision.Classify(ctx, images)
	if err != nil {
		metrics.ModelDurationSeconds.WithLabelValues("classify", "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, vision.ErrInvalidImage) {
			return nil, newError(KindProcessingFailed, "The images could not be analysed", err)
		}
		return nil, newError(KindVerificationFailed, "Could not analyse the photos, please try again", err)
	}
	metrics.ModelDurationSeconds.WithLabelValues("classify", "ok").Observe(time.Since(start).Seconds())

	// ===== Persist =====

	refs := make([]string, 0, len(images))
	for _, img := range images {
		ref, err := s.images.Put(ctx, img)
		if err != nil {
			s.discardImages(ctx, in.UserID, refs)
			return nil, newError(KindInternal, "Failed to store images", err)
		}
		refs = append(refs, ref)
	}

	cell := CellToken(in.Latitude, in.Longitude)
	pickup, err := s.store.CreatePickup(ctx, store.NewPickup{
		CommunityID: community.ID,
		ReporterID:  user.ID,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CellID:      cell,
		Images:      refs,
		Weight:      classification.WeightKg,
		TrashType:   classification.TrashType,
	})
	if err != nil {
		s.discardImages(ctx, in.UserID, refs)
		return nil, newError(KindInternal, "Failed to create report", err)
	}

	cache.InvalidateScope(s.cache, cache.Scope{
		Global: []string{cache.TagActivities, cache.TagPickups},
		UserID: user.ID.String(),
		Cell:   cell,
	})

	slog.Info("trash reported",
		"pickup_id", pickup.ID,
		"user_id", user.ID,
		"community_id", community.ID,
		"weight", pickup.Weight.String(),
		"images", len(refs),
	)

	return &ReportResult{
		PickupID:  pickup.ID,
		Weight:    pickup.Weight,
		Type:      pickup.TrashType,
		Points:    0,
		Latitude:  pickup.Latitude,
		Longitude: pickup.Longitude,
	}, nil
}

// discardImages removes images uploaded for a report that was never created.
// Whatever cannot be removed is logged so it can be swept later.
func (s *ReportService) discardImages(ctx context.Context, userID uuid.UUID, refs []string) {
	if len(refs) == 0 {
		return
	}
	if leftover := storage.DeleteAll(context.WithoutCancel(ctx), s.images, refs); len(leftover) > 0 {
		slog.Error("orphaned report images",
			"user_id", userID,
			"action", "report",
			"refs", leftover,
		)
	}
}
