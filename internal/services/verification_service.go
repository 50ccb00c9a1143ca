package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/vision"
	"github.com/google/uuid"
)

// ConfirmInput is a cleanup claim. A nil PickupID selects the caller's most
// recent report.
type ConfirmInput struct {
	UserID   uuid.UUID
	PickupID *uuid.UUID
	Images   []string
}

// ConfirmResult is returned for both outcomes of a scored claim. Confirmed is
// false when the model was not convinced; that is not an error.
type ConfirmResult struct {
	Confirmed  bool
	PickupID   uuid.UUID
	Confidence int
	Points     int
}

// VerificationService adjudicates cleanup claims and awards points.
type VerificationService struct {
	store     store.Store
	vision    vision.Adjudicator
	images    storage.ImageStore
	cache     cache.Cache
	budget    int
	threshold int
}

func NewVerificationService(st store.Store, adj vision.Adjudicator, images storage.ImageStore, c cache.Cache, cfg *config.Config) *VerificationService {
	return &VerificationService{
		store:     st,
		vision:    adj,
		images:    images,
		cache:     c,
		budget:    cfg.ImageByteBudget,
		threshold: cfg.ConfidenceThreshold,
	}
}

func (s *VerificationService) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	result, err := s.confirm(ctx, in)
	switch {
	case err != nil:
		metrics.VerificationsTotal.WithLabelValues(string(KindOf(err))).Inc()
	case result.Confirmed:
		metrics.VerificationsTotal.WithLabelValues("confirmed").Inc()
	default:
		metrics.VerificationsTotal.WithLabelValues("rejected").Inc()
	}
	return result, err
}

func (s *VerificationService) confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	// ===== After photos =====

	uploads, err := decodeUploads(in.Images)
	if err != nil {
		return nil, err
	}
	after, err := normalizeUploads(ctx, uploads, s.budget)
	if err != nil {
		return nil, err
	}

	// ===== Before photos =====

	if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, newError(KindNotFound, "User not found", err)
		}
		return nil, newError(KindInternal, "Failed to load user", err)
	}

	report, err := s.resolveReport(ctx, in)
	if err != nil {
		return nil, err
	}
	pickup := report.Pickup
	if pickup.Status != models.PickupStatusPending {
		return nil, newError(KindAlreadyConfirmed, "This pickup has already been confirmed", store.ErrNotPending)
	}

	before, failed := storage.FetchAll(ctx, s.images, pickup.Images)
	if failed > 0 {
		slog.Warn("some before images could not be fetched", "pickup_id", pickup.ID, "failed", failed, "fetched", len(before))
	}
	if len(before) == 0 {
		return nil, newError(KindVerificationFailed, "The original report photos could not be loaded, please try again", vision.ErrNoEvidence)
	}

	// ===== Adjudication =====

	start := time.Now()
	cmp, err := s.vision.Compare(ctx, before, after)
	if err != nil {
		metrics.ModelDurationSeconds.WithLabelValues("compare", "error").Observe(time.Since(start).Seconds())
		var verr *vision.VerificationError
		if errors.As(err, &verr) && verr.Timeout() {
			slog.Warn("cleanup verification timed out", "pickup_id", pickup.ID, "user_id", in.UserID)
		}
		return nil, newError(KindVerificationFailed, "Could not verify the cleanup, please try again", err)
	}
	metrics.ModelDurationSeconds.WithLabelValues("compare", "ok").Observe(time.Since(start).Seconds())
	metrics.ConfidenceScore.Observe(float64(cmp.Confidence))

	if cmp.Confidence <= s.threshold {
		slog.Info("cleanup not confirmed", "pickup_id", pickup.ID, "user_id", in.UserID, "confidence", cmp.Confidence)
		return &ConfirmResult{Confirmed: false, PickupID: pickup.ID, Confidence: cmp.Confidence}, nil
	}

	// ===== Award =====

	// Weight is fixed when the report is created, so points can be priced
	// before the transition.
	points := PointsFor(pickup.Weight)
	done, err := s.store.ConfirmPickup(ctx, store.Confirmation{
		PickupID:   pickup.ID,
		UserID:     in.UserID,
		Points:     points,
		Confidence: cmp.Confidence,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotPending):
			return nil, newError(KindAlreadyConfirmed, "This pickup has already been confirmed", err)
		case errors.Is(err, store.ErrPickupNotFound):
			return nil, newError(KindNotFound, "Pickup not found", err)
		case errors.Is(err, store.ErrUserNotFound):
			return nil, newError(KindNotFound, "User not found", err)
		default:
			slog.Error("failed to confirm pickup",
				"pickup_id", pickup.ID,
				"user_id", in.UserID,
				"points", points,
				"confidence", cmp.Confidence,
				"error", err,
			)
			return nil, newError(KindInternal, "Failed to confirm pickup, please try again", err)
		}
	}
	metrics.PointsAwardedTotal.Add(float64(points))

	// ===== Invalidation =====

	cache.InvalidateScope(s.cache, cache.Scope{
		Global:   []string{cache.TagActivities, cache.TagPickups},
		PickupID: done.ID.String(),
		UserID:   in.UserID.String(),
		Cell:     done.CellID,
	})

	slog.Info("cleanup confirmed",
		"pickup_id", done.ID,
		"user_id", in.UserID,
		"confidence", cmp.Confidence,
		"points", points,
	)

	return &ConfirmResult{
		Confirmed:  true,
		PickupID:   done.ID,
		Confidence: cmp.Confidence,
		Points:     points,
	}, nil
}

func (s *VerificationService) resolveReport(ctx context.Context, in ConfirmInput) (*store.Report, error) {
	var (
		report *store.Report
		err    error
	)
	if in.PickupID != nil {
		report, err = s.store.FindReportForPickup(ctx, *in.PickupID)
	} else {
		report, err = s.store.FindLatestReportForUser(ctx, in.UserID)
	}

	switch {
	case err == nil:
		return report, nil
	case errors.Is(err, store.ErrPickupNotFound):
		return nil, newError(KindNotFound, "Pickup not found", err)
	case errors.Is(err, store.ErrNoPriorReport):
		return nil, newError(KindNoPriorReport, "No trash report found to confirm", err)
	default:
		return nil, newError(KindInternal, "Failed to load report", err)
	}
}
