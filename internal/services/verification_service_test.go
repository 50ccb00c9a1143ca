package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/cache"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/vision"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipeline struct {
	store   *memStore
	adj     *fakeAdjudicator
	cache   *cache.Memory
	reports *ReportService
	verify  *VerificationService
}

func newPipeline(confidence int) *pipeline {
	st := newMemStore()
	adj := &fakeAdjudicator{weight: decimal.RequireFromString("2.5"), confidence: confidence}
	c := cache.NewMemory(time.Minute)
	cfg := testConfig()
	return &pipeline{
		store:   st,
		adj:     adj,
		cache:   c,
		reports: NewReportService(st, adj, storage.Inline{}, c, cfg),
		verify:  NewVerificationService(st, adj, storage.Inline{}, c, cfg),
	}
}

func (p *pipeline) report(t *testing.T, user *models.User) uuid.UUID {
	t.Helper()
	res, err := p.reports.Report(context.Background(), ReportInput{
		UserID: user.ID, Images: dataURIs(t, 1), Latitude: 52.52, Longitude: 13.405,
	})
	require.NoError(t, err)
	return res.PickupID
}

func TestConfirm_HappyPath(t *testing.T) {
	p := newPipeline(80)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)
	assert.Equal(t, models.PickupStatusPending, p.store.pickup(pickupID).Status)

	res, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 3)})
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, 80, res.Confidence)
	assert.Equal(t, pickupID, res.PickupID)
	assert.Equal(t, PointsFor(decimal.RequireFromString("2.5")), res.Points)

	pickup := p.store.pickup(pickupID)
	assert.Equal(t, models.PickupStatusDone, pickup.Status)
	require.NotNil(t, pickup.ConfirmedBy)
	assert.Equal(t, user.ID, *pickup.ConfirmedBy)
	assert.Equal(t, 1, p.store.countActivities(models.ActivityTrashPickup))
	assert.Equal(t, int64(res.Points), p.store.points(user.ID))
}

func TestConfirm_LowConfidenceIsNotAnError(t *testing.T) {
	p := newPipeline(30)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)

	res, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 2)})
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
	assert.Equal(t, 30, res.Confidence)
	assert.Zero(t, res.Points)

	assert.Equal(t, models.PickupStatusPending, p.store.pickup(pickupID).Status)
	assert.Equal(t, 0, p.store.countActivities(models.ActivityTrashPickup))
	assert.Zero(t, p.store.points(user.ID))
}

func TestConfirm_ThresholdBoundary(t *testing.T) {
	testCases := []struct {
		confidence int
		confirmed  bool
	}{
		{confidence: 1, confirmed: false},
		{confidence: 50, confirmed: false},
		{confidence: 51, confirmed: true},
		{confidence: 100, confirmed: true},
	}

	for _, tc := range testCases {
		p := newPipeline(tc.confidence)
		user := p.store.addMember(t)
		pickupID := p.report(t, user)

		res, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 1)})
		require.NoError(t, err)
		assert.Equal(t, tc.confirmed, res.Confirmed, "confidence %d", tc.confidence)
	}
}

func TestConfirm_DoubleConfirmation(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)

	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 1)})
	require.NoError(t, err)
	pointsAfterFirst := p.store.points(user.ID)

	p.adj.confidence = 10
	_, err = p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 1)})
	assert.Equal(t, KindAlreadyConfirmed, KindOf(err))
	assert.Equal(t, int32(1), p.adj.compares.Load(), "done pickups are rejected before the model is called")
	assert.Equal(t, pointsAfterFirst, p.store.points(user.ID))
	assert.Equal(t, 1, p.store.countActivities(models.ActivityTrashPickup))
}

func TestConfirm_ConcurrentClaimsConfirmOnce(t *testing.T) {
	p := newPipeline(90)
	p.adj.delay = 20 * time.Millisecond
	reporter := p.store.addMember(t)
	pickupID := p.report(t, reporter)

	const claims = 8
	images := dataURIs(t, 1)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		rejected  int
	)
	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: reporter.ID, PickupID: &pickupID, Images: images})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				confirmed++
			} else if KindOf(err) == KindAlreadyConfirmed {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, confirmed)
	assert.Equal(t, claims-1, rejected)
	assert.Equal(t, 1, p.store.countActivities(models.ActivityTrashPickup))
	assert.Equal(t, int64(PointsFor(p.adj.weight)), p.store.points(reporter.ID))
}

func TestConfirm_ConcurrentPickupsByOneUserKeepAllPoints(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	first := p.report(t, user)
	second := p.report(t, user)

	images := dataURIs(t, 1)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{first, second} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &id, Images: images})
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int64(2*PointsFor(p.adj.weight)), p.store.points(user.ID))
}

func TestConfirm_ImageCount(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)

	for _, n := range []int{0, 4} {
		_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, n)})
		assert.Equal(t, KindInvalidInput, KindOf(err), "%d images", n)
	}

	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: []string{"not a data uri"}})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: []string{"data:image/svg+xml;base64,PHN2Zz4="}})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Zero(t, p.adj.compares.Load())
}

func TestConfirm_NoPriorReport(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)

	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, Images: dataURIs(t, 1)})
	assert.Equal(t, KindNoPriorReport, KindOf(err))
	assert.Zero(t, p.adj.compares.Load())
}

func TestConfirm_LegacyPathUsesLatestReport(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	older := p.report(t, user)
	latest := p.report(t, user)

	res, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, Images: dataURIs(t, 1)})
	require.NoError(t, err)
	assert.Equal(t, latest, res.PickupID)
	assert.Equal(t, models.PickupStatusPending, p.store.pickup(older).Status)
}

func TestConfirm_UnknownPickupAndUser(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	missing := uuid.New()

	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &missing, Images: dataURIs(t, 1)})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = p.verify.Confirm(context.Background(), ConfirmInput{UserID: uuid.New(), PickupID: &missing, Images: dataURIs(t, 1)})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestConfirm_ModelFailureLeavesPickupPending(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)
	p.adj.compareErr = &vision.VerificationError{Err: errModelDown}

	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 1)})
	assert.Equal(t, KindVerificationFailed, KindOf(err))
	assert.ErrorIs(t, err, vision.ErrVerification)
	assert.True(t, KindOf(err).Retryable())
	assert.Equal(t, models.PickupStatusPending, p.store.pickup(pickupID).Status)
	assert.Zero(t, p.store.points(user.ID))
}

func TestConfirm_MissingBeforeEvidence(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	pickup, err := p.store.CreatePickup(context.Background(), store.NewPickup{
		CommunityID: *user.CommunityID,
		ReporterID:  user.ID,
		Images:      []string{"s3://gone/pickups/a.jpg"},
		Weight:      decimal.NewFromInt(1),
		TrashType:   "glass",
	})
	require.NoError(t, err)

	_, err = p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickup.ID, Images: dataURIs(t, 1)})
	assert.Equal(t, KindVerificationFailed, KindOf(err))
	assert.ErrorIs(t, err, vision.ErrNoEvidence)
	assert.Zero(t, p.adj.compares.Load())
}

func TestConfirm_InvalidatesCachedViews(t *testing.T) {
	p := newPipeline(90)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)
	cell := p.store.pickup(pickupID).CellID

	p.cache.Put("feed", 1, p.cache.Stamp(), cache.TagActivities)
	p.cache.Put("detail", 2, p.cache.Stamp(), cache.PickupTag(pickupID.String()))
	p.cache.Put("stats", 3, p.cache.Stamp(), cache.UserTag(user.ID.String()))
	p.cache.Put("map", 4, p.cache.Stamp(), cache.MapTag(cell))
	p.cache.Put("unrelated", 5, p.cache.Stamp(), cache.UserTag(uuid.NewString()))

	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 1)})
	require.NoError(t, err)

	for _, key := range []string{"feed", "detail", "stats", "map"} {
		_, ok := p.cache.Get(key)
		assert.False(t, ok, key)
	}
	_, ok := p.cache.Get("unrelated")
	assert.True(t, ok)
}

func TestConfirm_FailedAwardCanBeRetried(t *testing.T) {
	p := newPipeline(80)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)
	images := dataURIs(t, 1)

	p.store.failAwards(errors.New("connection reset"))
	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: images})
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, models.PickupStatusPending, p.store.pickup(pickupID).Status)
	assert.Equal(t, 0, p.store.countActivities(models.ActivityTrashPickup))
	assert.Equal(t, int64(0), p.store.points(user.ID))

	p.store.failAwards(nil)
	res, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: images})
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, models.PickupStatusDone, p.store.pickup(pickupID).Status)
	assert.Equal(t, 1, p.store.countActivities(models.ActivityTrashPickup))
	assert.Equal(t, int64(res.Points), p.store.points(user.ID))
}
