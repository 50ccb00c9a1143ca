package services

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_PickupIsCachedUntilConfirmed(t *testing.T) {
	p := newPipeline(90)
	feed := NewFeedService(p.store, p.cache)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)

	first, err := feed.Pickup(context.Background(), pickupID)
	require.NoError(t, err)
	_, err = feed.Pickup(context.Background(), pickupID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.store.reads.Load())
	assert.Equal(t, models.PickupStatusPending, first.Status)

	_, err = p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 1)})
	require.NoError(t, err)

	fresh, err := feed.Pickup(context.Background(), pickupID)
	require.NoError(t, err)
	assert.Equal(t, models.PickupStatusDone, fresh.Status)
}

func TestFeed_SlowReadDoesNotRestoreInvalidatedView(t *testing.T) {
	p := newPipeline(90)
	feed := NewFeedService(p.store, p.cache)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)
	images := dataURIs(t, 1)

	p.store.mu.Lock()
	p.store.loaded = make(chan struct{})
	p.store.release = make(chan struct{})
	p.store.mu.Unlock()

	type result struct {
		pickup *models.Pickup
		err    error
	}
	read := make(chan result, 1)
	go func() {
		pickup, err := feed.Pickup(context.Background(), pickupID)
		read <- result{pickup, err}
	}()
	<-p.store.loaded

	_, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: images})
	require.NoError(t, err)

	p.store.mu.Lock()
	p.store.loaded = nil
	p.store.mu.Unlock()
	close(p.store.release)

	slow := <-read
	require.NoError(t, slow.err)
	assert.Equal(t, models.PickupStatusPending, slow.pickup.Status, "the in-flight read saw the old row")

	fresh, err := feed.Pickup(context.Background(), pickupID)
	require.NoError(t, err)
	assert.Equal(t, models.PickupStatusDone, fresh.Status)
}

func TestFeed_UserStatsFollowConfirmations(t *testing.T) {
	p := newPipeline(90)
	feed := NewFeedService(p.store, p.cache)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)

	stats, err := feed.UserStats(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Reports)
	assert.Zero(t, stats.Points)

	res, err := p.verify.Confirm(context.Background(), ConfirmInput{UserID: user.ID, PickupID: &pickupID, Images: dataURIs(t, 1)})
	require.NoError(t, err)

	stats, err = feed.UserStats(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Points), stats.Points)
	assert.Equal(t, int64(1), stats.Pickups)
}

func TestFeed_MapAndActivities(t *testing.T) {
	p := newPipeline(90)
	feed := NewFeedService(p.store, p.cache)
	user := p.store.addMember(t)
	pickupID := p.report(t, user)

	view, err := feed.Map(context.Background(), 52.52, 13.405, "")
	require.NoError(t, err)
	assert.Equal(t, CellToken(52.52, 13.405), view.Cell)
	require.Len(t, view.Pickups, 1)
	assert.Equal(t, pickupID, view.Pickups[0].ID)

	_, err = feed.Map(context.Background(), 100, 0, "")
	assert.Equal(t, KindInvalidInput, KindOf(err))

	activities, err := feed.RecentActivities(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, activities, 1)

	p.report(t, user)
	activities, err = feed.RecentActivities(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, activities, 2, "reporting invalidates the feed")
}

func TestFeed_CommunityPickups(t *testing.T) {
	p := newPipeline(90)
	feed := NewFeedService(p.store, p.cache)
	user := p.store.addMember(t)
	p.report(t, user)

	pickups, err := feed.CommunityPickups(context.Background(), *user.CommunityID, models.PickupStatusPending, 20)
	require.NoError(t, err)
	assert.Len(t, pickups, 1)

	_, err = feed.CommunityPickups(context.Background(), uuid.New(), "", 20)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCellToken(t *testing.T) {
	a := CellToken(52.5200, 13.4050)
	b := CellToken(52.5201, 13.4051)
	c := CellToken(48.8566, 2.3522)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEmpty(t, a)
}
