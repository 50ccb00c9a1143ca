package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/media"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/storage"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/store"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/vision"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// memStore is an in-memory store.Store with the same atomicity guarantees as
// the SQL implementation.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*models.User
	communities map[uuid.UUID]*models.Community
	pickups     map[uuid.UUID]*models.Pickup
	activities  []models.Activity
	awardErr    error
	createErr   error
	reads       atomic.Int32

	// When set, GetPickup signals loaded after copying the row and waits for
	// release before returning it.
	loaded  chan struct{}
	release chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*models.User),
		communities: make(map[uuid.UUID]*models.Community),
		pickups:     make(map[uuid.UUID]*models.Pickup),
	}
}

func (m *memStore) addMember(t *testing.T) *models.User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	community := &models.Community{ID: uuid.New(), Name: "Riverside"}
	m.communities[community.ID] = community
	user := &models.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", CommunityID: &community.ID}
	m.users[user.ID] = user
	return user
}

func (m *memStore) CreatePickup(_ context.Context, in store.NewPickup) (*models.Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	now := time.Now()
	p := &models.Pickup{
		ID:          uuid.New(),
		CommunityID: in.CommunityID,
		ReporterID:  in.ReporterID,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CellID:      in.CellID,
		Images:      datatypes.JSONSlice[string](in.Images),
		Weight:      in.Weight,
		TrashType:   in.TrashType,
		Status:      models.PickupStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.pickups[p.ID] = p
	m.activities = append(m.activities, models.Activity{
		ID: uuid.New(), UserID: in.ReporterID, Type: models.ActivityTrashReport, PickupID: &p.ID, CreatedAt: now,
	})
	cp := *p
	return &cp, nil
}

func (m *memStore) FindLatestReportForUser(_ context.Context, userID uuid.UUID) (*store.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.activities) - 1; i >= 0; i-- {
		a := m.activities[i]
		if a.UserID == userID && a.Type == models.ActivityTrashReport {
			return &store.Report{Pickup: *m.pickups[*a.PickupID], Activity: a}, nil
		}
	}
	return nil, store.ErrNoPriorReport
}

func (m *memStore) FindReportForPickup(_ context.Context, pickupID uuid.UUID) (*store.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pickups[pickupID]
	if !ok {
		return nil, store.ErrPickupNotFound
	}
	for _, a := range m.activities {
		if a.PickupID != nil && *a.PickupID == pickupID && a.Type == models.ActivityTrashReport {
			return &store.Report{Pickup: *p, Activity: a}, nil
		}
	}
	return nil, store.ErrNoPriorReport
}

func (m *memStore) ConfirmPickup(_ context.Context, in store.Confirmation) (*models.Pickup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pickups[in.PickupID]
	if !ok {
		return nil, store.ErrPickupNotFound
	}
	if p.Status != models.PickupStatusPending {
		return nil, store.ErrNotPending
	}
	u, ok := m.users[in.UserID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	// A failed award leaves nothing behind, like a rolled back transaction.
	if m.awardErr != nil {
		return nil, m.awardErr
	}

	now := time.Now()
	p.Status = models.PickupStatusDone
	p.ConfirmedBy = &in.UserID
	p.ConfirmedAt = &now
	confidence := in.Confidence
	m.activities = append(m.activities, models.Activity{
		ID: uuid.New(), UserID: in.UserID, Type: models.ActivityTrashPickup, PickupID: &in.PickupID,
		Points: in.Points, Confidence: &confidence, CreatedAt: now,
	})
	u.Points += int64(in.Points)
	cp := *p
	return &cp, nil
}

func (m *memStore) failAwards(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awardErr = err
}

func (m *memStore) GetPickup(_ context.Context, id uuid.UUID) (*models.Pickup, error) {
	m.reads.Add(1)
	m.mu.Lock()
	p, ok := m.pickups[id]
	if !ok {
		m.mu.Unlock()
		return nil, store.ErrPickupNotFound
	}
	cp := *p
	loaded, release := m.loaded, m.release
	m.mu.Unlock()

	if loaded != nil {
		loaded <- struct{}{}
		<-release
	}
	return &cp, nil
}

func (m *memStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetCommunity(_ context.Context, id uuid.UUID) (*models.Community, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.communities[id]
	if !ok {
		return nil, store.ErrCommunityNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListRecentActivities(_ context.Context, limit int) ([]models.Activity, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Activity, 0, limit)
	for i := len(m.activities) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.activities[i])
	}
	return out, nil
}

func (m *memStore) ListPickupsInCell(_ context.Context, cellID string, status models.PickupStatus) ([]models.Pickup, error) {
	m.reads.Add(1)
	return m.filterPickups(func(p *models.Pickup) bool {
		return p.CellID == cellID && (status == "" || p.Status == status)
	}), nil
}

func (m *memStore) ListCommunityPickups(_ context.Context, communityID uuid.UUID, status models.PickupStatus, _ int) ([]models.Pickup, error) {
	m.reads.Add(1)
	return m.filterPickups(func(p *models.Pickup) bool {
		return p.CommunityID == communityID && (status == "" || p.Status == status)
	}), nil
}

func (m *memStore) UserStats(_ context.Context, userID uuid.UUID) (*store.UserStats, error) {
	m.reads.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	stats := &store.UserStats{UserID: userID, Points: u.Points}
	for _, a := range m.activities {
		if a.UserID != userID {
			continue
		}
		if a.Type == models.ActivityTrashReport {
			stats.Reports++
		} else {
			stats.Pickups++
		}
	}
	return stats, nil
}

func (m *memStore) filterPickups(keep func(*models.Pickup) bool) []models.Pickup {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Pickup
	for _, p := range m.pickups {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) pickup(id uuid.UUID) models.Pickup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.pickups[id]
}

func (m *memStore) points(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].Points
}

func (m *memStore) countActivities(typ models.ActivityType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.activities {
		if a.Type == typ {
			n++
		}
	}
	return n
}

// memImages is an ImageStore that keeps objects in a map.
type memImages struct {
	mu      sync.Mutex
	objects map[string]media.Image
}

func newMemImages() *memImages {
	return &memImages{objects: make(map[string]media.Image)}
}

func (m *memImages) Put(_ context.Context, img media.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "mem://" + uuid.NewString()
	m.objects[ref] = img
	return ref, nil
}

func (m *memImages) Get(_ context.Context, ref string) (media.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.objects[ref]
	if !ok {
		return media.Image{}, storage.ErrNotFound
	}
	return img, nil
}

func (m *memImages) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}

func (m *memImages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// fakeAdjudicator returns fixed answers and counts Compare calls.
type fakeAdjudicator struct {
	weight      decimal.Decimal
	confidence  int
	compareErr  error
	classifyErr error
	delay       time.Duration
	compares    atomic.Int32
}

func (f *fakeAdjudicator) Classify(_ context.Context, images []media.Image) (*vision.Classification, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return &vision.Classification{WeightKg: f.weight, TrashType: "plastic bottles"}, nil
}

func (f *fakeAdjudicator) Compare(_ context.Context, before, after []media.Image) (*vision.Comparison, error) {
	f.compares.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.compareErr != nil {
		return nil, f.compareErr
	}
	if len(before) == 0 {
		return nil, vision.ErrNoEvidence
	}
	return &vision.Comparison{Confidence: f.confidence}, nil
}

func testConfig() *config.Config {
	return &config.Config{ImageByteBudget: 1 << 20, ConfidenceThreshold: 50}
}

func jpegDataURI(t *testing.T, shade uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 16), B: uint8(y * 16), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func dataURIs(t *testing.T, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = jpegDataURI(t, uint8(40*i))
	}
	return out
}

var errModelDown = errors.New("model down")
