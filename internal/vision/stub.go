package vision

import (
	"context"
	"crypto/sha256"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/media"
	"github.com/shopspring/decimal"
)

var stubTrashTypes = []string{"plastic bottles", "mixed household waste", "cigarette butts", "glass", "food packaging"}

// Stub is a deterministic, no-network adjudicator for CI and local runs.
type Stub struct{}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) Classify(_ context.Context, images []media.Image) (*Classification, error) {
	if err := validateImages(images, MaxClassifyImages); err != nil {
		return nil, err
	}
	sum := digest(images)
	return &Classification{
		WeightKg:  decimal.New(int64(5+int(sum[0])%96), -1),
		TrashType: stubTrashTypes[int(sum[1])%len(stubTrashTypes)],
	}, nil
}

func (s *Stub) Compare(_ context.Context, before, after []media.Image) (*Comparison, error) {
	if len(before) == 0 {
		return nil, ErrNoEvidence
	}
	if err := validateImages(after, MaxAfterImages); err != nil {
		return nil, err
	}
	sum := digest(append(append([]media.Image{}, before...), after...))
	return &Comparison{Confidence: 55 + int(sum[0])%46}, nil
}

func digest(images []media.Image) [32]byte {
	h := sha256.New()
	for _, img := range images {
		h.Write(img.Data)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
