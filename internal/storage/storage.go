package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/media"
)

var (
	ErrNotFound   = errors.New("image not found")
	ErrInvalidRef = errors.New("invalid image reference")
)

// ImageStore persists normalised pickup images and resolves the references
// kept on a pickup row back into image bytes.
type ImageStore interface {
	Put(ctx context.Context, img media.Image) (string, error)
	Get(ctx context.Context, ref string) (media.Image, error)
	Delete(ctx context.Context, ref string) error
}

// Inline keeps images inside the reference itself as data URIs. It is used when
// no object storage is configured.
type Inline struct{}

func (Inline) Put(_ context.Context, img media.Image) (string, error) {
	return img.DataURI(), nil
}

func (Inline) Get(_ context.Context, ref string) (media.Image, error) {
	if !strings.HasPrefix(ref, "data:") {
		return media.Image{}, ErrInvalidRef
	}
	return media.ParseDataURI(ref)
}

// Delete is a no-op; the image lives only in the reference.
func (Inline) Delete(context.Context, string) error { return nil }

// DeleteAll removes every reference it can and returns the ones that could
// not be removed.
func DeleteAll(ctx context.Context, store ImageStore, refs []string) []string {
	var leftover []string
	for _, ref := range refs {
		if err := store.Delete(ctx, ref); err != nil {
			leftover = append(leftover, ref)
		}
	}
	return leftover
}

// FetchAll resolves every reference it can. Failed references are skipped and
// counted so callers can treat evidence retrieval as best effort.
func FetchAll(ctx context.Context, store ImageStore, refs []string) ([]media.Image, int) {
	images := make([]media.Image, 0, len(refs))
	failed := 0
	for _, ref := range refs {
		img, err := store.Get(ctx, ref)
		if err != nil {
			failed++
			continue
		}
		images = append(images, img)
	}
	return images, failed
}
