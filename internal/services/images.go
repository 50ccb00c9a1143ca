package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/media"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/metrics"
)

const (
	MinImages = 1
	MaxImages = 3
)

// decodeUploads checks the image count and decodes every data URI.
func decodeUploads(images []string) ([]media.Image, error) {
	if len(images) < MinImages || len(images) > MaxImages {
		return nil, newError(KindInvalidInput, fmt.Sprintf("Between %d and %d images are required", MinImages, MaxImages), nil)
	}

	decoded, err := media.ParseDataURIs(images)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrUnsupportedType):
			return nil, newError(KindInvalidInput, "Unsupported image type", err)
		case errors.Is(err, media.ErrImageTooLarge):
			return nil, newError(KindInvalidInput, "Image exceeds the 10MB limit", err)
		default:
			return nil, newError(KindInvalidInput, "Images must be base64 data URIs", err)
		}
	}
	return decoded, nil
}

// normalizeUploads shrinks images to the byte budget, dropping the ones that
// cannot be processed. It fails only when nothing survives.
func normalizeUploads(ctx context.Context, images []media.Image, budget int) ([]media.Image, error) {
	results := media.NormalizeBatch(ctx, images, budget)
	survivors := media.Survivors(results)

	if dropped := len(results) - len(survivors); dropped > 0 {
		metrics.ImagesDroppedTotal.Add(float64(dropped))
		for i, r := range results {
			if r.Err != nil {
				slog.Warn("image dropped during normalisation", "index", i, "error", r.Err)
			}
		}
	}

	if len(survivors) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, newError(KindInternal, "Request cancelled", err)
		}
		return nil, newError(KindProcessingFailed, "None of the images could be processed", nil)
	}
	return survivors, nil
}
