package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/media"
	"github.com/shopspring/decimal"
)

const (
	MaxClassifyImages = 3
	MaxAfterImages    = 3
	MinConfidence     = 1
	MaxConfidence     = 100
)

var (
	ErrInvalidImage     = errors.New("vision: invalid image")
	ErrResponseFormat   = errors.New("vision: malformed model response")
	ErrNoEvidence       = errors.New("vision: no before evidence could be retrieved")
	ErrVerification     = errors.New("vision: could not verify cleanup")
	ErrModelUnavailable = errors.New("vision: model unavailable")
)

// Adjudicator estimates litter from report photos and scores cleanup claims.
// Implementations are stateless and safe for concurrent use.
type Adjudicator interface {
	Classify(ctx context.Context, images []media.Image) (*Classification, error)
	Compare(ctx context.Context, before, after []media.Image) (*Comparison, error)
}

type Classification struct {
	WeightKg  decimal.Decimal `json:"estimated_weight"`
	TrashType string          `json:"trash_type"`
}

// Comparison is the ephemeral outcome of a before/after check.
type Comparison struct {
	Confidence int `json:"confidence"`
}

// ResponseFormatError reports a model answer that does not match the JSON shape
// the prompt asked for.
type ResponseFormatError struct {
	Field  string
	Reason string
}

func (e *ResponseFormatError) Error() string {
	if e.Field == "" {
		return "vision: malformed model response: " + e.Reason
	}
	return fmt.Sprintf("vision: malformed model response: %s %s", e.Field, e.Reason)
}

func (e *ResponseFormatError) Unwrap() error { return ErrResponseFormat }

// VerificationError means a before/after comparison produced no usable score.
// It is never a low-confidence result; callers must treat it as "could not verify".
type VerificationError struct {
	Err     error
	timeout bool
}

func (e *VerificationError) Error() string {
	return "vision: could not verify cleanup: " + e.Err.Error()
}

func (e *VerificationError) Unwrap() []error { return []error{ErrVerification, e.Err} }

// Timeout reports whether the model call ran out of time.
func (e *VerificationError) Timeout() bool { return e.timeout }

func verificationError(err error) *VerificationError {
	return &VerificationError{Err: err, timeout: errors.Is(err, context.DeadlineExceeded)}
}

func validateImages(images []media.Image, maxCount int) error {
	if len(images) == 0 {
		return fmt.Errorf("%w: at least one image is required", ErrInvalidImage)
	}
	if maxCount > 0 && len(images) > maxCount {
		return fmt.Errorf("%w: at most %d images allowed", ErrInvalidImage, maxCount)
	}
	for i, img := range images {
		if !media.IsImageMIME(img.MIME) || len(img.Data) == 0 {
			return fmt.Errorf("%w: image %d is not a recognised image", ErrInvalidImage, i+1)
		}
	}
	return nil
}
