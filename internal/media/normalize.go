package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"runtime"
	"sync"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	startQuality = 80
	minQuality   = 30
	qualityStep  = 10
	scaleRatio   = 0.7

	// MaxPixels caps decoded dimensions. A few hundred KB of PNG can describe
	// an image that needs gigabytes once decoded.
	MaxPixels = 40_000_000
)

var (
	ErrUndecodable   = errors.New("image could not be decoded")
	ErrOverBudget    = errors.New("image could not be reduced to the byte budget")
	ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")
)

// Result is the outcome of normalising one item of a batch.
type Result struct {
	Image Image
	Err   error
}

// Normalize returns img unchanged when it already fits the byte budget.
// Otherwise it re-encodes as JPEG with decreasing quality, and as a last step
// shrinks the pixel dimensions once and re-encodes at the lowest quality.
// HEIC/HEIF have no Go decoder and only pass when already within budget.
func Normalize(img Image, budget int) (Image, error) {
	heif := isHEIF(img.MIME)
	if !heif {
		if err := checkHeader(img.Data); err != nil {
			return Image{}, err
		}
	}
	if len(img.Data) <= budget {
		return img, nil
	}
	if heif {
		return Image{}, fmt.Errorf("%w: no decoder for %s", ErrUndecodable, img.MIME)
	}

	src, format, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if format == "jpeg" {
		src = applyOrientation(src, orientation(img.Data))
	}

	quality := startQuality
	for ; quality >= minQuality; quality -= qualityStep {
		data, err := encodeJPEG(src, quality)
		if err != nil {
			return Image{}, err
		}
		if len(data) <= budget {
			return Image{MIME: "image/jpeg", Data: data}, nil
		}
	}
	quality = minQuality

	data, err := encodeJPEG(scale(src, scaleRatio), quality)
	if err != nil {
		return Image{}, err
	}
	if len(data) > budget {
		return Image{}, fmt.Errorf("%w: %d bytes > %d", ErrOverBudget, len(data), budget)
	}

	slog.Debug("image rescaled to fit budget", "original_bytes", len(img.Data), "bytes", len(data), "quality", quality)
	return Image{MIME: "image/jpeg", Data: data}, nil
}

// NormalizeBatch normalises every image concurrently, bounded by the number of
// CPUs. Failed items are reported in their Result and never abort the batch.
func NormalizeBatch(ctx context.Context, imgs []Image, budget int) []Result {
	results := make([]Result, len(imgs))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, img := range imgs {
		wg.Add(1)
		go func(i int, img Image) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			out, err := Normalize(img, budget)
			results[i] = Result{Image: out, Err: err}
		}(i, img)
	}

	wg.Wait()
	return results
}

// Survivors returns the images of all successful results, in input order.
func Survivors(results []Result) []Image {
	out := make([]Image, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Image)
		}
	}
	return out
}

// checkHeader reads only the image header: the data must be a known raster
// format and its dimensions must stay under MaxPixels.
func checkHeader(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty dimensions", ErrUndecodable)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}
	return nil
}

func isHEIF(mime string) bool {
	return mime == "image/heic" || mime == "image/heif"
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func scale(src image.Image, ratio float64) image.Image {
	b := src.Bounds()
	w := max(1, int(float64(b.Dx())*ratio))
	h := max(1, int(float64(b.Dy())*ratio))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// orientation reads the EXIF orientation tag, defaulting to 1 (upright).
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// applyOrientation rotates/flips img so that it renders upright once the EXIF
// tag is lost by re-encoding.
func applyOrientation(img image.Image, o int) image.Image {
	if o < 2 || o > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	transposed := o >= 5

	dw, dh := w, h
	if transposed {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
