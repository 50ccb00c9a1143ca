package media

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

// MaxImageBytes is the hard ceiling on a single decoded upload. Anything larger
// is rejected before normalisation is attempted.
const MaxImageBytes = 10 << 20

var (
	ErrInvalidDataURI  = errors.New("image must be a base64 data URI")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrImageTooLarge   = errors.New("image exceeds the 10MB limit")
)

var dataURIPattern = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,(.+)$`)

var allowedSubtypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heic": "image/heic",
	"heif": "image/heif",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
}

// Image is an encoded raster image together with its MIME type.
type Image struct {
	MIME string
	Data []byte
}

// DataURI renders the image back into data-URI form for model requests.
func (img Image) DataURI() string {
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// ParseDataURI decodes `data:image/<subtype>;base64,<payload>`.
func ParseDataURI(s string) (Image, error) {
	m := dataURIPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Image{}, ErrInvalidDataURI
	}

	mime, ok := allowedSubtypes[strings.ToLower(m[1])]
	if !ok {
		return Image{}, ErrUnsupportedType
	}

	payload := m[2]
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return Image{}, ErrImageTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, ErrInvalidDataURI
	}
	if len(data) == 0 {
		return Image{}, ErrInvalidDataURI
	}
	if len(data) > MaxImageBytes {
		return Image{}, ErrImageTooLarge
	}

	return Image{MIME: mime, Data: data}, nil
}

// ParseDataURIs parses every entry and stops at the first invalid one.
func ParseDataURIs(uris []string) ([]Image, error) {
	images := make([]Image, 0, len(uris))
	for _, u := range uris {
		img, err := ParseDataURI(u)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// IsImageMIME reports whether the MIME type carries the image/ prefix.
func IsImageMIME(mime string) bool {
	return strings.HasPrefix(strings.ToLower(mime), "image/")
}

// Extension returns a file extension for the MIME type, used for storage keys.
func Extension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	case "image/tiff":
		return ".tiff"
	case "image/bmp":
		return ".bmp"
	}
	return ".bin"
}
