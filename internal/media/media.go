// Package media checks uploaded photos and videos and shrinks large photos
// before they are sent to a vision model.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/nfnt/resize"
)

// MaxWidth is the widest image forwarded to a model.
const MaxWidth = 1024

var (
	// ErrUnsupportedMedia is returned for anything that is not an image or video.
	ErrUnsupportedMedia = errors.New("only images and videos are supported")
	// ErrUnreadableImage is returned when a JPEG or PNG cannot be decoded.
	ErrUnreadableImage = errors.New("image could not be decoded")
)

// Prepare validates the media type and returns the bytes to send to the
// model. JPEG and PNG images wider than MaxWidth are scaled down keeping
// their aspect ratio; other images and all videos pass through unchanged.
func Prepare(data []byte, mimeType string) ([]byte, error) {
	mimeType = Normalize(mimeType)
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return data, nil
	case mimeType == "image/jpeg", mimeType == "image/png":
		return shrink(data, mimeType)
	case strings.HasPrefix(mimeType, "image/"):
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMedia, mimeType)
	}
}

// Normalize lower-cases a Content-Type and drops its parameters.
func Normalize(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}

func shrink(data []byte, mimeType string) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if cfg.Width <= MaxWidth {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	img = resize.Resize(MaxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	switch mimeType {
	case "image/png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
