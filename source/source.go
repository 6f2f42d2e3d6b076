// Package source provides the texture producers drawn by the compositor.
//
// A TextureSource never blocks on missing data: when nothing can be produced
// it returns nil and the compositor skips the layer for this pass. One source
// may back several layers, and several workers, so implementations are safe
// for concurrent use.
package source

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrShortFrame        = errors.New("frame data shorter than declared geometry")
	ErrSizeMismatch      = errors.New("filter source and destination sizes differ")
)

type TextureSource interface {
	// Produce returns the texture to draw at host time at, or nil. The
	// returned image must be treated as read-only.
	Produce(ctx context.Context, at time.Duration) *image.RGBA
	NaturalSize() geometry.Size
}

// compile-time checks for the closed set of variants
var (
	_ TextureSource = (*Camera)(nil)
	_ TextureSource = (*Static)(nil)
	_ TextureSource = (*ViewSnapshot)(nil)
	_ TextureSource = (*Overlay)(nil)
)

func ensureRGBA(img *image.RGBA, w, h int) *image.RGBA {
	if img != nil && img.Rect.Dx() == w && img.Rect.Dy() == h {
		return img
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
