package source

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
)

// Static always produces the same texture
type Static struct {
	texture *image.RGBA
	size    geometry.Size
}

func NewStatic(img image.Image) *Static {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	}
	return &Static{rgba, geometry.SizeOf(rgba.Bounds())}
}

// LoadStatic decodes a PNG, JPEG or WebP file
func LoadStatic(path string) (*Static, error) {
	buf, err := gg.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("load static image %s: %w", path, err)
	}
	return NewStatic(buf.ToStdImage()), nil
}

func (s *Static) Produce(ctx context.Context, at time.Duration) *image.RGBA {
	return s.texture
}

func (s *Static) NaturalSize() geometry.Size {
	return s.size
}
