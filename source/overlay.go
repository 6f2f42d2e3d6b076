package source

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/gogpu/gg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ShapeKind int

const (
	RectShape ShapeKind = iota
	RoundedRectShape
	CircleShape
	LineShape
	ImageShape
)

// Shape is one annotation. Rect is in overlay pixels: a circle is inscribed
// in it, a line goes from its origin to its max corner.
type Shape struct {
	Kind      ShapeKind
	Rect      geometry.Rect
	Radius    float64
	Fill      color.Color
	Stroke    color.Color
	LineWidth float64
	Image     *gg.ImageBuf
}

func Sticker(img image.Image, at geometry.Point) Shape {
	b := img.Bounds()
	return Shape{
		Kind:  ImageShape,
		Rect:  geometry.R(at.X, at.Y, float64(b.Dx()), float64(b.Dy())),
		Image: gg.ImageBufFromImage(img),
	}
}

// Overlay composes annotation shapes and stickers into one texture. The
// texture is re-rendered only after a change.
type Overlay struct {
	size   geometry.Size
	logger zerolog.Logger

	mu      sync.Mutex
	shapes  []Shape
	dirty   bool
	dc      *gg.Context
	ring    [textureRing]*image.RGBA
	next    int
	current *image.RGBA
	renders int
}

func NewOverlay(name string, size geometry.Size) *Overlay {
	return &Overlay{
		size:   size,
		logger: log.With().Str("context", "overlay").Str("overlay", name).Logger(),
		dirty:  true,
	}
}

func (o *Overlay) Add(shapes ...Shape) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shapes = append(o.shapes, shapes...)
	o.dirty = true
}

func (o *Overlay) Set(shapes []Shape) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shapes = append(o.shapes[:0], shapes...)
	o.dirty = true
}

func (o *Overlay) Clear() {
	o.Set(nil)
}

func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.shapes)
}

func (o *Overlay) NaturalSize() geometry.Size {
	return o.size
}

func (o *Overlay) Produce(ctx context.Context, at time.Duration) *image.RGBA {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.dirty {
		return o.current
	}
	if len(o.shapes) == 0 {
		o.dirty = false
		o.current = nil
		return nil
	}
	w, h := o.size.Pixels()
	if w <= 0 || h <= 0 {
		return nil
	}
	if o.dc == nil {
		o.dc = gg.NewContext(w, h)
	}
	o.dc.Clear()
	for _, s := range o.shapes {
		if err := o.draw(s); err != nil {
			o.logger.Error().Err(err).Int("kind", int(s.Kind)).Msg("overlay_shape_failed")
		}
	}
	if err := o.dc.FlushGPU(); err != nil {
		o.logger.Error().Err(err).Msg("overlay_flush_failed")
		return nil
	}
	tex := ensureRGBA(o.ring[o.next], w, h)
	copy(tex.Pix, o.dc.ResizeTarget().Data())
	o.ring[o.next] = tex
	o.next = (o.next + 1) % textureRing
	o.current = tex
	o.dirty = false
	o.renders++
	return tex
}

func (o *Overlay) path(s Shape) {
	r := s.Rect
	switch s.Kind {
	case RectShape:
		o.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	case RoundedRectShape:
		o.dc.DrawRoundedRectangle(r.X, r.Y, r.W, r.H, s.Radius)
	case CircleShape:
		c := r.Center()
		radius := r.W
		if r.H < radius {
			radius = r.H
		}
		o.dc.DrawCircle(c.X, c.Y, radius/2)
	case LineShape:
		o.dc.DrawLine(r.X, r.Y, r.X+r.W, r.Y+r.H)
	}
}

func (o *Overlay) draw(s Shape) error {
	if s.Kind == ImageShape {
		if s.Image != nil {
			o.dc.DrawImage(s.Image, s.Rect.X, s.Rect.Y)
		}
		return nil
	}
	if s.Fill != nil && s.Kind != LineShape {
		o.path(s)
		o.dc.SetColor(s.Fill)
		if err := o.dc.Fill(); err != nil {
			return err
		}
	}
	if s.Stroke != nil {
		o.path(s)
		o.dc.SetColor(s.Stroke)
		width := s.LineWidth
		if width <= 0 {
			width = 1
		}
		o.dc.SetLineWidth(width)
		return o.dc.Stroke()
	}
	return nil
}

func (o *Overlay) Renders() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.renders
}
