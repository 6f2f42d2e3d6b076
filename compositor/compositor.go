// Package compositor draws ordered layers into per-target buffers.
//
// A Compositor is created once and carries the resources shared by every
// Worker: resampling kernel, background, the optional per-source timeout and
// an observer for timing. A Worker is one output target (the live preview,
// one recording) with its own layer list and double buffer.
package compositor

import (
	"errors"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/gogpu/gg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	ErrInvalidSize    = errors.New("worker size must be positive")
	ErrInvalidTimeout = errors.New("source timeout must not be negative")
)

// Observer receives hot path measurements, it must not block
type Observer interface {
	ComposeDone(worker string, d time.Duration)
	FrameDropped(worker string)
	SourceSkipped(worker, layer string)
}

type Options struct {
	Kernel     xdraw.Interpolator
	Background color.Color
	// SourceTimeout bounds the wait on one source during a pass. Zero means
	// wait as long as the source takes.
	SourceTimeout time.Duration
	Observer      Observer
}

type Compositor struct {
	kernel        xdraw.Interpolator
	background    *image.Uniform
	sourceTimeout time.Duration
	observer      Observer
	logger        zerolog.Logger
	workerCount   atomic.Int64
}

func NewCompositor(opts Options) (*Compositor, error) {
	if opts.SourceTimeout < 0 {
		return nil, ErrInvalidTimeout
	}
	if opts.Kernel == nil {
		opts.Kernel = xdraw.ApproxBiLinear
	}
	if opts.Background == nil {
		opts.Background = color.Black
	}
	c := &Compositor{
		kernel:        opts.Kernel,
		background:    image.NewUniform(opts.Background),
		sourceTimeout: opts.SourceTimeout,
		observer:      opts.Observer,
		logger:        log.With().Str("context", "compositor").Logger(),
	}
	c.logger.Info().Dur("source_timeout", opts.SourceTimeout).Msg("compositor_created")
	return c, nil
}

func (c *Compositor) Workers() int64 {
	return c.workerCount.Load()
}

// placement maps texture pixels into destination pixels: the texture is
// scaled into the placed rect, then the layer transform is applied about the
// center of the layer rect
func placement(texSize geometry.Size, placed geometry.Rect, dest geometry.Rect, transform gg.Matrix) gg.Matrix {
	fit := gg.Translate(placed.X, placed.Y).Multiply(gg.Scale(placed.W/texSize.W, placed.H/texSize.H))
	if transform.IsIdentity() {
		return fit
	}
	return about(dest, transform).Multiply(fit)
}

func about(dest geometry.Rect, transform gg.Matrix) gg.Matrix {
	center := dest.Center()
	return gg.Translate(center.X, center.Y).Multiply(transform).Multiply(gg.Translate(-center.X, -center.Y))
}

// clipRect is the layer rect after the layer transform: Cover overflow
// outside of it is trimmed
func clipRect(dest geometry.Rect, transform gg.Matrix) image.Rectangle {
	if transform.IsIdentity() {
		return dest.Bounds()
	}
	m := about(dest, transform)
	far := dest.Max()
	corners := []gg.Point{{X: dest.X, Y: dest.Y}, {X: far.X, Y: dest.Y}, {X: dest.X, Y: far.Y}, {X: far.X, Y: far.Y}}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := m.TransformPoint(c)
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}
	return geometry.R(minX, minY, maxX-minX, maxY-minY).Bounds()
}

func isIntegerTranslation(m gg.Matrix) bool {
	return m.A == 1 && m.B == 0 && m.D == 0 && m.E == 1 && m.C == math.Trunc(m.C) && m.F == math.Trunc(m.F)
}

func (c *Compositor) draw(dst *image.RGBA, tex *image.RGBA, natural geometry.Size, st layerState) {
	texSize := geometry.SizeOf(tex.Bounds())
	if natural.Empty() {
		natural = texSize
	}
	placed := geometry.Place(natural, st.rect, st.layout)
	if placed.Empty() || texSize.Empty() {
		return
	}
	clip := clipRect(st.rect, st.transform).Intersect(dst.Bounds())
	if clip.Empty() {
		return
	}
	// dst keeps its coordinates, only pixels outside clip are out of reach
	dst = dst.SubImage(clip).(*image.RGBA)
	m := placement(texSize, placed, st.rect, st.transform)

	op := xdraw.Over
	if st.opaque && st.opacity >= 1 {
		op = xdraw.Src
	}

	if st.opacity >= 1 && isIntegerTranslation(m) {
		r := tex.Bounds().Add(image.Pt(int(m.C), int(m.F)))
		xdraw.Draw(dst, r, tex, tex.Bounds().Min, op)
		return
	}

	var opts *xdraw.Options
	if st.opacity < 1 {
		opts = &xdraw.Options{
			SrcMask: image.NewUniform(color.Alpha16{A: uint16(st.opacity * 0xffff)}),
		}
	}
	s2d := f64.Aff3{m.A, m.B, m.C, m.D, m.E, m.F}
	c.kernel.Transform(dst, s2d, tex, tex.Bounds(), op, opts)
}
