package source

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/ui"
	"github.com/gogpu/gg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// View is a UI-owned element. Geometry is only called on the UI loop,
// Render on the compositor goroutine with a context scaled to density.
type View interface {
	Geometry() (mounted bool, size geometry.Size)
	Render(dc *gg.Context)
}

type ViewSnapshot struct {
	view    View
	loop    *ui.Loop
	density float64
	logger  zerolog.Logger

	mu       sync.Mutex
	dc       *gg.Context
	// shared by all workers, a texture is reused after two newer renders
	ring     [textureRing]*image.RGBA
	next     int
	lastSize geometry.Size
	allocs   int
}

func NewViewSnapshot(name string, view View, loop *ui.Loop, density float64) *ViewSnapshot {
	if density <= 0 {
		density = 1
	}
	return &ViewSnapshot{
		view:    view,
		loop:    loop,
		density: density,
		logger:  log.With().Str("context", "view_snapshot").Str("view", name).Logger(),
	}
}

func (v *ViewSnapshot) geometry(ctx context.Context) (mounted bool, size geometry.Size, err error) {
	err = v.loop.Sync(ctx, func() {
		mounted, size = v.view.Geometry()
	})
	return
}

// NaturalSize is the last rendered size in pixels, or the current geometry
// when nothing has been rendered yet
func (v *ViewSnapshot) NaturalSize() geometry.Size {
	v.mu.Lock()
	last := v.lastSize
	v.mu.Unlock()
	if !last.Empty() {
		return last
	}
	_, size, err := v.geometry(context.Background())
	if err != nil {
		return geometry.Size{}
	}
	return size.Scale(v.density)
}

func (v *ViewSnapshot) Produce(ctx context.Context, at time.Duration) *image.RGBA {
	mounted, size, err := v.geometry(ctx)
	if err != nil {
		v.logger.Debug().Err(err).Msg("view_geometry_failed")
		return nil
	}
	if !mounted || size.Empty() {
		return nil
	}
	w, h := size.Scale(v.density).Pixels()
	if w <= 0 || h <= 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dc == nil {
		v.dc = gg.NewContext(w, h)
		v.allocs++
	} else if v.dc.Width() != w || v.dc.Height() != h {
		if err := v.dc.Resize(w, h); err != nil {
			v.logger.Error().Err(err).Msg("view_resize_failed")
			return nil
		}
		v.allocs++
	}
	v.lastSize = geometry.Sz(float64(w), float64(h))

	v.dc.Clear()
	v.dc.Push()
	v.dc.Scale(v.density, v.density)
	v.view.Render(v.dc)
	v.dc.Pop()
	if err := v.dc.FlushGPU(); err != nil {
		v.logger.Error().Err(err).Msg("view_flush_failed")
		return nil
	}

	tex := ensureRGBA(v.ring[v.next], w, h)
	copy(tex.Pix, v.dc.ResizeTarget().Data())
	v.ring[v.next] = tex
	v.next = (v.next + 1) % textureRing
	return tex
}

// Allocations counts backing store (re)allocations
func (v *ViewSnapshot) Allocations() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.allocs
}
