package compositor

import (
	"context"
	"sync"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/helpers"
	"github.com/ducksouplab/framemixer/sequencing"
	"github.com/ducksouplab/framemixer/source"
	"github.com/gogpu/gg"
)

const fadeStep = time.Second / 30

type layerState struct {
	rect      geometry.Rect
	layout    geometry.Layout
	transform gg.Matrix
	visible   bool
	opaque    bool
	opacity   float64
}

// Layer is identified by reference. Its source may be shared with other
// layers.
type Layer struct {
	name   string
	source source.TextureSource

	mu    sync.RWMutex
	state layerState
	fade  *sequencing.LinearInterpolator
}

func NewLayer(name string, src source.TextureSource, rect geometry.Rect, layout geometry.Layout) *Layer {
	return &Layer{
		name:   name,
		source: src,
		state: layerState{
			rect:      rect,
			layout:    layout,
			transform: gg.Identity(),
			visible:   true,
			opacity:   1,
		},
	}
}

func (l *Layer) Name() string {
	return l.name
}

func (l *Layer) Source() source.TextureSource {
	return l.source
}

func (l *Layer) snapshot() layerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Layer) Rect() geometry.Rect {
	return l.snapshot().rect
}

func (l *Layer) Opacity() float64 {
	return l.snapshot().opacity
}

func (l *Layer) Visible() bool {
	return l.snapshot().visible
}

func (l *Layer) SetRect(r geometry.Rect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.rect = r
}

func (l *Layer) SetLayout(layout geometry.Layout) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.layout = layout
}

// SetTransform sets an affine transform applied about the rect center
func (l *Layer) SetTransform(m gg.Matrix) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.transform = m
}

func (l *Layer) SetVisible(visible bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.visible = visible
}

// SetOpaque lets the layer replace what is below instead of blending
func (l *Layer) SetOpaque(opaque bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.opaque = opaque
}

func (l *Layer) SetOpacity(opacity float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.opacity = helpers.Clamp(opacity, 0, 1)
}

// FadeTo animates opacity, replacing any running fade. The returned channel
// is closed when the fade ends or is replaced.
func (l *Layer) FadeTo(ctx context.Context, opacity float64, duration time.Duration) <-chan struct{} {
	l.mu.Lock()
	if l.fade != nil {
		l.fade.Stop()
	}
	fade := sequencing.NewLinearInterpolator(ctx, l.state.opacity, helpers.Clamp(opacity, 0, 1), duration, fadeStep)
	l.fade = fade
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for value := range fade.C {
			l.mu.Lock()
			if l.fade == fade {
				l.state.opacity = value
			}
			l.mu.Unlock()
		}
	}()
	return done
}
