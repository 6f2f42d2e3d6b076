package source

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// number of textures rotated by Produce. The ring belongs to the source and
// is shared by every worker drawing it: a published texture is written again
// once two newer frames have been uploaded, whichever worker triggered them.
// Uploads only follow a Push, so a worker must finish drawing a texture
// within two camera frame intervals.
const textureRing = 3

type rawFrame struct {
	Frame
	buf []byte
}

func (r *rawFrame) fill(f Frame) {
	n := len(f.Data)
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	copy(r.buf, f.Data)
	r.Frame = f
	r.Frame.Data = r.buf
}

type CameraStats struct {
	Pushed      uint64
	Overwritten uint64
	Uploaded    uint64
	Failed      uint64
}

// Camera holds the latest captured frame in a single slot. Push never blocks
// on Produce for longer than a pointer swap, older frames are overwritten.
type Camera struct {
	name   string
	logger zerolog.Logger

	// capture side
	pushMu sync.Mutex
	spare  *rawFrame

	// the slot
	slotMu sync.Mutex
	slot   *rawFrame
	dirty  bool
	size   geometry.Size

	// render side
	produceMu sync.Mutex
	reading   *rawFrame
	filter    Filter
	raw       *image.RGBA
	ring      [textureRing]*image.RGBA
	next      int
	current   *image.RGBA

	pushed, overwritten, uploaded, failed atomic.Uint64
}

func NewCamera(name string, filter Filter) *Camera {
	return &Camera{
		name:    name,
		logger:  log.With().Str("context", "camera").Str("camera", name).Logger(),
		spare:   &rawFrame{},
		slot:    &rawFrame{},
		reading: &rawFrame{},
		filter:  filter,
	}
}

func (c *Camera) Name() string {
	return c.name
}

// Push is called from the capture goroutine; f.Data is copied
func (c *Camera) Push(f Frame) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()

	c.spare.fill(f)

	c.slotMu.Lock()
	c.spare, c.slot = c.slot, c.spare
	if c.dirty {
		c.overwritten.Add(1)
	}
	c.dirty = true
	c.size = geometry.Sz(float64(f.Width), float64(f.Height))
	c.slotMu.Unlock()

	c.pushed.Add(1)
}

func (c *Camera) SetFilter(f Filter) {
	c.produceMu.Lock()
	defer c.produceMu.Unlock()

	c.filter = f
	// force the next Produce to re-upload with the new filter
	c.slotMu.Lock()
	if c.current != nil && !c.dirty {
		c.slot, c.reading = c.reading, c.slot
		c.dirty = true
	}
	c.slotMu.Unlock()
}

func (c *Camera) NaturalSize() geometry.Size {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()
	return c.size
}

func (c *Camera) Produce(ctx context.Context, at time.Duration) *image.RGBA {
	c.produceMu.Lock()
	defer c.produceMu.Unlock()

	c.slotMu.Lock()
	if !c.dirty {
		current := c.current
		c.slotMu.Unlock()
		return current
	}
	c.slot, c.reading = c.reading, c.slot
	c.dirty = false
	c.slotMu.Unlock()

	tex, err := c.upload(c.reading.Frame)
	if err != nil {
		c.failed.Add(1)
		c.logger.Error().Err(err).Dur("at", at).Msg("camera_upload_failed")
		return nil
	}
	c.uploaded.Add(1)
	c.current = tex
	return tex
}

func (c *Camera) upload(f Frame) (*image.RGBA, error) {
	tex := ensureRGBA(c.ring[c.next], f.Width, f.Height)
	if c.filter == nil {
		if err := f.convert(tex); err != nil {
			return nil, err
		}
	} else {
		c.raw = ensureRGBA(c.raw, f.Width, f.Height)
		if err := f.convert(c.raw); err != nil {
			return nil, err
		}
		if err := c.filter.Apply(tex, c.raw); err != nil {
			return nil, err
		}
	}
	c.ring[c.next] = tex
	c.next = (c.next + 1) % textureRing
	return tex, nil
}

func (c *Camera) Stats() CameraStats {
	return CameraStats{
		Pushed:      c.pushed.Load(),
		Overwritten: c.overwritten.Load(),
		Uploaded:    c.uploaded.Load(),
		Failed:      c.failed.Load(),
	}
}
