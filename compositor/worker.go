package compositor

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/helpers"
	"github.com/ducksouplab/framemixer/source"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
)

type WorkerStats struct {
	Composed    uint64
	Dropped     uint64
	LastCompose time.Duration
}

type Worker struct {
	id     string
	name   string
	comp   *Compositor
	width  int
	height int
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	layersMu sync.RWMutex
	layers   []*Layer

	// single-slot gate, held from TryBeginFrame until the pass completes
	inFlight  atomic.Bool
	composeMu sync.Mutex
	back      *image.RGBA

	bufMu    sync.Mutex
	front    *image.RGBA
	composed bool

	prepareOnce sync.Once
	prepared    chan struct{}
	closeOnce   sync.Once

	onComposed atomic.Pointer[func(at time.Duration)]

	composedCount, dropped atomic.Uint64
	lastCompose            atomic.Int64
}

func (c *Compositor) NewWorker(name string, size geometry.Size) (*Worker, error) {
	w, h := size.Pixels()
	if w <= 0 || h <= 0 {
		return nil, ErrInvalidSize
	}
	id := helpers.NewID()
	ctx, cancel := context.WithCancel(context.Background())
	c.workerCount.Add(1)
	return &Worker{
		id:       id,
		name:     name,
		comp:     c,
		width:    w,
		height:   h,
		logger:   c.logger.With().Str("worker", name).Str("id", id).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		prepared: make(chan struct{}),
	}, nil
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) Name() string {
	return w.name
}

func (w *Worker) Size() geometry.Size {
	return geometry.Sz(float64(w.width), float64(w.height))
}

// Layers returns the paint order, back to front
func (w *Worker) Layers() []*Layer {
	w.layersMu.RLock()
	defer w.layersMu.RUnlock()
	return append([]*Layer(nil), w.layers...)
}

func (w *Worker) indexOf(l *Layer) int {
	for i, candidate := range w.layers {
		if candidate == l {
			return i
		}
	}
	return -1
}

// Add appends l as topmost; adding an attached layer is a no-op
func (w *Worker) Add(l *Layer) {
	w.layersMu.Lock()
	defer w.layersMu.Unlock()
	if w.indexOf(l) >= 0 {
		return
	}
	w.layers = append(w.layers, l)
}

func (w *Worker) Remove(l *Layer) bool {
	w.layersMu.Lock()
	defer w.layersMu.Unlock()
	i := w.indexOf(l)
	if i < 0 {
		return false
	}
	w.layers = append(w.layers[:i], w.layers[i+1:]...)
	return true
}

// Move puts l just above or just below relativeTo
func (w *Worker) Move(l, relativeTo *Layer, above bool) bool {
	if l == relativeTo {
		return false
	}
	w.layersMu.Lock()
	defer w.layersMu.Unlock()
	from := w.indexOf(l)
	if from < 0 || w.indexOf(relativeTo) < 0 {
		return false
	}
	w.layers = append(w.layers[:from], w.layers[from+1:]...)
	to := w.indexOf(relativeTo)
	if above {
		to++
	}
	w.layers = append(w.layers, nil)
	copy(w.layers[to+1:], w.layers[to:])
	w.layers[to] = l
	return true
}

func (w *Worker) ensureBuffers() {
	if w.back == nil {
		w.back = image.NewRGBA(image.Rect(0, 0, w.width, w.height))
	}
	w.bufMu.Lock()
	if w.front == nil {
		w.front = image.NewRGBA(image.Rect(0, 0, w.width, w.height))
	}
	w.bufMu.Unlock()
}

// Prepare allocates buffers and primes every source once, asynchronously.
// onReady may be nil; later calls get onReady once the first warm-up is done.
func (w *Worker) Prepare(onReady func(error)) {
	w.prepareOnce.Do(func() {
		go func() {
			start := time.Now()
			w.composeMu.Lock()
			w.ensureBuffers()
			w.composeMu.Unlock()
			for _, l := range w.Layers() {
				l.source.Produce(w.ctx, 0)
			}
			close(w.prepared)
			w.logger.Debug().Dur("took", time.Since(start)).Msg("worker_prepared")
		}()
	})
	if onReady == nil {
		return
	}
	go func() {
		select {
		case <-w.prepared:
			onReady(nil)
		case <-w.ctx.Done():
			onReady(w.ctx.Err())
		}
	}()
}

// TryBeginFrame claims the composition slot. It returns false, and counts a
// dropped frame, while the previous pass is still running.
func (w *Worker) TryBeginFrame() bool {
	if w.inFlight.CompareAndSwap(false, true) {
		return true
	}
	w.dropped.Add(1)
	if o := w.comp.observer; o != nil {
		o.FrameDropped(w.name)
	}
	return false
}

// CancelFrame releases a slot claimed by TryBeginFrame without composing
func (w *Worker) CancelFrame() {
	w.inFlight.Store(false)
}

// OnComposed registers a hook called after each completed pass
func (w *Worker) OnComposed(fn func(at time.Duration)) {
	w.onComposed.Store(&fn)
}

// ComposeAsync runs one pass at host time at and releases the slot when done
func (w *Worker) ComposeAsync(at time.Duration) {
	w.inFlight.Store(true)
	go func() {
		defer w.inFlight.Store(false)
		if w.ctx.Err() != nil {
			return
		}
		w.compose(at)
		if fn := w.onComposed.Load(); fn != nil && *fn != nil {
			(*fn)(at)
		}
	}()
}

func (w *Worker) compose(at time.Duration) {
	w.composeMu.Lock()
	defer w.composeMu.Unlock()

	start := time.Now()
	w.ensureBuffers()
	xdraw.Draw(w.back, w.back.Bounds(), w.comp.background, image.Point{}, xdraw.Src)

	for _, l := range w.Layers() {
		st := l.snapshot()
		if !st.visible || st.opacity <= 0 {
			continue
		}
		tex := w.produce(l, at)
		if tex == nil {
			continue
		}
		w.comp.draw(w.back, tex, l.source.NaturalSize(), st)
	}

	w.bufMu.Lock()
	w.front, w.back = w.back, w.front
	w.composed = true
	w.bufMu.Unlock()

	took := time.Since(start)
	w.composedCount.Add(1)
	w.lastCompose.Store(int64(took))
	if o := w.comp.observer; o != nil {
		o.ComposeDone(w.name, took)
	}
}

func (w *Worker) produce(l *Layer, at time.Duration) *image.RGBA {
	timeout := w.comp.sourceTimeout
	if timeout <= 0 {
		return l.source.Produce(w.ctx, at)
	}

	ctx, cancel := context.WithTimeout(w.ctx, timeout)
	defer cancel()
	result := make(chan *image.RGBA, 1)
	go func(src source.TextureSource) {
		result <- src.Produce(ctx, at)
	}(l.source)
	select {
	case tex := <-result:
		return tex
	case <-ctx.Done():
		w.logger.Warn().Str("layer", l.name).Dur("timeout", timeout).Msg("source_timed_out")
		if o := w.comp.observer; o != nil {
			o.SourceSkipped(w.name, l.name)
		}
		return nil
	}
}

// CopyOut copies the last completed pass into dst (RGBA, premultiplied).
// It returns false when nothing was composed yet or dst is too small.
func (w *Worker) CopyOut(dst []byte, stride int) bool {
	rowBytes := w.width * 4
	if stride < rowBytes || len(dst) < stride*(w.height-1)+rowBytes {
		return false
	}
	w.bufMu.Lock()
	defer w.bufMu.Unlock()
	if !w.composed {
		return false
	}
	for y := 0; y < w.height; y++ {
		copy(dst[y*stride:y*stride+rowBytes], w.front.Pix[y*w.front.Stride:])
	}
	return true
}

func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Composed:    w.composedCount.Load(),
		Dropped:     w.dropped.Load(),
		LastCompose: time.Duration(w.lastCompose.Load()),
	}
}

// Close stops future passes; one already running completes
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		w.cancel()
		w.comp.workerCount.Add(-1)
		w.logger.Debug().Interface("stats", w.Stats()).Msg("worker_closed")
	})
}
