// Package recording drives one encoded recording: a fixed-rate frame clock
// pulls composed frames, a session state machine guards the sink, and every
// sink call runs on one serial queue per writer.
package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

var (
	ErrAlreadyStarted = errors.New("writer already started")
	ErrNotStarted     = errors.New("writer not started")
	ErrClosed         = errors.New("writer closed")
	ErrInvalidOptions = errors.New("invalid writer options")
)

// drop reasons, used in logs and metrics labels
const (
	DropInFlight       = "in_flight"
	DropSinkNotReady   = "sink_not_ready"
	DropPoolExhausted  = "pool_exhausted"
	DropCompositorBusy = "compositor_busy"
	DropQueueFull      = "queue_full"
	DropNotAppendable  = "not_appendable"
	DropInterrupted    = "interrupted"
	DropTooClose       = "too_close"
	DropSinkError      = "sink_error"
	DropNoSession      = "no_session"
	DropBeforeSession  = "before_session"
	DropFinished       = "finished"
)

// FrameProducer is the composition target feeding a writer
type FrameProducer interface {
	Prepare(onReady func(error))
	TryBeginFrame() bool
	CancelFrame()
	ComposeAsync(at time.Duration)
	CopyOut(dst []byte, stride int) bool
}

// Observer receives writer events; calls happen on the writer goroutines and
// must not block
type Observer interface {
	StateChanged(writer string, s State)
	FrameAccepted(writer string, pts time.Duration)
	FrameDropped(writer, reason string)
	AudioDropped(writer, reason string)
}

type Options struct {
	Path          string
	Settings      Settings
	MinFrameDelta time.Duration
	PoolSize      int
	QueueSize     int
	Clock         Clock
	Observers     []Observer
}

type Outcome struct {
	WriterID string
	Path     string
	State    State
	Err      error
	Stats    Stats
	// Duration is the pts of the last accepted video frame
	Duration time.Duration
}

type Stats struct {
	Ticks          uint64
	FramesAccepted uint64
	FramesDropped  uint64
	AudioAccepted  uint64
	AudioDropped   uint64
}

type Writer struct {
	id        string
	opts      Options
	sink      Sink
	producer  FrameProducer
	logger    zerolog.Logger
	queue     *serialQueue
	inFlight  *semaphore.Weighted
	pool      *bufferPool
	observers []Observer

	appendable atomic.Bool
	// inputs closed by Finish or Cancel
	closed atomic.Bool

	stateMu sync.RWMutex
	state   State

	// owned by the queue goroutine
	sessionStarted bool
	sessionStart   time.Duration
	lastVideo      time.Duration
	interrupted    bool

	clockOnce    sync.Once
	stopOnce     sync.Once
	clockStarted atomic.Bool
	stopCh       chan struct{}
	clockDone    chan struct{}
	cancelOnce   sync.Once

	ticks, accepted, dropped, audioAccepted, audioDropped atomic.Uint64
	lastPTS                                               atomic.Int64
}

func NewWriter(producer FrameProducer, sink Sink, opts Options) (*Writer, error) {
	if producer == nil || sink == nil || opts.Path == "" {
		return nil, ErrInvalidOptions
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if opts.MinFrameDelta < 0 {
		return nil, fmt.Errorf("%w: negative min frame delta", ErrInvalidOptions)
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Clock == nil {
		opts.Clock = HostClock()
	}
	id := helpers.NewID()
	return &Writer{
		id:        id,
		opts:      opts,
		sink:      sink,
		producer:  producer,
		logger:    log.With().Str("context", "writer").Str("writer", id).Logger(),
		queue:     newSerialQueue(opts.QueueSize),
		inFlight:  semaphore.NewWeighted(1),
		pool:      newBufferPool(opts.Settings.Width, opts.Settings.Height, opts.PoolSize),
		observers: opts.Observers,
		stopCh:    make(chan struct{}),
		clockDone: make(chan struct{}),
	}, nil
}

func (w *Writer) ID() string {
	return w.id
}

func (w *Writer) Path() string {
	return w.opts.Path
}

func (w *Writer) Settings() Settings {
	return w.opts.Settings
}

// Now reads the writer clock, the time base for audio sample timestamps
func (w *Writer) Now() time.Duration {
	return w.opts.Clock.Now()
}

func (w *Writer) State() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

// setState is only called from the queue goroutine
func (w *Writer) setState(s State) {
	w.stateMu.Lock()
	prev := w.state
	w.state = s
	w.stateMu.Unlock()
	if prev == s {
		return
	}
	w.logger.Info().Str("from", prev.String()).Str("to", s.String()).Msg("writer_state_changed")
	for _, o := range w.observers {
		o.StateChanged(w.id, s)
	}
}

func (w *Writer) Stats() Stats {
	return Stats{
		Ticks:          w.ticks.Load(),
		FramesAccepted: w.accepted.Load(),
		FramesDropped:  w.dropped.Load(),
		AudioAccepted:  w.audioAccepted.Load(),
		AudioDropped:   w.audioDropped.Load(),
	}
}

func (w *Writer) dropFrame(reason string, at time.Duration) {
	w.dropped.Add(1)
	w.logger.Debug().Str("reason", reason).Dur("at", at).Msg("video_frame_dropped")
	for _, o := range w.observers {
		o.FrameDropped(w.id, reason)
	}
}

func (w *Writer) dropAudio(reason string, at time.Duration) {
	w.audioDropped.Add(1)
	w.logger.Trace().Str("reason", reason).Dur("at", at).Msg("audio_sample_dropped")
	for _, o := range w.observers {
		o.AudioDropped(w.id, reason)
	}
}

// Start opens the sink, starts the frame clock and warms the producer up.
// A sink failure is returned and leaves the writer Failed.
func (w *Writer) Start(ctx context.Context) error {
	var err error
	callErr := w.queue.call(ctx, func() {
		if w.State() != Created {
			err = ErrAlreadyStarted
			return
		}
		// cancelled, or the caller stopped waiting, before the task ran
		if w.closed.Load() {
			err = ErrClosed
			return
		}
		if sinkErr := w.sink.Start(w.opts.Path, w.opts.Settings); sinkErr != nil {
			w.setState(Failed)
			err = fmt.Errorf("start sink: %w", sinkErr)
			return
		}
		// opening the session clears any earlier interruption
		w.interrupted = false
		w.appendable.Store(true)
		w.setState(Started)
	})
	if callErr != nil {
		// the start task may still run: Cancel makes it skip the sink, or
		// discards the sink it opened
		w.logger.Error().Err(callErr).Msg("writer_start_abandoned")
		w.Cancel()
		return callErr
	}
	if err != nil {
		w.logger.Error().Err(err).Msg("writer_start_failed")
		if errors.Is(err, ErrAlreadyStarted) {
			return err
		}
		w.queue.close()
		return err
	}
	if w.closed.Load() {
		// Cancel or Finish came in while the sink was starting
		return ErrClosed
	}

	w.producer.Prepare(func(err error) {
		if err != nil {
			w.logger.Error().Err(err).Msg("producer_prepare_failed")
			return
		}
		w.logger.Debug().Msg("producer_prepared")
	})
	w.startClock()
	w.logger.Info().Str("path", w.opts.Path).Str("settings", w.opts.Settings.String()).Msg("writer_started")
	return nil
}

func (w *Writer) startClock() {
	w.clockOnce.Do(func() {
		w.clockStarted.Store(true)
		ticker := w.opts.Clock.NewTicker(w.opts.Settings.FrameInterval())
		go func() {
			defer close(w.clockDone)
			defer ticker.Stop()
			for {
				select {
				case <-w.stopCh:
					return
				case <-ticker.C():
					w.tick(w.opts.Clock.Now())
				}
			}
		}()
	})
}

// stopClock returns once no tick is running
func (w *Writer) stopClock() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.clockOnce.Do(func() {})
	if w.clockStarted.Load() {
		<-w.clockDone
	}
}

// tick runs on the clock goroutine and never blocks on the sink
func (w *Writer) tick(at time.Duration) {
	w.ticks.Add(1)
	if !w.inFlight.TryAcquire(1) {
		w.dropFrame(DropInFlight, at)
		return
	}
	if !w.appendable.Load() {
		w.inFlight.Release(1)
		return
	}
	if !w.sink.ReadyForVideo() {
		w.inFlight.Release(1)
		w.dropFrame(DropSinkNotReady, at)
		return
	}
	buf, ok := w.pool.Get()
	if !ok {
		w.inFlight.Release(1)
		w.dropFrame(DropPoolExhausted, at)
		return
	}
	if !w.producer.TryBeginFrame() {
		w.pool.Put(buf)
		w.inFlight.Release(1)
		w.dropFrame(DropCompositorBusy, at)
		return
	}

	copied := w.producer.CopyOut(buf.Data, buf.Stride)
	// compose the next frame while this one is appended
	w.producer.ComposeAsync(at)
	if !copied {
		w.pool.Put(buf)
		w.inFlight.Release(1)
		return
	}

	if !w.queue.submit(func() {
		w.appendVideo(buf, at)
		w.pool.Put(buf)
		w.inFlight.Release(1)
	}) {
		w.pool.Put(buf)
		w.inFlight.Release(1)
		w.dropFrame(DropQueueFull, at)
	}
}

// appendVideo applies the append policy, on the queue goroutine
func (w *Writer) appendVideo(buf *PixelBuffer, at time.Duration) bool {
	if !w.appendable.Load() || !w.State().Active() {
		w.dropFrame(DropNotAppendable, at)
		return false
	}
	if w.interrupted {
		w.dropFrame(DropInterrupted, at)
		return false
	}
	if w.sessionStarted && (at <= w.lastVideo || at-w.lastVideo < w.opts.MinFrameDelta) {
		w.dropFrame(DropTooClose, at)
		return false
	}
	if !w.sink.ReadyForVideo() {
		w.dropFrame(DropSinkNotReady, at)
		return false
	}

	first := !w.sessionStarted
	if first {
		w.sessionStarted = true
		w.sessionStart = at
	}
	pts := at - w.sessionStart
	if err := w.sink.AppendVideo(buf, pts); err != nil {
		if first {
			w.sessionStarted = false
		}
		w.logger.Error().Err(err).Dur("pts", pts).Msg("sink_append_video_failed")
		w.dropFrame(DropSinkError, at)
		return false
	}
	if first {
		w.logger.Info().Dur("session_start", at).Msg("session_started")
		w.setState(Appending)
	}
	w.lastVideo = at
	w.lastPTS.Store(int64(pts))
	w.accepted.Add(1)
	for _, o := range w.observers {
		o.FrameAccepted(w.id, pts)
	}
	return true
}

// AppendAudio never blocks the capture goroutine: samples that cannot be
// appended right now are dropped. sample.Data is copied.
func (w *Writer) AppendAudio(sample AudioSample) {
	if w.closed.Load() {
		w.dropAudio(DropFinished, sample.Timestamp)
		return
	}
	if !w.appendable.Load() {
		w.dropAudio(DropNotAppendable, sample.Timestamp)
		return
	}
	owned := sample
	owned.Data = append([]byte(nil), sample.Data...)
	if !w.queue.submit(func() { w.appendAudio(owned) }) {
		w.dropAudio(DropQueueFull, sample.Timestamp)
	}
}

func (w *Writer) appendAudio(sample AudioSample) bool {
	if !w.appendable.Load() || w.State() >= Finishing {
		w.dropAudio(DropFinished, sample.Timestamp)
		return false
	}
	if !w.sessionStarted {
		w.dropAudio(DropNoSession, sample.Timestamp)
		return false
	}
	if sample.Timestamp < w.sessionStart {
		w.dropAudio(DropBeforeSession, sample.Timestamp)
		return false
	}
	if !w.sink.ReadyForAudio() {
		w.dropAudio(DropSinkNotReady, sample.Timestamp)
		return false
	}
	pts := sample.Timestamp - w.sessionStart
	if err := w.sink.AppendAudio(sample, pts); err != nil {
		w.logger.Error().Err(err).Dur("pts", pts).Msg("sink_append_audio_failed")
		w.dropAudio(DropSinkError, sample.Timestamp)
		return false
	}
	w.audioAccepted.Add(1)
	return true
}

// SignalInterruption drops video frames until the session is opened again
// or ClearInterruption is called
func (w *Writer) SignalInterruption() {
	if !w.queue.enqueue(func() {
		if !w.interrupted {
			w.logger.Warn().Msg("writer_interrupted")
		}
		w.interrupted = true
	}) {
		w.logger.Debug().Msg("interruption_ignored")
	}
}

func (w *Writer) ClearInterruption() {
	w.queue.enqueue(func() {
		if w.interrupted {
			w.logger.Info().Msg("writer_resumed")
		}
		w.interrupted = false
	})
}

func (w *Writer) outcome(err error) Outcome {
	return Outcome{
		WriterID: w.id,
		Path:     w.opts.Path,
		State:    w.State(),
		Err:      err,
		Stats:    w.Stats(),
		Duration: time.Duration(w.lastPTS.Load()),
	}
}

// Finish stops the clock, finalizes the sink and calls callback exactly once,
// whatever the result. callback runs on its own goroutine.
func (w *Writer) Finish(callback func(Outcome)) {
	w.closed.Store(true)
	w.stopClock()

	done := func(o Outcome) {
		if callback != nil {
			go callback(o)
		}
	}

	queued := w.queue.enqueue(func() {
		if !w.State().Active() || !w.appendable.Load() {
			done(w.outcome(ErrNotStarted))
			return
		}
		w.setState(Finishing)
		w.appendable.Store(false)
		if err := w.sink.Finish(); err != nil {
			w.logger.Error().Err(err).Msg("sink_finish_failed")
			w.setState(Failed)
			done(w.outcome(fmt.Errorf("finish sink: %w", err)))
			return
		}
		w.setState(Completed)
		w.logger.Info().Interface("stats", w.Stats()).Dur("duration", time.Duration(w.lastPTS.Load())).Msg("writer_completed")
		done(w.outcome(nil))
	})
	if !queued {
		w.queue.wait()
		done(w.outcome(ErrClosed))
		return
	}
	w.queue.close()
}

// Cancel stops the clock and discards the output. It is idempotent and
// async work still in flight is discarded.
func (w *Writer) Cancel() {
	w.cancelOnce.Do(func() {
		w.appendable.Store(false)
		w.closed.Store(true)
		w.stopClock()
		if !w.queue.enqueue(func() {
			// a start task that was already running may have set it
			w.appendable.Store(false)
			s := w.State()
			if s.Terminal() {
				return
			}
			if s != Created {
				if err := w.sink.Cancel(); err != nil {
					w.logger.Error().Err(err).Msg("sink_cancel_failed")
				}
			}
			w.setState(Cancelled)
		}) {
			return
		}
		w.queue.close()
	})
}

// Wait blocks until Finish or Cancel has been fully processed
func (w *Writer) Wait(ctx context.Context) error {
	select {
	case <-w.queue.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
