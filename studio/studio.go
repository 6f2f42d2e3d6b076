// Package studio wires sources, compositor workers, the preview surface and
// recording writers together. It allows one recording at a time.
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/compositor"
	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/helpers"
	"github.com/ducksouplab/framemixer/plot"
	"github.com/ducksouplab/framemixer/preview"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/ducksouplab/framemixer/source"
	"github.com/ducksouplab/framemixer/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrRecordingActive = errors.New("a recording is already active")
	ErrNoRecording     = errors.New("no active recording")
	ErrUnknownLayer    = errors.New("unknown layer")
	ErrClosed          = errors.New("studio closed")
	ErrNoPreview       = errors.New("preview disabled")
)

const closeTimeout = 5 * time.Second

type Options struct {
	Compositor *compositor.Compositor
	Scene      Scene
	NewSink    func() recording.Sink
	OutputDir  string
	Recording  config.RecordingConfig
	Preview    config.PreviewConfig
	NoPreview  bool
	Plots      bool
	// Observers are attached to every writer
	Observers            []recording.Observer
	OnPreviewSubscribers func(n int)
	Clock                recording.Clock
}

type Request struct {
	Name        string
	Quality     recording.Quality
	Orientation recording.Orientation
}

type EventKind string

const (
	EventStarted   EventKind = "started"
	EventFinished  EventKind = "finished"
	EventCancelled EventKind = "cancelled"
)

type Event struct {
	Kind     EventKind        `json:"kind"`
	WriterID string           `json:"writerId"`
	Path     string           `json:"path"`
	State    string           `json:"state"`
	Error    string           `json:"error,omitempty"`
	Stats    *recording.Stats `json:"stats,omitempty"`
}

type Stats struct {
	Recording bool               `json:"recording"`
	WriterID  string             `json:"writerId,omitempty"`
	State     string             `json:"state,omitempty"`
	Writer    recording.Stats    `json:"writer"`
	Preview   preview.Stats      `json:"preview"`
	Camera    source.CameraStats `json:"camera"`
	Workers   int64              `json:"workers"`
	Audio     uint64             `json:"audioWithoutRecording"`
}

type session struct {
	writer *recording.Writer
	worker *compositor.Worker
	layers []*compositor.Layer
	plot   *plot.RecordingPlot
}

type Studio struct {
	opts   Options
	clock  recording.Clock
	logger zerolog.Logger

	previewWorker *compositor.Worker
	preview       *preview.Surface

	mu        sync.Mutex
	active    *session
	opacities map[string]float64
	listeners []func(Event)
	closed    bool

	audioIgnored atomic.Uint64
}

func New(opts Options) (*Studio, error) {
	if opts.Compositor == nil || opts.NewSink == nil {
		return nil, fmt.Errorf("studio needs a compositor and a sink factory")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "data"
	}
	if opts.Recording.Extension == "" {
		opts.Recording.Extension = "mp4"
	}
	if opts.Clock == nil {
		opts.Clock = recording.HostClock()
	}
	s := &Studio{
		opts:      opts,
		clock:     opts.Clock,
		logger:    log.With().Str("context", "studio").Logger(),
		opacities: make(map[string]float64),
	}
	if !opts.NoPreview {
		size := geometry.Sz(float64(opts.Preview.Width), float64(opts.Preview.Height))
		worker, err := opts.Compositor.NewWorker("preview", size)
		if err != nil {
			return nil, fmt.Errorf("preview worker: %w", err)
		}
		for _, l := range opts.Scene.layers(size) {
			worker.Add(l)
		}
		worker.Prepare(nil)
		s.previewWorker = worker
		s.framePreview(defaultOutput(opts.Recording))
		s.preview = preview.NewSurface(worker, preview.Options{
			FrameRate:     opts.Preview.FrameRate,
			JPEGQuality:   opts.Preview.JPEGQuality,
			Now:           opts.Clock.Now,
			OnSubscribers: opts.OnPreviewSubscribers,
		})
	}
	return s, nil
}

// Start runs the preview ticker
func (s *Studio) Start() {
	if s.preview != nil {
		s.preview.Start()
	}
	s.logger.Info().Bool("preview", s.preview != nil).Str("output", s.opts.OutputDir).Msg("studio_started")
}

func (s *Studio) Now() time.Duration {
	return s.clock.Now()
}

// OnEvent registers fn for recording lifecycle events, fn must not block
func (s *Studio) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Studio) emit(e Event) {
	s.mu.Lock()
	listeners := append([]func(Event){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(e)
	}
}

// StartRecording builds a worker at the output size with the scene layers
// and starts a writer on it
func (s *Studio) StartRecording(ctx context.Context, req Request) (*recording.Writer, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.active != nil {
		s.mu.Unlock()
		return nil, ErrRecordingActive
	}
	// reserve the slot while the sink starts
	sess := &session{}
	s.active = sess
	opacities := make(map[string]float64, len(s.opacities))
	for k, v := range s.opacities {
		opacities[k] = v
	}
	s.mu.Unlock()

	writer, err := s.newSession(ctx, sess, req, opacities)
	if err != nil {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		if sess.worker != nil {
			sess.worker.Close()
		}
		return nil, err
	}
	s.emit(Event{Kind: EventStarted, WriterID: writer.ID(), Path: writer.Path(), State: writer.State().String()})
	return writer, nil
}

func (s *Studio) newSession(ctx context.Context, sess *session, req Request, opacities map[string]float64) (*recording.Writer, error) {
	settings := recording.SettingsFor(req.Quality, req.Orientation)
	if fr := s.opts.Recording.FrameRate; fr > 0 {
		settings.FrameRate = fr
	}

	size := geometry.Sz(float64(settings.Width), float64(settings.Height))
	worker, err := s.opts.Compositor.NewWorker("recording", size)
	if err != nil {
		return nil, err
	}
	sess.worker = worker
	s.framePreview(size)
	layers := s.opts.Scene.layers(size)
	for _, l := range layers {
		if o, ok := opacities[l.Name()]; ok {
			l.SetOpacity(o)
		}
		worker.Add(l)
	}

	path, err := helpers.RecordingPath(s.opts.OutputDir, req.Name, s.opts.Recording.Extension)
	if err != nil {
		return nil, fmt.Errorf("recording path: %w", err)
	}
	observers := append([]recording.Observer{}, s.opts.Observers...)
	if s.opts.Plots {
		sess.plot = plot.NewRecordingPlot(path, settings.FrameInterval())
		observers = append(observers, sess.plot)
	}
	observers = append(observers, storeObserver{})

	writer, err := recording.NewWriter(worker, s.opts.NewSink(), recording.Options{
		Path:          path,
		Settings:      settings,
		MinFrameDelta: s.opts.Recording.MinFrameDelta(),
		PoolSize:      s.opts.Recording.PoolSize,
		QueueSize:     s.opts.Recording.QueueSize,
		Clock:         s.clock,
		Observers:     observers,
	})
	if err != nil {
		return nil, err
	}

	entry := store.Recording{
		ID:        writer.ID(),
		Name:      helpers.ParseString(req.Name),
		Path:      path,
		Settings:  settings.String(),
		State:     writer.State().String(),
		StartedAt: time.Now(),
	}
	if sess.plot != nil {
		entry.PlotPath = sess.plot.Path()
	}
	store.AddRecording(entry)

	if err := writer.Start(ctx); err != nil {
		writer.Cancel()
		store.UpdateRecording(writer.ID(), func(r *store.Recording) {
			r.State = writer.State().String()
			r.Error = err.Error()
		})
		return nil, err
	}
	s.mu.Lock()
	sess.writer = writer
	sess.layers = layers
	s.mu.Unlock()
	s.logger.Info().Str("writer", writer.ID()).Str("path", path).Msg("recording_started")
	return writer, nil
}

// framePreview letterboxes the preview layers to the output aspect, so the
// preview crops what the recording crops. The framing of the last recording
// stays once it ends.
func (s *Studio) framePreview(output geometry.Size) {
	if s.previewWorker == nil {
		return
	}
	frame := previewFrame(s.previewWorker.Size(), output)
	for _, l := range s.previewWorker.Layers() {
		l.SetRect(frame)
	}
	s.logger.Debug().Str("output", output.String()).Str("frame", frame.String()).Msg("preview_framed")
}

func previewFrame(preview, output geometry.Size) geometry.Rect {
	return geometry.Place(output, geometry.RectOf(preview), geometry.FitAt(geometry.Center))
}

// defaultOutput is the output size of a recording started with the
// configured defaults
func defaultOutput(cfg config.RecordingConfig) geometry.Size {
	// unknown values parse to medium and portrait
	quality, _ := recording.ParseQuality(cfg.DefaultQuality)
	orientation, _ := recording.ParseOrientation(cfg.DefaultOrientation)
	settings := recording.SettingsFor(quality, orientation)
	return geometry.Sz(float64(settings.Width), float64(settings.Height))
}

func (s *Studio) current() (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.writer == nil {
		return nil, ErrNoRecording
	}
	return s.active, nil
}

// release frees the recording slot and the session worker
func (s *Studio) release(sess *session) {
	s.mu.Lock()
	if s.active == sess {
		s.active = nil
	}
	s.mu.Unlock()
	sess.worker.Close()
}

// FinishRecording finalizes the active recording; callback, which may be
// nil, always gets the outcome
func (s *Studio) FinishRecording(callback func(recording.Outcome)) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	sess.writer.Finish(func(o recording.Outcome) {
		s.release(sess)
		store.UpdateRecording(o.WriterID, func(r *store.Recording) {
			r.State = o.State.String()
			r.Duration = o.Duration
			if o.Err != nil {
				r.Error = o.Err.Error()
			}
		})
		e := Event{Kind: EventFinished, WriterID: o.WriterID, Path: o.Path, State: o.State.String(), Stats: &o.Stats}
		if o.Err != nil {
			e.Error = o.Err.Error()
			s.logger.Error().Err(o.Err).Str("writer", o.WriterID).Msg("recording_failed")
		} else {
			s.logger.Info().Str("writer", o.WriterID).Str("path", o.Path).Dur("duration", o.Duration).Msg("recording_finished")
		}
		s.emit(e)
		if callback != nil {
			callback(o)
		}
	})
	return nil
}

// CancelRecording discards the active recording and waits for the writer
func (s *Studio) CancelRecording(ctx context.Context) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	sess.writer.Cancel()
	waitErr := sess.writer.Wait(ctx)
	s.release(sess)
	store.UpdateRecording(sess.writer.ID(), func(r *store.Recording) {
		r.State = sess.writer.State().String()
	})
	s.emit(Event{Kind: EventCancelled, WriterID: sess.writer.ID(), Path: sess.writer.Path(), State: sess.writer.State().String()})
	return waitErr
}

func (s *Studio) SignalInterruption() error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	sess.writer.SignalInterruption()
	return nil
}

func (s *Studio) ClearInterruption() error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	sess.writer.ClearInterruption()
	return nil
}

// AppendAudio routes a microphone sample to the active writer
func (s *Studio) AppendAudio(sample recording.AudioSample) {
	sess, err := s.current()
	if err != nil {
		s.audioIgnored.Add(1)
		return
	}
	sess.writer.AppendAudio(sample)
}

// PushVideo hands a captured frame to the scene camera
func (s *Studio) PushVideo(f source.Frame) {
	if s.opts.Scene.Camera != nil {
		s.opts.Scene.Camera.Push(f)
	}
}

// Fade animates a layer of the preview and of the active recording. The
// opacity is kept for recordings started later.
func (s *Studio) Fade(ctx context.Context, layer string, opacity float64, duration time.Duration) (<-chan struct{}, error) {
	var targets []*compositor.Layer
	if s.previewWorker != nil {
		targets = append(targets, findLayer(s.previewWorker.Layers(), layer)...)
	}
	s.mu.Lock()
	if s.active != nil {
		targets = append(targets, findLayer(s.active.layers, layer)...)
	}
	s.opacities[layer] = helpers.Clamp(opacity, 0, 1)
	s.mu.Unlock()

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, layer)
	}
	dones := make([]<-chan struct{}, 0, len(targets))
	for _, l := range targets {
		dones = append(dones, l.FadeTo(ctx, opacity, duration))
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, d := range dones {
			<-d
		}
	}()
	return done, nil
}

func findLayer(layers []*compositor.Layer, name string) []*compositor.Layer {
	for _, l := range layers {
		if l.Name() == name {
			return []*compositor.Layer{l}
		}
	}
	return nil
}

func (s *Studio) Subscribe() (string, <-chan preview.Frame, error) {
	if s.preview == nil {
		return "", nil, ErrNoPreview
	}
	id, ch := s.preview.Subscribe()
	return id, ch, nil
}

func (s *Studio) Unsubscribe(id string) {
	if s.preview != nil {
		s.preview.Unsubscribe(id)
	}
}

func (s *Studio) Stats() Stats {
	st := Stats{
		Workers: s.opts.Compositor.Workers(),
		Audio:   s.audioIgnored.Load(),
	}
	if s.preview != nil {
		st.Preview = s.preview.Stats()
	}
	if s.opts.Scene.Camera != nil {
		st.Camera = s.opts.Scene.Camera.Stats()
	}
	if sess, err := s.current(); err == nil {
		st.Recording = true
		st.WriterID = sess.writer.ID()
		st.State = sess.writer.State().String()
		st.Writer = sess.writer.Stats()
	}
	return st
}

// Close cancels any active recording and stops the preview
func (s *Studio) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.CancelRecording(ctx); err != nil && !errors.Is(err, ErrNoRecording) {
		s.logger.Error().Err(err).Msg("studio_cancel_failed")
	}
	if s.preview != nil {
		s.preview.Stop()
		s.previewWorker.Close()
	}
	s.logger.Info().Msg("studio_closed")
}

// storeObserver mirrors writer states into the recording index
type storeObserver struct{}

func (storeObserver) StateChanged(writer string, st recording.State) {
	store.UpdateRecording(writer, func(r *store.Recording) {
		r.State = st.String()
	})
}

func (storeObserver) FrameAccepted(string, time.Duration) {}
func (storeObserver) FrameDropped(string, string)         {}
func (storeObserver) AudioDropped(string, string)         {}
