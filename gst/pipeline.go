package gst

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/helpers"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

const finishTimeout = 10 * time.Second

// Sink encodes RGBA frames and S16LE audio into a container file. It
// implements recording.Sink.
type Sink struct {
	id       string
	encoder  config.EncoderConfig
	logger   zerolog.Logger
	path     string
	settings recording.Settings

	pipeline   *gst.Pipeline
	video      *app.Source
	audio      *app.Source
	running    atomic.Bool
	videoReady atomic.Bool
	audioReady atomic.Bool
	// scratch for frames whose stride is padded
	packed []byte
}

var _ recording.Sink = (*Sink)(nil)

func NewSink(encoder config.EncoderConfig) *Sink {
	id := helpers.NewID()
	return &Sink{
		id:      id,
		encoder: encoder,
		logger:  log.With().Str("context", "gst_sink").Str("pipeline", id).Logger(),
	}
}

func (s *Sink) ID() string {
	return s.id
}

func (s *Sink) Start(path string, settings recording.Settings) error {
	if s.running.Load() {
		return fmt.Errorf("sink %s already started", s.id)
	}
	def, err := newRecordingDef(path, settings, s.encoder)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("def", def).Msg("sink_pipeline_def")

	pipeline, err := parsePipeline(def)
	if err != nil {
		return err
	}
	videoEl, err := elementByName(pipeline, "video_src")
	if err != nil {
		return err
	}
	audioEl, err := elementByName(pipeline, "audio_src")
	if err != nil {
		return err
	}
	s.pipeline = pipeline
	s.path = path
	s.settings = settings
	s.video = app.SrcFromElement(videoEl)
	s.audio = app.SrcFromElement(audioEl)
	s.video.SetCallbacks(readyCallbacks(&s.videoReady))
	s.audio.SetCallbacks(readyCallbacks(&s.audioReady))

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return fmt.Errorf("start sink pipeline: %w", err)
	}
	s.videoReady.Store(true)
	s.audioReady.Store(true)
	s.running.Store(true)
	pipelines.add(s)
	s.logger.Info().Str("path", path).Str("settings", settings.String()).Msg("sink_started")
	return nil
}

// appsrc tells when its internal queue is full or needs data again
func readyCallbacks(ready *atomic.Bool) *app.SourceCallbacks {
	return &app.SourceCallbacks{
		NeedDataFunc: func(self *app.Source, length uint) {
			ready.Store(true)
		},
		EnoughDataFunc: func(self *app.Source) {
			ready.Store(false)
		},
	}
}

func (s *Sink) ReadyForVideo() bool {
	return s.running.Load() && s.videoReady.Load()
}

func (s *Sink) ReadyForAudio() bool {
	return s.running.Load() && s.audioReady.Load()
}

func (s *Sink) AppendVideo(buf *recording.PixelBuffer, pts time.Duration) error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	data := buf.Data
	if row := buf.Width * 4; buf.Stride != row {
		data = s.pack(buf, row)
	}
	gbuf := gst.NewBufferFromBytes(data)
	gbuf.SetPresentationTimestamp(pts)
	gbuf.SetDuration(s.settings.FrameInterval())
	if ret := s.video.PushBuffer(gbuf); ret != gst.FlowOK {
		return fmt.Errorf("%w: video %v", ErrPushFailed, ret)
	}
	return nil
}

func (s *Sink) pack(buf *recording.PixelBuffer, row int) []byte {
	n := row * buf.Height
	if cap(s.packed) < n {
		s.packed = make([]byte, n)
	}
	s.packed = s.packed[:n]
	for y := 0; y < buf.Height; y++ {
		copy(s.packed[y*row:(y+1)*row], buf.Data[y*buf.Stride:])
	}
	return s.packed
}

func (s *Sink) AppendAudio(sample recording.AudioSample, pts time.Duration) error {
	if !s.running.Load() {
		return ErrNotRunning
	}
	gbuf := gst.NewBufferFromBytes(sample.Data)
	gbuf.SetPresentationTimestamp(pts)
	gbuf.SetDuration(sample.Duration())
	if ret := s.audio.PushBuffer(gbuf); ret != gst.FlowOK {
		return fmt.Errorf("%w: audio %v", ErrPushFailed, ret)
	}
	return nil
}

// Finish sends end of stream on both inputs and waits for the muxer to
// write the container
func (s *Sink) Finish() error {
	if !s.running.Swap(false) {
		return ErrNotRunning
	}
	defer pipelines.delete(s.id)
	s.video.EndStream()
	s.audio.EndStream()
	err := waitEOS(s.pipeline, finishTimeout)
	s.pipeline.SetState(gst.StateNull)
	if err != nil {
		return err
	}
	s.logger.Info().Str("path", s.path).Msg("sink_finished")
	return nil
}

func (s *Sink) Cancel() error {
	if !s.running.Swap(false) {
		return nil
	}
	pipelines.delete(s.id)
	s.pipeline.SetState(gst.StateNull)
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.logger.Info().Str("path", s.path).Msg("sink_cancelled")
	return nil
}

func (s *Sink) stop() {
	if s.running.Swap(false) {
		s.pipeline.SetState(gst.StateNull)
		s.logger.Warn().Str("path", s.path).Msg("sink_stopped")
	}
}
