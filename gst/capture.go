package gst

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/helpers"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/ducksouplab/framemixer/source"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// CaptureHandlers receive frames and samples on GStreamer streaming threads
type CaptureHandlers struct {
	Video func(f source.Frame)
	Audio func(s recording.AudioSample)
	// Now stamps samples in the recording time base
	Now func() time.Duration
}

// Capture reads the camera and microphone through appsink elements
type Capture struct {
	id         string
	cfg        config.CaptureConfig
	sampleRate int
	channels   int
	logger     zerolog.Logger
	pipeline   *gst.Pipeline
	running    atomic.Bool

	videoFrames, audioSamples atomic.Uint64
}

func NewCapture(cfg config.CaptureConfig, sampleRate, channels int) *Capture {
	id := helpers.NewID()
	return &Capture{
		id:         id,
		cfg:        cfg,
		sampleRate: sampleRate,
		channels:   channels,
		logger:     log.With().Str("context", "gst_capture").Str("pipeline", id).Logger(),
	}
}

func (c *Capture) ID() string {
	return c.id
}

func (c *Capture) Start(h CaptureHandlers) error {
	if h.Video == nil || h.Now == nil {
		return fmt.Errorf("capture %s: video handler and clock are required", c.id)
	}
	def, err := newCaptureDef(c.cfg, c.sampleRate, c.channels)
	if err != nil {
		return err
	}
	c.logger.Debug().Str("def", def).Msg("capture_pipeline_def")

	pipeline, err := parsePipeline(def)
	if err != nil {
		return err
	}
	videoEl, err := elementByName(pipeline, "video_sink")
	if err != nil {
		return err
	}
	app.SinkFromElement(videoEl).SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return c.onVideo(sink, h)
		},
	})
	if c.cfg.AudioSource != "" && h.Audio != nil {
		audioEl, err := elementByName(pipeline, "audio_sink")
		if err != nil {
			return err
		}
		app.SinkFromElement(audioEl).SetCallbacks(&app.SinkCallbacks{
			NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
				return c.onAudio(sink, h)
			},
		})
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return fmt.Errorf("start capture pipeline: %w", err)
	}
	c.pipeline = pipeline
	c.running.Store(true)
	pipelines.add(c)
	c.logger.Info().Str("video", c.cfg.VideoSource).Str("audio", c.cfg.AudioSource).Msg("capture_started")
	return nil
}

// pull copies the mapped buffer, GStreamer reuses it after unmap
func pull(sink *app.Sink) []byte {
	sample := sink.PullSample()
	if sample == nil {
		return nil
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil
	}
	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()
	data := mapInfo.Bytes()
	if len(data) == 0 {
		return nil
	}
	return append([]byte(nil), data...)
}

func (c *Capture) onVideo(sink *app.Sink, h CaptureHandlers) gst.FlowReturn {
	data := pull(sink)
	if data == nil {
		c.logger.Warn().Msg("capture_empty_video_sample")
		return gst.FlowOK
	}
	c.videoFrames.Add(1)
	h.Video(source.Frame{
		Data:      data,
		Width:     c.cfg.Width,
		Height:    c.cfg.Height,
		Stride:    c.cfg.Width * 4,
		Format:    source.RGBA,
		Timestamp: h.Now(),
	})
	return gst.FlowOK
}

func (c *Capture) onAudio(sink *app.Sink, h CaptureHandlers) gst.FlowReturn {
	data := pull(sink)
	if data == nil {
		return gst.FlowOK
	}
	c.audioSamples.Add(1)
	h.Audio(recording.AudioSample{
		Data:       data,
		SampleRate: c.sampleRate,
		Channels:   c.channels,
		Timestamp:  h.Now(),
	})
	return gst.FlowOK
}

func (c *Capture) Stop() {
	c.stop()
	pipelines.delete(c.id)
}

func (c *Capture) stop() {
	if c.running.Swap(false) {
		c.pipeline.SetState(gst.StateNull)
		c.logger.Info().
			Uint64("video_frames", c.videoFrames.Load()).
			Uint64("audio_samples", c.audioSamples.Load()).
			Msg("capture_stopped")
	}
}
