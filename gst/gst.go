// Package gst runs the GStreamer pipelines of the engine: the encoder sink
// fed through appsrc elements and the capture pipeline read through appsinks
package gst

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
)

var (
	ErrNotRunning     = errors.New("pipeline not running")
	ErrElementMissing = errors.New("pipeline element missing")
	ErrPushFailed     = errors.New("push buffer failed")
	ErrEOSTimeout     = errors.New("end of stream not reached in time")
)

var initOnce sync.Once

// Init may be called several times
func Init() {
	initOnce.Do(func() {
		gst.Init(nil)
		log.Info().Str("context", "init").Msg("gstreamer_initialized")
	})
}

// StartMainLoop blocks, running the default glib main loop
func StartMainLoop() {
	Init()
	glib.NewMainLoop(glib.MainContextDefault(), false).Run()
}

func parsePipeline(def string) (*gst.Pipeline, error) {
	Init()
	pipeline, err := gst.NewPipelineFromString(def)
	if err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	return pipeline, nil
}

func elementByName(pipeline *gst.Pipeline, name string) (*gst.Element, error) {
	el, err := pipeline.GetElementByName(name)
	if err != nil || el == nil {
		return nil, fmt.Errorf("%w: %s", ErrElementMissing, name)
	}
	return el, nil
}

// waitEOS pops bus messages until end of stream, an error or the timeout
func waitEOS(pipeline *gst.Pipeline, timeout time.Duration) error {
	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return nil
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("pipeline error: %s (%s)", gerr.Error(), gerr.DebugString())
		}
	}
	return ErrEOSTimeout
}
