package main

import (
	"fmt"
	"image/color"
	"sync/atomic"

	"github.com/ducksouplab/framemixer/compositor"
	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/env"
	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/gst"
	"github.com/ducksouplab/framemixer/metrics"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/ducksouplab/framemixer/source"
	"github.com/ducksouplab/framemixer/studio"
	"github.com/ducksouplab/framemixer/ui"
	"github.com/gogpu/gg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	captureSampleRate = 48000
	captureChannels   = 2
	indicatorSize     = 48
)

// recIndicator is the red dot shown while a recording runs
type recIndicator struct {
	on atomic.Bool
}

func (r *recIndicator) Geometry() (bool, geometry.Size) {
	return r.on.Load(), geometry.Sz(indicatorSize, indicatorSize)
}

func (r *recIndicator) Render(dc *gg.Context) {
	dc.SetRGB(0.9, 0.1, 0.1)
	dc.DrawCircle(indicatorSize/2, indicatorSize/2, indicatorSize/3)
	dc.Fill()
}

type app struct {
	metrics *metrics.Metrics
	studio  *studio.Studio
	loop    *ui.Loop
	capture *gst.Capture
}

func newApp(cmd *cobra.Command, preview bool) (*app, error) {
	imagePath, _ := cmd.Flags().GetString("image")
	mirror, _ := cmd.Flags().GetBool("mirror")
	guides, _ := cmd.Flags().GetBool("guides")
	// only record defines --out
	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		outputDir = env.OutputDir
	}

	a := &app{
		metrics: metrics.New(),
		loop:    ui.NewLoop(),
	}
	comp, err := compositor.NewCompositor(compositor.Options{Observer: a.metrics})
	if err != nil {
		return nil, err
	}

	scene := studio.DefaultScene()
	if !env.NoGST {
		var filter source.Filter
		if mirror {
			filter = source.Mirror
		}
		scene.Camera = source.NewCamera("camera", filter)
	}
	if imagePath != "" {
		img, err := source.LoadStatic(imagePath)
		if err != nil {
			return nil, fmt.Errorf("load image: %w", err)
		}
		scene.Image = img
	}
	indicator := &recIndicator{}
	scene.View = source.NewViewSnapshot("indicator", indicator, a.loop, 1)
	if guides {
		size := geometry.Sz(float64(config.Engine.Preview.Width), float64(config.Engine.Preview.Height))
		margin := size.W * 0.1
		scene.Overlay = source.NewOverlay("guides", size)
		scene.Overlay.Add(source.Shape{
			Kind:      source.RectShape,
			Rect:      geometry.R(margin, margin, size.W-2*margin, size.H-2*margin),
			Stroke:    color.White,
			LineWidth: 2,
		})
	}

	a.studio, err = studio.New(studio.Options{
		Compositor: comp,
		Scene:      scene,
		NewSink: func() recording.Sink {
			return gst.NewSink(config.Engine.Encoder)
		},
		OutputDir:            outputDir,
		Recording:            config.Engine.Recording,
		Preview:              config.Engine.Preview,
		NoPreview:            !preview,
		Plots:                env.GeneratePlots,
		Observers:            []recording.Observer{a.metrics.Writer()},
		OnPreviewSubscribers: a.metrics.SetPreviewSubscribers,
	})
	if err != nil {
		return nil, err
	}
	a.studio.OnEvent(func(e studio.Event) {
		indicator.on.Store(e.Kind == studio.EventStarted)
	})

	if scene.Camera != nil {
		a.capture = gst.NewCapture(config.Engine.Capture, captureSampleRate, captureChannels)
	}
	return a, nil
}

func (a *app) start() error {
	go gst.StartMainLoop()
	a.studio.Start()
	if a.capture == nil {
		log.Info().Str("context", "app").Msg("capture_disabled")
		return nil
	}
	return a.capture.Start(gst.CaptureHandlers{
		Video: a.studio.PushVideo,
		Audio: a.studio.AppendAudio,
		Now:   a.studio.Now,
	})
}

func (a *app) stop() {
	if a.capture != nil {
		a.capture.Stop()
	}
	a.studio.Close()
	a.loop.Stop()
	gst.StopAll()
}
