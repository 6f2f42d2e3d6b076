package studio

import (
	"github.com/ducksouplab/framemixer/compositor"
	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/source"
)

// layer names, back to front
const (
	LayerCamera  = "camera"
	LayerImage   = "image"
	LayerView    = "view"
	LayerOverlay = "overlay"
)

// Scene lists the sources shared by the preview and every recording. Each
// target gets its own layers over the same sources, placed by the same
// layouts, so what is previewed is what gets recorded.
type Scene struct {
	Camera  *source.Camera
	Image   source.TextureSource
	View    *source.ViewSnapshot
	Overlay *source.Overlay

	CameraLayout geometry.Layout
	ImageLayout  geometry.Layout
}

func DefaultScene() Scene {
	return Scene{
		CameraLayout: geometry.CoverAt(geometry.Center),
		ImageLayout:  geometry.FitAt(geometry.Center),
	}
}

// layers builds full-frame layers for a target of the given size
func (s Scene) layers(size geometry.Size) []*compositor.Layer {
	frame := geometry.RectOf(size)
	var layers []*compositor.Layer
	if s.Camera != nil {
		l := compositor.NewLayer(LayerCamera, s.Camera, frame, s.CameraLayout)
		l.SetOpaque(true)
		layers = append(layers, l)
	}
	if s.Image != nil {
		layers = append(layers, compositor.NewLayer(LayerImage, s.Image, frame, s.ImageLayout))
	}
	if s.View != nil {
		layers = append(layers, compositor.NewLayer(LayerView, s.View, frame, geometry.FitAt(geometry.Center)))
	}
	if s.Overlay != nil {
		layers = append(layers, compositor.NewLayer(LayerOverlay, s.Overlay, frame, geometry.FitAt(geometry.Center)))
	}
	return layers
}
