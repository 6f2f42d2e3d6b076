package plot

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// series styles one line of a plot; a zero Width draws points only
type series struct {
	label  string
	width  float64
	dashes float64
	color  color.Color
	glyph  draw.GlyphDrawer
	radius float64
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Legend.Top = true
	grid := plotter.NewGrid()
	grid.Horizontal.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	grid.Vertical.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(grid)
	return p
}

func addSeries(p *plot.Plot, s series, xys plotter.XYer) error {
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(s.width)
	line.LineStyle.Color = s.color
	if s.dashes > 0 {
		line.LineStyle.Dashes = []vg.Length{vg.Points(s.dashes), vg.Points(s.dashes)}
	}
	points.Shape = s.glyph
	if points.Shape == nil {
		points.Shape = draw.CircleGlyph{}
	}
	points.Color = s.color
	points.Radius = vg.Points(s.radius)
	p.Add(line, points)
	p.Legend.Add(s.label, line, points)
	return nil
}
