package plot

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ducksouplab/framemixer/recording"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	bigGlyph   = 3
	smallGlyph = 2
)

// RecordingPlot draws frame intervals and drops of one recording. It
// implements recording.Observer and saves a PDF next to the recording once
// the writer reaches a terminal state.
type RecordingPlot struct {
	sync.Mutex
	path      string
	startedAt time.Time
	// accepted frames: x=pts in seconds, y=interval to the previous frame in ms
	intervalLine plotter.XYs
	lastPTS      time.Duration
	hasPTS       bool
	// drops: x=seconds since the plot started, one line per reason
	dropLines map[string]plotter.XYs
	// state changes
	stateLine   plotter.XYs
	stateLabels []string
	target      float64
	saved       bool
}

var _ recording.Observer = (*RecordingPlot)(nil)

// NewRecordingPlot prepares a plot for the recording at recordingPath, the
// PDF is written as "<recording without extension>-frames.pdf"
func NewRecordingPlot(recordingPath string, frameInterval time.Duration) *RecordingPlot {
	return &RecordingPlot{
		path:      PathFor(recordingPath),
		startedAt: time.Now(),
		dropLines: make(map[string]plotter.XYs),
		target:    float64(frameInterval) / float64(time.Millisecond),
	}
}

func PathFor(recordingPath string) string {
	return strings.TrimSuffix(recordingPath, filepath.Ext(recordingPath)) + "-frames.pdf"
}

func (p *RecordingPlot) Path() string {
	return p.path
}

// seconds (float64)
func (p *RecordingPlot) elapsed() float64 {
	return float64(time.Since(p.startedAt).Milliseconds()) / 1000
}

func (p *RecordingPlot) StateChanged(writer string, s recording.State) {
	p.Lock()
	p.stateLine = append(p.stateLine, plotter.XY{X: p.elapsed(), Y: 0})
	p.stateLabels = append(p.stateLabels, s.String())
	p.Unlock()

	if s.Terminal() {
		if err := p.Save(); err != nil {
			log.Error().Str("context", "plot").Str("writer", writer).Err(err).Msg("plot_save_failed")
		}
	}
}

func (p *RecordingPlot) FrameAccepted(writer string, pts time.Duration) {
	p.Lock()
	defer p.Unlock()

	if p.hasPTS {
		interval := float64(pts-p.lastPTS) / float64(time.Millisecond)
		p.intervalLine = append(p.intervalLine, plotter.XY{X: pts.Seconds(), Y: interval})
	}
	p.lastPTS = pts
	p.hasPTS = true
}

func (p *RecordingPlot) FrameDropped(writer, reason string) {
	p.addDrop("video " + reason)
}

func (p *RecordingPlot) AudioDropped(writer, reason string) {
	p.addDrop("audio " + reason)
}

func (p *RecordingPlot) addDrop(label string) {
	p.Lock()
	defer p.Unlock()

	line := p.dropLines[label]
	p.dropLines[label] = append(line, plotter.XY{X: p.elapsed(), Y: float64(len(line) + 1)})
}

func (p *RecordingPlot) Intervals() int {
	p.Lock()
	defer p.Unlock()

	return len(p.intervalLine)
}

// Save writes the PDF, only the first call does
func (p *RecordingPlot) Save() error {
	p.Lock()
	defer p.Unlock()

	if p.saved {
		return nil
	}
	p.saved = true

	intervals := newPlot("Frame intervals", "seconds", "ms")
	if len(p.intervalLine) > 0 {
		first, last := p.intervalLine[0].X, p.intervalLine[len(p.intervalLine)-1].X
		targetLine := plotter.XYs{{X: first, Y: p.target}, {X: last, Y: p.target}}
		if err := addSeries(intervals, series{label: "target", width: 1, dashes: 5, color: targetColor}, targetLine); err != nil {
			return err
		}
		if err := addSeries(intervals, series{label: "interval", width: 1, color: intervalColor, glyph: draw.CrossGlyph{}, radius: smallGlyph}, p.intervalLine); err != nil {
			return err
		}
	}

	// deterministic legend order
	reasons := make([]string, 0, len(p.dropLines))
	for reason := range p.dropLines {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for i, reason := range reasons {
		s := series{label: reason, color: colorForDrop(reason, i), glyph: draw.TriangleGlyph{}, radius: bigGlyph}
		if err := addSeries(intervals, s, p.dropLines[reason]); err != nil {
			return err
		}
	}

	if len(p.stateLine) > 0 {
		labels, err := plotter.NewLabels(plotter.XYLabels{XYs: p.stateLine, Labels: p.stateLabels})
		if err == nil {
			intervals.Add(labels)
		}
	}

	if err := intervals.Save(6*vg.Inch, 4*vg.Inch, p.path); err != nil {
		return err
	}
	log.Info().Str("context", "plot").Str("path", p.path).Msg("plot_saved")
	return nil
}
