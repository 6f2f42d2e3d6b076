package studio

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/ducksouplab/framemixer/compositor"
	"github.com/ducksouplab/framemixer/config"
	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/ducksouplab/framemixer/source"
	"github.com/ducksouplab/framemixer/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu        sync.Mutex
	startErr  error
	video     int
	audio     int
	finished  bool
	cancelled bool
}

func (s *memorySink) Start(path string, settings recording.Settings) error {
	return s.startErr
}

func (s *memorySink) ReadyForVideo() bool { return true }
func (s *memorySink) ReadyForAudio() bool { return true }

func (s *memorySink) AppendVideo(buf *recording.PixelBuffer, pts time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video++
	return nil
}

func (s *memorySink) AppendAudio(sample recording.AudioSample, pts time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio++
	return nil
}

func (s *memorySink) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	return nil
}

func (s *memorySink) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

func (s *memorySink) counts() (video, audio int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video, s.audio
}

type fixture struct {
	studio *Studio
	mu     sync.Mutex
	sinks  []*memorySink
	events []Event
	// startErr is given to the next sink
	startErr error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	comp, err := compositor.NewCompositor(compositor.Options{})
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	scene := DefaultScene()
	scene.Image = source.NewStatic(img)

	cfg := config.Defaults()
	cfg.Preview.Width, cfg.Preview.Height = 36, 64

	f := &fixture{}
	s, err := New(Options{
		Compositor: comp,
		Scene:      scene,
		NewSink: func() recording.Sink {
			f.mu.Lock()
			defer f.mu.Unlock()
			sink := &memorySink{startErr: f.startErr}
			f.startErr = nil
			f.sinks = append(f.sinks, sink)
			return sink
		},
		OutputDir: t.TempDir(),
		Recording: cfg.Recording,
		Preview:   cfg.Preview,
	})
	require.NoError(t, err)
	s.OnEvent(func(e Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
	})
	f.studio = s
	t.Cleanup(s.Close)
	return f
}

func (f *fixture) sink(i int) *memorySink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinks[i]
}

func (f *fixture) kinds() []EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []EventKind
	for _, e := range f.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func request(name string) Request {
	return Request{Name: name, Quality: recording.Medium, Orientation: recording.Square}
}

func TestStudioRecording(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.studio.StartRecording(ctx, request("first take"))
	require.NoError(t, err)
	assert.Equal(t, recording.Started, w.State())
	assert.Equal(t, 720, w.Settings().Width)
	assert.Equal(t, 720, w.Settings().Height)

	_, err = f.studio.StartRecording(ctx, request("second"))
	assert.ErrorIs(t, err, ErrRecordingActive)

	require.Eventually(t, func() bool {
		return w.Stats().FramesAccepted >= 2
	}, 2*time.Second, 10*time.Millisecond)

	f.studio.AppendAudio(recording.AudioSample{Data: make([]byte, 882), SampleRate: 44_100, Channels: 1, Timestamp: f.studio.Now()})

	outcomes := make(chan recording.Outcome, 1)
	require.NoError(t, f.studio.FinishRecording(func(o recording.Outcome) { outcomes <- o }))
	var o recording.Outcome
	select {
	case o = <-outcomes:
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
	}
	assert.NoError(t, o.Err)
	assert.Equal(t, recording.Completed, o.State)
	assert.True(t, f.sink(0).finished)
	video, _ := f.sink(0).counts()
	assert.GreaterOrEqual(t, video, 2)

	entry, ok := store.GetRecording(w.ID())
	require.True(t, ok)
	assert.Equal(t, "completed", entry.State)
	assert.Equal(t, "firsttake", entry.Name)

	assert.Equal(t, []EventKind{EventStarted, EventFinished}, f.kinds())
	assert.ErrorIs(t, f.studio.FinishRecording(nil), ErrNoRecording)

	// the slot is free again
	_, err = f.studio.StartRecording(ctx, request("again"))
	assert.NoError(t, err)
}

func TestStudioStartFailure(t *testing.T) {
	f := newFixture(t)
	f.startErr = errors.New("no encoder")

	_, err := f.studio.StartRecording(context.Background(), request("broken"))
	require.Error(t, err)
	assert.False(t, f.studio.Stats().Recording)

	_, err = f.studio.StartRecording(context.Background(), request("fixed"))
	assert.NoError(t, err)
	assert.True(t, f.studio.Stats().Recording)
}

func TestStudioCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.ErrorIs(t, f.studio.CancelRecording(ctx), ErrNoRecording)

	w, err := f.studio.StartRecording(ctx, request("cancelled"))
	require.NoError(t, err)
	require.NoError(t, f.studio.CancelRecording(ctx))

	assert.Equal(t, recording.Cancelled, w.State())
	assert.True(t, f.sink(0).cancelled)
	assert.Equal(t, []EventKind{EventStarted, EventCancelled}, f.kinds())
	assert.ErrorIs(t, f.studio.CancelRecording(ctx), ErrNoRecording)
}

func TestStudioInterruption(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.studio.SignalInterruption(), ErrNoRecording)

	w, err := f.studio.StartRecording(context.Background(), request("interrupted"))
	require.NoError(t, err)
	require.NoError(t, f.studio.SignalInterruption())
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, w.Stats().FramesAccepted)

	require.NoError(t, f.studio.ClearInterruption())
	require.Eventually(t, func() bool {
		return w.Stats().FramesAccepted > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStudioAudioWithoutRecording(t *testing.T) {
	f := newFixture(t)
	f.studio.AppendAudio(recording.AudioSample{Data: []byte{0, 0}})
	assert.EqualValues(t, 1, f.studio.Stats().Audio)
}

func TestStudioFade(t *testing.T) {
	f := newFixture(t)

	_, err := f.studio.Fade(context.Background(), "missing", 0, time.Millisecond)
	assert.ErrorIs(t, err, ErrUnknownLayer)

	done, err := f.studio.Fade(context.Background(), LayerImage, 0.25, 50*time.Millisecond)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fade did not end")
	}
	layers := findLayer(f.studio.previewWorker.Layers(), LayerImage)
	require.Len(t, layers, 1)
	assert.InDelta(t, 0.25, layers[0].Opacity(), 1e-9)

	// recordings started later inherit the opacity
	_, err = f.studio.StartRecording(context.Background(), request("faded"))
	require.NoError(t, err)
	f.studio.mu.Lock()
	recorded := findLayer(f.studio.active.layers, LayerImage)
	f.studio.mu.Unlock()
	require.Len(t, recorded, 1)
	assert.InDelta(t, 0.25, recorded[0].Opacity(), 1e-9)
}

func TestStudioPreview(t *testing.T) {
	f := newFixture(t)
	_, frames, err := f.studio.Subscribe()
	require.NoError(t, err)
	f.studio.Start()

	select {
	case frame := <-frames:
		assert.Equal(t, 36, frame.Width)
		assert.Equal(t, 64, frame.Height)
		assert.NotEmpty(t, frame.JPEG)
	case <-time.After(2 * time.Second):
		t.Fatal("no preview frame")
	}
}

func TestStudioPreviewFraming(t *testing.T) {
	f := newFixture(t)
	previewImage := func() *compositor.Layer {
		layers := findLayer(f.studio.previewWorker.Layers(), LayerImage)
		require.Len(t, layers, 1)
		return layers[0]
	}
	// portrait by default, the preview is already 9:16
	initial := previewImage().Rect()
	assert.InDelta(t, 0, initial.X, 1e-9)
	assert.InDelta(t, 0, initial.Y, 1e-9)
	assert.InDelta(t, 36, initial.W, 1e-9)
	assert.InDelta(t, 64, initial.H, 1e-9)

	w, err := f.studio.StartRecording(context.Background(), Request{Name: "wide", Quality: recording.Medium, Orientation: recording.Landscape})
	require.NoError(t, err)
	out := geometry.Sz(float64(w.Settings().Width), float64(w.Settings().Height))

	f.studio.mu.Lock()
	recorded := findLayer(f.studio.active.layers, LayerImage)
	f.studio.mu.Unlock()
	require.Len(t, recorded, 1)

	frame := previewImage().Rect()
	scale := 36 / out.W
	assert.InDelta(t, 0, frame.X, 1e-9)
	assert.InDelta(t, 36, frame.W, 1e-9)
	assert.InDelta(t, out.H*scale, frame.H, 1e-9)
	assert.InDelta(t, (64-frame.H)/2, frame.Y, 1e-9)

	tex := geometry.Sz(16, 9)
	for _, layout := range []geometry.Layout{geometry.CoverAt(geometry.Center), geometry.FitAt(geometry.Center)} {
		inPreview := geometry.Place(tex, frame, layout)
		inRecording := geometry.Place(tex, recorded[0].Rect(), layout)
		assert.InDelta(t, inRecording.X*scale+frame.X, inPreview.X, 1e-9)
		assert.InDelta(t, inRecording.Y*scale+frame.Y, inPreview.Y, 1e-9)
		assert.InDelta(t, inRecording.W*scale, inPreview.W, 1e-9)
		assert.InDelta(t, inRecording.H*scale, inPreview.H, 1e-9)
	}
}

func TestStudioClose(t *testing.T) {
	f := newFixture(t)
	w, err := f.studio.StartRecording(context.Background(), request("open"))
	require.NoError(t, err)

	f.studio.Close()
	assert.Equal(t, recording.Cancelled, w.State())
	_, err = f.studio.StartRecording(context.Background(), request("late"))
	assert.ErrorIs(t, err, ErrClosed)
}
