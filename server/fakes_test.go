package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ducksouplab/framemixer/preview"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/ducksouplab/framemixer/studio"
)

var errNoRecording = errors.New("no recording in progress")

type nopProducer struct{}

func (nopProducer) Prepare(onReady func(error))         { onReady(nil) }
func (nopProducer) TryBeginFrame() bool                 { return false }
func (nopProducer) CancelFrame()                        {}
func (nopProducer) ComposeAsync(at time.Duration)       {}
func (nopProducer) CopyOut(dst []byte, stride int) bool { return false }

type nopSink struct{}

func (nopSink) Start(path string, s recording.Settings) error                   { return nil }
func (nopSink) ReadyForVideo() bool                                             { return true }
func (nopSink) ReadyForAudio() bool                                             { return true }
func (nopSink) AppendVideo(buf *recording.PixelBuffer, pts time.Duration) error { return nil }
func (nopSink) AppendAudio(s recording.AudioSample, pts time.Duration) error    { return nil }
func (nopSink) Finish() error                                                   { return nil }
func (nopSink) Cancel() error                                                   { return nil }

// fakeStudio records what the control server asks for
type fakeStudio struct {
	sync.Mutex
	recording   bool
	requests    []studio.Request
	interrupted bool
	fades       []fadePayload
	frames      chan preview.Frame
	listeners   []func(studio.Event)
	unsubscribe chan string
}

func newFakeStudio() *fakeStudio {
	return &fakeStudio{
		frames:      make(chan preview.Frame, 4),
		unsubscribe: make(chan string, 1),
	}
}

func (f *fakeStudio) StartRecording(ctx context.Context, req studio.Request) (*recording.Writer, error) {
	f.Lock()
	defer f.Unlock()
	if f.recording {
		return nil, studio.ErrRecordingActive
	}
	f.recording = true
	f.requests = append(f.requests, req)
	return recording.NewWriter(nopProducer{}, nopSink{}, recording.Options{
		Path:     "data/fake.mp4",
		Settings: recording.SettingsFor(req.Quality, req.Orientation),
	})
}

func (f *fakeStudio) FinishRecording(callback func(recording.Outcome)) error {
	f.Lock()
	if !f.recording {
		f.Unlock()
		return errNoRecording
	}
	f.recording = false
	listeners := append([]func(studio.Event){}, f.listeners...)
	f.Unlock()
	for _, fn := range listeners {
		fn(studio.Event{Kind: studio.EventFinished, Path: "data/fake.mp4", State: "completed"})
	}
	return nil
}

func (f *fakeStudio) CancelRecording(ctx context.Context) error {
	f.Lock()
	defer f.Unlock()
	if !f.recording {
		return errNoRecording
	}
	f.recording = false
	return nil
}

func (f *fakeStudio) SignalInterruption() error {
	f.Lock()
	defer f.Unlock()
	if !f.recording {
		return errNoRecording
	}
	f.interrupted = true
	return nil
}

func (f *fakeStudio) ClearInterruption() error {
	f.Lock()
	defer f.Unlock()
	if !f.recording {
		return errNoRecording
	}
	f.interrupted = false
	return nil
}

func (f *fakeStudio) Fade(ctx context.Context, layer string, opacity float64, duration time.Duration) (<-chan struct{}, error) {
	f.Lock()
	defer f.Unlock()
	if layer != studio.LayerCamera {
		return nil, studio.ErrUnknownLayer
	}
	f.fades = append(f.fades, fadePayload{Layer: layer, Opacity: opacity, Duration: int(duration.Milliseconds())})
	done := make(chan struct{})
	close(done)
	return done, nil
}

func (f *fakeStudio) Subscribe() (string, <-chan preview.Frame, error) {
	return "sub", f.frames, nil
}

func (f *fakeStudio) Unsubscribe(id string) {
	select {
	case f.unsubscribe <- id:
	default:
	}
}

func (f *fakeStudio) Stats() studio.Stats {
	f.Lock()
	defer f.Unlock()
	return studio.Stats{Recording: f.recording}
}

func (f *fakeStudio) OnEvent(fn func(studio.Event)) {
	f.Lock()
	defer f.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *fakeStudio) lastRequest() (studio.Request, bool) {
	f.Lock()
	defer f.Unlock()
	if len(f.requests) == 0 {
		return studio.Request{}, false
	}
	return f.requests[len(f.requests)-1], true
}
