package recording

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu          sync.Mutex
	path        string
	settings    Settings
	started     bool
	finished    bool
	cancelled   bool
	videoPTS    []time.Duration
	audioPTS    []time.Duration
	startErr    error
	finishErr   error
	appendErr   error
	blockVideo  chan struct{}
	// Start closes startEntered, then waits for startGate
	startEntered chan struct{}
	startGate    chan struct{}
	videoReady  atomic.Bool
	audioReady  atomic.Bool
	appendCalls atomic.Int64
}

func newFakeSink() *fakeSink {
	s := &fakeSink{}
	s.videoReady.Store(true)
	s.audioReady.Store(true)
	return s
}

func (s *fakeSink) Start(path string, settings Settings) error {
	if s.startEntered != nil {
		close(s.startEntered)
	}
	if s.startGate != nil {
		<-s.startGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.path, s.settings, s.started = path, settings, true
	return nil
}

func (s *fakeSink) ReadyForVideo() bool {
	return s.videoReady.Load()
}

func (s *fakeSink) ReadyForAudio() bool {
	return s.audioReady.Load()
}

func (s *fakeSink) AppendVideo(buf *PixelBuffer, pts time.Duration) error {
	s.appendCalls.Add(1)
	if s.blockVideo != nil {
		<-s.blockVideo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.videoPTS = append(s.videoPTS, pts)
	return nil
}

func (s *fakeSink) AppendAudio(sample AudioSample, pts time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioPTS = append(s.audioPTS, pts)
	return nil
}

func (s *fakeSink) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	return s.finishErr
}

func (s *fakeSink) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

func (s *fakeSink) flags() (started, cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.cancelled
}

func (s *fakeSink) video() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.videoPTS...)
}

func (s *fakeSink) audio() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.audioPTS...)
}

// fakeProducer has always composed something; its gate can be held from tests
type fakeProducer struct {
	busy     atomic.Bool
	composes atomic.Int64
	prepared atomic.Bool
}

func (p *fakeProducer) Prepare(onReady func(error)) {
	p.prepared.Store(true)
	if onReady != nil {
		onReady(nil)
	}
}

func (p *fakeProducer) TryBeginFrame() bool {
	return p.busy.CompareAndSwap(false, true)
}

func (p *fakeProducer) CancelFrame() {
	p.busy.Store(false)
}

func (p *fakeProducer) ComposeAsync(at time.Duration) {
	p.composes.Add(1)
	p.busy.Store(false)
}

func (p *fakeProducer) CopyOut(dst []byte, stride int) bool {
	dst[0] = 0xff
	return true
}

type fakeTicker struct {
	c chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	ticker *fakeTicker
	ready  chan struct{}
}

func newFakeClock() *fakeClock {
	return &fakeClock{ready: make(chan struct{})}
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{c: make(chan time.Time)}
	c.mu.Lock()
	c.ticker = t
	c.mu.Unlock()
	close(c.ready)
	return t
}

// fire moves the clock to at and delivers one tick
func (c *fakeClock) fire(at time.Duration) {
	<-c.ready
	c.mu.Lock()
	c.now = at
	t := c.ticker
	c.mu.Unlock()
	t.c <- time.Time{}
}

type recordingObserver struct {
	mu      sync.Mutex
	states  []State
	reasons map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{reasons: make(map[string]int)}
}

func (o *recordingObserver) StateChanged(writer string, s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingObserver) FrameAccepted(string, time.Duration) {}

func (o *recordingObserver) FrameDropped(writer, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons[reason]++
}

func (o *recordingObserver) AudioDropped(writer, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons["audio_"+reason]++
}

func (o *recordingObserver) count(reason string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reasons[reason]
}

var errBoom = errors.New("boom")

type harness struct {
	writer   *Writer
	sink     *fakeSink
	producer *fakeProducer
	clock    *fakeClock
	observer *recordingObserver
}

func newHarness(t *testing.T, minDelta time.Duration) *harness {
	t.Helper()
	h := &harness{
		sink:     newFakeSink(),
		producer: &fakeProducer{},
		clock:    newFakeClock(),
		observer: newRecordingObserver(),
	}
	w, err := NewWriter(h.producer, h.sink, Options{
		Path:          t.TempDir() + "/out.mp4",
		Settings:      SettingsFor(Medium, Portrait),
		MinFrameDelta: minDelta,
		Clock:         h.clock,
		Observers:     []Observer{h.observer},
	})
	require.NoError(t, err)
	h.writer = w
	t.Cleanup(w.Cancel)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.writer.Start(context.Background()))
}

// flush waits until every task queued so far has run
func (h *harness) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, h.writer.queue.call(context.Background(), func() {}))
}

// frame runs one tick at host time at and waits for its append
func (h *harness) frame(t *testing.T, at time.Duration) {
	t.Helper()
	h.writer.tick(at)
	h.flush(t)
}

func (h *harness) audio(t *testing.T, at time.Duration) {
	t.Helper()
	h.writer.AppendAudio(AudioSample{Data: make([]byte, 882), SampleRate: 44_100, Channels: 1, Timestamp: at})
	h.flush(t)
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("finish callback did not fire")
	}
	return Outcome{}
}
