// Package preview turns composed frames into JPEG images for on-screen
// display. It consumes a Worker of its own, composition stays in the
// compositor.
package preview

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ducksouplab/framemixer/geometry"
	"github.com/ducksouplab/framemixer/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Producer is the composition target the surface reads from
type Producer interface {
	Size() geometry.Size
	TryBeginFrame() bool
	ComposeAsync(at time.Duration)
	CopyOut(dst []byte, stride int) bool
}

type Frame struct {
	Seq    uint64
	At     time.Duration
	Width  int
	Height int
	JPEG   []byte
}

type Options struct {
	FrameRate   int
	JPEGQuality int
	// Now gives the host time passed to the producer
	Now func() time.Duration
	// OnSubscribers is called with the new count after each change
	OnSubscribers func(n int)
}

type Stats struct {
	Ticks   uint64
	Encoded uint64
	Busy    uint64
}

type Surface struct {
	producer Producer
	opts     Options
	logger   zerolog.Logger
	frame    *image.RGBA

	mu          sync.Mutex
	subscribers map[string]chan Frame
	latest      *Frame

	startOnce, stopOnce sync.Once
	stopCh              chan struct{}
	done                chan struct{}

	seq, ticks, encoded, busy atomic.Uint64
}

func NewSurface(producer Producer, opts Options) *Surface {
	if opts.FrameRate <= 0 {
		opts.FrameRate = 15
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = jpeg.DefaultQuality
	}
	if opts.Now == nil {
		origin := time.Now()
		opts.Now = func() time.Duration { return time.Since(origin) }
	}
	w, h := producer.Size().Pixels()
	return &Surface{
		producer:    producer,
		opts:        opts,
		logger:      log.With().Str("context", "preview").Logger(),
		frame:       image.NewRGBA(image.Rect(0, 0, w, h)),
		subscribers: make(map[string]chan Frame),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (s *Surface) Start() {
	s.startOnce.Do(func() {
		go s.loop()
		s.logger.Info().Int("fps", s.opts.FrameRate).Msg("preview_started")
	})
}

func (s *Surface) loop() {
	defer close(s.done)
	ticker := time.NewTicker(time.Second / time.Duration(s.opts.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(s.opts.Now())
		}
	}
}

// Stop ends the ticker and closes every subscriber channel
func (s *Surface) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.startOnce.Do(func() { close(s.done) })
		<-s.done

		s.mu.Lock()
		for id, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, id)
		}
		s.mu.Unlock()
		s.notifySubscribers(0)
		s.logger.Info().Interface("stats", s.Stats()).Msg("preview_stopped")
	})
}

// tick publishes the previous pass and starts the next one, nothing is
// composed while nobody watches
func (s *Surface) tick(at time.Duration) {
	s.ticks.Add(1)
	if s.Subscribers() == 0 {
		return
	}
	if !s.producer.TryBeginFrame() {
		s.busy.Add(1)
		return
	}
	copied := s.producer.CopyOut(s.frame.Pix, s.frame.Stride)
	s.producer.ComposeAsync(at)
	if !copied {
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.frame, &jpeg.Options{Quality: s.opts.JPEGQuality}); err != nil {
		s.logger.Error().Err(err).Msg("preview_encode_failed")
		return
	}
	s.encoded.Add(1)
	b := s.frame.Bounds()
	s.publish(Frame{
		Seq:    s.seq.Add(1),
		At:     at,
		Width:  b.Dx(),
		Height: b.Dy(),
		JPEG:   buf.Bytes(),
	})
}

// publish never blocks: a subscriber that has not read its previous frame
// gets it replaced
func (s *Surface) publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = &f
	for _, ch := range s.subscribers {
		select {
		case ch <- f:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- f:
			default:
			}
		}
	}
}

func (s *Surface) Subscribe() (string, <-chan Frame) {
	id := helpers.NewID()
	ch := make(chan Frame, 1)

	s.mu.Lock()
	s.subscribers[id] = ch
	if s.latest != nil {
		ch <- *s.latest
	}
	n := len(s.subscribers)
	s.mu.Unlock()

	s.notifySubscribers(n)
	s.logger.Debug().Str("subscriber", id).Msg("preview_subscribed")
	return id, ch
}

func (s *Surface) Unsubscribe(id string) {
	s.mu.Lock()
	ch, ok := s.subscribers[id]
	if ok {
		close(ch)
		delete(s.subscribers, id)
	}
	n := len(s.subscribers)
	s.mu.Unlock()

	if ok {
		s.notifySubscribers(n)
		s.logger.Debug().Str("subscriber", id).Msg("preview_unsubscribed")
	}
}

func (s *Surface) notifySubscribers(n int) {
	if s.opts.OnSubscribers != nil {
		s.opts.OnSubscribers(n)
	}
}

func (s *Surface) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Surface) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Frame{}, false
	}
	return *s.latest, true
}

func (s *Surface) Stats() Stats {
	return Stats{
		Ticks:   s.ticks.Load(),
		Encoded: s.encoded.Load(),
		Busy:    s.busy.Load(),
	}
}
