package sequencing

import (
	"context"
	"sync"
	"time"
)

// LinearInterpolator emits values from initial to final on C, one per step,
// then closes C. The final value is always emitted unless stopped.
type LinearInterpolator struct {
	C <-chan float64
	// private
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewLinearInterpolator(ctx context.Context, initialValue, finalValue float64, duration, step time.Duration) *LinearInterpolator {
	if step <= 0 {
		step = duration
	}
	c := make(chan float64)
	interpolator := &LinearInterpolator{
		C:      c,
		ticker: time.NewTicker(step),
		stopCh: make(chan struct{}),
	}
	start := time.Now()

	go func() {
		defer close(c)
		defer interpolator.ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-interpolator.stopCh:
				return
			case <-interpolator.ticker.C:
			}
			elapsed := time.Since(start)
			value := finalValue
			done := elapsed >= duration
			if !done {
				ratio := float64(elapsed) / float64(duration)
				value = initialValue + (finalValue-initialValue)*ratio
			}
			select {
			case c <- value:
			case <-ctx.Done():
				return
			case <-interpolator.stopCh:
				return
			}
			if done {
				return
			}
		}
	}()

	return interpolator
}

func (i *LinearInterpolator) Stop() {
	i.stopOnce.Do(func() {
		close(i.stopCh)
	})
}
