package recording

import "time"

// Clock gives host time as a duration since an arbitrary origin
type Clock interface {
	Now() time.Duration
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type hostClock struct {
	origin time.Time
}

// HostClock measures time on the monotonic clock from its creation
func HostClock() Clock {
	return hostClock{time.Now()}
}

func (c hostClock) Now() time.Duration {
	return time.Since(c.origin)
}

func (c hostClock) NewTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}
