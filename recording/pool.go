package recording

import "sync/atomic"

// bufferPool hands out at most max buffers; Get never blocks
type bufferPool struct {
	free      chan *PixelBuffer
	width     int
	height    int
	max       int64
	allocated atomic.Int64
}

func newBufferPool(width, height, max int) *bufferPool {
	return &bufferPool{
		free:   make(chan *PixelBuffer, max),
		width:  width,
		height: height,
		max:    int64(max),
	}
}

func (p *bufferPool) Get() (*PixelBuffer, bool) {
	select {
	case b := <-p.free:
		return b, true
	default:
	}
	if p.allocated.Add(1) > p.max {
		p.allocated.Add(-1)
		return nil, false
	}
	return NewPixelBuffer(p.width, p.height), true
}

func (p *bufferPool) Put(b *PixelBuffer) {
	select {
	case p.free <- b:
	default:
	}
}

func (p *bufferPool) Allocated() int {
	return int(p.allocated.Load())
}
