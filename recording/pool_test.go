package recording

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool(t *testing.T) {
	p := newBufferPool(2, 2, 1)
	first, ok := p.Get()
	assert.True(t, ok)
	assert.Equal(t, 16, len(first.Data))
	assert.Equal(t, 8, first.Stride)

	_, ok = p.Get()
	assert.False(t, ok, "pool should be exhausted")

	p.Put(first)
	again, ok := p.Get()
	assert.True(t, ok)
	assert.Same(t, first, again)
	assert.Equal(t, 1, p.Allocated())
}

func TestSerialQueue(t *testing.T) {
	t.Run("runs in order", func(t *testing.T) {
		q := newSerialQueue(8)
		var got []int
		for i := 0; i < 5; i++ {
			i := i
			q.enqueue(func() { got = append(got, i) })
		}
		q.close()
		q.wait()
		assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	})

	t.Run("submit drops when full", func(t *testing.T) {
		q := newSerialQueue(1)
		release := make(chan struct{})
		started := make(chan struct{})
		q.enqueue(func() {
			close(started)
			<-release
		})
		<-started
		assert.True(t, q.submit(func() {}))
		assert.False(t, q.submit(func() {}))
		close(release)
		q.close()
		q.wait()
	})

	t.Run("closed queue refuses work", func(t *testing.T) {
		q := newSerialQueue(1)
		q.close()
		q.close()
		assert.False(t, q.submit(func() {}))
		assert.False(t, q.enqueue(func() {}))
		assert.ErrorIs(t, q.call(context.Background(), func() {}), ErrClosed)
	})

	t.Run("call honors context", func(t *testing.T) {
		q := newSerialQueue(2)
		release := make(chan struct{})
		q.enqueue(func() { <-release })
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, q.call(ctx, func() {}), context.DeadlineExceeded)
		close(release)
	})
}
