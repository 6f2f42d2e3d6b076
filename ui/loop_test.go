package ui

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopSync(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	value := 0
	if err := l.Sync(context.Background(), func() { value = 42 }); err != nil {
		t.Fatal(err)
	}
	if value != 42 {
		t.Errorf("got %d, expected 42", value)
	}
}

func TestLoopSerializes(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	counter := 0
	for i := 0; i < 10; i++ {
		l.Post(func() { counter++ })
	}
	var got int
	l.Sync(context.Background(), func() { got = counter })
	if got != 10 {
		t.Errorf("got %d, expected 10", got)
	}
}

func TestLoopContextTimeout(t *testing.T) {
	l := NewLoop()
	defer l.Stop()

	release := make(chan struct{})
	l.Post(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Sync(ctx, func() {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestLoopStopped(t *testing.T) {
	l := NewLoop()
	l.Stop()
	l.Stop()
	if err := l.Sync(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
