// Package ui runs the goroutine that owns view state. Anything reading or
// mutating views goes through Sync or Post.
package ui

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("ui loop stopped")

type Loop struct {
	tasks    chan func()
	doneCh   chan struct{}
	stopOnce sync.Once
}

func NewLoop() *Loop {
	l := &Loop{
		tasks:  make(chan func(), 32),
		doneCh: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		select {
		case <-l.doneCh:
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Sync runs fn on the loop and waits for it. fn must be brief.
func (l *Loop) Sync(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn without waiting; it is dropped if the loop is saturated
func (l *Loop) Post(fn func()) bool {
	select {
	case l.tasks <- fn:
		return true
	case <-l.doneCh:
		return false
	default:
		log.Warn().Str("context", "ui").Msg("ui_task_dropped")
		return false
	}
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.doneCh)
	})
}
