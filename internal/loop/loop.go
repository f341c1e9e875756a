// Package loop provides the single execution context all playback callbacks run on.
// Handles, the visibility monitor and the MPRIS surface post their callbacks here so
// the synchronization controller never sees two events at the same time.
package loop

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

const queueSize = 64

// ErrStopped is returned when a task is submitted to a stopped loop
var ErrStopped = errors.New("loop stopped")

// Loop runs posted tasks one at a time, in order, on a single goroutine
type Loop struct {
	logger   *zap.Logger
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a loop. Call Start (or Run) to begin processing.
func New(logger *zap.Logger) *Loop {
	return &Loop{
		logger: logger,
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches Run in a goroutine. It returns immediately.
func (l *Loop) Start(ctx context.Context) error {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.Run(ctx)
	}()
	return nil
}

// Run processes tasks until ctx is cancelled or Stop is called
func (l *Loop) Run(ctx context.Context) {
	defer l.close()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Loop context cancelled")
			return
		case <-l.done:
			return
		case task := <-l.tasks:
			l.exec(task)
		}
	}
}

// exec runs a single task; a panicking task is logged and does not stop the loop
func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task()
}

// Post schedules fn and returns false when the loop is stopped
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
// Must not be called from a task already running on the loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Stop stops the loop and waits for a goroutine started by Start to exit.
// Tasks still queued are dropped.
func (l *Loop) Stop(ctx context.Context) error {
	l.close()

	waited := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) close() {
	l.stopOnce.Do(func() { close(l.done) })
}
