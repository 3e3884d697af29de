// Package dispatch provides the single foreground execution context. State
// that presentation layers observe (tracked files, the change log) is only
// mutated from tasks running here; background goroutines such as the file
// watcher post work instead of mutating directly.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Invoke when the loop has been closed.
var ErrClosed = errors.New("dispatch loop closed")

// Dispatcher accepts tasks for execution on the foreground context.
type Dispatcher interface {
	Post(task func())
}

// Inline runs every task immediately on the caller's goroutine. It is only
// correct when every Post comes from one goroutine, as in single-threaded
// tests. Anything fed by a watcher needs a Loop.
type Inline struct{}

// Post runs task synchronously.
func (Inline) Post(task func()) { task() }

// Loop is a FIFO, single-consumer task queue. Post never blocks, so a
// background producer is never held up by a foreground task that is
// waiting on the user.
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewLoop creates a Loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Post enqueues task. Tasks posted after Close are dropped.
func (l *Loop) Post(task func()) {
	select {
	case <-l.closed:
		return
	default:
	}

	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Invoke posts task and waits for it to finish. It returns ctx.Err() if
// ctx ends first and ErrClosed if the loop is closed first.
func (l *Loop) Invoke(ctx context.Context, task func()) error {
	done := make(chan struct{})

	l.Post(func() {
		defer close(done)
		task()
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Run executes tasks in posting order until ctx is cancelled or Close is
// called. Tasks still queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			task, ok := l.next()
			if !ok {
				break
			}

			run(task)

			if ctx.Err() != nil || l.isClosed() {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case <-l.wake:
		}
	}
}

// Close stops the loop. It is safe to call more than once.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.closed) })
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.tasks)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}

	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]

	return task, true
}

func (l *Loop) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("foreground task panicked", slog.Any("error", r))
		}
	}()

	task()
}
