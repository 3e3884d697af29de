// Package observe provides the change-notification primitive the core's
// observable state (tracked files, the registry, the change log) exposes
// to presentation layers.
package observe

import (
	"log/slog"
	"sync"
)

// List is a set of subscribers for values of type T. The zero value is
// ready to use.
type List[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
}

// Subscribe registers fn and returns a function that removes it again.
func (l *List[T]) Subscribe(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subs == nil {
		l.subs = make(map[int]func(T))
	}

	id := l.nextID
	l.nextID++
	l.subs[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.subs, id)
	}
}

// Len returns the number of active subscribers.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.subs)
}

// Notify calls every subscriber with v. Subscribers run on the caller's
// goroutine, outside the list's lock, in no particular order. A panicking
// subscriber is logged and does not stop the others.
func (l *List[T]) Notify(v T) {
	l.mu.Lock()
	fns := make([]func(T), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		call(fn, v)
	}
}

func call[T any](fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("observer panicked", slog.Any("error", r))
		}
	}()

	fn(v)
}
