package watch

import (
	"log/slog"
	"sync"
)

// PathQueue runs tasks one at a time per path, in the order they were
// enqueued. Tasks for different paths run concurrently. A worker goroutine
// exists only while a path has queued work.
type PathQueue struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

// NewPathQueue creates an empty PathQueue.
func NewPathQueue() *PathQueue {
	return &PathQueue{queues: make(map[string][]func())}
}

// Enqueue schedules task behind any work already queued for path.
func (q *PathQueue) Enqueue(path string, task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks, running := q.queues[path]
	q.queues[path] = append(tasks, task)

	if !running {
		q.wg.Add(1)
		go q.drain(path)
	}
}

// Pending returns the number of tasks queued or running for path.
func (q *PathQueue) Pending(path string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.queues[path])
}

// Wait blocks until every queued task has finished.
func (q *PathQueue) Wait() {
	q.wg.Wait()
}

func (q *PathQueue) drain(path string) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		task := q.queues[path][0]
		q.mu.Unlock()

		runTask(path, task)

		q.mu.Lock()
		rest := q.queues[path][1:]
		if len(rest) == 0 {
			delete(q.queues, path)
			q.mu.Unlock()

			return
		}

		q.queues[path] = rest
		q.mu.Unlock()
	}
}

func runTask(path string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("queued task panicked", slog.String("path", path), slog.Any("error", r))
		}
	}()

	task()
}
