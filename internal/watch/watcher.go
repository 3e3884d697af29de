package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultRenameWindow is how long after a Rename a Create for the tracked
// path still counts as the second half of the same rename.
const DefaultRenameWindow = 100 * time.Millisecond

// State is the arm state of a Watcher.
type State int

// Watcher states.
const (
	Unarmed State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}

	return "unarmed"
}

// Watcher watches the directory of one tracked file.
type Watcher struct {
	handler      Handler
	renameWindow time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu   sync.Mutex
	fsw  *fsnotify.Watcher
	stop chan struct{}
	done chan struct{}
	dir  string

	target atomic.Value // string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithRenameWindow overrides DefaultRenameWindow.
func WithRenameWindow(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.renameWindow = d
		}
	}
}

// WithLogger sets the logger used for watcher errors.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates an unarmed Watcher that delivers events to handler.
func New(handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		handler:      handler,
		renameWindow: DefaultRenameWindow,
		logger:       slog.Default(),
		now:          time.Now,
	}
	w.target.Store("")

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Arm starts watching the directory containing path and tracks path. Any
// previous watch is disarmed first.
func (w *Watcher) Arm(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.disarmLocked()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	dir := filepath.Dir(abs)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watching directory %q: %w", dir, err)
	}

	w.fsw = fsw
	w.dir = dir
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	w.target.Store(abs)

	go w.loop(fsw, w.stop, w.done)

	w.logger.Debug("watch armed", slog.String("dir", dir), slog.String("file", abs))

	return nil
}

// Disarm stops event delivery and releases the underlying watch. Events
// already handed to the handler are not recalled.
func (w *Watcher) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.disarmLocked()
}

func (w *Watcher) disarmLocked() {
	if w.fsw == nil {
		return
	}

	close(w.stop)
	_ = w.fsw.Close()
	<-w.done

	w.logger.Debug("watch disarmed", slog.String("dir", w.dir))

	w.fsw = nil
	w.stop = nil
	w.done = nil
	w.dir = ""
}

// SetTarget changes which file in the armed directory events are matched
// against, without re-arming.
func (w *Watcher) SetTarget(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}

	w.target.Store(abs)
}

// Target returns the path events are matched against.
func (w *Watcher) Target() string {
	return w.target.Load().(string)
}

// Dir returns the watched directory, or "" when unarmed.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.dir
}

// State reports whether a watch is active.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw == nil {
		return Unarmed
	}

	return Armed
}

// loop processes fsnotify events until stop is closed or the fsnotify
// channels are closed.
func (w *Watcher) loop(fsw *fsnotify.Watcher, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var pending pendingRename

	for {
		select {
		case <-stop:
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}

			ev, relevant := classify(event, w.Target(), &pending, w.renameWindow, w.now())
			if !relevant {
				continue
			}

			select {
			case <-stop:
				return
			default:
			}

			w.deliver(ev)

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return
			}

			w.logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watch handler panicked", slog.Any("error", r))
		}
	}()

	w.handler(ev)
}
