// Package session wires the registry, change log, watcher and reader into
// one unit that a presentation layer drives. It owns the current selection
// and runs the log, settle, re-read, publish sequence for every change
// event, marshaling every state mutation onto the foreground dispatcher.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/txtwatch/internal/changelog"
	"github.com/hupe1980/txtwatch/internal/dispatch"
	"github.com/hupe1980/txtwatch/internal/fsread"
	"github.com/hupe1980/txtwatch/internal/registry"
	"github.com/hupe1980/txtwatch/internal/textdecode"
	"github.com/hupe1980/txtwatch/internal/watch"
)

// DefaultSettleDelay is the wait between a change event and the re-read.
const DefaultSettleDelay = 300 * time.Millisecond

// ErrNoDispatcher is returned by New when Options.Dispatcher is nil.
var ErrNoDispatcher = errors.New("session: a dispatcher is required")

// Options configures a Session.
type Options struct {
	// Dispatcher runs state mutations and is required. Watcher and
	// refresh goroutines post to it, so it must be a single foreground
	// context such as a running dispatch.Loop. dispatch.Inline would run
	// those mutations on the posting goroutine.
	Dispatcher dispatch.Dispatcher

	// Reader re-reads modified files. Defaults to fsread.New().
	Reader *fsread.Reader

	// Provider loads content on selection. Defaults to
	// registry.DecodedContent.
	Provider registry.ContentProvider

	// SettleDelay is the wait before re-reading after an event.
	SettleDelay time.Duration

	// RenameWindow is passed to the watcher.
	RenameWindow time.Duration

	// MaxLogEntries bounds the change log; zero is unbounded.
	MaxLogEntries int

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// DefaultOptions returns the default timing. The caller supplies the
// Dispatcher.
func DefaultOptions() Options {
	return Options{
		SettleDelay:  DefaultSettleDelay,
		RenameWindow: watch.DefaultRenameWindow,
		Logger:       slog.Default(),
	}
}

// Session is one run of the tool.
type Session struct {
	opts     Options
	log      *changelog.Log
	registry *registry.Registry
	watcher  *watch.Watcher
	queue    *watch.PathQueue

	selected atomic.Pointer[registry.TrackedFile]

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a Session. Nothing is watched until the first Select.
func New(opts Options) (*Session, error) {
	if opts.Dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Reader == nil {
		opts.Reader = fsread.New(fsread.WithLogger(opts.Logger))
	}

	if opts.Provider == nil {
		opts.Provider = registry.DecodedContent
	}

	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		opts:   opts,
		log:    changelog.New(changelog.WithMaxEntries(opts.MaxLogEntries)),
		queue:  watch.NewPathQueue(),
		ctx:    ctx,
		cancel: cancel,
	}

	s.watcher = watch.New(s.handle,
		watch.WithRenameWindow(opts.RenameWindow),
		watch.WithLogger(opts.Logger),
	)
	s.registry = registry.New(s.log, s.watcher, registry.WithLogger(opts.Logger))

	return s, nil
}

// Select adds or reconciles path and makes the resulting entry the current
// selection. It must run on the foreground context; confirm may block.
func (s *Session) Select(path string, confirm registry.ConfirmFunc) (*registry.TrackedFile, registry.Outcome, error) {
	f, outcome, err := s.registry.SelectOrAdd(path, s.opts.Provider, confirm)
	if err != nil {
		return nil, 0, err
	}

	s.selected.Store(f)
	s.watcher.SetTarget(f.Path())

	s.opts.Logger.Debug("file selected",
		slog.String("file", f.DisplayName()),
		slog.String("outcome", outcome.String()),
	)

	return f, outcome, nil
}

// Selected returns the current selection, or nil.
func (s *Session) Selected() *registry.TrackedFile {
	return s.selected.Load()
}

// Registry returns the tracked-file collection.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Log returns the change log.
func (s *Session) Log() *changelog.Log { return s.log }

// Watcher returns the change watcher.
func (s *Session) Watcher() *watch.Watcher { return s.watcher }

// Disarm stops watching. Settle-then-read sequences already scheduled
// still complete.
func (s *Session) Disarm() {
	s.watcher.Disarm()
}

// Wait blocks until every scheduled settle-then-read sequence is done.
func (s *Session) Wait() {
	s.queue.Wait()
}

// Close disarms the watcher, abandons pending settle delays and waits for
// running sequences to return.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.watcher.Disarm()
		s.cancel()
		s.queue.Wait()
	})
}

// handle runs on the watcher goroutine.
func (s *Session) handle(ev watch.Event) {
	file := s.selected.Load()
	if file == nil || ev.Path != file.Path() {
		return
	}

	typ, msg := describe(ev)
	s.opts.Dispatcher.Post(func() {
		s.log.Append(ev.Path, typ, msg)
	})

	s.queue.Enqueue(ev.Path, func() {
		s.refresh(file, ev)
	})
}

// refresh waits for the writer to settle, re-reads and publishes.
func (s *Session) refresh(file *registry.TrackedFile, ev watch.Event) {
	if !s.settle() {
		return
	}

	logger := s.opts.Logger.With(slog.String("file", filepath.Base(ev.Path)), slog.String("event", ev.Kind.String()))

	var (
		content string
		enc     textdecode.Encoding
	)

	if ev.Kind == watch.Renamed {
		doc, err := textdecode.ReadDocument(ev.Path)
		if err != nil {
			logger.Warn("re-reading renamed file failed", slog.String("error", err.Error()))
			return
		}

		content, enc = doc.Text, doc.Encoding
	} else {
		content, enc = s.opts.Reader.Read(s.ctx, ev.Path), textdecode.UTF8
		if content == "" {
			logger.Debug("content unknown after re-read, keeping previous")
			return
		}
	}

	s.opts.Dispatcher.Post(func() {
		file.SetContent(content, enc)
	})

	logger.Debug("content refreshed", slog.Int("length", len(content)))
}

func (s *Session) settle() bool {
	if s.opts.SettleDelay == 0 {
		return s.ctx.Err() == nil
	}

	t := time.NewTimer(s.opts.SettleDelay)
	defer t.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func describe(ev watch.Event) (changelog.Type, string) {
	switch ev.Kind {
	case watch.Renamed:
		return changelog.Renamed, fmt.Sprintf("%s → %s", filepath.Base(ev.OldPath), filepath.Base(ev.Path))
	case watch.Created:
		return changelog.Changed, "file created"
	default:
		return changelog.Changed, "content modified"
	}
}
