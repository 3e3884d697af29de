// Package changelog keeps the human-readable list of changes observed
// during a session, newest first.
package changelog

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/txtwatch/internal/observe"
)

// Log is an append-to-front list of change records. Appends are expected
// from the foreground context only; reads and subscriptions are safe from
// any goroutine.
type Log struct {
	mu         sync.RWMutex
	records    []Record
	maxEntries int
	now        func() time.Time
	observers  observe.List[Record]
}

// Option configures a Log.
type Option func(*Log)

// WithMaxEntries bounds the log. When full, the oldest record is dropped.
// Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(l *Log) {
		if n >= 0 {
			l.maxEntries = n
		}
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates an empty Log.
func New(opts ...Option) *Log {
	l := &Log{now: time.Now}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Append inserts a record at position 0 and notifies subscribers. fileName
// may be a full path; only its base name is kept.
func (l *Log) Append(fileName string, t Type, message string) Record {
	rec := Record{
		ID:       uuid.NewString(),
		Time:     l.now(),
		FileName: filepath.Base(fileName),
		Type:     t,
		Message:  message,
	}

	l.mu.Lock()
	l.records = append(l.records, Record{})
	copy(l.records[1:], l.records)
	l.records[0] = rec

	if l.maxEntries > 0 && len(l.records) > l.maxEntries {
		l.records = l.records[:l.maxEntries]
	}
	l.mu.Unlock()

	l.observers.Notify(rec)

	return rec
}

// Records returns a copy of the log, newest first.
func (l *Log) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)

	return out
}

// Latest returns the newest record, if any.
func (l *Log) Latest() (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.records) == 0 {
		return Record{}, false
	}

	return l.records[0], true
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}

// Subscribe registers fn to be called with every appended record.
func (l *Log) Subscribe(fn func(Record)) func() {
	return l.observers.Subscribe(fn)
}
