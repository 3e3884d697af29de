// Package fsread reads files that other processes may be writing to at the
// same time. Transient sharing violations are retried a bounded number of
// times with a fixed backoff; when every attempt fails the read degrades to
// empty content instead of returning an error.
package fsread

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/txtwatch/internal/textdecode"
)

// Defaults used by New.
const (
	DefaultAttempts = 10
	DefaultBackoff  = 100 * time.Millisecond
)

// ErrSharingViolation can be returned by custom openers to signal a
// transient lock held by another writer.
var ErrSharingViolation = errors.New("sharing violation")

// OpenFunc opens path for reading.
type OpenFunc func(path string) (io.ReadCloser, error)

// Reader reads file content with retry-on-lock semantics.
type Reader struct {
	attempts  int
	backoff   time.Duration
	open      OpenFunc
	retryable func(error) bool
	logger    *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithAttempts sets the total number of attempts. Values below one are
// ignored.
func WithAttempts(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithBackoff sets the fixed wait between attempts.
func WithBackoff(d time.Duration) Option {
	return func(r *Reader) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithOpener replaces os.Open.
func WithOpener(open OpenFunc) Option {
	return func(r *Reader) {
		r.open = open
	}
}

// WithRetryable replaces the transient-error classifier.
func WithRetryable(fn func(error) bool) Option {
	return func(r *Reader) {
		r.retryable = fn
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// New creates a Reader with DefaultAttempts and DefaultBackoff.
func New(opts ...Option) *Reader {
	r := &Reader{
		attempts:  DefaultAttempts,
		backoff:   DefaultBackoff,
		open:      openShared,
		retryable: IsTransient,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Attempts returns the configured attempt count.
func (r *Reader) Attempts() int { return r.attempts }

// Backoff returns the configured wait between attempts.
func (r *Reader) Backoff() time.Duration { return r.backoff }

// Read returns the UTF-8 decoded content of path. It returns "" when every
// attempt fails, when a non-transient error occurs, or when ctx is
// cancelled. Callers must treat "" as unknown content, not as an empty file.
//
// Unlike textdecode.Decode there is no code page 949 fallback here.
func (r *Reader) Read(ctx context.Context, path string) string {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		data, err := r.readOnce(path)
		if err == nil {
			return textdecode.DecodeUTF8(data)
		}

		if !r.retryable(err) {
			r.logger.Debug("read failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			return ""
		}

		r.logger.Debug("file busy, retrying",
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)

		if attempt == r.attempts {
			break
		}

		if !sleep(ctx, r.backoff) {
			return ""
		}
	}

	r.logger.Warn("giving up on busy file",
		slog.String("path", path),
		slog.Int("attempts", r.attempts),
	)

	return ""
}

func (r *Reader) readOnce(path string) ([]byte, error) {
	rc, err := r.open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// IsTransient reports whether err is worth retrying: a sharing or lock
// violation, or a file that is briefly absent while an editor replaces it.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	return IsSharingViolation(err) || errors.Is(err, fs.ErrNotExist)
}

// IsSharingViolation reports whether err means another process holds the
// file in a way that blocks reading right now.
func IsSharingViolation(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrSharingViolation) || isPlatformSharingViolation(err)
}

// openShared opens path read-only. On Windows os.Open already requests
// FILE_SHARE_READ|FILE_SHARE_WRITE, so concurrent writers are tolerated.
func openShared(path string) (io.ReadCloser, error) {
	return os.Open(path) //nolint:gosec // path is chosen by the user
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
