package fsread

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyOpener fails with a sharing violation for the first failures calls.
func flakyOpener(failures int32, content string, calls *atomic.Int32) OpenFunc {
	return func(path string) (io.ReadCloser, error) {
		n := calls.Add(1)
		if n <= failures {
			return nil, &fs.PathError{Op: "open", Path: path, Err: ErrSharingViolation}
		}

		return io.NopCloser(strings.NewReader(content)), nil
	}
}

// ---------------------------------------------------------------------------
// Retry behaviour
// ---------------------------------------------------------------------------

func TestRead_SucceedsAfterConflicts(t *testing.T) {
	var calls atomic.Int32

	r := New(
		WithBackoff(time.Millisecond),
		WithOpener(flakyOpener(3, "fresh content", &calls)),
	)

	got := r.Read(context.Background(), "a.txt")
	assert.Equal(t, "fresh content", got)
	assert.Equal(t, int32(4), calls.Load())
}

func TestRead_AlwaysConflictingDegradesToEmpty(t *testing.T) {
	var calls atomic.Int32

	r := New(
		WithBackoff(time.Millisecond),
		WithOpener(flakyOpener(1000, "never", &calls)),
	)

	got := r.Read(context.Background(), "a.txt")
	assert.Empty(t, got)
	assert.Equal(t, int32(DefaultAttempts), calls.Load())
}

func TestRead_NonTransientErrorStopsImmediately(t *testing.T) {
	var calls atomic.Int32

	r := New(
		WithBackoff(time.Millisecond),
		WithOpener(func(string) (io.ReadCloser, error) {
			calls.Add(1)
			return nil, fs.ErrPermission
		}),
	)

	assert.Empty(t, r.Read(context.Background(), "a.txt"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRead_CustomAttempts(t *testing.T) {
	var calls atomic.Int32

	r := New(
		WithAttempts(3),
		WithBackoff(0),
		WithOpener(flakyOpener(1000, "never", &calls)),
	)

	assert.Empty(t, r.Read(context.Background(), "a.txt"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRead_CancelledContext(t *testing.T) {
	var calls atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(
		WithBackoff(time.Hour),
		WithOpener(flakyOpener(1000, "never", &calls)),
	)

	assert.Empty(t, r.Read(ctx, "a.txt"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRead_BackoffIsApplied(t *testing.T) {
	var calls atomic.Int32

	r := New(
		WithBackoff(20*time.Millisecond),
		WithOpener(flakyOpener(2, "ok", &calls)),
	)

	start := time.Now()
	assert.Equal(t, "ok", r.Read(context.Background(), "a.txt"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

// ---------------------------------------------------------------------------
// Real files
// ---------------------------------------------------------------------------

func TestRead_RealFileUTF8Only(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")

	// CP949 bytes for "가": the reader does not fall back, so the result
	// carries replacement characters.
	require.NoError(t, os.WriteFile(p, []byte{0xB0, 0xA1}, 0o600))

	got := New(WithBackoff(0)).Read(context.Background(), p)
	assert.NotEqual(t, "가", got)
	assert.Contains(t, got, "\uFFFD")
}

func TestRead_MissingFileDegrades(t *testing.T) {
	r := New(WithAttempts(2), WithBackoff(time.Millisecond))
	assert.Empty(t, r.Read(context.Background(), filepath.Join(t.TempDir(), "gone.txt")))
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrSharingViolation, true},
		{"wrapped sentinel", fmt.Errorf("open: %w", ErrSharingViolation), true},
		{"not exist", &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, true},
		{"permission", fs.ErrPermission, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(WithAttempts(0), WithBackoff(-1))
	assert.Equal(t, DefaultAttempts, r.Attempts())
	assert.Equal(t, DefaultBackoff, r.Backoff())
}
