package registry

import (
	"fmt"
	"sync"

	"github.com/hupe1980/txtwatch/internal/observe"
	"github.com/hupe1980/txtwatch/internal/textdecode"
)

// FileSnapshot is a point-in-time copy of a TrackedFile.
type FileSnapshot struct {
	DisplayName string `json:"displayName" yaml:"displayName"`
	Content     string `json:"content" yaml:"content"`
	Size        int64  `json:"size" yaml:"size"`
	Path        string `json:"path" yaml:"path"`
	Version     string `json:"version" yaml:"version"`

	Encoding textdecode.Encoding `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

func (s FileSnapshot) String() string {
	return fmt.Sprintf("%s v%s (%d bytes) : %s", s.DisplayName, s.Version, s.Size, s.Content)
}

// TrackedFile is a file known to the registry. It is mutated in place, so
// everyone holding the pointer sees updates; subscribers are notified
// after each mutation.
type TrackedFile struct {
	mu       sync.RWMutex
	name     string
	content  string
	encoding textdecode.Encoding
	size     int64
	path     string
	version  string

	observers observe.List[FileSnapshot]
}

// DisplayName returns the registry key (the file's base name).
func (f *TrackedFile) DisplayName() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.name
}

// Content returns the last published content.
func (f *TrackedFile) Content() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.content
}

// Size returns the size in bytes recorded at the last add or overwrite.
func (f *TrackedFile) Size() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.size
}

// Path returns the absolute path.
func (f *TrackedFile) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.path
}

// Version returns the "major.minor.patch" revision.
func (f *TrackedFile) Version() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.version
}

// Snapshot returns a copy of all fields.
func (f *TrackedFile) Snapshot() FileSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.snapshotLocked()
}

func (f *TrackedFile) String() string {
	return f.Snapshot().String()
}

// Subscribe registers fn to be called with a snapshot after every change.
func (f *TrackedFile) Subscribe(fn func(FileSnapshot)) func() {
	return f.observers.Subscribe(fn)
}

// Encoding returns the encoding the current content was decoded with.
func (f *TrackedFile) Encoding() textdecode.Encoding {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.encoding
}

// SetContent publishes new content decoded with enc. Size, path and
// version are left alone. Call it from the foreground context only.
func (f *TrackedFile) SetContent(content string, enc textdecode.Encoding) {
	f.mu.Lock()
	if f.content == content && f.encoding == enc {
		f.mu.Unlock()
		return
	}

	f.content = content
	f.encoding = enc
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.observers.Notify(snap)
}

// overwrite replaces content, size, path and version in one step.
func (f *TrackedFile) overwrite(doc textdecode.Document, path, version string) {
	f.mu.Lock()
	f.content = doc.Text
	f.encoding = doc.Encoding
	f.size = doc.Size
	f.path = path
	f.version = version
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.observers.Notify(snap)
}

// matches reports whether size and content equal the stored values.
func (f *TrackedFile) matches(content string, size int64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.size == size && f.content == content
}

func (f *TrackedFile) snapshotLocked() FileSnapshot {
	return FileSnapshot{
		DisplayName: f.name,
		Content:     f.content,
		Size:        f.size,
		Path:        f.path,
		Version:     f.version,
		Encoding:    f.encoding,
	}
}
