// Package registry holds the in-memory collection of tracked files, keyed
// by display name, and decides whether a (re)selected file is added,
// updated after confirmation, or left alone.
package registry

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/hupe1980/txtwatch/internal/changelog"
	"github.com/hupe1980/txtwatch/internal/observe"
	"github.com/hupe1980/txtwatch/internal/textdecode"
	"github.com/hupe1980/txtwatch/internal/version"
)

// ContentProvider returns the decoded content of path with its byte size
// and the encoding it was decoded with.
type ContentProvider func(path string) (textdecode.Document, error)

// DecodedContent is the default ContentProvider.
func DecodedContent(path string) (textdecode.Document, error) {
	return textdecode.ReadDocument(path)
}

// ConfirmFunc asks the user a yes/no question and blocks for the answer.
type ConfirmFunc func(question string) bool

// Armer starts watching a newly added file.
type Armer interface {
	Arm(path string) error
}

// Outcome tells what SelectOrAdd did.
type Outcome int

// Selection outcomes.
const (
	Added Outcome = iota
	Unchanged
	Declined
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Unchanged:
		return "unchanged"
	case Declined:
		return "declined"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// Registry is the collection of tracked files. Mutations are expected from
// the foreground context only; readers may run anywhere.
type Registry struct {
	log    *changelog.Log
	armer  Armer
	logger *slog.Logger

	mu     sync.RWMutex
	files  []*TrackedFile
	byName map[string]*TrackedFile

	added observe.List[*TrackedFile]
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry that records changes in log and arms
// armer for every newly added file. armer may be nil.
func New(log *changelog.Log, armer Armer, opts ...Option) *Registry {
	r := &Registry{
		log:    log,
		armer:  armer,
		logger: slog.Default(),
		byName: make(map[string]*TrackedFile),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// OverwriteQuestion is the prompt shown before replacing a stored copy.
func OverwriteQuestion(displayName string) string {
	return fmt.Sprintf("%q has changed since it was added. Overwrite it with the current content?", displayName)
}

// SelectOrAdd registers path or reconciles it with an existing entry of
// the same display name:
//
//   - unknown name: add with version 0.0.1, arm the watcher, log Added
//   - same size and content: nothing happens
//   - different: ask confirm; on yes overwrite in place, bump the version
//     and log Updated, on no keep the stale entry
//
// The watcher is only armed on add, never on update. The returned file is
// the entry that should become the current selection. An error is only
// returned when provider fails, in which case nothing changes.
func (r *Registry) SelectOrAdd(path string, provider ContentProvider, confirm ConfirmFunc) (*TrackedFile, Outcome, error) {
	if provider == nil {
		provider = DecodedContent
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, 0, fmt.Errorf("resolving %q: %w", path, err)
	}

	name := filepath.Base(abs)

	doc, err := provider(abs)
	if err != nil {
		return nil, 0, fmt.Errorf("loading %q: %w", name, err)
	}

	existing := r.Get(name)
	if existing == nil {
		return r.add(name, abs, doc), Added, nil
	}

	if existing.matches(doc.Text, doc.Size) {
		r.logger.Debug("reselected unchanged file", slog.String("file", name))
		return existing, Unchanged, nil
	}

	if confirm == nil || !confirm(OverwriteQuestion(name)) {
		r.logger.Debug("overwrite declined", slog.String("file", name))
		return existing, Declined, nil
	}

	next := version.Increment(existing.Version())
	existing.overwrite(doc, abs, next)

	r.log.Append(name, changelog.Updated, fmt.Sprintf("content overwritten, now v%s", next))
	r.logger.Info("file updated", slog.String("file", name), slog.String("version", next))

	return existing, Updated, nil
}

func (r *Registry) add(name, abs string, doc textdecode.Document) *TrackedFile {
	f := &TrackedFile{
		name:     name,
		content:  doc.Text,
		encoding: doc.Encoding,
		size:     doc.Size,
		path:     abs,
		version:  version.Initial,
	}

	r.mu.Lock()
	r.files = append(r.files, f)
	r.byName[name] = f
	r.mu.Unlock()

	if r.armer != nil {
		if err := r.armer.Arm(abs); err != nil {
			r.logger.Warn("could not watch file",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
		}
	}

	r.log.Append(name, changelog.Added, fmt.Sprintf("now tracking v%s (%d bytes)", version.Initial, doc.Size))
	r.logger.Info("file added",
		slog.String("file", name),
		slog.Int64("size", doc.Size),
		slog.String("encoding", string(doc.Encoding)),
	)

	r.added.Notify(f)

	return f
}

// Get returns the entry for displayName, or nil.
func (r *Registry) Get(displayName string) *TrackedFile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byName[displayName]
}

// Files returns the entries in the order they were added.
func (r *Registry) Files() []*TrackedFile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*TrackedFile, len(r.files))
	copy(out, r.files)

	return out
}

// Snapshots returns copies of every entry in insertion order.
func (r *Registry) Snapshots() []FileSnapshot {
	files := r.Files()

	out := make([]FileSnapshot, len(files))
	for i, f := range files {
		out[i] = f.Snapshot()
	}

	return out
}

// Len returns the number of tracked files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.files)
}

// SubscribeAdded registers fn to be called with every newly added file.
func (r *Registry) SubscribeAdded(fn func(*TrackedFile)) func() {
	return r.added.Subscribe(fn)
}
