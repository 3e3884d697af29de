package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/txtwatch/internal/changelog"
	"github.com/hupe1980/txtwatch/internal/registry"
)

// Built-in format names.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Options tune how events are encoded.
type Options struct {
	// NoColor disables lipgloss styling in text output.
	NoColor bool
	// ShowContent includes file content with every snapshot.
	ShowContent bool
}

// Encoder writes events to a stream, one line or document each.
type Encoder interface {
	EncodeRecord(rec changelog.Record) error
	EncodeSnapshot(snap registry.FileSnapshot) error
}

// EncoderFactory creates an Encoder writing to w.
type EncoderFactory func(w io.Writer, opts Options) Encoder

// Registry maps format names to EncoderFactory functions, enabling
// pluggable output formats for the open command.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]EncoderFactory
}

// NewRegistry creates an empty encoder registry.
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[string]EncoderFactory),
	}
}

// Register adds an encoder factory under the given format name.
// Existing entries for the same name are overwritten.
func (r *Registry) Register(name string, factory EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.encoders[name] = factory
}

// Encoder returns the factory for the given format, or an error if not found.
func (r *Registry) Encoder(name string) (EncoderFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.encoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %s)", name, r.availableLocked())
	}

	return f, nil
}

// Formats returns the sorted list of registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formatsLocked()
}

// AvailableFormats returns a comma-separated string of registered format names.
func (r *Registry) AvailableFormats() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.availableLocked()
}

func (r *Registry) formatsLocked() []string {
	names := make([]string, 0, len(r.encoders))
	for name := range r.encoders {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *Registry) availableLocked() string {
	formats := r.formatsLocked()
	if len(formats) == 0 {
		return "none"
	}

	return strings.Join(formats, ", ")
}

// DefaultRegistry returns a registry pre-populated with the built-in
// formats: text, json, yaml.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(FormatText, func(w io.Writer, opts Options) Encoder {
		return NewTextEncoder(w, opts)
	})

	r.Register(FormatJSON, func(w io.Writer, opts Options) Encoder {
		return NewJSONEncoder(w, opts)
	})

	r.Register(FormatYAML, func(w io.Writer, opts Options) Encoder {
		return NewYAMLEncoder(w, opts)
	})

	return r
}
