package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/txtwatch/internal/changelog"
	"github.com/hupe1980/txtwatch/internal/registry"
)

// Event kinds used in structured output.
const (
	KindChange = "change"
	KindFile   = "file"
)

// Event is the envelope of one structured output line or document.
type Event struct {
	Kind   string                 `json:"kind" yaml:"kind"`
	Change *changelog.Record      `json:"change,omitempty" yaml:"change,omitempty"`
	File   *registry.FileSnapshot `json:"file,omitempty" yaml:"file,omitempty"`
}

func recordEvent(rec changelog.Record) Event {
	return Event{Kind: KindChange, Change: &rec}
}

func snapshotEvent(snap registry.FileSnapshot, opts Options) Event {
	if !opts.ShowContent {
		snap.Content = ""
	}

	return Event{Kind: KindFile, File: &snap}
}

// JSONEncoder writes one JSON object per line.
type JSONEncoder struct {
	enc  *json.Encoder
	opts Options
}

// NewJSONEncoder creates a JSONEncoder writing to w.
func NewJSONEncoder(w io.Writer, opts Options) *JSONEncoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return &JSONEncoder{enc: enc, opts: opts}
}

// EncodeRecord writes a change event.
func (e *JSONEncoder) EncodeRecord(rec changelog.Record) error {
	return e.encode(recordEvent(rec))
}

// EncodeSnapshot writes a file event.
func (e *JSONEncoder) EncodeSnapshot(snap registry.FileSnapshot) error {
	return e.encode(snapshotEvent(snap, e.opts))
}

func (e *JSONEncoder) encode(ev Event) error {
	if err := e.enc.Encode(ev); err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Kind, err)
	}

	return nil
}

// YAMLEncoder writes one YAML document per event, each starting with "---".
type YAMLEncoder struct {
	w    io.Writer
	opts Options
}

// NewYAMLEncoder creates a YAMLEncoder writing to w.
func NewYAMLEncoder(w io.Writer, opts Options) *YAMLEncoder {
	return &YAMLEncoder{w: w, opts: opts}
}

// EncodeRecord writes a change event.
func (e *YAMLEncoder) EncodeRecord(rec changelog.Record) error {
	return e.encode(recordEvent(rec))
}

// EncodeSnapshot writes a file event.
func (e *YAMLEncoder) EncodeSnapshot(snap registry.FileSnapshot) error {
	return e.encode(snapshotEvent(snap, e.opts))
}

func (e *YAMLEncoder) encode(ev Event) error {
	data, err := yaml.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Kind, err)
	}

	if _, err := io.WriteString(e.w, "---\n"+string(data)); err != nil {
		return fmt.Errorf("writing %s event: %w", ev.Kind, err)
	}

	return nil
}

// Summary is the end-of-session report: the tracked files in insertion
// order and the change log newest first.
type Summary struct {
	Files   []registry.FileSnapshot `json:"files" yaml:"files"`
	Changes []changelog.Record      `json:"changes" yaml:"changes"`
}

// SummaryFormat picks the summary encoding from a file name: ".json" gives
// JSON, anything else YAML.
func SummaryFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}

	return FormatYAML
}

// MarshalSummary serializes s as indented JSON or YAML.
func MarshalSummary(s Summary, format string) ([]byte, error) {
	if s.Files == nil {
		s.Files = []registry.FileSnapshot{}
	}

	if s.Changes == nil {
		s.Changes = []changelog.Record{}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("serializing JSON summary: %w", err)
		}

		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("serializing YAML summary: %w", err)
		}

		return data, nil
	default:
		return nil, fmt.Errorf("unsupported summary format %q", format)
	}
}
