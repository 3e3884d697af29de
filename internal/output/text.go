package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hupe1980/txtwatch/internal/changelog"
	"github.com/hupe1980/txtwatch/internal/registry"
)

type styles struct {
	time    lipgloss.Style
	name    lipgloss.Style
	version lipgloss.Style
	muted   lipgloss.Style
	types   map[changelog.Type]lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		time:    r.NewStyle().Faint(true),
		name:    r.NewStyle().Bold(true),
		version: r.NewStyle().Foreground(lipgloss.Color("#7AA2F7")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#565F89")),
		types: map[changelog.Type]lipgloss.Style{
			changelog.Added:   r.NewStyle().Foreground(lipgloss.Color("#9ECE6A")).Bold(true),
			changelog.Updated: r.NewStyle().Foreground(lipgloss.Color("#E0AF68")).Bold(true),
			changelog.Changed: r.NewStyle().Foreground(lipgloss.Color("#7DCFFF")),
			changelog.Renamed: r.NewStyle().Foreground(lipgloss.Color("#BB9AF7")),
		},
	}
}

// TextEncoder prints human-readable lines. Only short single-line tokens
// are styled; file content is written verbatim.
type TextEncoder struct {
	w      io.Writer
	opts   Options
	styles styles
}

// NewTextEncoder creates a TextEncoder whose color profile follows w.
func NewTextEncoder(w io.Writer, opts Options) *TextEncoder {
	return &TextEncoder{
		w:      w,
		opts:   opts,
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

func (e *TextEncoder) paint(st lipgloss.Style, s string) string {
	if e.opts.NoColor {
		return s
	}

	return st.Render(s)
}

// EncodeRecord prints "[15:04:05] name - Type: message".
func (e *TextEncoder) EncodeRecord(rec changelog.Record) error {
	line := fmt.Sprintf("%s %s - %s",
		e.paint(e.styles.time, "["+rec.Time.Format(time.TimeOnly)+"]"),
		e.paint(e.styles.name, rec.FileName),
		e.paint(e.styles.types[rec.Type], rec.Type.String()),
	)

	if rec.Message != "" {
		line += ": " + rec.Message
	}

	_, err := fmt.Fprintln(e.w, line)
	if err != nil {
		return fmt.Errorf("writing record: %w", err)
	}

	return nil
}

// EncodeSnapshot prints "name v1.2.3 (12 bytes, utf-8)" followed by the
// content when ShowContent is set. The encoding is left out when unknown.
func (e *TextEncoder) EncodeSnapshot(snap registry.FileSnapshot) error {
	var b strings.Builder

	meta := fmt.Sprintf("%d bytes", snap.Size)
	if snap.Encoding != "" {
		meta += ", " + string(snap.Encoding)
	}

	fmt.Fprintf(&b, "%s %s %s\n",
		e.paint(e.styles.name, snap.DisplayName),
		e.paint(e.styles.version, "v"+snap.Version),
		e.paint(e.styles.muted, "("+meta+")"),
	)

	if e.opts.ShowContent && snap.Content != "" {
		b.WriteString(snap.Content)

		if !strings.HasSuffix(snap.Content, "\n") {
			b.WriteByte('\n')
		}
	}

	if _, err := io.WriteString(e.w, b.String()); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	return nil
}
