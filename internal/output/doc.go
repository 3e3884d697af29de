// Package output renders change records and file snapshots for the
// terminal and for the end-of-session summary.
//
// The package is organized around three concerns:
//
//   - Encoders (text.go, serializer.go): one line or document per event,
//     as lipgloss-styled text, JSON lines or YAML documents.
//
//   - Registry (registry.go): maps format names to encoder factories so the
//     CLI can resolve --output.
//
//   - Writers (writer.go): pluggable destinations via the [Writer]
//     interface, with [StdoutWriter] and [FileWriter] implementations.
package output
