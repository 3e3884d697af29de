package watch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies a change notification.
type Kind int

// Notification kinds.
const (
	Modified Kind = iota
	Created
	Renamed
)

func (k Kind) String() string {
	switch k {
	case Modified:
		return "modified"
	case Created:
		return "created"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a normalized change notification for the tracked file.
type Event struct {
	Kind Kind
	// Path is the tracked file's path (for Renamed: the new name).
	Path string
	// OldPath is the previous name for Renamed events, empty otherwise.
	OldPath string
	Time    time.Time
}

// Handler receives events on the watcher's goroutine. It must not block
// for long and must not mutate foreground state directly.
type Handler func(Event)

// pendingRename remembers the last name that was moved away inside the
// watched directory, so that the Create for the new name can be paired
// with it.
type pendingRename struct {
	path string
	at   time.Time
}

// classify maps a raw fsnotify event to a notification for target. The
// second return value is false for events that must be ignored.
func classify(ev fsnotify.Event, target string, pending *pendingRename, window time.Duration, now time.Time) (Event, bool) {
	name := filepath.Clean(ev.Name)

	if ev.Has(fsnotify.Rename) {
		// The old name of a rename. Only remembered; renames are matched
		// on the new name.
		pending.path = name
		pending.at = now

		return Event{}, false
	}

	// Only the event right after a Rename can be its second half, whatever
	// name it carries.
	prev := *pending
	*pending = pendingRename{}

	if name != target {
		return Event{}, false
	}

	switch {
	case ev.Has(fsnotify.Create):
		if prev.path != "" && prev.path != name && now.Sub(prev.at) <= window {
			return Event{Kind: Renamed, Path: name, OldPath: prev.path, Time: now}, true
		}

		return Event{Kind: Created, Path: name, Time: now}, true

	case ev.Has(fsnotify.Write):
		return Event{Kind: Modified, Path: name, Time: now}, true
	}

	// Remove and Chmod are not part of the contract.
	return Event{}, false
}
