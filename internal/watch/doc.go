// Package watch observes the directory of the currently tracked text file
// and turns raw fsnotify events into modified, created and renamed
// notifications for that one file. At most one watch is armed at a time.
//
// PathQueue serializes the settle-then-read work that follows an event so
// overlapping events for the same path cannot race each other.
package watch
