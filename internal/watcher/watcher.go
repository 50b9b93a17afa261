package watcher

import (
	"time"
)

// Operation is a file system operation type.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one file in the watched directory.
type FileEvent struct {
	// Name is the file's base name.
	Name      string
	Operation Operation
	Timestamp time.Time
}

// Invalidator drops cached store state when the files on disk differ from
// what was last loaded or written. It reports whether it did.
type Invalidator interface {
	InvalidateIfChanged() bool
}

// Options configures a RestoreWatcher.
type Options struct {
	// Debounce coalesces bursts of events, e.g. the metadata and index
	// writes of a single flush. Default: 500ms.
	Debounce time.Duration

	// PollInterval is used when fsnotify is unavailable. Default: 2s.
	PollInterval time.Duration

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:     500 * time.Millisecond,
		PollInterval: 2 * time.Second,
	}
}

// WithDefaults fills zero values from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o
}
