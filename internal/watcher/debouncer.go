package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer merges events that arrive within a window and emits them as one
// batch, one event per file name. Per-name merging follows the first
// operation seen in the window:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE cancels out
//   - DELETE then CREATE becomes MODIFY (the file was replaced)
//   - anything else keeps the latest operation
type Debouncer struct {
	window  time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
	pending map[string]*pending
	order   []string
	timer   *time.Timer
	out     chan []FileEvent
	stopped bool
}

type pending struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration, logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		window:  window,
		logger:  logger,
		pending: make(map[string]*pending),
		out:     make(chan []FileEvent, 4),
	}
}

// Add queues an event and restarts the window.
func (d *Debouncer) Add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if p, ok := d.pending[ev.Name]; ok {
		merged, keep := merge(p.firstOp, p.event, ev)
		if keep {
			p.event = merged
		} else {
			delete(d.pending, ev.Name)
		}
	} else {
		d.pending[ev.Name] = &pending{event: ev, firstOp: ev.Operation}
		d.order = append(d.order, ev.Name)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func merge(first Operation, prev, next FileEvent) (FileEvent, bool) {
	switch {
	case first == OpCreate && next.Operation == OpModify:
		return prev, true
	case first == OpCreate && next.Operation == OpDelete:
		return FileEvent{}, false
	case first == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, name := range d.order {
		if p, ok := d.pending[name]; ok {
			batch = append(batch, p.event)
		}
	}
	d.pending = make(map[string]*pending)
	d.order = d.order[:0]
	if len(batch) == 0 {
		return
	}

	select {
	case d.out <- batch:
	default:
		d.logger.Warn("watch_batch_dropped", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.out
}

// Stop discards pending events and closes the output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
