// Package watcher monitors a notes directory and reports note changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sgx-labs/noter/internal/notes"
)

// DefaultDebounce is how long the watcher waits for a burst of events to
// settle before reporting.
const DefaultDebounce = 500 * time.Millisecond

// Kind classifies a reported change.
type Kind int

const (
	Created Kind = iota
	Written
	Removed
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Written:
		return "written"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Event is one coalesced change to a note file.
type Event struct {
	Kind Kind
	Path string
	ID   notes.FileID
}

// Watcher reports changes to note files in a single directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	log      *zap.Logger
	fsw      *fsnotify.Watcher
}

// New starts watching dir. The directory must exist. A zero debounce uses
// DefaultDebounce and a nil log discards output.
func New(dir string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, debounce: debounce, log: log, fsw: fsw}, nil
}

// Run delivers batches of events to report until ctx is done. Each batch
// holds at most one event per file, sorted by note order. report is never
// called concurrently with itself.
func (w *Watcher) Run(ctx context.Context, report func([]Event)) error {
	defer w.fsw.Close()

	var (
		mu      sync.Mutex
		pending = make(map[string]Event)
		timer   *time.Timer
		// flushMu serializes report calls from overlapping timers.
		flushMu sync.Mutex
	)

	flush := func() {
		flushMu.Lock()
		defer flushMu.Unlock()

		mu.Lock()
		batch := make([]Event, 0, len(pending))
		for _, ev := range pending {
			batch = append(batch, ev)
		}
		pending = make(map[string]Event)
		mu.Unlock()

		if len(batch) == 0 {
			return
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].ID.Less(batch[j].ID) })
		report(batch)
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			ev, ok := w.classify(event)
			if !ok {
				continue
			}

			mu.Lock()
			if prev, seen := pending[ev.Path]; seen && prev.Kind == Created && ev.Kind == Written {
				ev.Kind = Created
			}
			pending[ev.Path] = ev
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, flush)
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// classify maps an fsnotify event to a note event. Files whose names are
// not strict note names are ignored.
func (w *Watcher) classify(event fsnotify.Event) (Event, bool) {
	name := filepath.Base(event.Name)
	id, ok := notes.Decode(name)
	if !ok {
		w.log.Debug("ignoring non-note file", zap.String("name", name))
		return Event{}, false
	}

	ev := Event{Path: event.Name, ID: id}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		ev.Kind = Removed
	case event.Has(fsnotify.Create):
		ev.Kind = Created
	case event.Has(fsnotify.Write):
		ev.Kind = Written
	default:
		return Event{}, false
	}
	return ev, true
}
