package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/engine"
	"github.com/desertthunder/pngx/internal/pipeline"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// WatchOpts controls a [Watcher.Watch] call.
type WatchOpts struct {
	Recursive bool          // Watch subdirectories, including ones created later
	Formatted bool          // Strip chunk-type prefixes from keys
	Workers   int           // Save concurrency (default: engine.DefaultWorkers())
	Debounce  time.Duration // Quiet period before a changed file is read (default: 250ms)
}

// WatchResult summarises a watch session.
type WatchResult struct {
	Updated int // Files re-indexed
	Removed int // Files forgotten after removal or rename
	Failed  int // Updates or removals that returned an error
}

// Watcher keeps the index in sync with directories as files change.
//
// Each settled change is handled as one engine task with its own
// correlation id: a created or written file is extracted and saved, a
// removed or renamed file is forgotten.
type Watcher struct {
	processor *pipeline.Processor
	store     ImageStore
	logger    *log.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a Watcher that saves through store.
func NewWatcher(processor *pipeline.Processor, store ImageStore, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		processor: processor,
		store:     store,
		logger:    logger,
		pending:   make(map[string]time.Time),
	}
}

// Watch blocks until ctx is done, indexing changes under dirs. On return
// the engine is shut down gracefully, so changes already queued are saved.
func (w *Watcher) Watch(ctx context.Context, progress chan<- ProgressUpdate, dirs []string, opts WatchOpts) (*WatchResult, error) {
	if w.store == nil {
		return nil, fmt.Errorf("watcher has no store to save to")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	watched := 0
	for _, dir := range dirs {
		n, err := w.add(fw, dir, opts.Recursive)
		if err != nil {
			w.logger.Warn("directory cannot be watched, skipping", "dir", dir, "error", err)
			continue
		}
		watched += n
	}
	if watched == 0 {
		return nil, fmt.Errorf("no directories to watch")
	}

	pool := engine.New(engine.Options{Workers: opts.Workers, Logger: w.logger})
	result := &WatchResult{}
	var (
		counts sync.Mutex
		step   int
	)
	record := func(path string, removed bool, err error) {
		counts.Lock()
		defer counts.Unlock()
		switch {
		case err != nil:
			result.Failed++
		case removed:
			result.Removed++
		default:
			result.Updated++
		}
		step++
		if err == nil {
			sendProgress(progress, watchEventUpdate(step, path, removed))
		}
	}

	w.logger.Info("watching for changes", "dirs", watched, "recursive", opts.Recursive)

	ticker := time.NewTicker(max(opts.Debounce/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush(pool, opts, record, time.Time{})
			if err := pool.Shutdown(false); err != nil {
				w.logger.Warn("changes failed while shutting down", "error", err)
			}
			return result, nil

		case event, ok := <-fw.Events:
			if !ok {
				return result, pool.Shutdown(false)
			}
			w.handle(fw, event, opts, pool, record)

		case err, ok := <-fw.Errors:
			if !ok {
				return result, pool.Shutdown(false)
			}
			w.logger.Warn("file watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(pool, opts, record, now.Add(-opts.Debounce))
		}
	}
}

// add watches dir, and its subdirectories when recursive. It returns the number of directories added.
func (w *Watcher) add(fw *fsnotify.Watcher, dir string, recursive bool) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}

	if !recursive {
		return 1, fw.Add(dir)
	}

	added := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "dir", path, "error", err)
			return nil
		}
		added++
		return nil
	})
	return added, err
}

// handle turns one filesystem event into pending work.
func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event, opts WatchOpts, pool *engine.Engine, record func(string, bool, error)) {
	if event.Has(fsnotify.Create) && opts.Recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, err := w.add(fw, event.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !w.processor.Matches(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.mu.Lock()
		w.pending[event.Name] = time.Now()
		w.mu.Unlock()

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.pending, event.Name)
		w.mu.Unlock()

		path := event.Name
		err := pool.SubmitWithID(engine.NewCorrelationID(), func(ctx context.Context) error {
			err := w.store.ForgetImage(path)
			record(path, true, err)
			return err
		})
		if err != nil {
			w.logger.Error("failed to queue removal", "path", path, "error", err)
		}
	}
}

// flush submits every pending change last seen before cutoff. A zero cutoff flushes everything.
func (w *Watcher) flush(pool *engine.Engine, opts WatchOpts, record func(string, bool, error), cutoff time.Time) {
	var ready []string

	w.mu.Lock()
	for path, seen := range w.pending {
		if cutoff.IsZero() || seen.Before(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		err := pool.SubmitWithID(engine.NewCorrelationID(), func(ctx context.Context) error {
			err := w.update(ctx, path, opts.Formatted)
			record(path, false, err)
			return err
		})
		if err != nil {
			w.logger.Error("failed to queue update", "path", path, "error", err)
		}
	}
}

// update extracts and saves a single changed file. A file that vanished before it settled is forgotten instead.
func (w *Watcher) update(ctx context.Context, path string, formatted bool) error {
	logger := engine.LoggerFrom(ctx, w.logger)

	md, err := w.processor.Extract(ctx, path, formatted)
	if errors.Is(err, fs.ErrNotExist) {
		return w.store.ForgetImage(path)
	}
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", path, err)
	}

	if err := w.store.SaveImage(path, md); err != nil {
		return err
	}
	logger.Debug("re-indexed file", "path", path, "keys", len(md))
	return nil
}
