// package tasks implements the long-running indexing operations.
//
// The core abstraction is the Indexer, which streams extracted metadata out of a
// pipeline run and saves it through a bounded worker pool.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/engine"
	"github.com/desertthunder/pngx/internal/pipeline"
	"github.com/desertthunder/pngx/internal/png"
)

// ImageStore persists extracted metadata. repositories.IndexStore is the SQLite implementation.
type ImageStore interface {
	SaveImage(path string, md png.Metadata) error
	ForgetImage(path string) error
}

// IndexOpts controls a single [Indexer.Index] call.
type IndexOpts struct {
	Recursive bool // Walk subdirectories
	Formatted bool // Strip chunk-type prefixes from keys
	Save      bool // Persist results through the store
	Workers   int  // Save concurrency (default: engine.DefaultWorkers())

	// OnItem, if set, is called from the consuming goroutine for every extracted file.
	OnItem func(path string, md png.Metadata)
}

// IndexResult summarises an index run.
type IndexResult struct {
	CorrelationID string        // Id tagging every log line and save of the run
	Directories   int           // Directories visited
	Missing       int           // Directories skipped because they could not be read
	Discovered    int           // Matching files found
	Extracted     int           // Files whose metadata was read
	ExtractFailed int           // Files whose metadata could not be read
	Indexed       int           // Records saved
	SaveFailed    int           // Saves that returned an error
	Abandoned     int           // Saves dropped by a forced shutdown
	Cancelled     bool          // The run stopped before reaching the end
	Duration      time.Duration // Wall time of the run
}

// Indexer drives a pipeline run and saves each result on a bounded worker pool.
type Indexer struct {
	processor *pipeline.Processor
	store     ImageStore
	logger    *log.Logger
}

// NewIndexer creates an Indexer. store may be nil when results are only streamed.
func NewIndexer(processor *pipeline.Processor, store ImageStore, logger *log.Logger) *Indexer {
	if logger == nil {
		logger = log.Default()
	}
	return &Indexer{processor: processor, store: store, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Index extracts metadata from every matching file under dirs and, when
// opts.Save is set, saves each result concurrently.
//
// The run is tagged with the correlation id found in ctx, or a new one. Save
// actions carry the same id. Failed extractions and failed saves are logged
// and counted without stopping the run. When ctx is cancelled the stream
// stops, queued saves are abandoned, saves already running finish, and the
// partial result is returned together with the context's error.
func (i *Indexer) Index(ctx context.Context, progress chan<- ProgressUpdate, dirs []string, opts IndexOpts) (*IndexResult, error) {
	if opts.Save && i.store == nil {
		return nil, fmt.Errorf("indexer has no store to save to")
	}

	cid, ok := engine.CorrelationID(ctx)
	if !ok {
		cid = engine.NewCorrelationID()
		ctx = engine.WithCorrelationID(ctx, cid)
	}
	logger := engine.LoggerFrom(ctx, i.logger)
	started := time.Now()

	var pool *engine.Engine
	if opts.Save {
		pool = engine.New(engine.Options{Workers: opts.Workers, Logger: i.logger})
	}

	result := &IndexResult{CorrelationID: cid}
	logger.Info("index started", "dirs", len(dirs), "recursive", opts.Recursive, "save", opts.Save)
	sendProgress(progress, scanStartedUpdate(dirs))

	rejected := 0
	run := i.processor.ProcessAll(ctx, dirs, opts.Recursive, opts.Formatted)
	for path, md := range run.All() {
		result.Extracted++
		sendProgress(progress, extractedUpdate(result.Extracted, path))

		if opts.OnItem != nil {
			opts.OnItem(path, md)
		}

		if pool != nil {
			err := pool.SubmitWithID(cid, func(context.Context) error {
				return i.store.SaveImage(path, md)
			})
			if err != nil {
				rejected++
				logger.Error("failed to queue save", "path", path, "error", err)
			}
		}
	}

	runErr := run.Err()
	stats := run.Stats()
	result.Directories = stats.Directories
	result.Missing = stats.Missing
	result.Discovered = stats.Discovered
	result.ExtractFailed = stats.Failed
	result.Cancelled = runErr != nil

	if pool != nil {
		queued := pool.Stats()
		sendProgress(progress, savingUpdate(int(queued.Submitted-queued.Completed-queued.Failed)))

		if err := pool.Shutdown(result.Cancelled); err != nil {
			logger.Warn("saves failed while shutting down", "error", err)
		}

		ps := pool.Stats()
		result.Indexed = int(ps.Completed)
		result.SaveFailed = int(ps.Failed) + rejected
		result.Abandoned = int(ps.Abandoned)
	}

	result.Duration = time.Since(started)
	sendProgress(progress, finishedUpdate(result))
	logger.Info("index finished",
		"discovered", result.Discovered,
		"extracted", result.Extracted,
		"indexed", result.Indexed,
		"failed", result.ExtractFailed+result.SaveFailed,
		"cancelled", result.Cancelled,
		"took", result.Duration.Round(time.Millisecond),
	)

	if runErr != nil {
		return result, fmt.Errorf("index run stopped: %w", runErr)
	}
	return result, nil
}
