package pipeline

import (
	"context"
	"fmt"
	"iter"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/engine"
	"github.com/desertthunder/pngx/internal/png"
	"golang.org/x/time/rate"
)

// ErrAlreadyConsumed is reported by [Run.Err] when [Run.All] is called more than once.
var ErrAlreadyConsumed = fmt.Errorf("run already consumed")

const defaultBuffer = 16

// Options configures a [Processor].
type Options struct {
	Extract    ExtractFunc // Per-file extractor (default: png.Extractor.ReadFile)
	Extensions []string    // File extensions to match (default: .png)
	Buffer     int         // Result channel capacity per directory (default: 16)
	RateLimit  float64     // Extractions per second, 0 for unlimited
	Logger     *log.Logger
}

// Processor turns directories of files into ordered streams of extracted metadata.
type Processor struct {
	extract ExtractFunc
	exts    []string
	buffer  int
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewProcessor creates a [Processor], filling unset options with defaults.
func NewProcessor(opts Options) *Processor {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Extract == nil {
		opts.Extract = png.NewExtractor(opts.Logger).ReadFile
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}

	p := &Processor{
		extract: opts.Extract,
		exts:    opts.Extensions,
		buffer:  opts.Buffer,
		logger:  opts.Logger,
	}
	if opts.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return p
}

// RunStats counts what a [Run] has done so far.
type RunStats struct {
	Directories int // Directories visited
	Missing     int // Directories that did not exist or could not be listed
	Discovered  int // Matching files found
	Failed      int // Files whose extraction failed
	Emitted     int // Items yielded to the caller
}

// Run is a single pass over an ordered list of directories.
type Run struct {
	p         *Processor
	ctx       context.Context
	logger    *log.Logger
	dirs      []string
	recursive bool
	formatted bool

	consumed atomic.Bool
	mu       sync.Mutex
	err      error

	directories atomic.Int64
	missing     atomic.Int64
	discovered  atomic.Int64
	failed      atomic.Int64
	emitted     atomic.Int64
}

// ProcessAll prepares a run over dirs. Nothing is read until [Run.All] is iterated.
//
// ctx is the run's cancellation token. A correlation id carried by ctx
// (see [engine.WithCorrelationID]) tags every log line of the run.
func (p *Processor) ProcessAll(ctx context.Context, dirs []string, recursive, formatted bool) *Run {
	return &Run{
		p:         p,
		ctx:       ctx,
		logger:    engine.LoggerFrom(ctx, p.logger),
		dirs:      append([]string(nil), dirs...),
		recursive: recursive,
		formatted: formatted,
	}
}

// ProcessDir prepares a run over a single directory.
func (p *Processor) ProcessDir(ctx context.Context, dir string, recursive, formatted bool) *Run {
	return p.ProcessAll(ctx, []string{dir}, recursive, formatted)
}

// All returns the run's results as one sequence of (path, metadata) pairs.
//
// Directories are processed strictly in order and never interleave;
// within a directory, items follow discovery order. Files whose
// extraction fails are left out. A missing directory contributes nothing.
//
// The sequence ends early, without panicking or yielding an error, when
// the run's context is cancelled; [Run.Err] then reports the cause.
// Breaking out of the loop stops the current producer before All returns.
// All may be ranged over once.
func (r *Run) All() iter.Seq2[string, png.Metadata] {
	return func(yield func(string, png.Metadata) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			r.setErr(ErrAlreadyConsumed)
			return
		}

		for _, dir := range r.dirs {
			if err := r.ctx.Err(); err != nil {
				r.setErr(err)
				return
			}
			if !r.processDir(dir, yield) {
				return
			}
		}
		r.logger.Debug("run finished", "directories", len(r.dirs), "emitted", r.emitted.Load())
	}
}

// processDir drives one producer/consumer pair to completion. It returns
// false when the caller stopped or the run was cancelled.
func (r *Run) processDir(dir string, yield func(string, png.Metadata) bool) bool {
	r.directories.Add(1)
	logger := r.logger.With("dir", dir)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		r.missing.Add(1)
		logger.Warn("directory does not exist, skipping")
		return true
	}

	paths, err := Discover(dir, r.recursive, r.p.exts)
	if err != nil {
		r.missing.Add(1)
		logger.Warn("failed to list directory, skipping", "error", err)
		return true
	}
	r.discovered.Add(int64(len(paths)))
	logger.Debug("discovered files", "count", len(paths), "recursive", r.recursive)

	ctx, cancel := context.WithCancel(r.ctx)
	results := make(chan Item, r.p.buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.p.produce(ctx, logger, paths, r.formatted, results, &r.failed)
	}()
	defer func() {
		cancel()
		<-done
	}()

	for path, md := range stream(r.ctx, results) {
		r.emitted.Add(1)
		if !yield(path, md) {
			return false
		}
	}

	if err := r.ctx.Err(); err != nil {
		r.setErr(err)
		logger.Info("run cancelled", "error", err)
		return false
	}
	return true
}

// Err reports why the sequence ended early: the context's error after a
// cancellation, [ErrAlreadyConsumed] after a second [Run.All], or nil if
// the run finished or the caller simply stopped iterating.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// Stats returns the run counters.
func (r *Run) Stats() RunStats {
	return RunStats{
		Directories: int(r.directories.Load()),
		Missing:     int(r.missing.Load()),
		Discovered:  int(r.discovered.Load()),
		Failed:      int(r.failed.Load()),
		Emitted:     int(r.emitted.Load()),
	}
}
