package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/png"
)

// Item is one successful extraction written to the result channel.
type Item struct {
	Path     string
	Metadata png.Metadata
}

// ExtractFunc reads the metadata of a single file.
type ExtractFunc func(path string, formatted bool) (png.Metadata, error)

// produce extracts each path in order and writes the successes to out.
//
// A failed extraction is logged, counted in failed, and skipped. The loop
// stops as soon as ctx is done. out is always closed on return, including
// when the loop panics, so the consumer never waits forever.
func (p *Processor) produce(
	ctx context.Context,
	logger *log.Logger,
	paths []string,
	formatted bool,
	out chan<- Item,
	failed *atomic.Int64,
) {
	defer close(out)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("producer stopped unexpectedly", "panic", r)
		}
	}()

	for _, path := range paths {
		if ctx.Err() != nil {
			logger.Debug("producer cancelled", "remaining", path)
			return
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}

		md, err := p.extractOne(path, formatted)
		if err != nil {
			failed.Add(1)
			logger.Error("failed to extract metadata", "path", path, "error", err)
			continue
		}

		select {
		case out <- Item{Path: path, Metadata: md}:
		case <-ctx.Done():
			return
		}
	}
}

// extractOne calls the extractor, converting a panic into a per-item error.
func (p *Processor) extractOne(path string, formatted bool) (md png.Metadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return p.extract(path, formatted)
}

// Extract reads a single file outside of a run, honouring the rate limit.
// Watch-driven indexing uses it for files that change after a scan.
func (p *Processor) Extract(ctx context.Context, path string, formatted bool) (png.Metadata, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.extractOne(path, formatted)
}

// Matches reports whether path has one of the processor's extensions.
func (p *Processor) Matches(path string) bool {
	return matchExt(filepath.Base(path), p.exts)
}
