package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pngx/internal/formatter"
	"github.com/desertthunder/pngx/internal/png"
	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/desertthunder/pngx/internal/shared"
	"github.com/desertthunder/pngx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Scan extracts metadata from every PNG in the given directories, in
// order, and prints or exports the results. With --save each result is
// also written to the index.
//
// An interrupted scan still reports what it read before returning the
// cancellation error.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	dirs := cmd.Args().Slice()
	if len(dirs) == 0 {
		return fmt.Errorf("%w: at least one directory is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	workers, rateLimit, err := r.concurrency(cmd)
	if err != nil {
		return err
	}

	var store tasks.ImageStore
	save := cmd.Bool("save")
	if save {
		repo, closeDB, err := r.openRepository()
		if err != nil {
			return err
		}
		defer closeDB()
		store = repositories.NewIndexStore(repo)
	}

	var entries []formatter.Entry
	opts := tasks.IndexOpts{
		Recursive: cmd.Bool("recursive") || r.config.Pipeline.Recursive,
		Formatted: cmd.Bool("formatted") || r.config.Pipeline.Formatted,
		Save:      save,
		Workers:   workers,
		OnItem: func(path string, md png.Metadata) {
			entries = append(entries, formatter.FromMetadata(path, md))
		},
	}

	indexer := tasks.NewIndexer(r.newProcessor(rateLimit), store, r.logger)
	progress, stop := r.trackProgress(cmd.Bool("progress"))
	result, runErr := indexer.Index(ctx, progress, dirs, opts)
	stop()
	if result == nil {
		return runErr
	}

	if err := r.writeEntries(entries, format, cmd.String("output")); err != nil {
		return err
	}
	r.writeStatus("%s", r.palette.IndexSummary(result))
	return runErr
}

// concurrency resolves --workers and --rate against the config.
func (r *Runner) concurrency(cmd *cli.Command) (int, float64, error) {
	workers := int(cmd.Int("workers"))
	if workers == 0 {
		workers = r.config.Engine.Workers
	}
	if workers < 0 {
		return 0, 0, fmt.Errorf("%w: --workers must not be negative", shared.ErrInvalidFlag)
	}

	rateLimit := cmd.Float("rate")
	if rateLimit == 0 {
		rateLimit = r.config.Pipeline.RateLimit
	}
	if rateLimit < 0 {
		return 0, 0, fmt.Errorf("%w: --rate must not be negative", shared.ErrInvalidFlag)
	}
	return workers, rateLimit, nil
}
