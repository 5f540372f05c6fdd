package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/desertthunder/pngx/internal/shared"
	"github.com/desertthunder/pngx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Watch indexes changes under the given directories until the command is interrupted.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	dirs := cmd.Args().Slice()
	if len(dirs) == 0 {
		return fmt.Errorf("%w: at least one directory is required", shared.ErrMissingArgument)
	}
	workers, rateLimit, err := r.concurrency(cmd)
	if err != nil {
		return err
	}

	repo, closeDB, err := r.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	opts := tasks.WatchOpts{
		Recursive: cmd.Bool("recursive") || r.config.Pipeline.Recursive,
		Formatted: cmd.Bool("formatted") || r.config.Pipeline.Formatted,
		Workers:   workers,
		Debounce:  cmd.Duration("debounce"),
	}

	logger := shared.WithLogger(r.logger, "component", "watcher")
	watcher := tasks.NewWatcher(r.newProcessor(rateLimit), repositories.NewIndexStore(repo), logger)
	r.writeStatus("%s\n", r.palette.Help(fmt.Sprintf("Watching %s, press Ctrl+C to stop", strings.Join(dirs, ", "))))

	progress, stop := r.trackProgress(true)
	result, err := watcher.Watch(ctx, progress, dirs, opts)
	stop()
	if err != nil {
		return err
	}

	r.writeStatus("%s", r.palette.WatchSummary(result))
	return nil
}
