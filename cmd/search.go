package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/pngx/internal/formatter"
	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/urfave/cli/v3"
)

// Search queries the index and prints matching images in the chosen format.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	query := repositories.SearchQuery{
		Mode:     repositories.SearchMode(cmd.Int("mode")),
		Keywords: cmd.Args().Slice(),
		Fields:   cmd.StringSlice("fields"),
		Limit:    int(cmd.Int("limit")),
	}

	repo, closeDB, err := r.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	r.logger.Debug("searching index", "mode", query.Mode, "keywords", query.Keywords, "fields", query.Fields)
	records, err := repo.Search(ctx, query)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		r.writeStatus("%s\n", r.palette.Warn("No images matched"))
		return nil
	}

	if err := r.writeEntries(formatter.FromRecords(records), format, cmd.String("output")); err != nil {
		return err
	}
	r.writeStatus("%s\n", r.palette.Help(fmt.Sprintf("%d image%s matched (%s)", len(records), plural(len(records)), query.Mode)))
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
