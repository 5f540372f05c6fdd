// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file if missing, then initialize the database",
		Action: r.action(r.Setup),
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show the applied schema version, pending migrations and image count",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.action(r.SetupStatus),
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.action(r.SetupRollback),
			},
		},
	}
}

func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Extract PNG metadata from one or more directories",
		ArgsUsage: "<dir> [dir...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "Include subdirectories",
			},
			&cli.BoolFlag{
				Name:    "formatted",
				Aliases: []string{"f"},
				Usage:   "Strip chunk-type prefixes from metadata keys",
			},
			&cli.BoolFlag{
				Name:    "save",
				Aliases: []string{"s"},
				Usage:   "Save results to the index database",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (json, yaml, csv, txt)",
				Value: "txt",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write results to a file instead of stdout",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent saves (default from config)",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Maximum files read per second (default from config, 0 for unlimited)",
			},
			&cli.BoolFlag{
				Name:    "progress",
				Aliases: []string{"p"},
				Usage:   "Show per-file progress",
			},
		},
		Action: r.action(r.Scan),
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search indexed images by keyword",
		ArgsUsage: "<keyword> [keyword...]",
		Description: "Modes:\n" +
			"   1  one keyword in every searchable field\n" +
			"   2  one keyword in the fields given with --fields\n" +
			"   3  any of the keywords (split on spaces and commas)\n" +
			"   4  all of the keywords",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Search mode (1-4)",
				Value:   1,
			},
			&cli.StringSliceFlag{
				Name:  "fields",
				Usage: "Fields to search (file_name, file_path, description, metadata)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results, 0 for all",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format (json, yaml, csv, txt)",
				Value: "txt",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write results to a file instead of stdout",
			},
		},
		Action: r.action(r.Search),
	}
}

func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Keep the index in sync with directories until interrupted",
		ArgsUsage: "<dir> [dir...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "Include subdirectories, including ones created later",
			},
			&cli.BoolFlag{
				Name:    "formatted",
				Aliases: []string{"f"},
				Usage:   "Strip chunk-type prefixes from metadata keys",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent saves (default from config)",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Maximum files read per second (default from config, 0 for unlimited)",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Quiet period before a changed file is read",
				Value: 250 * time.Millisecond,
			},
		},
		Action: r.action(r.Watch),
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the index over a read-only HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default from config)",
			},
		},
		Action: r.action(r.Serve),
	}
}
