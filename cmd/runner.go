package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pngx/internal/formatter"
	"github.com/desertthunder/pngx/internal/pipeline"
	"github.com/desertthunder/pngx/internal/repositories"
	"github.com/desertthunder/pngx/internal/shared"
	"github.com/desertthunder/pngx/internal/tasks"
	"github.com/desertthunder/pngx/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Command results are written to output. Progress, summaries and other
// status lines go to errOutput so results can be piped.
type Runner struct {
	config     *shared.Config
	configPath string
	fixed      bool
	logger     *log.Logger
	output     io.Writer
	errOutput  io.Writer
	palette    *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config // Used as is; the --config flag is ignored when set
	ConfigPath string         // Overrides the --config flag
	Logger     *log.Logger
	Output     io.Writer
	ErrOutput  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	fixed := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		fixed:      fixed,
		logger:     opts.Logger,
		output:     opts.Output,
		errOutput:  opts.ErrOutput,
		palette:    ui.ForWriter(opts.ErrOutput),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, scanCommand, searchCommand, watchCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// action loads the configuration before running fn.
func (r *Runner) action(fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := r.loadConfig(cmd); err != nil {
			return err
		}
		return fn(ctx, cmd)
	}
}

// loadConfig reads the config file named by --config, keeping the defaults
// when it does not exist, and applies the log level.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	if !r.fixed {
		path := r.pathToConfig(cmd)
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return err
			}
			r.config = config
			r.logger.Debug("loaded config", "path", path)
		} else if errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("config file not found, using defaults", "path", path)
		} else {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	name := r.config.Log.Level
	if override := cmd.String("log-level"); override != "" {
		name = override
	}
	level, err := shared.ParseLevel(name)
	if err != nil {
		return err
	}
	shared.SetLogLevel(r.logger, level)
	return nil
}

func (r *Runner) pathToConfig(cmd *cli.Command) string {
	if r.configPath != "" {
		return r.configPath
	}
	return cmd.String("config")
}

// openRepository opens the configured database, migrating it when needed.
func (r *Runner) openRepository() (*repositories.ImageRepository, func(), error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
	}
	return repositories.NewImageRepository(db), closeDB, nil
}

func (r *Runner) newProcessor(rateLimit float64) *pipeline.Processor {
	return pipeline.NewProcessor(pipeline.Options{
		Extensions: r.config.Pipeline.Extensions,
		Buffer:     r.config.Pipeline.Buffer,
		RateLimit:  rateLimit,
		Logger:     r.logger,
	})
}

// trackProgress renders progress updates to errOutput until the returned stop function is called.
func (r *Runner) trackProgress(enabled bool) (chan<- tasks.ProgressUpdate, func()) {
	if !enabled {
		return nil, func() {}
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if line := r.palette.Progress(update); line != "" {
				r.writeStatus("%s", line)
			}
		}
	}()

	return progressCh, func() {
		close(progressCh)
		<-done
	}
}

// writeEntries renders entries to output, or to the file at path when one is given.
func (r *Runner) writeEntries(entries []formatter.Entry, f formatter.Format, path string) error {
	if path == "" {
		return formatter.Write(r.output, entries, f)
	}

	written, err := formatter.WriteExport(entries, f, path)
	if err != nil {
		return err
	}
	r.logger.Info("export written", "path", written, "entries", len(entries))
	r.writeStatus("%s\n", r.palette.OK(fmt.Sprintf("✓ Exported %d entries to %s", len(entries), written)))
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeStatus(format string, args ...any) {
	fmt.Fprintf(r.errOutput, format, args...)
}
