package main

import (
	"context"
	"fmt"
	"net"

	"github.com/desertthunder/pngx/internal/server"
	"github.com/desertthunder/pngx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve exposes the index over HTTP until the command is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr
	}

	repo, closeDB, err := r.openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	r.writeStatus("%s\n", r.palette.Help(fmt.Sprintf("Serving the image API on http://%s, press Ctrl+C to stop", l.Addr())))
	logger := shared.WithLogger(r.logger, "component", "api")
	return server.Serve(ctx, l, server.NewAPI(repo, logger), logger)
}
