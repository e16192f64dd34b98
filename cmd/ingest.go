package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/callsync/internal/shared"
)

// IngestFile ingests a webhook payload read from a file, or from stdin when the path is "-".
func (r *Runner) IngestFile(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	engine, err := r.tasksEngine(ctx)
	if err != nil {
		return err
	}

	r.logger.Debug("ingesting payload", "path", path, "bytes", len(data))
	return r.writeOutcome("ingest "+path, engine.IngestPayload(ctx, data, cmd.String("company")), cmd.Bool("json"))
}
