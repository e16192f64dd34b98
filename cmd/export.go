package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/callsync/internal/formatter"
)

// ExportEmployees writes persisted employees in the requested format.
func (r *Runner) ExportEmployees(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := r.recordStore(ctx)
	if err != nil {
		return err
	}
	employees, err := store.ListEmployees(ctx, map[string]any{"emp_number": cmd.String("emp-number")})
	if err != nil {
		return err
	}

	return r.export(cmd.String("output"), len(employees), func(w io.Writer) error {
		return formatter.WriteEmployees(w, format, employees)
	})
}

// ExportCallLogs writes persisted call logs in the requested format.
func (r *Runner) ExportCallLogs(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	store, err := r.recordStore(ctx)
	if err != nil {
		return err
	}
	logs, err := store.ListCallLogs(ctx, map[string]any{
		"emp_number": cmd.String("emp-number"),
		"call_type":  cmd.String("call-type"),
		"limit":      int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	return r.export(cmd.String("output"), len(logs), func(w io.Writer) error {
		return formatter.WriteCallLogs(w, format, logs)
	})
}

// export runs write against the output file, or the runner's output when path is empty.
func (r *Runner) export(path string, count int, write func(io.Writer) error) error {
	if path == "" {
		return write(r.output)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}

	r.logger.Info("export written", "path", path, "rows", count)
	return r.writePlain("✓ Exported %d rows to %s\n", count, path)
}
