package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/tasks"
	"github.com/desertthunder/callsync/internal/ui"
)

// FetchEmployees fetches employees for --company, or for every active settings entry when it is omitted.
func (r *Runner) FetchEmployees(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.tasksEngine(ctx)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if !asJSON {
				r.writePlain("%s\n", ui.RenderProgress(update))
			}
		}
	}()

	outcome := engine.FetchEmployees(ctx, cmd.String("company"), progress)
	close(progress)
	<-done

	return r.writeOutcome("fetch employees", outcome, asJSON)
}

// FetchCallLogs fetches call history for the requested range.
func (r *Runner) FetchCallLogs(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.tasksEngine(ctx)
	if err != nil {
		return err
	}

	req, err := r.fetchRequest(cmd)
	if err != nil {
		return err
	}
	return r.writeOutcome("fetch call logs", engine.FetchCallLogs(ctx, req), cmd.Bool("json"))
}

// FetchReport fetches the report named by the kind argument. The summary report is printed as returned.
func (r *Runner) FetchReport(ctx context.Context, cmd *cli.Command) error {
	endpoint, err := services.ParseEndpoint(cmd.StringArg("kind"))
	if err != nil {
		return err
	}

	engine, err := r.tasksEngine(ctx)
	if err != nil {
		return err
	}

	req, err := r.fetchRequest(cmd)
	if err != nil {
		return err
	}

	if endpoint == services.EndpointSummary {
		body, outcome := engine.Summary(ctx, req)
		if !outcome.OK() {
			return r.writeOutcome("fetch summary", outcome, cmd.Bool("json"))
		}
		return r.writePlain("%s\n", body)
	}

	label := "fetch " + endpoint.String()
	return r.writeOutcome(label, engine.FetchReport(ctx, endpoint, req), cmd.Bool("json"))
}

// fetchRequest builds a [tasks.FetchRequest] from --company and either --lookback or --start/--end.
func (r *Runner) fetchRequest(cmd *cli.Command) (tasks.FetchRequest, error) {
	req := tasks.FetchRequest{
		Company:   cmd.String("company"),
		StartDate: cmd.String("start"),
		EndDate:   cmd.String("end"),
	}

	if lookback := cmd.Duration("lookback"); lookback > 0 {
		if req.StartDate != "" || req.EndDate != "" {
			return req, fmt.Errorf("%w: --lookback cannot be combined with --start/--end", shared.ErrInvalidFlag)
		}
		loc, err := r.config.Upstream.Location()
		if err != nil {
			return req, err
		}
		req.StartDate, req.EndDate = shared.WindowEndingAt(time.Now(), lookback).Format(loc)
	}
	return req, nil
}

// writeOutcome prints o and turns a failed outcome into the command's error.
func (r *Runner) writeOutcome(label string, o tasks.Outcome, asJSON bool) error {
	var err error
	if asJSON {
		err = r.writeJSON(o, true)
	} else {
		err = r.writePlain("%s", ui.RenderOutcome(label, o))
	}
	if err != nil {
		return err
	}

	if !o.OK() {
		if cause := o.Err(); cause != nil {
			return fmt.Errorf("%s: %w", label, cause)
		}
		return fmt.Errorf("%s: %s", label, o.Message)
	}
	return nil
}
