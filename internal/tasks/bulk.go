package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
)

type employeeJob struct {
	step  int
	entry *models.SettingsEntry
}

type employeeFetch struct {
	step    int
	company string
	svc     services.Service
	records []models.ExternalRecord
	err     error
}

// fetchAllEmployees fetches the employee list of every active settings entry.
//
// Upstream requests run on a pool of workers. Ingestion happens on the calling
// goroutine, one company at a time, in settings order: a company that shares an
// emp_number with an earlier one never wins over it, however fast it answered.
func (e *Engine) fetchAllEmployees(ctx context.Context, progress chan<- ProgressUpdate) Outcome {
	entries, err := e.settings.List(map[string]any{"active": true})
	if err != nil {
		return e.fail(services.EndpointEmployees, "", err)
	}
	if len(entries) == 0 {
		return e.fail(services.EndpointEmployees, "", fmt.Errorf("%w: no active settings", shared.ErrSettingsNotFound))
	}

	total := len(entries)
	sendProgress(ctx, progress, resolvedSettingsUpdate(total))

	workers := min(e.workers, total)
	jobs := make(chan employeeJob, total)
	results := make(chan employeeFetch, total)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go e.employeeWorker(ctx, &wg, jobs, results, progress, total)
	}

	for i, entry := range entries {
		jobs <- employeeJob{step: i + 1, entry: entry}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Outcome{Status: StatusSuccess}
	failures := 0
	ingestNext := func(res employeeFetch) {
		if res.err != nil {
			failures++
			e.fail(services.EndpointEmployees, res.company, res.err)
			sendProgress(ctx, progress, failedUpdate(res.step, total, res.company, res.err))
			return
		}

		o := e.ingestEmployees(ctx, res.svc, res.records)
		if !o.OK() {
			failures++
			sendProgress(ctx, progress, failedUpdate(res.step, total, res.company, o.Err()))
			return
		}
		summary.add(o)
		sendProgress(ctx, progress, ingestedUpdate(res.step, total, res.company, o))
	}

	// Results arrive in completion order; hold them until every earlier step is ingested.
	pending := make(map[int]employeeFetch, total)
	next := 1
	for res := range results {
		pending[res.step] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			ingestNext(ready)
			next++
		}
	}

	if failures > 0 {
		summary.Message = fmt.Sprintf("%d of %d companies failed", failures, total)
		e.logger.Warn("employee fetch finished with failures", "failed", failures, "total", total)
	}
	sendProgress(ctx, progress, completeUpdate(total, summary))
	return summary
}

func (e *Engine) employeeWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan employeeJob,
	results chan<- employeeFetch,
	progress chan<- ProgressUpdate,
	total int,
) {
	defer wg.Done()

	for job := range jobs {
		res := employeeFetch{step: job.step, company: job.entry.Company()}
		if err := ctx.Err(); err != nil {
			res.err = fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
			results <- res
			continue
		}

		sendProgress(ctx, progress, fetchingUpdate(job.step, total, res.company))

		res.svc, res.err = e.service(job.entry)
		if res.err == nil {
			res.records, res.err = res.svc.Employees(ctx)
		}
		results <- res
	}
}
