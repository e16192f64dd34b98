// package tasks implements the fetch and ingest operations of callsync.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/callsync/internal/ingest"
	"github.com/desertthunder/callsync/internal/metrics"
	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/repositories"
	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/validation"
)

// FetchRequest carries the parameters of a date-ranged fetch.
type FetchRequest struct {
	Company   string `form:"company" validate:"required"`
	StartDate string `form:"start_date" validate:"required,datetime=2006-01-02 15:04:05"`
	EndDate   string `form:"end_date" validate:"required,datetime=2006-01-02 15:04:05"`
}

// ServiceFactory builds the upstream client for a settings entry.
type ServiceFactory func(entry *models.SettingsEntry) (services.Service, error)

// Options configures an [Engine].
type Options struct {
	Filter   services.ReportFilter
	Location *time.Location
	Workers  int
	Logger   *log.Logger
}

// Engine runs fetch and ingest operations against the configured companies.
type Engine struct {
	settings *repositories.SettingsRepository
	pipeline *ingest.Pipeline
	factory  ServiceFactory
	filter   services.ReportFilter
	loc      *time.Location
	workers  int
	logger   *log.Logger

	mu      sync.Mutex
	clients map[string]services.Service
}

// NewEngine creates an [Engine]. Clients built by factory are reused until
// their settings entry changes.
func NewEngine(settings *repositories.SettingsRepository, pipeline *ingest.Pipeline, factory ServiceFactory, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Engine{
		settings: settings,
		pipeline: pipeline,
		factory:  factory,
		filter:   opts.Filter,
		loc:      opts.Location,
		workers:  opts.Workers,
		logger:   opts.Logger,
		clients:  make(map[string]services.Service),
	}
}

// service returns the client for entry, building it on first use.
func (e *Engine) service(entry *models.SettingsEntry) (services.Service, error) {
	key := fmt.Sprintf("%s@%d", entry.ID(), entry.UpdatedAt().UnixNano())

	e.mu.Lock()
	defer e.mu.Unlock()

	if svc, ok := e.clients[key]; ok {
		return svc, nil
	}
	svc, err := e.factory(entry)
	if err != nil {
		return nil, err
	}
	e.clients[key] = svc
	return svc, nil
}

// resolve loads the active settings of company and returns its client.
func (e *Engine) resolve(company string) (services.Service, error) {
	entry, err := e.settings.GetActive(company)
	if err != nil {
		return nil, err
	}
	return e.service(entry)
}

// window validates req and converts its dates to a [shared.Window].
func (e *Engine) window(req FetchRequest) (shared.Window, error) {
	if err := validation.Struct(&req); err != nil {
		return shared.Window{}, err
	}
	return shared.ParseWindow(req.StartDate, req.EndDate, e.loc)
}

// FetchEmployees fetches and ingests the employee list of company.
//
// With an empty company every active settings entry is fetched; a failing entry is
// logged and skipped, and the outcome totals the entries that succeeded.
func (e *Engine) FetchEmployees(ctx context.Context, company string, progress chan<- ProgressUpdate) Outcome {
	if company == "" {
		return e.fetchAllEmployees(ctx, progress)
	}

	svc, err := e.resolve(company)
	if err != nil {
		return e.fail(services.EndpointEmployees, company, err)
	}
	return e.fetchEmployees(ctx, svc)
}

func (e *Engine) fetchEmployees(ctx context.Context, svc services.Service) Outcome {
	records, err := svc.Employees(ctx)
	if err != nil {
		return e.fail(services.EndpointEmployees, svc.Company(), err)
	}
	return e.ingestEmployees(ctx, svc, records)
}

func (e *Engine) ingestEmployees(ctx context.Context, svc services.Service, records []models.ExternalRecord) Outcome {
	result, err := e.pipeline.IngestEmployees(ctx, records, ingest.Scope{Company: svc.Company()})
	o := NestedOutcome(result)
	if err != nil {
		return e.failPartial(services.EndpointEmployees, svc.Company(), o, err)
	}
	e.succeed(services.EndpointEmployees)
	return o
}

// FetchCallLogs fetches call history for the request's date range and ingests it
// nested under the employees it belongs to.
func (e *Engine) FetchCallLogs(ctx context.Context, req FetchRequest) Outcome {
	w, err := e.window(req)
	if err != nil {
		return e.fail(services.EndpointCallLogs, req.Company, err)
	}
	svc, err := e.resolve(req.Company)
	if err != nil {
		return e.fail(services.EndpointCallLogs, req.Company, err)
	}
	return e.fetchCallLogs(ctx, svc, w)
}

func (e *Engine) fetchCallLogs(ctx context.Context, svc services.Service, w shared.Window) Outcome {
	records, err := svc.Report(ctx, services.EndpointCallLogs, w, e.filter)
	if err != nil {
		return e.fail(services.EndpointCallLogs, svc.Company(), err)
	}

	result, err := e.pipeline.IngestCallHistory(ctx, records, ingest.Scope{Company: svc.Company(), Window: &w})
	o := NestedOutcome(result)
	if err != nil {
		return e.failPartial(services.EndpointCallLogs, svc.Company(), o, err)
	}
	e.succeed(services.EndpointCallLogs)
	return o
}

// FetchReport fetches and ingests the report at endpoint.
//
// employees and call-logs dispatch to [Engine.FetchEmployees] and [Engine.FetchCallLogs];
// summary is rejected since it is not persisted, see [Engine.Summary].
func (e *Engine) FetchReport(ctx context.Context, endpoint services.Endpoint, req FetchRequest) Outcome {
	switch endpoint {
	case services.EndpointEmployees:
		if req.Company == "" {
			return e.fail(endpoint, "", fmt.Errorf("%w: company is required", shared.ErrMissingArgument))
		}
		return e.FetchEmployees(ctx, req.Company, nil)
	case services.EndpointCallLogs:
		return e.FetchCallLogs(ctx, req)
	case services.EndpointSummary:
		return e.fail(endpoint, req.Company, fmt.Errorf("%w: summary is not persisted", shared.ErrInvalidArgument))
	}

	if endpoint.Kind() == "" {
		return e.fail(endpoint, req.Company, fmt.Errorf("%w: unknown report %q", shared.ErrInvalidArgument, endpoint))
	}

	w, err := e.window(req)
	if err != nil {
		return e.fail(endpoint, req.Company, err)
	}
	svc, err := e.resolve(req.Company)
	if err != nil {
		return e.fail(endpoint, req.Company, err)
	}
	return e.fetchReport(ctx, svc, endpoint, w)
}

func (e *Engine) fetchReport(ctx context.Context, svc services.Service, endpoint services.Endpoint, w shared.Window) Outcome {
	records, err := svc.Report(ctx, endpoint, w, e.filter)
	if err != nil {
		return e.fail(endpoint, svc.Company(), err)
	}

	result, err := e.pipeline.Ingest(ctx, records, endpoint.Kind(), ingest.Scope{Company: svc.Company(), Window: &w})
	o := ResultOutcome(result)
	if err != nil {
		return e.failPartial(endpoint, svc.Company(), o, err)
	}
	e.succeed(endpoint)
	return o
}

// Summary requests the summary report for the request's date range and returns the
// upstream body unchanged.
func (e *Engine) Summary(ctx context.Context, req FetchRequest) ([]byte, Outcome) {
	if _, err := e.window(req); err != nil {
		return nil, e.fail(services.EndpointSummary, req.Company, err)
	}
	svc, err := e.resolve(req.Company)
	if err != nil {
		return nil, e.fail(services.EndpointSummary, req.Company, err)
	}

	body, err := svc.Summary(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return nil, e.fail(services.EndpointSummary, req.Company, err)
	}
	e.succeed(services.EndpointSummary)
	return body, Outcome{Status: StatusSuccess}
}

// IngestPayload ingests a webhook body of employees with nested call logs.
func (e *Engine) IngestPayload(ctx context.Context, raw []byte, company string) Outcome {
	records, err := ingest.Normalize(raw)
	if err != nil {
		return e.fail("webhook", company, err)
	}

	result, err := e.pipeline.IngestEmployees(ctx, records, ingest.Scope{Company: company})
	o := NestedOutcome(result)
	if err != nil {
		return e.failPartial("webhook", company, o, err)
	}
	return o
}

// SweepResult is the outcome of one endpoint of one company during a [Engine.Sweep].
type SweepResult struct {
	Company  string
	Endpoint services.Endpoint
	Outcome  Outcome
}

// Sweep fetches employees, call logs and every aggregate report for window from
// each active settings entry. Endpoints run sequentially; failures are reported and
// the sweep continues.
func (e *Engine) Sweep(ctx context.Context, w shared.Window) ([]SweepResult, error) {
	entries, err := e.settings.List(map[string]any{"active": true})
	if err != nil {
		return nil, err
	}

	var results []SweepResult
	for _, entry := range entries {
		svc, err := e.service(entry)
		if err != nil {
			o := e.fail(services.EndpointEmployees, entry.Company(), err)
			results = append(results, SweepResult{Company: entry.Company(), Endpoint: services.EndpointEmployees, Outcome: o})
			continue
		}

		for _, endpoint := range append([]services.Endpoint{services.EndpointEmployees}, services.ReportEndpoints()...) {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			var o Outcome
			switch endpoint {
			case services.EndpointEmployees:
				o = e.fetchEmployees(ctx, svc)
			case services.EndpointCallLogs:
				o = e.fetchCallLogs(ctx, svc, w)
			default:
				o = e.fetchReport(ctx, svc, endpoint, w)
			}
			results = append(results, SweepResult{Company: entry.Company(), Endpoint: endpoint, Outcome: o})
		}
	}
	return results, nil
}

func (e *Engine) succeed(endpoint services.Endpoint) {
	metrics.RecordFetch(endpoint.String(), StatusSuccess)
}

func (e *Engine) fail(endpoint services.Endpoint, company string, err error) Outcome {
	o := NewOutcome(err)
	e.report(endpoint, company, o)
	return o
}

func (e *Engine) failPartial(endpoint services.Endpoint, company string, counts Outcome, err error) Outcome {
	o := partial(counts, err)
	e.report(endpoint, company, o)
	return o
}

func (e *Engine) report(endpoint services.Endpoint, company string, o Outcome) {
	metrics.RecordFetch(endpoint.String(), string(o.Kind))
	logger := shared.WithLogger(e.logger, "endpoint", endpoint, "company", company)
	if o.Kind == KindInputValidation {
		logger.Warn("request rejected", "error", o.Err())
		return
	}
	logger.Error("operation failed", "kind", o.Kind, "error", o.Err())
}

// Summarize renders sweep results as one line per failing endpoint.
func Summarize(results []SweepResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.Outcome.OK() {
			continue
		}
		fmt.Fprintf(&b, "%s %s: %s\n", r.Company, r.Endpoint, r.Outcome.Message)
	}
	return b.String()
}
