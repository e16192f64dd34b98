package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/callsync/internal/metrics"
	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/repositories"
	"github.com/desertthunder/callsync/internal/shared"
)

// ChildField holds the call logs nested in an employee record.
const ChildField = "call_logs"

// Scope carries the context a record is ingested under.
//
// Company is required for company-scoped kinds; Window for kinds whose identity includes it.
type Scope struct {
	Company string
	Window  *shared.Window
}

// Result counts the outcome of one ingest call.
type Result struct {
	Kind    models.RecordKind `json:"kind"`
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Invalid int               `json:"invalid"`
}

// NestedResult counts an employee batch and the call logs nested in it.
type NestedResult struct {
	Employees Result `json:"employees"`
	CallLogs  Result `json:"call_logs"`
}

// Options configures a [Pipeline].
type Options struct {
	Logger     *log.Logger
	Location   *time.Location
	CommitMode string
}

// Pipeline ingests record batches into a [repositories.RecordStore].
type Pipeline struct {
	store      *repositories.RecordStore
	logger     *log.Logger
	loc        *time.Location
	commitMode string
}

// New creates a [Pipeline]. The commit mode defaults to [shared.CommitPerRecord] and the location to UTC.
func New(store *repositories.RecordStore, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CommitMode == "" {
		opts.CommitMode = shared.CommitPerRecord
	}

	return &Pipeline{
		store:      store,
		logger:     opts.Logger,
		loc:        opts.Location,
		commitMode: opts.CommitMode,
	}
}

type outcome int

const (
	created outcome = iota
	skipped
	invalid
)

func (r *Result) add(o outcome) {
	switch o {
	case created:
		r.Created++
	case skipped:
		r.Skipped++
	case invalid:
		r.Invalid++
	}
}

// Ingest creates every record of the batch that does not already exist, in input order.
//
// Records missing identity fields are counted invalid and skipped. A storage failure
// aborts the batch with an error wrapping [shared.ErrInternal]; in per-record commit mode
// the returned counts cover the records processed before the failure, in batch mode the
// whole batch is rolled back and the counts are zero.
func (p *Pipeline) Ingest(ctx context.Context, records []models.ExternalRecord, kind models.RecordKind, scope Scope) (Result, error) {
	result := Result{Kind: kind}
	if err := p.checkScope(kind, scope); err != nil {
		return result, err
	}

	logger := shared.WithLogger(p.logger, "kind", kind, "company", scope.Company)
	start := time.Now()

	err := p.run(ctx, func(q repositories.Querier) error {
		for i, rec := range records {
			_, o, err := p.ingestOne(ctx, q, logger, kind, rec, scope, nil)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			result.add(o)
		}
		return nil
	})

	return p.finish(logger, result, start, err)
}

// IngestEmployees ingests employees and the call logs nested under [ChildField].
//
// The parent is created if absent and its id, new or existing, is attached to every child.
// A parent without an emp_number is invalid and its children are counted invalid too.
func (p *Pipeline) IngestEmployees(ctx context.Context, records []models.ExternalRecord, scope Scope) (NestedResult, error) {
	result := NestedResult{
		Employees: Result{Kind: models.KindEmployee},
		CallLogs:  Result{Kind: models.KindCallLog},
	}

	logger := shared.WithLogger(p.logger, "kind", models.KindEmployee, "company", scope.Company)
	start := time.Now()

	err := p.run(ctx, func(q repositories.Querier) error {
		for i, rec := range records {
			children, ok := rec[ChildField].([]any)
			if !ok && rec[ChildField] != nil {
				logger.Warn("ignoring call_logs that is not a list", "index", i)
			}

			parent := make(models.ExternalRecord, len(rec))
			for k, v := range rec {
				if k != ChildField {
					parent[k] = v
				}
			}

			parentID, o, err := p.ingestOne(ctx, q, logger, models.KindEmployee, parent, scope, nil)
			if err != nil {
				return fmt.Errorf("employee %d: %w", i, err)
			}
			result.Employees.add(o)

			if o == invalid {
				if len(children) > 0 {
					logger.Warn("skipping call logs of invalid employee", "index", i, "call_logs", len(children))
					result.CallLogs.Invalid += len(children)
				}
				continue
			}

			for j, child := range children {
				call, ok := child.(map[string]any)
				if !ok {
					logger.Warn("call log is not an object", "employee", i, "index", j)
					result.CallLogs.Invalid++
					continue
				}

				extra := map[string]any{"employee_id": parentID}
				_, o, err := p.ingestOne(ctx, q, logger, models.KindCallLog, call, scope, extra)
				if err != nil {
					return fmt.Errorf("employee %d call log %d: %w", i, j, err)
				}
				result.CallLogs.add(o)
			}
		}
		return nil
	})

	if err != nil {
		if p.commitMode == shared.CommitBatch {
			result.Employees = Result{Kind: models.KindEmployee}
			result.CallLogs = Result{Kind: models.KindCallLog}
		}
		_, err = p.finish(logger, result.Employees, start, err)
		return result, err
	}

	p.finish(logger, result.Employees, start, nil)
	p.finish(shared.WithLogger(p.logger, "kind", models.KindCallLog, "company", scope.Company), result.CallLogs, start, nil)
	return result, nil
}

// IngestCallHistory ingests call-log history rows.
//
// Rows already grouped under an employee are passed through. Flat rows are grouped by
// emp_number into employee records built from their emp_* fields, keeping first-seen order.
func (p *Pipeline) IngestCallHistory(ctx context.Context, records []models.ExternalRecord, scope Scope) (NestedResult, error) {
	return p.IngestEmployees(ctx, GroupByEmployee(records), scope)
}

var employeeHeaderFields = []string{"emp_name", "emp_code", "emp_number", "emp_country_code", "emp_tags"}

// GroupByEmployee nests flat call log rows under employee records.
func GroupByEmployee(records []models.ExternalRecord) []models.ExternalRecord {
	var grouped []models.ExternalRecord
	index := make(map[string]int)

	for _, rec := range records {
		if _, nested := rec[ChildField]; nested {
			grouped = append(grouped, rec)
			continue
		}

		number := identityValue(rec["emp_number"])
		if i, ok := index[number]; ok && number != "" {
			grouped[i][ChildField] = append(grouped[i][ChildField].([]any), rec)
			continue
		}

		parent := models.ExternalRecord{ChildField: []any{rec}}
		for _, field := range employeeHeaderFields {
			if v, ok := rec[field]; ok {
				parent[field] = v
			}
		}
		if number != "" {
			index[number] = len(grouped)
		}
		grouped = append(grouped, parent)
	}
	return grouped
}

func (p *Pipeline) checkScope(kind models.RecordKind, scope Scope) error {
	if FieldMaps(kind) == nil {
		return fmt.Errorf("%w: %s", shared.ErrUnknownKind, kind)
	}
	if kind.CompanyScoped() && scope.Company == "" {
		return fmt.Errorf("%w: company is required for %s", shared.ErrMissingArgument, kind)
	}
	if needsWindow(kind) && scope.Window == nil {
		return fmt.Errorf("%w: start_date and end_date are required for %s", shared.ErrMissingArgument, kind)
	}
	return nil
}

// run executes fn against the database, inside one transaction in batch commit mode.
func (p *Pipeline) run(ctx context.Context, fn func(q repositories.Querier) error) error {
	if p.commitMode != shared.CommitBatch {
		return fn(p.store.DB())
	}
	return repositories.WithTx(ctx, p.store.DB(), func(tx *sql.Tx) error {
		return fn(tx)
	})
}

func (p *Pipeline) finish(logger *log.Logger, result Result, start time.Time, err error) (Result, error) {
	if err != nil {
		metrics.RecordIngestFailure(string(result.Kind))
		if p.commitMode == shared.CommitBatch {
			result = Result{Kind: result.Kind}
		}
		logger.Error("ingest aborted", "error", err, "created", result.Created, "skipped", result.Skipped, "invalid", result.Invalid)
		if !errors.Is(err, shared.ErrInternal) {
			err = fmt.Errorf("%w: %w", shared.ErrInternal, err)
		}
		return result, err
	}

	metrics.RecordIngest(string(result.Kind), result.Created, result.Skipped, result.Invalid, time.Since(start))
	logger.Info("ingest complete", "created", result.Created, "skipped", result.Skipped, "invalid", result.Invalid)
	return result, nil
}

// ingestOne maps and creates a single record. extra columns are set after mapping.
func (p *Pipeline) ingestOne(
	ctx context.Context, q repositories.Querier, logger *log.Logger,
	kind models.RecordKind, rec models.ExternalRecord, scope Scope, extra map[string]any,
) (string, outcome, error) {
	key, err := Identity(kind, rec, scope)
	if err != nil {
		logger.Warn("invalid record", "error", err)
		return "", invalid, nil
	}

	columns, issues := Map(kind, rec, p.loc)
	for _, issue := range issues {
		logger.Debug("optional field dropped", "field", issue.Field, "error", issue.Err)
	}
	for k, v := range extra {
		columns[k] = v
	}
	if kind.Windowed() && scope.Window != nil {
		columns["window_start"] = scope.Window.Start
		columns["window_end"] = scope.Window.End
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		logger.Debug("raw payload not stored", "error", err)
		raw = nil
	}

	company := ""
	if kind.CompanyScoped() {
		company = scope.Company
	}

	id, wasCreated, err := p.store.CreateIfAbsent(ctx, q, kind, repositories.Row{
		IdentityKey: key.String(),
		Company:     company,
		Columns:     columns,
		Raw:         string(raw),
	})
	if err != nil {
		return "", invalid, fmt.Errorf("%w: %w", shared.ErrInternal, err)
	}

	if wasCreated {
		return id, created, nil
	}
	logger.Debug("record exists", "identity", key.String())
	return id, skipped, nil
}
