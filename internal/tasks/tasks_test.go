package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/desertthunder/callsync/internal/ingest"
	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/repositories"
	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	tu "github.com/desertthunder/callsync/internal/testing"
)

type fixture struct {
	db       *sql.DB
	engine   *Engine
	store    *repositories.RecordStore
	settings *repositories.SettingsRepository
	mocks    map[string]*tu.MockService
	builds   int
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newFixture registers one active settings entry per company, each served by a [tu.MockService].
func newFixture(t *testing.T, companies ...string) *fixture {
	t.Helper()

	db := setupTestDB(t)
	f := &fixture{
		db:       db,
		store:    repositories.NewRecordStore(db),
		settings: repositories.NewSettingsRepository(db),
		mocks:    make(map[string]*tu.MockService),
	}

	for _, company := range companies {
		entry := models.NewSettingsEntry(company+"-main", company, "https://api1.callyzer.co/api/v2.1/", "employee/getAll", "call-log", "key")
		if err := f.settings.Create(entry); err != nil {
			t.Fatalf("failed to create settings: %v", err)
		}
		f.mocks[company] = tu.NewMockService(company)
	}

	var buf bytes.Buffer
	logger := shared.NewLogger(&buf)
	pipeline := ingest.New(f.store, ingest.Options{Logger: logger})
	factory := func(entry *models.SettingsEntry) (services.Service, error) {
		f.builds++
		mock, ok := f.mocks[entry.Company()]
		if !ok {
			return nil, shared.ErrMissingCredentials
		}
		return mock, nil
	}
	f.engine = NewEngine(f.settings, pipeline, factory, Options{Logger: logger})
	return f
}

func recs(t *testing.T, payload string) []models.ExternalRecord {
	t.Helper()
	out, err := ingest.Normalize([]byte(payload))
	if err != nil {
		t.Fatalf("failed to normalize %s: %v", payload, err)
	}
	return out
}

func validRequest() FetchRequest {
	return FetchRequest{Company: "acme", StartDate: "2024-01-01 00:00:00", EndDate: "2024-01-02 00:00:00"}
}

func TestFetchValidation(t *testing.T) {
	tests := []struct {
		name string
		req  FetchRequest
	}{
		{"Missing Company", FetchRequest{StartDate: "2024-01-01 00:00:00", EndDate: "2024-01-02 00:00:00"}},
		{"Missing Start Date", FetchRequest{Company: "acme", EndDate: "2024-01-02 00:00:00"}},
		{"Missing End Date", FetchRequest{Company: "acme", StartDate: "2024-01-01 00:00:00"}},
		{"Bad Date Format", FetchRequest{Company: "acme", StartDate: "01/01/2024", EndDate: "2024-01-02 00:00:00"}},
		{"End Before Start", FetchRequest{Company: "acme", StartDate: "2024-01-02 00:00:00", EndDate: "2024-01-01 00:00:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "acme")
			ctx := context.Background()

			outcomes := []Outcome{
				f.engine.FetchCallLogs(ctx, tt.req),
				f.engine.FetchReport(ctx, services.EndpointHourly, tt.req),
			}
			_, summary := f.engine.Summary(ctx, tt.req)
			outcomes = append(outcomes, summary)

			for _, o := range outcomes {
				if o.Status != StatusError || o.Kind != KindInputValidation {
					t.Errorf("expected input validation failure, got %+v", o)
				}
				if o.HTTPStatus() != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", o.HTTPStatus())
				}
			}
			if n := f.mocks["acme"].Requests(); n != 0 {
				t.Errorf("expected no upstream request, got %d", n)
			}
		})
	}

	t.Run("Unknown Company", func(t *testing.T) {
		f := newFixture(t, "acme")
		req := validRequest()
		req.Company = "globex"
		o := f.engine.FetchCallLogs(context.Background(), req)
		if o.Kind != KindInputValidation || !errors.Is(o.Err(), shared.ErrSettingsNotFound) {
			t.Errorf("expected settings not found, got %+v", o)
		}
	})

	t.Run("Inactive Company", func(t *testing.T) {
		f := newFixture(t, "acme")
		if err := f.settings.SetActive("acme-main", false); err != nil {
			t.Fatalf("SetActive() error = %v", err)
		}
		if o := f.engine.FetchEmployees(context.Background(), "acme", nil); o.Kind != KindInputValidation {
			t.Errorf("expected input validation failure, got %+v", o)
		}
	})
}

func TestFetchCallLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "acme")
	f.mocks["acme"].ReportRecords[services.EndpointCallLogs] = recs(t, `{"result": [
		{"emp_number": "A1", "emp_name": "Asha", "id": "c1", "call_type": "Incoming"},
		{"emp_number": "A1", "emp_name": "Asha", "id": "c2", "call_type": "Missed"},
		{"emp_number": "B2", "emp_name": "Bo", "id": "c3"}
	]}`)

	o := f.engine.FetchCallLogs(ctx, validRequest())
	if !o.OK() {
		t.Fatalf("expected success, got %+v", o)
	}
	if *o.EmployeesCreated != 2 || *o.CallLogsCreated != 3 {
		t.Errorf("expected 2 employees and 3 call logs, got %d and %d", *o.EmployeesCreated, *o.CallLogsCreated)
	}

	calls := f.mocks["acme"].ReportCalls
	if len(calls) != 1 || calls[0].Endpoint != services.EndpointCallLogs {
		t.Fatalf("unexpected report calls %+v", calls)
	}
	if calls[0].Window.End-calls[0].Window.Start != 86400 {
		t.Errorf("expected a one day window, got %+v", calls[0].Window)
	}

	again := f.engine.FetchCallLogs(ctx, validRequest())
	if *again.EmployeesCreated != 0 || *again.CallLogsCreated != 0 || again.Skipped != 5 {
		t.Errorf("expected everything skipped on re-run, got %+v", again)
	}
}

func TestFetchReport(t *testing.T) {
	ctx := context.Background()

	t.Run("Aggregate Report", func(t *testing.T) {
		f := newFixture(t, "acme")
		f.mocks["acme"].ReportRecords[services.EndpointHourly] = recs(t, `[{"hour": "09", "total_calls": 4}, {"hour": "10"}, {"total_calls": 1}]`)

		o := f.engine.FetchReport(ctx, services.EndpointHourly, validRequest())
		if !o.OK() || o.Created != 2 || o.Invalid != 1 {
			t.Errorf("expected 2 created and 1 invalid, got %+v", o)
		}
		if o.EmployeesCreated != nil {
			t.Error("flat reports do not carry nested counts")
		}

		n, err := f.store.Count(ctx, models.KindHourly, "acme")
		if err != nil || n != 2 {
			t.Errorf("expected 2 hourly rows for acme, got %d (%v)", n, err)
		}
	})

	t.Run("Dispatches Employees", func(t *testing.T) {
		f := newFixture(t, "acme")
		f.mocks["acme"].EmployeeRecords = recs(t, `[{"emp_number": "A1"}]`)

		o := f.engine.FetchReport(ctx, services.EndpointEmployees, FetchRequest{Company: "acme"})
		if !o.OK() || *o.EmployeesCreated != 1 {
			t.Errorf("expected 1 employee created, got %+v", o)
		}
	})

	t.Run("Employees Without Company", func(t *testing.T) {
		f := newFixture(t, "acme")
		if o := f.engine.FetchReport(ctx, services.EndpointEmployees, FetchRequest{}); o.Kind != KindInputValidation {
			t.Errorf("expected input validation failure, got %+v", o)
		}
	})

	t.Run("Summary Is Not Persisted", func(t *testing.T) {
		f := newFixture(t, "acme")
		if o := f.engine.FetchReport(ctx, services.EndpointSummary, validRequest()); o.Kind != KindInputValidation {
			t.Errorf("expected input validation failure, got %+v", o)
		}
	})

	t.Run("Upstream Failure", func(t *testing.T) {
		f := newFixture(t, "acme")
		f.mocks["acme"].Err = errors.Join(shared.ErrAPIRequest, errors.New("status 500: secret detail"))

		o := f.engine.FetchReport(ctx, services.EndpointDaywise, validRequest())
		if o.Kind != KindUpstream || o.HTTPStatus() != http.StatusBadGateway {
			t.Errorf("expected upstream failure, got %+v", o)
		}
		if o.Message != "upstream request failed" {
			t.Errorf("expected a generic message, got %q", o.Message)
		}
	})

	t.Run("Storage Failure", func(t *testing.T) {
		f := newFixture(t, "acme")
		f.mocks["acme"].ReportRecords[services.EndpointDaywise] = recs(t, `[{"date": "2024-01-01"}]`)
		if _, err := f.db.Exec(`DROP TABLE daywise_rows`); err != nil {
			t.Fatalf("failed to drop table: %v", err)
		}

		o := f.engine.FetchReport(ctx, services.EndpointDaywise, validRequest())
		if o.Kind != KindInternal || o.HTTPStatus() != http.StatusInternalServerError {
			t.Errorf("expected internal failure, got %+v", o)
		}
		if o.Message != "internal error" {
			t.Errorf("expected a generic message, got %q", o.Message)
		}
	})
}

func TestSummary(t *testing.T) {
	f := newFixture(t, "acme")
	f.mocks["acme"].SummaryBody = []byte(`{"total_calls": 10}`)

	body, o := f.engine.Summary(context.Background(), validRequest())
	if !o.OK() {
		t.Fatalf("expected success, got %+v", o)
	}
	if string(body) != `{"total_calls": 10}` {
		t.Errorf("expected the upstream body, got %s", body)
	}
}

func TestFetchEmployees(t *testing.T) {
	ctx := context.Background()

	t.Run("All Active Companies", func(t *testing.T) {
		f := newFixture(t, "acme", "globex", "initech")
		f.mocks["acme"].EmployeeRecords = recs(t, `[{"emp_number": "A1"}, {"emp_number": "A2"}]`)
		f.mocks["globex"].EmployeeRecords = recs(t, `[{"emp_number": "G1"}]`)
		f.mocks["initech"].Err = shared.ErrAPIRequest

		progress := make(chan ProgressUpdate, 32)
		o := f.engine.FetchEmployees(ctx, "", progress)
		close(progress)

		if !o.OK() {
			t.Fatalf("a failing company must not fail the run, got %+v", o)
		}
		if o.Created != 3 || *o.EmployeesCreated != 3 {
			t.Errorf("expected 3 employees created, got %+v", o)
		}
		if o.Message != "1 of 3 companies failed" {
			t.Errorf("unexpected message %q", o.Message)
		}

		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		if len(phases) == 0 || phases[0] != ResolveSettings || phases[len(phases)-1] != Complete {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("Ingests In Settings Order", func(t *testing.T) {
		f := newFixture(t, "acme", "beta")
		f.mocks["acme"].Delay = 100 * time.Millisecond
		f.mocks["acme"].EmployeeRecords = recs(t, `[{"emp_number": "X1", "emp_name": "Acme Agent"}]`)
		f.mocks["beta"].EmployeeRecords = recs(t, `[{"emp_number": "X1", "emp_name": "Beta Agent"}]`)

		o := f.engine.FetchEmployees(ctx, "", nil)
		if !o.OK() {
			t.Fatalf("unexpected failure %+v", o)
		}
		if o.Created != 1 || o.Skipped != 1 {
			t.Errorf("expected 1 created and 1 skipped, got %+v", o)
		}

		employees, err := f.store.ListEmployees(ctx, map[string]any{"emp_number": "X1"})
		if err != nil {
			t.Fatalf("failed to list employees: %v", err)
		}
		if len(employees) != 1 || employees[0].EmpName != "Acme Agent" {
			t.Errorf("the first configured company should win the shared key, got %+v", employees)
		}
	})

	t.Run("Unbuffered Progress Receives Every Update", func(t *testing.T) {
		f := newFixture(t, "acme", "beta")
		f.mocks["acme"].EmployeeRecords = recs(t, `[{"emp_number": "A1"}]`)
		f.mocks["beta"].EmployeeRecords = recs(t, `[{"emp_number": "B1"}]`)

		progress := make(chan ProgressUpdate)
		done := make(chan Outcome)
		go func() {
			done <- f.engine.FetchEmployees(ctx, "", progress)
		}()

		var phases []Phase
		var o Outcome
	loop:
		for {
			select {
			case u := <-progress:
				phases = append(phases, u.Phase)
			case o = <-done:
				break loop
			}
		}

		if !o.OK() {
			t.Fatalf("unexpected failure %+v", o)
		}
		if len(phases) == 0 || phases[0] != ResolveSettings || phases[len(phases)-1] != Complete {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("No Active Settings", func(t *testing.T) {
		f := newFixture(t)
		if o := f.engine.FetchEmployees(ctx, "", nil); o.Kind != KindInputValidation {
			t.Errorf("expected input validation failure, got %+v", o)
		}
	})

	t.Run("Reuses Clients", func(t *testing.T) {
		f := newFixture(t, "acme")
		f.engine.FetchEmployees(ctx, "acme", nil)
		f.engine.FetchEmployees(ctx, "acme", nil)
		if f.builds != 1 {
			t.Errorf("expected one client build, got %d", f.builds)
		}
	})

	t.Run("Factory Failure", func(t *testing.T) {
		f := newFixture(t, "acme")
		delete(f.mocks, "acme")
		if o := f.engine.FetchEmployees(ctx, "acme", nil); o.Kind != KindInternal {
			t.Errorf("expected internal failure, got %+v", o)
		}
	})
}

func TestIngestPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payload := []byte(`[{"emp_number":"A1","call_logs":[{"id":"c1"},{"id":"c2"}]}]`)

	o := f.engine.IngestPayload(ctx, payload, "")
	if *o.EmployeesCreated != 1 || *o.CallLogsCreated != 2 {
		t.Errorf("expected 1 employee and 2 call logs, got %+v", o)
	}

	o = f.engine.IngestPayload(ctx, payload, "")
	if *o.EmployeesCreated != 0 || *o.CallLogsCreated != 0 {
		t.Errorf("expected nothing created on re-ingest, got %+v", o)
	}

	b, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("failed to marshal outcome: %v", err)
	}
	want := `{"status":"success","created":0,"skipped":3,"invalid":0,"employees_created":0,"call_logs_created":0}`
	if string(b) != want {
		t.Errorf("unexpected JSON\n got %s\nwant %s", b, want)
	}

	t.Run("Malformed Body", func(t *testing.T) {
		for _, body := range []string{"", "42", "{", "null"} {
			if o := f.engine.IngestPayload(ctx, []byte(body), ""); o.Kind != KindInputValidation {
				t.Errorf("%q: expected input validation failure, got %+v", body, o)
			}
		}
	})
}

func TestSweep(t *testing.T) {
	f := newFixture(t, "acme")
	mock := f.mocks["acme"]
	mock.EmployeeRecords = recs(t, `[{"emp_number": "A1"}]`)
	mock.ReportRecords[services.EndpointDaywise] = recs(t, `[{"date": "2024-01-01"}]`)

	results, err := f.engine.Sweep(context.Background(), shared.Window{Start: 1704047400, End: 1704133800})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if want := 1 + len(services.ReportEndpoints()); len(results) != want {
		t.Fatalf("expected %d results, got %d", want, len(results))
	}
	for _, r := range results {
		if !r.Outcome.OK() {
			t.Errorf("%s failed: %+v", r.Endpoint, r.Outcome)
		}
	}
	if Summarize(results) != "" {
		t.Errorf("expected an empty summary, got %q", Summarize(results))
	}

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.engine.Sweep(ctx, shared.Window{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestNewOutcome(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{shared.ErrMissingArgument, KindInputValidation},
		{shared.ErrInvalidInput, KindInputValidation},
		{shared.ErrSettingsNotFound, KindInputValidation},
		{shared.ErrAPIRequest, KindUpstream},
		{shared.ErrInternal, KindInternal},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := NewOutcome(tt.err); got.Kind != tt.kind || got.Status != StatusError {
			t.Errorf("NewOutcome(%v) = %+v, want kind %s", tt.err, got, tt.kind)
		}
	}

	if ErrorKind("").HTTPStatus() != http.StatusOK {
		t.Error("a successful outcome maps to 200")
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("Delivers To Waiting Reader", func(t *testing.T) {
		progress := make(chan ProgressUpdate)
		got := make(chan ProgressUpdate, 1)
		go func() { got <- <-progress }()

		sendProgress(context.Background(), progress, ProgressUpdate{Phase: Complete, Message: "done"})

		select {
		case u := <-got:
			if u.Phase != Complete || u.Message != "done" {
				t.Errorf("unexpected update %+v", u)
			}
		case <-time.After(time.Second):
			t.Fatal("update was not delivered")
		}
	})

	t.Run("Returns Once Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		returned := make(chan struct{})
		go func() {
			sendProgress(ctx, make(chan ProgressUpdate), ProgressUpdate{Phase: Complete})
			close(returned)
		}()

		select {
		case <-returned:
		case <-time.After(time.Second):
			t.Fatal("send blocked after cancellation")
		}
	})

	t.Run("Nil Channel", func(t *testing.T) {
		sendProgress(context.Background(), nil, ProgressUpdate{Phase: Complete})
	})
}
