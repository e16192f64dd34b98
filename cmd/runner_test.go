package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	tu "github.com/desertthunder/callsync/internal/testing"
)

// testApp runs CLI invocations against a runner backed by a temporary database
// and canned upstream clients keyed by company.
type testApp struct {
	t      *testing.T
	runner *Runner
	output *bytes.Buffer
	mocks  map[string]*tu.MockService
	dir    string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(dir, "callsync.db")

	app := &testApp{t: t, output: &bytes.Buffer{}, mocks: map[string]*tu.MockService{}, dir: dir}
	app.runner = NewRunner(RunnerOpts{
		Config: config,
		Logger: shared.NewLogger(io.Discard),
		Output: app.output,
		Factory: func(entry *models.SettingsEntry) (services.Service, error) {
			if m, ok := app.mocks[entry.Company()]; ok {
				return m, nil
			}
			return tu.NewMockService(entry.Company()), nil
		},
	})
	return app
}

// run executes args after the program name and returns the command error.
func (a *testApp) run(args ...string) error {
	a.t.Helper()
	a.output.Reset()

	root := &cli.Command{
		Name:     "callsync",
		Flags:    globalFlags(),
		Before:   a.runner.Before,
		After:    a.runner.After,
		Commands: a.runner.register(),
	}
	full := append([]string{"callsync", "--config", filepath.Join(a.dir, "missing.toml")}, args...)
	return root.Run(context.Background(), full)
}

func (a *testApp) mustRun(args ...string) string {
	a.t.Helper()
	if err := a.run(args...); err != nil {
		a.t.Fatalf("%v: unexpected error: %v", args, err)
	}
	return a.output.String()
}

func (a *testApp) addSettings(company string) {
	a.t.Helper()
	a.mustRun("settings", "add", "--name", company+"-main", "--company", company, "--api-key", "secret-key-1234")
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.factory == nil {
				t.Error("expected default client factory")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("newClient", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})

		t.Run("builds a client for an active entry", func(t *testing.T) {
			entry := models.NewSettingsEntry("main", "acme", "https://api1.callyzer.co/api/v2.1/", "employee/getAll", "call-log", "key")
			svc, err := runner.newClient(entry)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if svc.Company() != "acme" {
				t.Errorf("expected company acme, got %s", svc.Company())
			}
		})

		t.Run("rejects an entry without a key", func(t *testing.T) {
			entry := models.NewSettingsEntry("main", "acme", "https://api1.callyzer.co/api/v2.1/", "employee/getAll", "call-log", "")
			if _, err := runner.newClient(entry); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "settings", "fetch", "ingest", "export", "serve"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if cmd.Name != want[i] {
				t.Errorf("command %d: expected %s, got %s", i, want[i], cmd.Name)
			}
		}
	})
}

func TestSetupCommand(t *testing.T) {
	app := newTestApp(t)
	t.Chdir(app.dir)

	out := app.mustRun("setup", "database")
	if !strings.Contains(out, "Database ready") {
		t.Errorf("expected setup confirmation, got %q", out)
	}
	tu.AssertFileExists(t, filepath.Join(app.dir, "missing.toml"))
	tu.AssertFileExists(t, filepath.Join(app.dir, "callsync.db"))
}

func TestSettingsCommands(t *testing.T) {
	t.Run("add and list", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")

		out := app.mustRun("settings", "list")
		if !strings.Contains(out, "acme-main") {
			t.Errorf("expected entry in table, got %q", out)
		}
		if strings.Contains(out, "secret-key-1234") {
			t.Error("expected api key to be masked")
		}
		if !strings.Contains(out, "1234") {
			t.Error("expected last four characters of the key")
		}
	})

	t.Run("list as JSON", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")
		app.addSettings("globex")

		var entries []map[string]any
		if err := json.Unmarshal([]byte(app.mustRun("settings", "list", "--company", "globex", "--json")), &entries); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if len(entries) != 1 || entries[0]["company"] != "globex" {
			t.Errorf("expected only globex, got %v", entries)
		}
	})

	t.Run("disable and enable", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")

		app.mustRun("settings", "disable", "acme-main")
		var entries []map[string]any
		json.Unmarshal([]byte(app.mustRun("settings", "list", "--json")), &entries)
		if len(entries) != 1 || entries[0]["is_active"] != false {
			t.Errorf("expected disabled entry, got %v", entries)
		}

		app.mustRun("settings", "enable", "acme-main")
		json.Unmarshal([]byte(app.mustRun("settings", "list", "--json")), &entries)
		if entries[0]["is_active"] != true {
			t.Errorf("expected enabled entry, got %v", entries)
		}
	})

	t.Run("disable unknown entry", func(t *testing.T) {
		app := newTestApp(t)
		if err := app.run("settings", "disable", "nope"); !errors.Is(err, shared.ErrSettingsNotFound) {
			t.Errorf("expected ErrSettingsNotFound, got %v", err)
		}
	})

	t.Run("import from curl", func(t *testing.T) {
		app := newTestApp(t)
		curl := `curl -X GET 'https://api1.callyzer.co/api/v2.1/employee/getAll' -H 'spi-key: abc123' -H 'company: acme'`

		out := app.mustRun("settings", "import", "--curl", curl)
		if !strings.Contains(out, "Imported") {
			t.Errorf("expected import confirmation, got %q", out)
		}

		var entries []map[string]any
		json.Unmarshal([]byte(app.mustRun("settings", "list", "--json")), &entries)
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %v", entries)
		}
		if entries[0]["name"] != "acme" || entries[0]["domain_api"] != "https://api1.callyzer.co/api/v2.1/" {
			t.Errorf("unexpected entry %v", entries[0])
		}

		out = app.mustRun("settings", "import", "--curl", strings.Replace(curl, "abc123", "xyz789", 1))
		if !strings.Contains(out, "Updated") {
			t.Errorf("expected update on second import, got %q", out)
		}
	})

	t.Run("import requires exactly one source", func(t *testing.T) {
		app := newTestApp(t)
		if err := app.run("settings", "import"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := app.run("settings", "import", "--curl", "curl x", "--curl-file", "x.sh"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestFetchCommands(t *testing.T) {
	t.Run("employees for one company", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")
		app.mocks["acme"] = tu.NewMockService("acme")
		app.mocks["acme"].EmployeeRecords = []models.ExternalRecord{{"emp_number": "A1"}, {"emp_number": "A2"}}

		out := app.mustRun("fetch", "employees", "--company", "acme")
		if !strings.Contains(out, "created: 2") {
			t.Errorf("expected 2 created, got %q", out)
		}

		out = app.mustRun("fetch", "employees", "--company", "acme", "--json")
		var outcome map[string]any
		if err := json.Unmarshal([]byte(out), &outcome); err != nil {
			t.Fatalf("expected JSON outcome: %v", err)
		}
		if outcome["status"] != "success" || outcome["skipped"] != float64(2) {
			t.Errorf("expected 2 skipped on rerun, got %v", outcome)
		}
	})

	t.Run("employees for every company prints progress", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")
		app.addSettings("globex")

		out := app.mustRun("fetch", "employees")
		if !strings.Contains(out, "Found 2 active settings entries") {
			t.Errorf("expected progress output, got %q", out)
		}
	})

	t.Run("unknown company fails", func(t *testing.T) {
		app := newTestApp(t)
		if err := app.run("fetch", "employees", "--company", "nope"); !errors.Is(err, shared.ErrSettingsNotFound) {
			t.Errorf("expected ErrSettingsNotFound, got %v", err)
		}
	})

	t.Run("call logs validate the range", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")

		err := app.run("fetch", "call-logs", "--company", "acme", "--start", "yesterday", "--end", "2024-01-02 00:00:00")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("lookback cannot be combined with explicit dates", func(t *testing.T) {
		app := newTestApp(t)
		err := app.run("fetch", "call-logs", "--company", "acme", "--lookback", "1h", "--start", "2024-01-01 00:00:00")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("report with lookback", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")
		app.mocks["acme"] = tu.NewMockService("acme")
		app.mocks["acme"].ReportRecords[services.EndpointHourly] = []models.ExternalRecord{{"hour": "09", "total_calls": 4}}

		out := app.mustRun("fetch", "report", "hourly", "--company", "acme", "--lookback", "24h")
		if !strings.Contains(out, "created: 1") {
			t.Errorf("expected 1 created, got %q", out)
		}
		if calls := app.mocks["acme"].ReportCalls; len(calls) != 1 || calls[0].Window.End-calls[0].Window.Start != 24*60*60 {
			t.Errorf("expected one 24h window, got %+v", calls)
		}
	})

	t.Run("summary report prints the upstream body", func(t *testing.T) {
		app := newTestApp(t)
		app.addSettings("acme")
		app.mocks["acme"] = tu.NewMockService("acme")
		app.mocks["acme"].SummaryBody = []byte(`{"result":{"total_calls":7}}`)

		out := app.mustRun("fetch", "report", "summary", "--company", "acme", "--start", "2024-01-01 00:00:00", "--end", "2024-01-02 00:00:00")
		if strings.TrimSpace(out) != `{"result":{"total_calls":7}}` {
			t.Errorf("expected passthrough body, got %q", out)
		}
	})

	t.Run("unknown report kind", func(t *testing.T) {
		app := newTestApp(t)
		if err := app.run("fetch", "report", "weekly", "--company", "acme"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestIngestAndExport(t *testing.T) {
	app := newTestApp(t)

	payload := filepath.Join(app.dir, "payload.json")
	body := `[{"emp_number":"A1","emp_name":"Asha","call_logs":[{"id":"c1","call_type":"Incoming","duration":65},{"id":"c2","call_type":"Missed"}]}]`
	if err := os.WriteFile(payload, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	out := app.mustRun("ingest", "file", payload)
	if !strings.Contains(out, "employees created: 1  call logs created: 2") {
		t.Errorf("expected nested counts, got %q", out)
	}

	t.Run("employees as CSV", func(t *testing.T) {
		out := app.mustRun("export", "employees", "--format", "csv")
		if !strings.HasPrefix(out, "ID,Name,Code") || !strings.Contains(out, "Asha") {
			t.Errorf("unexpected CSV %q", out)
		}
	})

	t.Run("call logs to a file", func(t *testing.T) {
		dest := filepath.Join(app.dir, "calls.json")
		out := app.mustRun("export", "call-logs", "--call-type", "Incoming", "--output", dest)
		if !strings.Contains(out, "Exported 1 rows") {
			t.Errorf("expected confirmation, got %q", out)
		}

		var logs []map[string]any
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, dest)), &logs); err != nil {
			t.Fatalf("expected JSON file: %v", err)
		}
		if len(logs) != 1 {
			t.Errorf("expected 1 call log, got %d", len(logs))
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := app.run("export", "employees", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		bad := filepath.Join(app.dir, "bad.json")
		os.WriteFile(bad, []byte(`"just a string"`), 0644)
		if err := app.run("ingest", "file", bad); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
