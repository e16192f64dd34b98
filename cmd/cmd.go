// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func companyFlag(required bool) cli.Flag {
	return &cli.StringFlag{Name: "company", Usage: "Company the settings entry belongs to", Required: required}
}

func windowFlags() []cli.Flag {
	return []cli.Flag{
		companyFlag(true),
		&cli.StringFlag{Name: "start", Usage: "Start of the range (YYYY-MM-DD HH:MM:SS)"},
		&cli.StringFlag{Name: "end", Usage: "End of the range (YYYY-MM-DD HH:MM:SS)"},
		&cli.DurationFlag{Name: "lookback", Usage: "Use the range ending now instead of --start/--end"},
		jsonFlag(),
	}
}

// setupCommand handles setup operations for the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// settingsCommand manages Callyzer settings entries.
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Manage Callyzer settings entries",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a settings entry",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "Unique name of the entry", Required: true},
					companyFlag(true),
					&cli.StringFlag{Name: "domain", Usage: "Base API URL", Value: "https://api1.callyzer.co/api/v2.1/"},
					&cli.StringFlag{Name: "employee-path", Usage: "Employee list path", Value: "employee/getAll"},
					&cli.StringFlag{Name: "call-log-path", Usage: "Call log path prefix", Value: "call-log"},
					&cli.StringFlag{Name: "api-key", Usage: "API key", Required: true, Sources: cli.EnvVars("CALLSYNC_API_KEY")},
				},
				Action: r.SettingsAdd,
			},
			{
				Name:  "list",
				Usage: "List settings entries",
				Flags: []cli.Flag{
					companyFlag(false),
					jsonFlag(),
				},
				Action: r.SettingsList,
			},
			{
				Name:      "enable",
				Usage:     "Enable a settings entry",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Action:    r.SettingsEnable,
			},
			{
				Name:      "disable",
				Usage:     "Disable a settings entry",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Action:    r.SettingsDisable,
			},
			{
				Name:  "import",
				Usage: "Create or update a settings entry from a cURL command copied from the API console",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "curl", Usage: "cURL command"},
					&cli.StringFlag{Name: "curl-file", Usage: "Path to .sh file containing cURL command"},
					&cli.StringFlag{Name: "name", Usage: "Name of the entry (default: the company)"},
					&cli.StringFlag{Name: "company", Usage: "Company, when the command has no company header"},
				},
				Action: r.SettingsImport,
			},
		},
	}
}

// fetchCommand pulls records from the upstream API into the database.
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch records from the Callyzer API",
		Commands: []*cli.Command{
			{
				Name:  "employees",
				Usage: "Fetch employees for one company, or every active settings entry",
				Flags: []cli.Flag{
					companyFlag(false),
					jsonFlag(),
				},
				Action: r.FetchEmployees,
			},
			{
				Name:   "call-logs",
				Usage:  "Fetch call history for a date range",
				Flags:  windowFlags(),
				Action: r.FetchCallLogs,
			},
			{
				Name:      "report",
				Usage:     "Fetch a report (employee-summary, analysis, unique-clients, hourly, daywise, summary)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "kind"}},
				Flags:     windowFlags(),
				Action:    r.FetchReport,
			},
		},
	}
}

// ingestCommand ingests payloads from disk.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Ingest payloads without calling the API",
		Commands: []*cli.Command{
			{
				Name:      "file",
				Usage:     "Ingest a webhook payload from a JSON file (- for stdin)",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: []cli.Flag{
					companyFlag(false),
					jsonFlag(),
				},
				Action: r.IngestFile,
			},
		},
	}
}

// exportCommand renders persisted records.
func exportCommand(r *Runner) *cli.Command {
	formatFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: json, csv, markdown, txt", Value: "json"}
	}
	outputFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path (default: stdout)"}
	}

	return &cli.Command{
		Name:  "export",
		Usage: "Export persisted records",
		Commands: []*cli.Command{
			{
				Name:  "employees",
				Usage: "Export employees",
				Flags: []cli.Flag{
					formatFlag(),
					outputFlag(),
					&cli.StringFlag{Name: "emp-number", Usage: "Only the employee with this number"},
				},
				Action: r.ExportEmployees,
			},
			{
				Name:  "call-logs",
				Usage: "Export call logs, newest first",
				Flags: []cli.Flag{
					formatFlag(),
					outputFlag(),
					&cli.StringFlag{Name: "emp-number", Usage: "Only calls of this employee"},
					&cli.StringFlag{Name: "call-type", Usage: "Only calls of this type"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of rows"},
				},
				Action: r.ExportCallLogs,
			},
		},
	}
}

// serveCommand runs the webhook server and the optional scheduler.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the webhook and report server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default: [server] host:port)"},
			&cli.StringFlag{Name: "interval", Usage: "Sweep interval (default: [schedule] interval; empty disables)"},
		},
		Action: r.Serve,
	}
}
