package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/callsync/internal/ingest"
	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/repositories"
	"github.com/desertthunder/callsync/internal/services"
	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	factory    tasks.ServiceFactory
	engine     *tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB
	Factory    tasks.ServiceFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		factory:    opts.Factory,
	}
	if r.factory == nil {
		r.factory = r.newClient
	}
	return r
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("CALLSYNC_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level (debug, info, warn, error); overrides [log] level",
		},
	}
}

// Before loads the configuration file, keeping defaults when it does not exist.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	level := r.config.Log.Level
	if override := cmd.String("log-level"); override != "" {
		level = override
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	return ctx, nil
}

// After closes the database if a command opened it.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.engine = nil, nil
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, settingsCommand, fetchCommand, ingestCommand, exportCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// database opens and migrates the configured database on first use.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

func (r *Runner) settingsRepo(ctx context.Context) (*repositories.SettingsRepository, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	return repositories.NewSettingsRepository(db), nil
}

func (r *Runner) recordStore(ctx context.Context) (*repositories.RecordStore, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	return repositories.NewRecordStore(db), nil
}

// tasksEngine builds the [tasks.Engine] over the configured database and upstream settings.
func (r *Runner) tasksEngine(ctx context.Context) (*tasks.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := r.config.Upstream.Location()
	if err != nil {
		return nil, err
	}

	pipeline := ingest.New(repositories.NewRecordStore(db), ingest.Options{
		Logger:     r.logger,
		Location:   loc,
		CommitMode: r.config.Ingest.CommitMode,
	})

	up := r.config.Upstream
	r.engine = tasks.NewEngine(repositories.NewSettingsRepository(db), pipeline, r.factory, tasks.Options{
		Filter: services.ReportFilter{
			CallTypes:      up.CallTypes,
			EmpTags:        up.EmpTags,
			EmpNumbers:     up.EmpNumbers,
			ExcludeNumbers: up.ExcludeNumbers,
			PageSize:       up.PageSize,
		},
		Location: loc,
		Logger:   r.logger,
	})
	return r.engine, nil
}

// newClient is the default [tasks.ServiceFactory].
func (r *Runner) newClient(entry *models.SettingsEntry) (services.Service, error) {
	up := r.config.Upstream
	return services.NewCallyzerClient(entry, services.ClientOptions{
		HTTPClient:        r.httpClient,
		Timeout:           shared.ParseDurationOr(up.Timeout, 30*time.Second),
		RequestsPerSecond: up.RequestsPerSecond,
		Burst:             up.Burst,
		BreakerFailures:   up.BreakerFailures,
		BreakerTimeout:    shared.ParseDurationOr(up.BreakerTimeout, 30*time.Second),
		Logger:            r.logger,
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
