package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
	"github.com/desertthunder/callsync/internal/ui"
)

// SettingsAdd creates a settings entry from flags.
func (r *Runner) SettingsAdd(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.settingsRepo(ctx)
	if err != nil {
		return err
	}

	entry := models.NewSettingsEntry(
		cmd.String("name"),
		cmd.String("company"),
		cmd.String("domain"),
		cmd.String("employee-path"),
		cmd.String("call-log-path"),
		cmd.String("api-key"),
	)
	if err := repo.Create(entry); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	r.logger.Info("settings entry created", "name", entry.Name(), "company", entry.Company())
	return r.writePlain("✓ Added settings %q for %s\n", entry.Name(), entry.Company())
}

// SettingsList prints settings entries as a table, or as JSON with --json.
func (r *Runner) SettingsList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.settingsRepo(ctx)
	if err != nil {
		return err
	}

	entries, err := repo.List(map[string]any{"company": cmd.String("company")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type settingsJSON struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			Company      string `json:"company"`
			DomainAPI    string `json:"domain_api"`
			EmployeePath string `json:"employee_path"`
			CallLogPath  string `json:"call_log_path"`
			APIKey       string `json:"api_key"`
			Active       bool   `json:"is_active"`
		}
		out := make([]settingsJSON, len(entries))
		for i, e := range entries {
			out[i] = settingsJSON{
				ID:           e.ID(),
				Name:         e.Name(),
				Company:      e.Company(),
				DomainAPI:    e.DomainAPI(),
				EmployeePath: e.EmployeePath(),
				CallLogPath:  e.CallLogPath(),
				APIKey:       ui.MaskKey(e.APIKey()),
				Active:       e.Active(),
			}
		}
		return r.writeJSON(out, true)
	}

	return r.writePlain("%s\n", ui.SettingsTable(entries))
}

// SettingsEnable activates the named settings entry.
func (r *Runner) SettingsEnable(ctx context.Context, cmd *cli.Command) error {
	return r.setActive(ctx, cmd.StringArg("name"), true)
}

// SettingsDisable deactivates the named settings entry.
func (r *Runner) SettingsDisable(ctx context.Context, cmd *cli.Command) error {
	return r.setActive(ctx, cmd.StringArg("name"), false)
}

func (r *Runner) setActive(ctx context.Context, name string, active bool) error {
	if name == "" {
		return fmt.Errorf("%w: settings name", shared.ErrMissingArgument)
	}

	repo, err := r.settingsRepo(ctx)
	if err != nil {
		return err
	}
	if err := repo.SetActive(name, active); err != nil {
		return err
	}

	state := "enabled"
	if !active {
		state = "disabled"
	}
	return r.writePlain("✓ Settings %q %s\n", name, state)
}

// SettingsImport creates or updates a settings entry from a cURL command.
//
// The base URL, API key and company are read from the command. When the URL
// points at an employee endpoint its path becomes the entry's employee path.
func (r *Runner) SettingsImport(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var (
		req *shared.CurlRequest
		err error
	)
	if curlFile != "" {
		req, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		req, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	company := cmd.String("company")
	if company == "" {
		company = req.Company()
	}
	if company == "" {
		return fmt.Errorf("%w: no company header in cURL command; pass --company", shared.ErrMissingArgument)
	}

	key := req.APIKey()
	if key == "" {
		return fmt.Errorf("%w: no spi-key or bearer token in cURL command", shared.ErrMissingCredentials)
	}

	name := cmd.String("name")
	if name == "" {
		name = company
	}

	base, endpoint := req.SplitEndpoint()
	r.logger.Debug("split cURL URL", "base", base, "endpoint", endpoint)

	repo, err := r.settingsRepo(ctx)
	if err != nil {
		return err
	}

	existing, err := repo.GetByName(name)
	switch {
	case errors.Is(err, shared.ErrSettingsNotFound):
		entry := models.NewSettingsEntry(name, company, base, "employee/getAll", "call-log", key)
		if strings.HasPrefix(endpoint, "employee") {
			entry.SetEmployeePath(endpoint)
		}
		if err := repo.Create(entry); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		return r.writePlain("✓ Imported settings %q for %s\n", name, company)
	case err != nil:
		return err
	}

	existing.SetDomainAPI(base)
	existing.SetAPIKey(key)
	if strings.HasPrefix(endpoint, "employee") {
		existing.SetEmployeePath(endpoint)
	}
	if err := repo.Update(existing); err != nil {
		return err
	}
	return r.writePlain("✓ Updated settings %q for %s\n", name, company)
}
