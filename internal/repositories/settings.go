package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
)

const settingsColumns = `id, name, company, domain_api, employee_path, call_log_path, api_key, is_active, created_at, updated_at`

// SettingsRepository implements [models.Repository] for [models.SettingsEntry] persistence.
type SettingsRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SettingsEntry] = (*SettingsRepository)(nil)

// NewSettingsRepository creates a new [SettingsRepository] with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Create inserts a new settings entry with a generated ID
func (r *SettingsRepository) Create(entry *models.SettingsEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	entry.SetID(id)

	query := `
		INSERT INTO callyzer_settings (` + settingsColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, id, entry.Name(), entry.Company(), entry.DomainAPI(), entry.EmployeePath(),
		entry.CallLogPath(), entry.APIKey(), entry.Active(), entry.CreatedAt(), entry.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert settings: %w", err)
	}

	return nil
}

// Get retrieves a settings entry by ID
func (r *SettingsRepository) Get(id string) (*models.SettingsEntry, error) {
	row := r.db.QueryRow(`SELECT `+settingsColumns+` FROM callyzer_settings WHERE id = ?`, id)
	entry, err := scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSettingsNotFound, id)
	}
	return entry, err
}

// GetByName retrieves a settings entry by its unique name
func (r *SettingsRepository) GetByName(name string) (*models.SettingsEntry, error) {
	row := r.db.QueryRow(`SELECT `+settingsColumns+` FROM callyzer_settings WHERE name = ?`, name)
	entry, err := scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSettingsNotFound, name)
	}
	return entry, err
}

// GetActive returns the first active entry for company, oldest first.
//
// Returns [shared.ErrSettingsNotFound] when the company has no active entry.
func (r *SettingsRepository) GetActive(company string) (*models.SettingsEntry, error) {
	query := `
		SELECT ` + settingsColumns + `
		FROM callyzer_settings
		WHERE company = ? AND is_active = 1
		ORDER BY created_at ASC
		LIMIT 1
	`
	entry, err := scanSettings(r.db.QueryRow(query, company))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSettingsNotFound, company)
	}
	return entry, err
}

// Update modifies an existing settings entry
func (r *SettingsRepository) Update(entry *models.SettingsEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	entry.SetUpdatedAt(now)

	query := `
		UPDATE callyzer_settings
		SET name = ?, company = ?, domain_api = ?, employee_path = ?, call_log_path = ?, api_key = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query, entry.Name(), entry.Company(), entry.DomainAPI(), entry.EmployeePath(),
		entry.CallLogPath(), entry.APIKey(), entry.Active(), now, entry.ID())
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}

	return requireRow(result, entry.ID())
}

// SetActive enables or disables the entry with the given name
func (r *SettingsRepository) SetActive(name string, active bool) error {
	result, err := r.db.Exec(`UPDATE callyzer_settings SET is_active = ?, updated_at = ? WHERE name = ?`, active, time.Now(), name)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return requireRow(result, name)
}

// Delete removes a settings entry by ID
func (r *SettingsRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM callyzer_settings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return requireRow(result, id)
}

// List retrieves settings entries matching the given criteria.
//
// Supported criteria: "company" (string) and "active" (bool).
func (r *SettingsRepository) List(criteria map[string]any) ([]*models.SettingsEntry, error) {
	query := `SELECT ` + settingsColumns + ` FROM callyzer_settings WHERE 1 = 1`
	args := []any{}

	if company, ok := criteria["company"].(string); ok && company != "" {
		query += " AND company = ?"
		args = append(args, company)
	}
	if active, ok := criteria["active"].(bool); ok {
		query += " AND is_active = ?"
		args = append(args, active)
	}

	query += " ORDER BY created_at ASC, name ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	var entries []*models.SettingsEntry
	for rows.Next() {
		entry, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettings(s scanner) (*models.SettingsEntry, error) {
	var (
		id, name, company, domainAPI      string
		employeePath, callLogPath, apiKey string
		active                            bool
		createdAt, updatedAt              time.Time
	)

	err := s.Scan(&id, &name, &company, &domainAPI, &employeePath, &callLogPath, &apiKey, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan settings: %w", err)
	}

	entry := models.NewSettingsEntry(name, company, domainAPI, employeePath, callLogPath, apiKey)
	entry.SetID(id)
	entry.SetActive(active)
	entry.SetCreatedAt(createdAt)
	entry.SetUpdatedAt(updatedAt)
	return entry, nil
}

func requireRow(result sql.Result, ref string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSettingsNotFound, ref)
	}
	return nil
}
