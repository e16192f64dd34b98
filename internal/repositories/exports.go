package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/callsync/internal/models"
)

// ListEmployees returns persisted employees ordered by name.
//
// Supported criteria: "emp_number" (string).
func (s *RecordStore) ListEmployees(ctx context.Context, criteria map[string]any) ([]models.Employee, error) {
	query := `
		SELECT id, emp_name, emp_code, emp_country_code, emp_number, emp_tags, app_version,
			last_call_at, is_lead_active, is_call_recording_active, created_at
		FROM employees
		WHERE 1 = 1
	`
	args := []any{}

	if number, ok := criteria["emp_number"].(string); ok && number != "" {
		query += " AND emp_number = ?"
		args = append(args, number)
	}
	query += " ORDER BY emp_name ASC, emp_number ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var (
			e                                 models.Employee
			name, code, country, number, tags sql.NullString
			version, lastCall                 sql.NullString
			leadActive, recordingActive       sql.NullBool
			createdAt                         time.Time
		)
		err := rows.Scan(&e.ID, &name, &code, &country, &number, &tags, &version, &lastCall, &leadActive, &recordingActive, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}

		e.EmpName, e.EmpCode, e.EmpCountryCode = name.String, code.String, country.String
		e.EmpNumber, e.EmpTags, e.AppVersion = number.String, tags.String, version.String
		e.LastCallAt = lastCall.String
		e.IsLeadActive, e.IsCallRecordingActive = leadActive.Bool, recordingActive.Bool
		e.CreatedAt = createdAt
		employees = append(employees, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return employees, nil
}

// ListCallLogs returns persisted call logs joined with their employee, newest call first.
//
// Supported criteria: "emp_number" (string), "call_type" (string) and "limit" (int).
func (s *RecordStore) ListCallLogs(ctx context.Context, criteria map[string]any) ([]models.CallLog, error) {
	query := `
		SELECT c.id, c.call_log_id, c.employee_id, e.emp_number, c.client_name, c.client_country_code,
			c.client_number, c.duration, c.call_type, c.call_date, c.call_time, c.created_at
		FROM call_logs c
		LEFT JOIN employees e ON e.id = c.employee_id
		WHERE 1 = 1
	`
	args := []any{}

	if number, ok := criteria["emp_number"].(string); ok && number != "" {
		query += " AND e.emp_number = ?"
		args = append(args, number)
	}
	if callType, ok := criteria["call_type"].(string); ok && callType != "" {
		query += " AND c.call_type = ?"
		args = append(args, callType)
	}
	query += " ORDER BY c.call_date DESC, c.call_time DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call logs: %w", err)
	}
	defer rows.Close()

	var logs []models.CallLog
	for rows.Next() {
		var (
			c                                    models.CallLog
			callLogID, employeeID, empNumber     sql.NullString
			clientName, clientCountry, clientNum sql.NullString
			callType, callDate, callTime         sql.NullString
			duration                             sql.NullInt64
			createdAt                            time.Time
		)
		err := rows.Scan(&c.ID, &callLogID, &employeeID, &empNumber, &clientName, &clientCountry,
			&clientNum, &duration, &callType, &callDate, &callTime, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call log: %w", err)
		}

		c.CallLogID, c.EmployeeID, c.EmpNumber = callLogID.String, employeeID.String, empNumber.String
		c.ClientName, c.ClientCountryCode, c.ClientNumber = clientName.String, clientCountry.String, clientNum.String
		c.Duration = duration.Int64
		c.CallType, c.CallDate, c.CallTime = callType.String, callDate.String, callTime.String
		c.CreatedAt = createdAt
		logs = append(logs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return logs, nil
}
