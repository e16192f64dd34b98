// package formatter renders persisted employees and call logs as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name; "md" and "text" are aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json", "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, name)
	}
}

var (
	employeeHeaders = []string{"ID", "Name", "Code", "Country Code", "Number", "Tags", "App Version", "Last Call", "Lead Active", "Recording Active"}
	callLogHeaders  = []string{"ID", "Call Log ID", "Employee", "Client Name", "Client Number", "Type", "Date", "Time", "Duration"}
)

func employeeRow(e models.Employee) []string {
	return []string{
		e.ID, e.EmpName, e.EmpCode, e.EmpCountryCode, e.EmpNumber, e.EmpTags, e.AppVersion, e.LastCallAt,
		strconv.FormatBool(e.IsLeadActive), strconv.FormatBool(e.IsCallRecordingActive),
	}
}

func callLogRow(c models.CallLog) []string {
	return []string{
		c.ID, c.CallLogID, c.EmpNumber, c.ClientName, clientNumber(c), c.CallType, c.CallDate, c.CallTime,
		strconv.FormatInt(c.Duration, 10),
	}
}

func clientNumber(c models.CallLog) string {
	if c.ClientCountryCode == "" {
		return c.ClientNumber
	}
	return "+" + strings.TrimPrefix(c.ClientCountryCode, "+") + " " + c.ClientNumber
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// EmployeesToCSV renders employees with one header row.
func EmployeesToCSV(employees []models.Employee) ([]byte, error) {
	rows := make([][]string, len(employees))
	for i, e := range employees {
		rows[i] = employeeRow(e)
	}
	return writeCSV(employeeHeaders, rows)
}

// CallLogsToCSV renders call logs with one header row.
func CallLogsToCSV(logs []models.CallLog) ([]byte, error) {
	rows := make([][]string, len(logs))
	for i, c := range logs {
		rows[i] = callLogRow(c)
	}
	return writeCSV(callLogHeaders, rows)
}

// EmployeesToMarkdown renders employees as a Markdown table.
func EmployeesToMarkdown(employees []models.Employee) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Employees\n\n**Total**: %d\n\n", len(employees))
	buf.WriteString("| Name | Number | Code | Tags | Last Call |\n")
	buf.WriteString("|------|--------|------|------|-----------|\n")
	for _, e := range employees {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %s |\n",
			cell(e.EmpName), cell(e.EmpNumber), cell(e.EmpCode), cell(e.EmpTags), cell(e.LastCallAt))
	}
	return buf.Bytes()
}

// CallLogsToMarkdown renders call logs as a Markdown table.
func CallLogsToMarkdown(logs []models.CallLog) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Call Logs\n\n**Total**: %d\n\n", len(logs))
	buf.WriteString("| Date | Time | Employee | Client | Type | Duration |\n")
	buf.WriteString("|------|------|----------|--------|------|----------|\n")
	for _, c := range logs {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %s | %s |\n",
			cell(c.CallDate), cell(c.CallTime), cell(c.EmpNumber), cell(clientLabel(c)), cell(c.CallType), FormatDuration(c.Duration))
	}
	return buf.Bytes()
}

// EmployeesToText renders one numbered line per employee.
func EmployeesToText(employees []models.Employee) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Employees: %d\n\n", len(employees))
	for i, e := range employees {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, e.EmpName, e.EmpNumber)
	}
	return buf.Bytes()
}

// CallLogsToText renders one numbered line per call log.
func CallLogsToText(logs []models.CallLog) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Call logs: %d\n\n", len(logs))
	for i, c := range logs {
		fmt.Fprintf(&buf, "%d. %s %s %s -> %s [%s, %s]\n",
			i+1, c.CallDate, c.CallTime, c.EmpNumber, clientLabel(c), c.CallType, FormatDuration(c.Duration))
	}
	return buf.Bytes()
}

func clientLabel(c models.CallLog) string {
	if c.ClientName == "" {
		return clientNumber(c)
	}
	return c.ClientName + " " + clientNumber(c)
}

// cell escapes pipes so a value stays in its Markdown table column.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// FormatDuration renders seconds as m:ss, or h:mm:ss from one hour.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// WriteEmployees renders employees in format to w.
func WriteEmployees(w io.Writer, format Format, employees []models.Employee) error {
	var data []byte
	var err error

	switch format {
	case FormatCSV:
		data, err = EmployeesToCSV(employees)
	case FormatMarkdown:
		data = EmployeesToMarkdown(employees)
	case FormatText:
		data = EmployeesToText(employees)
	default:
		data, err = json.MarshalIndent(employees, "", "  ")
	}
	if err != nil {
		return err
	}
	return write(w, data)
}

// WriteCallLogs renders call logs in format to w.
func WriteCallLogs(w io.Writer, format Format, logs []models.CallLog) error {
	var data []byte
	var err error

	switch format {
	case FormatCSV:
		data, err = CallLogsToCSV(logs)
	case FormatMarkdown:
		data = CallLogsToMarkdown(logs)
	case FormatText:
		data = CallLogsToText(logs)
	default:
		data, err = json.MarshalIndent(logs, "", "  ")
	}
	if err != nil {
		return err
	}
	return write(w, data)
}

func write(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
	}
	return nil
}
