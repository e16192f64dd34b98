package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/tasks"
)

// RenderOutcome renders an outcome as one status line followed by its counts.
func RenderOutcome(label string, o tasks.Outcome) string {
	var b strings.Builder
	if o.OK() {
		b.WriteString(styles.OK("✓ " + label))
	} else {
		b.WriteString(styles.Err(fmt.Sprintf("✗ %s (%s)", label, o.Kind)))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "  created: %d  skipped: %d  invalid: %d\n", o.Created, o.Skipped, o.Invalid)
	if o.EmployeesCreated != nil || o.CallLogsCreated != nil {
		fmt.Fprintf(&b, "  employees created: %d  call logs created: %d\n", deref(o.EmployeesCreated), deref(o.CallLogsCreated))
	}
	if o.Message != "" {
		style := styles.Warn
		if !o.OK() {
			style = styles.Err
		}
		b.WriteString("  " + style(o.Message) + "\n")
	}
	return b.String()
}

// RenderProgress renders one progress update line.
func RenderProgress(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.FetchFailed:
		return styles.Err(u.Message)
	case tasks.IngestRecords, tasks.Complete:
		return styles.OK(u.Message)
	default:
		return styles.Help(u.Message)
	}
}

// SettingsTable renders settings entries as a bordered table. API keys are masked.
func SettingsTable(entries []*models.SettingsEntry) string {
	if len(entries) == 0 {
		return styles.Help("No settings configured. Add one with `callsync settings add`.")
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		status := "active"
		if !e.Active() {
			status = "disabled"
		}
		rows[i] = []string{e.Name(), e.Company(), e.DomainAPI(), MaskKey(e.APIKey()), status}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(NewStyle("#626262")).
		Headers("NAME", "COMPANY", "DOMAIN", "API KEY", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return NewBold("#7D56F4").Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.Render()
}

// MaskKey keeps the last four characters of key.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
