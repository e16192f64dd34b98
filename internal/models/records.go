package models

import (
	"fmt"
	"strings"
)

// ExternalRecord is one JSON object as received from the upstream.
type ExternalRecord = map[string]any

// RecordKind names a record shape and selects its table, identity rule and field mapping.
type RecordKind string

const (
	KindEmployee        RecordKind = "employee"
	KindCallLog         RecordKind = "call_log"
	KindEmployeeSummary RecordKind = "employee_summary"
	KindAnalysis        RecordKind = "analysis"
	KindUniqueClient    RecordKind = "unique_client"
	KindHourly          RecordKind = "hourly"
	KindDaywise         RecordKind = "daywise"
)

// Kinds lists every record kind in a stable order.
var Kinds = []RecordKind{
	KindEmployee, KindCallLog, KindEmployeeSummary, KindAnalysis,
	KindUniqueClient, KindHourly, KindDaywise,
}

var kindTables = map[RecordKind]string{
	KindEmployee:        "employees",
	KindCallLog:         "call_logs",
	KindEmployeeSummary: "employee_summaries",
	KindAnalysis:        "analysis_results",
	KindUniqueClient:    "unique_clients",
	KindHourly:          "hourly_slots",
	KindDaywise:         "daywise_rows",
}

// ParseRecordKind accepts a kind name in either snake or kebab case.
func ParseRecordKind(s string) (RecordKind, error) {
	k := RecordKind(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	if _, ok := kindTables[k]; !ok {
		return "", fmt.Errorf("unknown record kind: %q", s)
	}
	return k, nil
}

// Table returns the SQLite table holding records of this kind.
func (k RecordKind) Table() string {
	return kindTables[k]
}

// CompanyScoped reports whether identity and storage are partitioned by company.
func (k RecordKind) CompanyScoped() bool {
	return k != KindEmployee && k != KindCallLog
}

// Windowed reports whether rows carry the reporting window bounds.
func (k RecordKind) Windowed() bool {
	switch k {
	case KindEmployeeSummary, KindAnalysis, KindUniqueClient, KindHourly, KindDaywise:
		return true
	}
	return false
}

func (k RecordKind) String() string {
	return string(k)
}

// IdentityKey is the ordered list of parts that identifies a record within its kind.
type IdentityKey []string

var keyPartEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// String returns the canonical form stored in the identity_key column. Parts are
// joined with "|"; a "|" or "\" inside a part is escaped with a backslash, so
// distinct keys never share a canonical form.
func (k IdentityKey) String() string {
	parts := make([]string, len(k))
	for i, part := range k {
		parts[i] = keyPartEscaper.Replace(part)
	}
	return strings.Join(parts, "|")
}
