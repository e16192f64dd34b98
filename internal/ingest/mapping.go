package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/desertthunder/callsync/internal/models"
)

// Transform converts a decoded JSON value into a column value.
type Transform func(v any, loc *time.Location) (any, error)

// FieldMap copies the Source field of a record into Column, converting it with Transform.
type FieldMap struct {
	Source    string
	Column    string
	Transform Transform
}

// Text stores strings as-is and numbers and booleans in their JSON form.
func Text(v any, _ *time.Location) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return nil, fmt.Errorf("cannot store %T as text", v)
	}
}

// Integer stores whole numbers. Fractional values are rounded; values outside the
// int64 range, NaN and infinities are rejected.
func Integer(v any, _ *time.Location) (any, error) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return roundInt64(f)
	case float64:
		return roundInt64(val)
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", val)
		}
		return roundInt64(f)
	default:
		return nil, fmt.Errorf("cannot store %T as integer", v)
	}
}

// roundInt64 rounds f and converts it, failing when the result does not fit.
// 2^63 is exactly representable as a float64, so the bounds check is exact.
func roundInt64(f float64) (any, error) {
	r := math.Round(f)
	if math.IsNaN(r) || r < -(1<<63) || r >= 1<<63 {
		return nil, fmt.Errorf("integer out of range: %v", f)
	}
	return int64(r), nil
}

// Boolean accepts JSON booleans, 0 and 1, and the strings true/false, yes/no, 1/0.
func Boolean(v any, _ *time.Location) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case json.Number:
		switch val.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no", "":
			return false, nil
		}
	}
	return nil, fmt.Errorf("cannot store %v as boolean", v)
}

// JoinTags joins a list of tags with ", ".
func JoinTags(v any, loc *time.Location) (any, error) {
	switch val := v.(type) {
	case []any:
		tags := make([]string, 0, len(val))
		for _, tag := range val {
			s, err := Text(tag, loc)
			if err != nil {
				return nil, err
			}
			tags = append(tags, s.(string))
		}
		return strings.Join(tags, ", "), nil
	case string:
		return val, nil
	default:
		return nil, fmt.Errorf("cannot store %T as tags", v)
	}
}

// JSONText stores the JSON encoding of the value.
func JSONText(v any, _ *time.Location) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Timestamp accepts epoch seconds, "YYYY-MM-DD HH:MM:SS" (read in loc) or RFC 3339 and
// stores "YYYY-MM-DD HH:MM:SS" in loc.
func Timestamp(v any, loc *time.Location) (any, error) {
	if loc == nil {
		loc = time.UTC
	}

	var t time.Time
	switch val := v.(type) {
	case json.Number:
		secs, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("not epoch seconds: %s", val)
		}
		t = time.Unix(secs, 0)
	case string:
		s := strings.TrimSpace(val)
		parsed, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc)
		if err != nil {
			if parsed, err = time.Parse(time.RFC3339, s); err != nil {
				return nil, fmt.Errorf("unrecognized timestamp: %q", val)
			}
		}
		t = parsed
	default:
		return nil, fmt.Errorf("cannot store %T as timestamp", v)
	}

	return t.In(loc).Format("2006-01-02 15:04:05"), nil
}

// Identity part placeholders resolved from the ingest [Scope] rather than the record.
const (
	partCompany     = "$company"
	partWindowStart = "$window_start"
	partWindowEnd   = "$window_end"
)

type identityRule struct {
	parts    []string
	optional map[string]bool
}

var identityRules = map[models.RecordKind]identityRule{
	models.KindEmployee:        {parts: []string{"emp_number"}},
	models.KindCallLog:         {parts: []string{"id"}},
	models.KindEmployeeSummary: {parts: []string{partCompany, "emp_number", partWindowStart, partWindowEnd}},
	models.KindAnalysis: {
		parts:    []string{partCompany, partWindowStart, partWindowEnd, "emp_number"},
		optional: map[string]bool{"emp_number": true},
	},
	models.KindUniqueClient: {parts: []string{partCompany, "client_number", "client_country_code"}},
	models.KindHourly:       {parts: []string{partCompany, partWindowStart, partWindowEnd, "hour"}},
	models.KindDaywise:      {parts: []string{partCompany, "date"}},
}

// needsWindow reports whether the kind's identity includes the reporting window.
func needsWindow(kind models.RecordKind) bool {
	for _, part := range identityRules[kind].parts {
		if part == partWindowStart {
			return true
		}
	}
	return false
}

// Identity extracts the identity key of rec. A missing or empty required field
// fails with the name of that field.
func Identity(kind models.RecordKind, rec models.ExternalRecord, scope Scope) (models.IdentityKey, error) {
	rule, ok := identityRules[kind]
	if !ok {
		return nil, fmt.Errorf("no identity rule for %s", kind)
	}

	key := make(models.IdentityKey, 0, len(rule.parts))
	for _, part := range rule.parts {
		switch part {
		case partCompany:
			key = append(key, scope.Company)
		case partWindowStart, partWindowEnd:
			if scope.Window == nil {
				return nil, fmt.Errorf("%s requires a reporting window", kind)
			}
			bound := scope.Window.Start
			if part == partWindowEnd {
				bound = scope.Window.End
			}
			key = append(key, strconv.FormatInt(bound, 10))
		default:
			value := identityValue(rec[part])
			if value == "" && !rule.optional[part] {
				return nil, fmt.Errorf("missing %s", part)
			}
			key = append(key, value)
		}
	}
	return key, nil
}

func identityValue(v any) string {
	if v == nil {
		return ""
	}
	s, err := Text(v, time.UTC)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s.(string))
}

var (
	employeeFields = []FieldMap{
		{"emp_name", "emp_name", Text},
		{"emp_code", "emp_code", Text},
		{"emp_country_code", "emp_country_code", Text},
		{"emp_number", "emp_number", Text},
		{"emp_number", "mobile_no", Text},
		{"emp_tags", "emp_tags", JoinTags},
		{"app_version", "app_version", Text},
		{"registered_at", "registered_at", Timestamp},
		{"modified_at", "modified_at", Timestamp},
		{"last_call_at", "last_call_at", Timestamp},
		{"last_sync_req_at", "last_sync_req_at", Timestamp},
		{"is_lead_active", "is_lead_active", Boolean},
		{"is_call_recording_active", "is_call_recording_active", Boolean},
	}

	callLogFields = []FieldMap{
		{"id", "call_log_id", Text},
		{"client_name", "client_name", Text},
		{"client_country_code", "client_country_code", Text},
		{"client_number", "client_number", Text},
		{"duration", "duration", Integer},
		{"call_type", "call_type", Text},
		{"call_date", "call_date", Text},
		{"call_time", "call_time", Text},
		{"note", "note", JSONText},
		{"call_recording_url", "call_recording_url", Text},
		{"crm_status", "crm_status", Text},
		{"reminder_date", "reminder_date", Text},
		{"reminder_time", "reminder_time", Text},
		{"synced_at", "synced_at", Timestamp},
		{"modified_at", "modified_at", Timestamp},
	}

	employeeSummaryFields = []FieldMap{
		{"emp_name", "emp_name", Text},
		{"emp_code", "emp_code", Text},
		{"emp_number", "emp_number", Text},
		{"total_calls", "total_calls", Integer},
		{"total_duration", "total_duration", Integer},
		{"incoming_calls", "incoming_calls", Integer},
		{"incoming_duration", "incoming_duration", Integer},
		{"outgoing_calls", "outgoing_calls", Integer},
		{"outgoing_duration", "outgoing_duration", Integer},
		{"missed_calls", "missed_calls", Integer},
		{"rejected_calls", "rejected_calls", Integer},
		{"never_attended_calls", "never_attended_calls", Integer},
		{"not_pickup_by_client_calls", "not_pickup_by_client_calls", Integer},
		{"unique_clients", "unique_clients", Integer},
		{"working_hours", "working_hours", Text},
	}

	analysisFields = []FieldMap{
		{"emp_number", "emp_number", Text},
		{"total_calls", "total_calls", Integer},
		{"total_duration", "total_duration", Integer},
		{"avg_duration", "avg_duration", Integer},
		{"connected_calls", "connected_calls", Integer},
		{"highest_duration", "highest_duration", Integer},
		{"total_incoming", "total_incoming", Integer},
		{"total_outgoing", "total_outgoing", Integer},
		{"total_missed", "total_missed", Integer},
		{"total_rejected", "total_rejected", Integer},
	}

	uniqueClientFields = []FieldMap{
		{"client_name", "client_name", Text},
		{"client_number", "client_number", Text},
		{"client_country_code", "client_country_code", Text},
		{"emp_number", "emp_number", Text},
		{"total_calls", "total_calls", Integer},
		{"total_duration", "total_duration", Integer},
		{"first_call_at", "first_call_at", Timestamp},
		{"last_call_at", "last_call_at", Timestamp},
	}

	hourlyFields = []FieldMap{
		{"hour", "hour", Text},
		{"total_calls", "total_calls", Integer},
		{"incoming_calls", "incoming_calls", Integer},
		{"outgoing_calls", "outgoing_calls", Integer},
		{"missed_calls", "missed_calls", Integer},
		{"total_duration", "total_duration", Integer},
	}

	daywiseFields = []FieldMap{
		{"date", "date", Text},
		{"total_calls", "total_calls", Integer},
		{"incoming_calls", "incoming_calls", Integer},
		{"outgoing_calls", "outgoing_calls", Integer},
		{"missed_calls", "missed_calls", Integer},
		{"rejected_calls", "rejected_calls", Integer},
		{"total_duration", "total_duration", Integer},
	}
)

// FieldMaps returns the mapping table for kind.
func FieldMaps(kind models.RecordKind) []FieldMap {
	switch kind {
	case models.KindEmployee:
		return employeeFields
	case models.KindCallLog:
		return callLogFields
	case models.KindEmployeeSummary:
		return employeeSummaryFields
	case models.KindAnalysis:
		return analysisFields
	case models.KindUniqueClient:
		return uniqueClientFields
	case models.KindHourly:
		return hourlyFields
	case models.KindDaywise:
		return daywiseFields
	}
	return nil
}

// MappingIssue describes an optional field whose value could not be converted.
type MappingIssue struct {
	Field string
	Err   error
}

// Map applies the kind's table to rec. Missing fields and failed conversions map to nil;
// failed conversions are also returned so the caller can log them.
func Map(kind models.RecordKind, rec models.ExternalRecord, loc *time.Location) (map[string]any, []MappingIssue) {
	fields := FieldMaps(kind)
	columns := make(map[string]any, len(fields))

	var issues []MappingIssue
	for _, f := range fields {
		v, ok := rec[f.Source]
		if !ok || v == nil {
			columns[f.Column] = nil
			continue
		}

		out, err := f.Transform(v, loc)
		if err != nil {
			issues = append(issues, MappingIssue{Field: f.Source, Err: err})
			out = nil
		}
		columns[f.Column] = out
	}
	return columns, issues
}
