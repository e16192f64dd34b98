package tasks

import (
	"errors"
	"net/http"

	"github.com/desertthunder/callsync/internal/ingest"
	"github.com/desertthunder/callsync/internal/shared"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindInputValidation ErrorKind = "input_validation"
	KindUpstream        ErrorKind = "upstream_request_failure"
	KindInternal        ErrorKind = "internal"
)

// HTTPStatus maps the kind to the status code returned to HTTP callers.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case "":
		return http.StatusOK
	case KindInputValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Outcome is the structured result of a fetch or ingest operation.
type Outcome struct {
	Status           string    `json:"status"`
	Kind             ErrorKind `json:"kind,omitempty"`
	Created          int       `json:"created"`
	Skipped          int       `json:"skipped"`
	Invalid          int       `json:"invalid"`
	EmployeesCreated *int      `json:"employees_created,omitempty"`
	CallLogsCreated  *int      `json:"call_logs_created,omitempty"`
	Message          string    `json:"message,omitempty"`

	err error
}

// Err returns the error the outcome was built from, if any.
func (o Outcome) Err() error { return o.err }

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// HTTPStatus returns the status code for the outcome.
func (o Outcome) HTTPStatus() int { return o.Kind.HTTPStatus() }

// Classify maps an error to its [ErrorKind].
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrSettingsNotFound),
		errors.Is(err, shared.ErrSettingsInactive):
		return KindInputValidation
	case errors.Is(err, shared.ErrAPIRequest):
		return KindUpstream
	default:
		return KindInternal
	}
}

// NewOutcome converts err into an error outcome.
//
// Input validation messages are returned as is. Upstream and internal failures
// carry a generic message; their detail stays in the logs.
func NewOutcome(err error) Outcome {
	kind := Classify(err)
	o := Outcome{Status: StatusError, Kind: kind, err: err}
	switch kind {
	case KindInputValidation:
		o.Message = err.Error()
	case KindUpstream:
		o.Message = "upstream request failed"
	default:
		o.Message = "internal error"
	}
	return o
}

// ResultOutcome reports a flat ingest [ingest.Result].
func ResultOutcome(r ingest.Result) Outcome {
	return Outcome{Status: StatusSuccess, Created: r.Created, Skipped: r.Skipped, Invalid: r.Invalid}
}

// NestedOutcome reports an employee batch with nested call logs. Counts are summed
// across both levels and the per-level created counts are set.
func NestedOutcome(r ingest.NestedResult) Outcome {
	employees, calls := r.Employees.Created, r.CallLogs.Created
	return Outcome{
		Status:           StatusSuccess,
		Created:          employees + calls,
		Skipped:          r.Employees.Skipped + r.CallLogs.Skipped,
		Invalid:          r.Employees.Invalid + r.CallLogs.Invalid,
		EmployeesCreated: &employees,
		CallLogsCreated:  &calls,
	}
}

// partial keeps the counts of a failed ingest alongside the error classification.
func partial(o Outcome, err error) Outcome {
	failed := NewOutcome(err)
	failed.Created, failed.Skipped, failed.Invalid = o.Created, o.Skipped, o.Invalid
	failed.EmployeesCreated, failed.CallLogsCreated = o.EmployeesCreated, o.CallLogsCreated
	return failed
}

// add sums another successful outcome into o.
func (o *Outcome) add(other Outcome) {
	o.Created += other.Created
	o.Skipped += other.Skipped
	o.Invalid += other.Invalid
	if other.EmployeesCreated != nil {
		o.EmployeesCreated = sum(o.EmployeesCreated, *other.EmployeesCreated)
	}
	if other.CallLogsCreated != nil {
		o.CallLogsCreated = sum(o.CallLogsCreated, *other.CallLogsCreated)
	}
}

func sum(p *int, n int) *int {
	total := n
	if p != nil {
		total += *p
	}
	return &total
}
