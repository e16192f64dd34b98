package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrSettingsNotFound   = fmt.Errorf("callyzer settings not found for the company")
	ErrSettingsInactive   = fmt.Errorf("callyzer settings are not active")

	// Upstream errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrUnexpectedResponse = fmt.Errorf("unexpected response shape")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// Ingest errors
	ErrRecordMapping = fmt.Errorf("record is missing identity fields")
	ErrUnknownKind   = fmt.Errorf("unknown record kind")
	ErrInternal      = fmt.Errorf("internal processing failure")
)
