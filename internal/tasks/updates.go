package tasks

import (
	"context"
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Company string // Company the update refers to, if any
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ResolveSettings Phase = iota
	FetchRecords
	IngestRecords
	FetchFailed
	Complete
)

func (p Phase) String() string {
	switch p {
	case ResolveSettings:
		return "resolve_settings"
	case FetchRecords:
		return "fetch_records"
	case IngestRecords:
		return "ingest_records"
	case FetchFailed:
		return "fetch_failed"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// sendProgress delivers update on progress, waiting for the reader until ctx is done.
// A nil channel discards updates.
func sendProgress(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
	}
}

func resolvedSettingsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveSettings,
		Total:   total,
		Message: fmt.Sprintf("Found %d active settings entries", total),
	}
}

func fetchingUpdate(step, total int, company string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRecords,
		Step:    step,
		Total:   total,
		Company: company,
		Message: fmt.Sprintf("[%d/%d] Fetching employees for %s...", step, total, company),
	}
}

func ingestedUpdate(step, total int, company string, o Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   IngestRecords,
		Step:    step,
		Total:   total,
		Company: company,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d created, %d skipped, %d invalid)", step, total, company, o.Created, o.Skipped, o.Invalid),
		Data:    o,
	}
}

func failedUpdate(step, total int, company string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchFailed,
		Step:    step,
		Total:   total,
		Company: company,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, company, err),
	}
}

func completeUpdate(total int, o Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Created %d employees across %d companies", o.Created, total),
		Data:    o,
	}
}
