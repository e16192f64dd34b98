// Package tasks runs the fetch and ingest operations of callsync.
//
// # Core Operations
//
// [Engine] resolves the active settings of a company once, builds a
// [services.Service] for it and feeds the upstream records through the
// [ingest.Pipeline]:
//
//  1. [Engine.FetchEmployees] : employee list of one company, or of every active settings entry
//  2. [Engine.FetchCallLogs] : call history for a date range, nested under employees
//  3. [Engine.FetchReport] : one of the aggregate reports for a date range
//  4. [Engine.Summary] : summary report passthrough, not persisted
//  5. [Engine.IngestPayload] : a webhook push
//  6. [Engine.Sweep] : every endpoint for every active company, used by the scheduler
//
// Every operation returns an [Outcome]. Request parameters are validated before
// any upstream request is made.
//
// # Progress Reporting
//
// [Engine.FetchEmployees] accepts an optional channel of [ProgressUpdate].
// Every update is delivered, so the caller must keep reading until the call returns.
// Sends give up once the context is done.
package tasks
