// Package ingest turns upstream Callyzer payloads into persisted records.
//
// A payload is first normalized into a sequence of [models.ExternalRecord] values ([Normalize]).
// Each record kind then has an identity rule and a declarative field mapping table ([FieldMap]);
// the [Pipeline] extracts the identity, maps the fields and creates the record if it is absent,
// counting created, skipped and invalid records.
//
// Employees delivered with nested call_logs are ingested parent first ([Pipeline.IngestEmployees]),
// and every child call log references the persisted employee id.
package ingest
