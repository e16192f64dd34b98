// Package models defines domain entities and persistence interfaces for the callsync service.
//
// The package contains three categories of types:
//
// 1. Record kinds and identity: what an upstream record is and how it is deduplicated
//   - [RecordKind] : employee, call_log and the company-scoped report kinds
//   - [IdentityKey] : ordered identity parts, joined with "|" when persisted, separators inside parts escaped
//   - [ExternalRecord] : an opaque JSON object received from Callyzer
//
// 2. Persistent Entities: database-backed configuration with a full lifecycle
//   - [SettingsEntry] : per-company Callyzer API configuration
//
// 3. Persisted record DTOs: read-only views used for exports
//   - [Employee] : an ingested employee row
//   - [CallLog] : an ingested call log row
//
// Persistent entities implement the [Model] interface; the [Repository] interface defines standard CRUD operations.
package models
