// Package repositories implements SQLite persistence for settings and ingested records.
//
// Key Implementations:
//   - [SettingsRepository] : per-company Callyzer configuration with company lookups
//   - [RecordStore] : create-if-absent inserts keyed by identity_key, shared by every record kind
//
// Record tables carry a UNIQUE identity_key. [RecordStore.CreateIfAbsent] issues a single
// INSERT ... ON CONFLICT DO NOTHING, so concurrent ingests of the same record cannot create duplicates.
// Every record method accepts a [Querier], letting callers run a whole batch inside one transaction.
package repositories
