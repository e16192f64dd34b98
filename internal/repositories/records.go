package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
)

var columnName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Row is one mapped record ready for insertion.
//
// Columns holds the kind-specific mapped values; nil values are stored as NULL.
type Row struct {
	IdentityKey string
	Company     string
	Columns     map[string]any
	Raw         string
}

// RecordStore persists ingested records of every [models.RecordKind].
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates a new [RecordStore] with the given database connection
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

// DB returns the underlying connection for callers that open their own transaction.
func (s *RecordStore) DB() *sql.DB {
	return s.db
}

// CreateIfAbsent inserts row unless a record with the same identity key already exists.
//
// It returns the id of the record, whether newly created or not, and created reports
// whether this call inserted it. q may be the store's database or an open transaction.
func (s *RecordStore) CreateIfAbsent(ctx context.Context, q Querier, kind models.RecordKind, row Row) (id string, created bool, err error) {
	table := kind.Table()
	if table == "" {
		return "", false, fmt.Errorf("%w: %s", shared.ErrUnknownKind, kind)
	}
	if q == nil {
		q = s.db
	}

	names := make([]string, 0, len(row.Columns))
	for name := range row.Columns {
		if !columnName.MatchString(name) {
			return "", false, fmt.Errorf("invalid column name %q for %s", name, kind)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	id = shared.GenerateID()
	cols := append([]string{"id", "identity_key", "company", "raw", "created_at"}, names...)
	args := []any{id, row.IdentityKey, row.Company, nullString(row.Raw), time.Now().UTC()}
	for _, name := range names {
		args = append(args, row.Columns[name])
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(identity_key) DO NOTHING",
		table, strings.Join(cols, ", "), placeholders,
	)

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert %s: %w", kind, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 1 {
		return id, true, nil
	}

	existing, err := s.LookupID(ctx, q, kind, row.IdentityKey)
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

// LookupID returns the id of the record with identityKey.
func (s *RecordStore) LookupID(ctx context.Context, q Querier, kind models.RecordKind, identityKey string) (string, error) {
	table := kind.Table()
	if table == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrUnknownKind, kind)
	}
	if q == nil {
		q = s.db
	}

	var id string
	err := q.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE identity_key = ?", identityKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s not found: %s", kind, identityKey)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", kind, err)
	}
	return id, nil
}

// Count returns the number of stored records of kind, optionally restricted to company.
func (s *RecordStore) Count(ctx context.Context, kind models.RecordKind, company string) (int, error) {
	table := kind.Table()
	if table == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrUnknownKind, kind)
	}

	query := "SELECT COUNT(*) FROM " + table
	args := []any{}
	if company != "" {
		query += " WHERE company = ?"
		args = append(args, company)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
