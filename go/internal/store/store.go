// Package store is the adapter over the shared table store that carries all
// auction state between clients. Values are untyped text; typed decoding
// happens one layer up.
package store

import "context"

// Record is one row of a table keyed by column header.
type Record map[string]string

// Get returns the value for column, or "" when absent.
func (r Record) Get(column string) string {
	return r[column]
}

// Clone returns a copy safe to hand to callers.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// KV table columns.
const (
	KeyColumn   = "key"
	ValueColumn = "value"
)

// Store is the contract every backing store implements.
//
// Reads are full snapshots and may lag prior writes. Failures caused by the
// network or rate limiting must be reported as transient (see Transient) so
// Retrying can retry them.
type Store interface {
	// ReadTable returns every row of table in storage order.
	ReadTable(ctx context.Context, table string) ([]Record, error)

	// UpsertKV overwrites the value of the row whose key column equals key,
	// or appends a new key/value row.
	UpsertKV(ctx context.Context, table, key, value string) error

	// UpdateRowByID overwrites fields on the first row whose idColumn equals
	// idValue. No match is not an error.
	UpdateRowByID(ctx context.Context, table, idColumn, idValue string, fields map[string]string) error

	// AppendRow adds a row. Columns missing from fields are written empty.
	AppendRow(ctx context.Context, table string, fields map[string]string) error
}

// Schema maps table names to their ordered column headers. Backends use it
// to create missing tables and to order appended cells.
type Schema map[string][]string

// Columns returns the headers for table and whether the table is known.
func (s Schema) Columns(table string) ([]string, bool) {
	cols, ok := s[table]
	return cols, ok
}

// Initializer is implemented by backends that can create missing tables.
type Initializer interface {
	EnsureSchema(ctx context.Context, schema Schema) error
}

// Op names a store operation, used for logs, metrics and fault injection.
type Op string

const (
	OpReadTable     Op = "read_table"
	OpUpsertKV      Op = "upsert_kv"
	OpUpdateRowByID Op = "update_row_by_id"
	OpAppendRow     Op = "append_row"
)
