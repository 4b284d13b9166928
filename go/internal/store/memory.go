package store

import (
	"context"
	"fmt"
	"sync"
)

// Call describes one operation seen by a MemoryStore.
type Call struct {
	Op    Op
	Table string
	Key   string // KV key or row id value, when relevant
}

// FaultFunc is consulted before every operation; a non-nil error fails it
// without touching the data.
type FaultFunc func(call Call) error

// MemoryStore is an in-process Store. It backs tests and the "memory"
// backend for single-process demos.
type MemoryStore struct {
	mu     sync.Mutex
	schema Schema
	tables map[string][]Record
	calls  []Call
	fault  FaultFunc
}

// NewMemoryStore creates an empty store. When schema is non-nil, unknown
// columns are rejected on update and appended rows are padded to the
// schema's columns.
func NewMemoryStore(schema Schema) *MemoryStore {
	return &MemoryStore{
		schema: schema,
		tables: make(map[string][]Record),
	}
}

// SetFault installs a fault hook. Pass nil to clear it.
func (m *MemoryStore) SetFault(fn FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

// Calls returns every operation attempted so far, in order.
func (m *MemoryStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// ResetCalls clears the call log.
func (m *MemoryStore) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Seed replaces the contents of table.
func (m *MemoryStore) Seed(table string, rows ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Record, 0, len(rows))
	for _, r := range rows {
		cp = append(cp, r.Clone())
	}
	m.tables[table] = cp
}

// EnsureSchema creates empty tables for every schema entry.
func (m *MemoryStore) EnsureSchema(_ context.Context, schema Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schema == nil {
		m.schema = make(Schema)
	}
	for table, cols := range schema {
		m.schema[table] = cols
		if _, ok := m.tables[table]; !ok {
			m.tables[table] = nil
		}
	}
	return nil
}

func (m *MemoryStore) ReadTable(_ context.Context, table string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(Call{Op: OpReadTable, Table: table}); err != nil {
		return nil, err
	}

	rows := m.tables[table]
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *MemoryStore) UpsertKV(_ context.Context, table, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(Call{Op: OpUpsertKV, Table: table, Key: key}); err != nil {
		return err
	}

	for _, r := range m.tables[table] {
		if r[KeyColumn] == key {
			r[ValueColumn] = value
			return nil
		}
	}
	m.tables[table] = append(m.tables[table], Record{KeyColumn: key, ValueColumn: value})
	return nil
}

func (m *MemoryStore) UpdateRowByID(_ context.Context, table, idColumn, idValue string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(Call{Op: OpUpdateRowByID, Table: table, Key: idValue}); err != nil {
		return err
	}

	if cols, ok := m.schema.Columns(table); ok {
		for col := range fields {
			if !contains(cols, col) {
				return fmt.Errorf("%s.%s: %w", table, col, ErrUnknownColumn)
			}
		}
	}

	for _, r := range m.tables[table] {
		if r[idColumn] == idValue {
			for col, v := range fields {
				r[col] = v
			}
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) AppendRow(_ context.Context, table string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(Call{Op: OpAppendRow, Table: table}); err != nil {
		return err
	}

	row := make(Record, len(fields))
	if cols, ok := m.schema.Columns(table); ok {
		for _, col := range cols {
			row[col] = fields[col]
		}
	} else {
		for col, v := range fields {
			row[col] = v
		}
	}
	m.tables[table] = append(m.tables[table], row)
	return nil
}

// enter records the call and applies the fault hook. Caller holds mu.
func (m *MemoryStore) enter(call Call) error {
	m.calls = append(m.calls, call)
	if m.fault != nil {
		return m.fault(call)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
