// Package workbook implements store.Store on a local .xlsx file, one
// worksheet per table with column headers in row 1.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/mcdev12/live-auction/go/internal/store"
)

const defaultSheet = "Sheet1"

// Store reopens the workbook for every operation so edits made in a
// spreadsheet application between calls are picked up.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// EnsureSchema creates the file if needed and adds any missing sheets with
// their header row. Existing sheets are left as they are.
func (s *Store) EnsureSchema(_ context.Context, schema store.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	for table, cols := range schema {
		idx, err := f.GetSheetIndex(table)
		if err != nil {
			return fmt.Errorf("lookup sheet %s: %w", table, err)
		}
		if idx >= 0 {
			continue
		}
		if _, err := f.NewSheet(table); err != nil {
			return fmt.Errorf("create sheet %s: %w", table, err)
		}
		header := make([]interface{}, len(cols))
		for i, c := range cols {
			header[i] = c
		}
		if err := f.SetSheetRow(table, "A1", &header); err != nil {
			return fmt.Errorf("write header %s: %w", table, err)
		}
	}

	if created {
		if _, ok := schema[defaultSheet]; !ok && len(schema) > 0 {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return fmt.Errorf("drop default sheet: %w", err)
			}
		}
		return s.saveAs(f, store.OpAppendRow)
	}
	return s.save(f, store.OpAppendRow)
}

func (s *Store) ReadTable(_ context.Context, table string) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(store.OpReadTable)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := s.rows(f, table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []store.Record{}, nil
	}

	header := rows[0]
	out := make([]store.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(store.Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) UpsertKV(_ context.Context, table, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(store.OpUpsertKV)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := s.rows(f, table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s has no header row: %w", table, store.ErrUnknownColumn)
	}
	keyIdx := indexOf(rows[0], store.KeyColumn)
	valIdx := indexOf(rows[0], store.ValueColumn)
	if keyIdx < 0 || valIdx < 0 {
		return fmt.Errorf("%s is not a key/value table: %w", table, store.ErrUnknownColumn)
	}

	target := len(rows) + 1
	for i, row := range rows[1:] {
		if cell(row, keyIdx) == key {
			target = i + 2
			break
		}
	}
	if err := setCell(f, table, keyIdx, target, key); err != nil {
		return err
	}
	if err := setCell(f, table, valIdx, target, value); err != nil {
		return err
	}
	return s.save(f, store.OpUpsertKV)
}

func (s *Store) UpdateRowByID(_ context.Context, table, idColumn, idValue string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(store.OpUpdateRowByID)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := s.rows(f, table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	header := rows[0]
	idIdx := indexOf(header, idColumn)
	if idIdx < 0 {
		return fmt.Errorf("%s.%s: %w", table, idColumn, store.ErrUnknownColumn)
	}
	for col := range fields {
		if indexOf(header, col) < 0 {
			return fmt.Errorf("%s.%s: %w", table, col, store.ErrUnknownColumn)
		}
	}

	for i, row := range rows[1:] {
		if cell(row, idIdx) != idValue {
			continue
		}
		for col, v := range fields {
			if err := setCell(f, table, indexOf(header, col), i+2, v); err != nil {
				return err
			}
		}
		return s.save(f, store.OpUpdateRowByID)
	}
	return nil
}

func (s *Store) AppendRow(_ context.Context, table string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(store.OpAppendRow)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := s.rows(f, table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s has no header row: %w", table, store.ErrUnknownColumn)
	}
	header := rows[0]
	values := make([]interface{}, len(header))
	for i, col := range header {
		values[i] = fields[col]
	}
	start, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(table, start, &values); err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return s.save(f, store.OpAppendRow)
}

func (s *Store) open(op store.Op) (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open workbook %s: %w", s.path, err)
		}
		// Usually a concurrent writer holding the file mid-save.
		return nil, store.Transient(op, fmt.Errorf("open workbook %s: %w", s.path, err))
	}
	return f, nil
}

func (s *Store) openOrCreate() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	f, err := s.open(store.OpReadTable)
	return f, false, err
}

func (s *Store) rows(f *excelize.File, table string) ([][]string, error) {
	idx, err := f.GetSheetIndex(table)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: %w", table, store.ErrUnknownTable)
	}
	rows, err := f.GetRows(table)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", table, err)
	}
	return rows, nil
}

func (s *Store) save(f *excelize.File, op store.Op) error {
	if err := f.Save(); err != nil {
		return store.Transient(op, fmt.Errorf("save workbook: %w", err))
	}
	return nil
}

func (s *Store) saveAs(f *excelize.File, op store.Op) error {
	if err := f.SaveAs(s.path); err != nil {
		return store.Transient(op, fmt.Errorf("save workbook: %w", err))
	}
	return nil
}

func setCell(f *excelize.File, sheet string, colIdx, row int, value string) error {
	name, err := excelize.CoordinatesToCellName(colIdx+1, row)
	if err != nil {
		return err
	}
	return f.SetCellStr(sheet, name, value)
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if h == col {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
