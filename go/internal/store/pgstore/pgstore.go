// Package pgstore implements store.Store on Postgres. Every table row is one
// JSONB document so the sheet-shaped contract maps without per-table DDL.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/live-auction/go/internal/store"
)

const ddl = `
CREATE TABLE IF NOT EXISTS auction_tables (
    sheet   TEXT PRIMARY KEY,
    columns JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS auction_rows (
    sheet  TEXT   NOT NULL REFERENCES auction_tables (sheet),
    row_no BIGSERIAL PRIMARY KEY,
    cells  JSONB  NOT NULL
);
CREATE INDEX IF NOT EXISTS auction_rows_sheet_idx ON auction_rows (sheet, row_no);
`

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) EnsureSchema(ctx context.Context, schema store.Schema) error {
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return classify(store.OpAppendRow, fmt.Errorf("create tables: %w", err))
	}
	for table, cols := range schema {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO auction_tables (sheet, columns) VALUES ($1, $2) ON CONFLICT (sheet) DO NOTHING`,
			table, cols)
		if err != nil {
			return classify(store.OpAppendRow, fmt.Errorf("register %s: %w", table, err))
		}
		if tag.RowsAffected() == 1 {
			log.Info().Str("table", table).Msg("registered table")
		}
	}
	return nil
}

func (s *Store) ReadTable(ctx context.Context, table string) ([]store.Record, error) {
	cols, err := s.columns(ctx, s.pool, store.OpReadTable, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT cells FROM auction_rows WHERE sheet = $1 ORDER BY row_no`, table)
	if err != nil {
		return nil, classify(store.OpReadTable, err)
	}
	cells, err := pgx.CollectRows(rows, pgx.RowTo[map[string]string])
	if err != nil {
		return nil, classify(store.OpReadTable, err)
	}

	out := make([]store.Record, 0, len(cells))
	for _, c := range cells {
		rec := make(store.Record, len(cols))
		for _, col := range cols {
			rec[col] = c[col]
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) UpsertKV(ctx context.Context, table, key, value string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := s.columns(ctx, tx, store.OpUpsertKV, table); err != nil {
			return err
		}
		// Serialise writers of the same key so a missing key is inserted once.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, table, key); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE auction_rows SET cells = cells || jsonb_build_object('value', $3::text)
			WHERE row_no = (
				SELECT row_no FROM auction_rows
				WHERE sheet = $1 AND cells->>'key' = $2
				ORDER BY row_no LIMIT 1
			)`, table, key, value)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO auction_rows (sheet, cells) VALUES ($1, $2)`,
			table, map[string]string{store.KeyColumn: key, store.ValueColumn: value})
		return err
	})
	return classify(store.OpUpsertKV, err)
}

func (s *Store) UpdateRowByID(ctx context.Context, table, idColumn, idValue string, fields map[string]string) error {
	cols, err := s.columns(ctx, s.pool, store.OpUpdateRowByID, table)
	if err != nil {
		return err
	}
	for col := range fields {
		if !contains(cols, col) {
			return fmt.Errorf("%s.%s: %w", table, col, store.ErrUnknownColumn)
		}
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE auction_rows SET cells = cells || $4::jsonb
		WHERE row_no = (
			SELECT row_no FROM auction_rows
			WHERE sheet = $1 AND cells->>$2 = $3
			ORDER BY row_no LIMIT 1
		)`, table, idColumn, idValue, fields)
	return classify(store.OpUpdateRowByID, err)
}

func (s *Store) AppendRow(ctx context.Context, table string, fields map[string]string) error {
	cols, err := s.columns(ctx, s.pool, store.OpAppendRow, table)
	if err != nil {
		return err
	}
	cells := make(map[string]string, len(cols))
	for _, col := range cols {
		cells[col] = fields[col]
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO auction_rows (sheet, cells) VALUES ($1, $2)`, table, cells)
	return classify(store.OpAppendRow, err)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) columns(ctx context.Context, q querier, op store.Op, table string) ([]string, error) {
	var cols []string
	err := q.QueryRow(ctx, `SELECT columns FROM auction_tables WHERE sheet = $1`, table).Scan(&cols)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", table, store.ErrUnknownTable)
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return cols, nil
}

// classify marks connection-level and contention failures as transient.
func classify(op store.Op, err error) error {
	if err == nil || errors.Is(err, store.ErrUnknownTable) || errors.Is(err, store.ErrUnknownColumn) {
		return err
	}
	if store.IsTransient(err) || errors.Is(err, context.Canceled) {
		return err
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return store.Transient(op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			pgErr.Code == "40001", // serialization_failure
			pgErr.Code == "40P01", // deadlock_detected
			pgErr.Code == "53300", // too_many_connections
			pgErr.Code == "57P01": // admin_shutdown
			return store.Transient(op, err)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return store.Transient(op, err)
	}
	return err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
