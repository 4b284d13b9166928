// Package sheets implements store.Store over the Google Sheets v4 values API.
// Each table is a worksheet whose first row holds the column headers.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"

	"github.com/mcdev12/live-auction/go/internal/store"
)

const (
	DefaultBaseURL = "https://sheets.googleapis.com"
	scope          = "https://www.googleapis.com/auth/spreadsheets"
)

// Config for the Sheets backend.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string // service account JSON; empty uses application default credentials
	BaseURL         string
	RequestsPerSec  float64
	Burst           int
	Timeout         time.Duration
}

// Store talks to one spreadsheet.
type Store struct {
	id      string
	client  *resty.Client
	limiter *rate.Limiter
}

// New builds an authenticated Store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	var (
		creds *google.Credentials
		err   error
	)
	if cfg.CredentialsFile != "" {
		data, rerr := os.ReadFile(cfg.CredentialsFile)
		if rerr != nil {
			return nil, fmt.Errorf("read credentials: %w", rerr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, scope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("load google credentials: %w", err)
	}

	return NewWithClient(oauth2.NewClient(ctx, creds.TokenSource), cfg), nil
}

// NewWithClient uses httpClient as is. Tests pass a plain client pointed
// at an httptest server.
func NewWithClient(httpClient *http.Client, cfg Config) *Store {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	client := resty.NewWithClient(httpClient).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Store{
		id:      cfg.SpreadsheetID,
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
}

type valueRange struct {
	Range          string     `json:"range,omitempty"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]string `json:"values"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (s *Store) ReadTable(ctx context.Context, table string) ([]store.Record, error) {
	rows, err := s.getValues(ctx, store.OpReadTable, table)
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
			rec[col] = cell(row, i)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) UpsertKV(ctx context.Context, table, key, value string) error {
	rows, err := s.getValues(ctx, store.OpUpsertKV, table)
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

	for i, row := range rows[1:] {
		if cell(row, keyIdx) == key {
			return s.putCell(ctx, store.OpUpsertKV, table, valIdx, i+2, value)
		}
	}

	values := make([]string, max(keyIdx, valIdx)+1)
	values[keyIdx] = key
	values[valIdx] = value
	return s.append(ctx, store.OpUpsertKV, table, values)
}

func (s *Store) UpdateRowByID(ctx context.Context, table, idColumn, idValue string, fields map[string]string) error {
	rows, err := s.getValues(ctx, store.OpUpdateRowByID, table)
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
		// Rewrite the whole row in one request so the update lands together.
		updated := make([]string, len(header))
		for j, col := range header {
			if v, ok := fields[col]; ok {
				updated[j] = v
			} else {
				updated[j] = cell(row, j)
			}
		}
		return s.putRow(ctx, store.OpUpdateRowByID, table, i+2, updated)
	}
	return nil
}

func (s *Store) AppendRow(ctx context.Context, table string, fields map[string]string) error {
	rows, err := s.getValues(ctx, store.OpAppendRow, table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s has no header row: %w", table, store.ErrUnknownColumn)
	}
	header := rows[0]
	values := make([]string, len(header))
	for i, col := range header {
		values[i] = fields[col]
	}
	return s.append(ctx, store.OpAppendRow, table, values)
}

// EnsureSchema adds missing worksheets and writes their header rows.
func (s *Store) EnsureSchema(ctx context.Context, schema store.Schema) error {
	var meta struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := s.do(ctx, store.OpReadTable, s.client.R().
		SetContext(ctx).
		SetPathParam("id", s.id).
		SetQueryParam("fields", "sheets.properties.title").
		SetResult(&meta), http.MethodGet, "/v4/spreadsheets/{id}"); err != nil {
		return err
	}

	existing := make(map[string]bool, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		existing[sh.Properties.Title] = true
	}

	for table, cols := range schema {
		if existing[table] {
			continue
		}
		body := map[string]any{
			"requests": []any{
				map[string]any{"addSheet": map[string]any{"properties": map[string]any{"title": table}}},
			},
		}
		if err := s.do(ctx, store.OpAppendRow, s.client.R().
			SetContext(ctx).
			SetPathParam("id", s.id).
			SetBody(body), http.MethodPost, "/v4/spreadsheets/{id}:batchUpdate"); err != nil {
			return fmt.Errorf("add sheet %s: %w", table, err)
		}
		if err := s.putRow(ctx, store.OpAppendRow, table, 1, cols); err != nil {
			return fmt.Errorf("write header %s: %w", table, err)
		}
		log.Info().Str("table", table).Msg("created worksheet")
	}
	return nil
}

func (s *Store) getValues(ctx context.Context, op store.Op, table string) ([][]string, error) {
	var vr valueRange
	err := s.do(ctx, op, s.client.R().
		SetContext(ctx).
		SetPathParam("id", s.id).
		SetPathParam("range", quoteSheet(table)).
		SetQueryParam("valueRenderOption", "FORMATTED_VALUE").
		SetResult(&vr), http.MethodGet, "/v4/spreadsheets/{id}/values/{range}")
	if err != nil {
		return nil, err
	}
	return vr.Values, nil
}

func (s *Store) putCell(ctx context.Context, op store.Op, table string, colIdx, row int, value string) error {
	name, err := excelize.CoordinatesToCellName(colIdx+1, row)
	if err != nil {
		return err
	}
	return s.put(ctx, op, quoteSheet(table)+"!"+name, []string{value})
}

func (s *Store) putRow(ctx context.Context, op store.Op, table string, row int, values []string) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return s.put(ctx, op, quoteSheet(table)+"!"+start, values)
}

func (s *Store) put(ctx context.Context, op store.Op, rng string, values []string) error {
	return s.do(ctx, op, s.client.R().
		SetContext(ctx).
		SetPathParam("id", s.id).
		SetPathParam("range", rng).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(valueRange{Range: rng, MajorDimension: "ROWS", Values: [][]string{values}}),
		http.MethodPut, "/v4/spreadsheets/{id}/values/{range}")
}

func (s *Store) append(ctx context.Context, op store.Op, table string, values []string) error {
	rng := quoteSheet(table)
	return s.do(ctx, op, s.client.R().
		SetContext(ctx).
		SetPathParam("id", s.id).
		SetPathParam("range", rng).
		SetQueryParam("valueInputOption", "RAW").
		SetQueryParam("insertDataOption", "INSERT_ROWS").
		SetBody(valueRange{Range: rng, MajorDimension: "ROWS", Values: [][]string{values}}),
		http.MethodPost, "/v4/spreadsheets/{id}/values/{range}:append")
}

// do waits on the rate limiter, executes req and classifies the outcome.
func (s *Store) do(ctx context.Context, op store.Op, req *resty.Request, method, path string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req.SetError(&apiError{})
	resp, err := req.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return store.Transient(op, err)
	}
	if resp.IsSuccess() {
		return nil
	}

	msg := resp.Status()
	if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	err = fmt.Errorf("sheets %s %s: %d %s", method, path, resp.StatusCode(), msg)

	switch code := resp.StatusCode(); {
	case code == http.StatusTooManyRequests, code >= 500:
		return store.Transient(op, err)
	case code == http.StatusNotFound, code == http.StatusBadRequest && isRangeError(msg):
		return fmt.Errorf("%w: %v", store.ErrUnknownTable, err)
	default:
		return err
	}
}

func quoteSheet(table string) string {
	return "'" + strings.ReplaceAll(table, "'", "''") + "'"
}

// Sheets answers an unknown worksheet in a range with 400 "Unable to parse range".
func isRangeError(msg string) bool {
	return strings.HasPrefix(msg, "Unable to parse range")
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
