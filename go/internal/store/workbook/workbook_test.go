package workbook

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mcdev12/live-auction/go/internal/store"
)

var schema = store.Schema{
	"Live_Auction": {store.KeyColumn, store.ValueColumn},
	"Players":      {"player_id", "player_name", "status", "sold_to", "sold_price"},
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "auction.xlsx"))
	require.NoError(t, s.EnsureSchema(context.Background(), schema))
	return s
}

func TestEnsureSchema_CreatesSheetsWithHeaders(t *testing.T) {
	s := newStore(t)

	f, err := excelize.OpenFile(s.Path())
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Live_Auction", "Players"}, f.GetSheetList())
	rows, err := f.GetRows("Players")
	require.NoError(t, err)
	assert.Equal(t, []string{"player_id", "player_name", "status", "sold_to", "sold_price"}, rows[0])

	// Second call keeps existing data.
	require.NoError(t, s.AppendRow(context.Background(), "Players", map[string]string{"player_id": "P1"}))
	require.NoError(t, s.EnsureSchema(context.Background(), schema))
	got, err := s.ReadTable(context.Background(), "Players")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUpsertKV(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.UpsertKV(ctx, "Live_Auction", "status", "IDLE"))
	require.NoError(t, s.UpsertKV(ctx, "Live_Auction", "refresh_token", "1"))
	require.NoError(t, s.UpsertKV(ctx, "Live_Auction", "status", "LIVE"))

	rows, err := s.ReadTable(ctx, "Live_Auction")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, store.Record{"key": "status", "value": "LIVE"}, rows[0])
	assert.Equal(t, store.Record{"key": "refresh_token", "value": "1"}, rows[1])
}

func TestAppendAndUpdateRow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.AppendRow(ctx, "Players", map[string]string{"player_id": "P1", "player_name": "Asha", "status": "AVAILABLE"}))
	require.NoError(t, s.AppendRow(ctx, "Players", map[string]string{"player_id": "P2", "player_name": "Ben", "status": "AVAILABLE"}))
	require.NoError(t, s.UpdateRowByID(ctx, "Players", "player_id", "P2", map[string]string{"status": "SOLD", "sold_to": "Red", "sold_price": "40"}))

	rows, err := s.ReadTable(ctx, "Players")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AVAILABLE", rows[0].Get("status"))
	assert.Equal(t, "", rows[0].Get("sold_to"))
	assert.Equal(t, "SOLD", rows[1].Get("status"))
	assert.Equal(t, "40", rows[1].Get("sold_price"))

	t.Run("no match", func(t *testing.T) {
		assert.NoError(t, s.UpdateRowByID(ctx, "Players", "player_id", "P9", map[string]string{"status": "SOLD"}))
	})
	t.Run("unknown column", func(t *testing.T) {
		err := s.UpdateRowByID(ctx, "Players", "player_id", "P1", map[string]string{"colour": "x"})
		assert.ErrorIs(t, err, store.ErrUnknownColumn)
	})
}

func TestUnknownTable(t *testing.T) {
	s := newStore(t)
	_, err := s.ReadTable(context.Background(), "Teams")
	assert.ErrorIs(t, err, store.ErrUnknownTable)
}

func TestMissingFileIsNotTransient(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.xlsx"))
	_, err := s.ReadTable(context.Background(), "Players")
	require.Error(t, err)
	assert.False(t, store.IsTransient(err))
}
