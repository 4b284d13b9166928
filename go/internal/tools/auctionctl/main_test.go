package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/live-auction/go/internal/config"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/seed"
	"github.com/mcdev12/live-auction/go/internal/services"
)

// Each invocation opens the workbook afresh, so state is shared only through
// the file, the same as separate devices sharing a sheet.
func setupWorkbook(t *testing.T) {
	t.Helper()
	t.Setenv("AUCTION_STORE_BACKEND", "workbook")
	t.Setenv("AUCTION_WORKBOOK_PATH", filepath.Join(t.TempDir(), "auction.xlsx"))
	t.Setenv("AUCTION_BID_MODE", "expected_prior")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := config.Load("")
	require.NoError(t, err)
	svc, err := services.New(context.Background(), cfg)
	require.NoError(t, err)
	defer svc.Close()

	data, err := seed.LoadDir(filepath.Join("..", "..", "assets"))
	require.NoError(t, err)
	_, err = seed.Run(context.Background(), svc.Repo, data, seed.Options{})
	require.NoError(t, err)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).RunContext(context.Background(), append([]string{"auctionctl"}, args...))
	return out.String(), err
}

func mustRun[T any](t *testing.T, args ...string) T {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestAuctionAcrossInvocations(t *testing.T) {
	setupWorkbook(t)

	_, err := run(t, "auctioneer", "lock-pool", "--pin", "9999", "--pool", "A")
	assert.ErrorIs(t, err, models.ErrAuthentication)

	st := mustRun[models.LiveAuctionState](t, "auctioneer", "lock-pool", "--pin", "0000", "--pool", "B")
	assert.Equal(t, models.PoolB, st.ActivePool)

	player := mustRun[models.Player](t, "auctioneer", "pick-next", "--pin", "0000")
	assert.Equal(t, models.PoolB, player.Pool)

	st = mustRun[models.LiveAuctionState](t, "bidder", "bid", "--team", "Titans", "--pin", "2222", "--increment", "10")
	assert.Equal(t, player.BasePrice+10, st.CurrentBid)

	_, err = run(t, "bidder", "bid", "--team", "Royals", "--pin", "4444", "--expected-prior", "1")
	assert.Error(t, err)

	st = mustRun[models.LiveAuctionState](t, "bidder", "pass", "--team", "Royals", "--pin", "4444")
	assert.Equal(t, "PASS:Royals", st.LastAction)

	entry := mustRun[models.AuctionLogEntry](t, "auctioneer", "close", "--pin", "0000", "--outcome", "sold")
	assert.Equal(t, "Titans", entry.TeamName)
	assert.Equal(t, player.BasePrice+10, entry.BidAmount)

	entries := mustRun[[]models.AuctionLogEntry](t, "log")
	require.Len(t, entries, 1)
	assert.Equal(t, player.PlayerID, entries[0].PlayerID)

	st = mustRun[models.LiveAuctionState](t, "state")
	assert.Equal(t, models.AuctionStatusSold, st.Status)
	assert.Equal(t, int64(5), st.RefreshToken)
}
