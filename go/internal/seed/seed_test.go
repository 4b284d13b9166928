package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/live-auction/go/internal/live"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/store"
)

func newRepo() (*store.MemoryStore, *live.Repository) {
	tables := live.DefaultTables()
	mem := store.NewMemoryStore(nil)
	return mem, live.NewRepository(mem, tables)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	_, repo := newRepo()

	d := Data{
		Players: []models.Player{
			{PlayerID: "A01", PlayerName: "Asha", Pool: "a", BasePrice: 100},
			{PlayerID: "A01", PlayerName: "Asha again", Pool: "A", BasePrice: 100},
			{PlayerID: "Z01", PlayerName: "Nobody", Pool: "Z"},
		},
		Teams: []Team{
			{Name: "Strikers", Color: "#e63946", PIN: "1111"},
			{Name: " "},
		},
		Timers: []Timer{{Pool: "a", Seconds: 45}, {Pool: "B", Seconds: 0}},
		Access: Access{AuctioneerPIN: "0000"},
	}

	r, err := Run(ctx, repo, d, Options{})
	require.NoError(t, err)
	assert.Equal(t, Counts{Total: 3, Inserted: 1, Skipped: 1, Errors: 1}, r.Players)
	assert.Equal(t, Counts{Total: 2, Inserted: 1, Errors: 1}, r.Teams)
	assert.Equal(t, Counts{Total: 2, Inserted: 1, Errors: 1}, r.Timers)
	assert.True(t, r.Access)
	assert.False(t, r.LiveReset)

	players, err := repo.ListPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, models.PoolA, players[0].Pool)
	assert.Equal(t, models.PlayerStatusAvailable, players[0].Status)

	team, err := repo.GetTeam(ctx, "Strikers")
	require.NoError(t, err)
	assert.Equal(t, "1111", team.PIN)

	secs, ok, err := repo.PoolTimer(ctx, models.PoolA)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45, secs)

	pin, err := repo.AccessValue(ctx, live.KeyAuctioneerPIN)
	require.NoError(t, err)
	assert.Equal(t, "0000", pin)

	t.Run("second run skips everything", func(t *testing.T) {
		r, err := Run(ctx, repo, d, Options{})
		require.NoError(t, err)
		assert.Zero(t, r.Players.Inserted)
		assert.Equal(t, 2, r.Players.Skipped)
		assert.Equal(t, 1, r.Teams.Skipped)
		assert.Equal(t, 1, r.Timers.Skipped)
	})
}

func TestResetLive(t *testing.T) {
	ctx := context.Background()
	mem, repo := newRepo()
	require.NoError(t, repo.EnsureSchema(ctx))
	mem.Seed(live.DefaultTables().LiveAuction,
		store.Record{store.KeyColumn: models.KeyActivePool, store.ValueColumn: "A"},
		store.Record{store.KeyColumn: models.KeyCurrentPlayerID, store.ValueColumn: "A01"},
		store.Record{store.KeyColumn: models.KeyStatus, store.ValueColumn: "SOLD"},
		store.Record{store.KeyColumn: models.KeyCurrentBid, store.ValueColumn: "150"},
		store.Record{store.KeyColumn: models.KeyRefreshToken, store.ValueColumn: "12"},
	)

	r, err := Run(ctx, repo, Data{}, Options{ResetLive: true})
	require.NoError(t, err)
	assert.True(t, r.LiveReset)

	st, err := repo.GetState(ctx)
	require.NoError(t, err)
	assert.False(t, st.PoolLocked())
	assert.Empty(t, st.CurrentPlayerID)
	assert.Zero(t, st.CurrentBid)
	assert.Equal(t, models.AuctionStatusIdle, st.Status)
	assert.Equal(t, "RESET", st.LastAction)
	assert.Equal(t, int64(13), st.RefreshToken, "token keeps increasing")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TeamsFile),
		[]byte(`[{"team_name":"Titans","team_color":"#457b9d","team_pin":"2222"}]`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AccessFile),
		[]byte(`{"auctioneer_pin":"9876"}`), 0o600))

	d, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, d.Players, "missing files are skipped")
	require.Len(t, d.Teams, 1)
	assert.Equal(t, "2222", d.Teams[0].PIN)
	assert.Equal(t, "9876", d.Access.AuctioneerPIN)

	require.NoError(t, os.WriteFile(filepath.Join(dir, PlayersFile), []byte(`{`), 0o600))
	_, err = LoadDir(dir)
	assert.Error(t, err)
}

func TestLoadDir_Assets(t *testing.T) {
	d, err := LoadDir(filepath.Join("..", "assets"))
	require.NoError(t, err)
	assert.NotEmpty(t, d.Players)
	assert.NotEmpty(t, d.Teams)
	assert.NotEmpty(t, d.Timers)
	assert.NotEmpty(t, d.Access.AuctioneerPIN)
}
