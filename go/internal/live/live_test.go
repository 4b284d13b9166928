package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/store"
)

func kv(pairs ...string) []store.Record {
	out := make([]store.Record, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, store.Record{store.KeyColumn: pairs[i], store.ValueColumn: pairs[i+1]})
	}
	return out
}

func TestDecodeState(t *testing.T) {
	state := DecodeState(kv(
		"active_pool", "A",
		"current_player_id", "P1",
		"base_price", "100.0",
		"current_bid", "110",
		"status", "live",
		"timer_start_ts", "1700000000",
		"timer_duration", "thirty",
		"refresh_token", "7",
		"refresh_token", "99",
	))

	assert.Equal(t, models.PoolA, state.ActivePool)
	assert.Equal(t, "P1", state.CurrentPlayerID)
	assert.Equal(t, 100, state.BasePrice)
	assert.Equal(t, 110, state.CurrentBid)
	assert.Equal(t, models.AuctionStatusLive, state.Status)
	assert.Equal(t, int64(1700000000), state.TimerStartTS)
	assert.Equal(t, 0, state.TimerDuration, "malformed values decode to zero")
	assert.Equal(t, int64(7), state.RefreshToken, "first occurrence wins")
}

func TestDecodeState_Empty(t *testing.T) {
	state := DecodeState(nil)
	assert.False(t, state.PoolLocked())
	assert.Equal(t, int64(0), state.RefreshToken)
	assert.Equal(t, 0, state.RemainingSeconds(time.Now()))
}

func TestParseInt64(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"  42 ", 42},
		{"42.9", 42},
		{"-3", -3},
		{"abc", 0},
		{"NaN", 0},
		{"Inf", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseInt64(tt.in), "input %q", tt.in)
	}
}

func TestEncodeLogEntry(t *testing.T) {
	ts := time.Date(2026, 3, 1, 18, 30, 0, 0, time.FixedZone("IST", 19800))

	sold := EncodeLogEntry(models.AuctionLogEntry{Timestamp: ts, PlayerID: "P1", Action: models.OutcomeSold, TeamName: "Red", BidAmount: 110, Round: models.PoolA})
	assert.Equal(t, "2026-03-01T13:00:00Z", sold[ColTimestamp])
	assert.Equal(t, "110", sold[ColBidAmount])

	unsold := EncodeLogEntry(models.AuctionLogEntry{Timestamp: ts, PlayerID: "P2", Action: models.OutcomeUnsold, Round: models.PoolA})
	assert.Empty(t, unsold[ColTeamName])
	assert.Empty(t, unsold[ColBidAmount])

	back := decodeLogEntry(store.Record(sold))
	assert.True(t, back.Timestamp.Equal(ts))
	assert.Equal(t, models.OutcomeSold, back.Action)
}

func newRepo(t *testing.T) (*Repository, *store.MemoryStore) {
	t.Helper()
	tables := DefaultTables()
	mem := store.NewMemoryStore(tables.Schema())
	return NewRepository(mem, tables), mem
}

func TestRepository_Reads(t *testing.T) {
	ctx := context.Background()
	repo, mem := newRepo(t)
	mem.Seed("Players",
		store.Record{ColPlayerID: "P1", ColPlayerName: "Asha", ColPool: "a", ColBasePrice: "100", ColStatus: "available"},
		store.Record{ColPlayerID: ""},
	)
	mem.Seed("Teams", store.Record{ColTeamName: "Red ", ColTeamColor: "#ff0000", ColTeamPIN: " 1234"})
	mem.Seed("Config_Timer",
		store.Record{ColPool: "A", ColTimerSeconds: "bad"},
		store.Record{ColPool: "a", ColTimerSeconds: "45"},
	)
	mem.Seed("Config_Access", kv("auctioneer_pin", " 0000 ")...)

	players, err := repo.ListPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1, "rows without an id are skipped")
	assert.True(t, players[0].Eligible(models.PoolA))

	team, err := repo.GetTeam(ctx, "Red")
	require.NoError(t, err)
	assert.Equal(t, "1234", team.PIN)

	_, err = repo.GetTeam(ctx, "Blue")
	assert.ErrorIs(t, err, ErrTeamNotFound)

	secs, ok, err := repo.PoolTimer(ctx, models.PoolA)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 45, secs)

	_, ok, err = repo.PoolTimer(ctx, models.PoolFinal)
	require.NoError(t, err)
	assert.False(t, ok)

	pin, err := repo.AccessValue(ctx, KeyAuctioneerPIN)
	require.NoError(t, err)
	assert.Equal(t, "0000", pin)
}

func TestApply_PartialWriteAndResume(t *testing.T) {
	ctx := context.Background()
	repo, mem := newRepo(t)
	boom := store.Transient(store.OpUpsertKV, errors.New("quota"))

	plan := repo.NewLivePlan("pick next").
		Set(models.KeyStatus, "LIVE").
		SetInt(models.KeyCurrentBid, 100).
		BumpToken(models.LiveAuctionState{RefreshToken: 4})

	failing := true
	mem.SetFault(func(c store.Call) error {
		if failing && c.Key == models.KeyCurrentBid {
			return boom
		}
		return nil
	})

	err := repo.Apply(ctx, plan.Plan)
	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, store.ErrTransient)
	assert.Equal(t, 1, partial.Applied)
	assert.Len(t, partial.Remaining(), 2)
	assert.Contains(t, partial.Describe(), "current_bid")

	state, err := repo.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.AuctionStatusLive, state.Status)
	assert.Equal(t, int64(0), state.RefreshToken, "token is not bumped when the plan stops early")

	failing = false
	require.NoError(t, repo.Resume(ctx, partial))
	state, err = repo.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, state.CurrentBid)
	assert.Equal(t, int64(5), state.RefreshToken)
}

func TestApply_FirstIntentFailureIsNotPartial(t *testing.T) {
	repo, mem := newRepo(t)
	mem.SetFault(func(store.Call) error { return errors.New("denied") })

	err := repo.Apply(context.Background(), repo.NewLivePlan("lock pool").Set(models.KeyActivePool, "A").Plan)
	require.Error(t, err)
	var partial *PartialWriteError
	assert.False(t, errors.As(err, &partial))
}

func TestTables_WithDefaults(t *testing.T) {
	got := Tables{Players: "Squad"}.WithDefaults()
	assert.Equal(t, "Squad", got.Players)
	assert.Equal(t, "Live_Auction", got.LiveAuction)
	assert.Len(t, got.Schema(), 6)
}
