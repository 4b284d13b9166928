package auctioneer

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/live-auction/go/internal/auctionlog"
	"github.com/mcdev12/live-auction/go/internal/live"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/store"
)

var start = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	mem   *store.MemoryStore
	repo  *live.Repository
	clock *clockwork.FakeClock
	pub   *auctionlog.RecordingPublisher
	app   *App
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	tables := live.DefaultTables()
	mem := store.NewMemoryStore(tables.Schema())
	mem.Seed(tables.Access, store.Record{store.KeyColumn: live.KeyAuctioneerPIN, store.ValueColumn: "0000"})
	mem.Seed(tables.Timers, store.Record{live.ColPool: "A", live.ColTimerSeconds: "30"})
	mem.Seed(tables.Teams, store.Record{live.ColTeamName: "X", live.ColTeamColor: "#00ff00", live.ColTeamPIN: "1111"})

	f := &fixture{
		mem:   mem,
		repo:  live.NewRepository(mem, tables),
		clock: clockwork.NewFakeClockAt(start),
		pub:   &auctionlog.RecordingPublisher{},
	}
	base := []Option{WithClock(f.clock), WithPublisher(f.pub), WithPicker(PickerFunc(func(c []models.Player) models.Player { return c[0] }))}
	f.app = NewApp(f.repo, append(base, opts...)...)
	return f
}

func (f *fixture) seedPlayers(players ...models.Player) {
	rows := make([]store.Record, 0, len(players))
	for _, p := range players {
		rows = append(rows, store.Record(live.EncodePlayer(p)))
	}
	f.mem.Seed(live.DefaultTables().Players, rows...)
}

func (f *fixture) state(t *testing.T) models.LiveAuctionState {
	t.Helper()
	s, err := f.repo.GetState(context.Background())
	require.NoError(t, err)
	return s
}

func (f *fixture) player(t *testing.T, id string) models.Player {
	t.Helper()
	players, err := f.repo.ListPlayers(context.Background())
	require.NoError(t, err)
	for _, p := range players {
		if p.PlayerID == id {
			return p
		}
	}
	t.Fatalf("player %s not found", id)
	return models.Player{}
}

func (f *fixture) writes() []store.Call {
	var out []store.Call
	for _, c := range f.mem.Calls() {
		if c.Op != store.OpReadTable {
			out = append(out, c)
		}
	}
	return out
}

func playerP(pool models.Pool) models.Player {
	return models.Player{PlayerID: "P", PlayerName: "Asha", Pool: pool, Role: "Batter", BasePrice: 100, Status: models.PlayerStatusAvailable}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.app.Authenticate(ctx, "0000"))
	assert.ErrorIs(t, f.app.Authenticate(ctx, "1234"), models.ErrAuthentication)

	f.mem.Seed(live.DefaultTables().Access)
	assert.ErrorIs(t, f.app.Authenticate(ctx, ""), models.ErrAuthentication, "unset PIN rejects everything")
}

func TestLockPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.state(t).RefreshToken

	got, err := f.app.LockPool(ctx, models.PoolA)
	require.NoError(t, err)

	state := f.state(t)
	assert.Equal(t, models.PoolA, state.ActivePool)
	assert.Equal(t, models.AuctionStatusIdle, state.Status)
	assert.Equal(t, before+1, state.RefreshToken)
	assert.Equal(t, state.RefreshToken, got.RefreshToken)
	assert.Equal(t, []auctionlog.EventType{auctionlog.EventPoolLocked}, f.pub.Types())

	t.Run("second lock is rejected", func(t *testing.T) {
		f.mem.ResetCalls()
		_, err := f.app.LockPool(ctx, models.PoolB)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.Empty(t, f.writes())
		assert.Equal(t, models.PoolA, f.state(t).ActivePool)
	})

	t.Run("unknown pool is rejected", func(t *testing.T) {
		_, err := newFixture(t).app.LockPool(ctx, models.Pool("Z"))
		assert.Error(t, err)
	})
}

func TestPickNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlayers(playerP(models.PoolA), models.Player{PlayerID: "Q", Pool: models.PoolB, BasePrice: 50, Status: models.PlayerStatusAvailable})
	_, err := f.app.LockPool(ctx, models.PoolA)
	require.NoError(t, err)
	before := f.state(t).RefreshToken

	picked, err := f.app.PickNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P", picked.PlayerID)

	state := f.state(t)
	assert.Equal(t, "P", state.CurrentPlayerID)
	assert.Equal(t, "Asha", state.CurrentPlayerName)
	assert.Equal(t, 100, state.CurrentBid)
	assert.Equal(t, 100, state.BasePrice)
	assert.Equal(t, models.AuctionStatusLive, state.Status)
	assert.Equal(t, 30, state.TimerDuration)
	assert.Equal(t, start.Unix(), state.TimerStartTS)
	assert.Empty(t, state.LeadingTeam)
	assert.Equal(t, before+1, state.RefreshToken)
	assert.Equal(t, models.PlayerStatusInAuction, f.player(t, "P").Status)

	players, err := f.repo.ListPlayers(ctx)
	require.NoError(t, err)
	inAuction := 0
	for _, p := range players {
		if p.Status == models.PlayerStatusInAuction {
			inAuction++
			assert.Equal(t, state.CurrentPlayerID, p.PlayerID)
		}
	}
	assert.Equal(t, 1, inAuction)

	t.Run("token is written last", func(t *testing.T) {
		writes := f.writes()
		last := writes[len(writes)-1]
		assert.Equal(t, models.KeyRefreshToken, last.Key)
	})

	t.Run("cannot pick while live", func(t *testing.T) {
		_, err := f.app.PickNext(ctx)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("timer counts down without writes", func(t *testing.T) {
		f.clock.Advance(12 * time.Second)
		assert.Equal(t, 18, f.state(t).RemainingSeconds(f.clock.Now()))
		f.clock.Advance(time.Minute)
		assert.Equal(t, 0, f.state(t).RemainingSeconds(f.clock.Now()))
		assert.True(t, f.state(t).IsLive(), "expiry never closes the player")
	})
}

func TestPickNext_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("no pool locked", func(t *testing.T) {
		f := newFixture(t)
		f.seedPlayers(playerP(models.PoolA))
		_, err := f.app.PickNext(ctx)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("no eligible players leaves state untouched", func(t *testing.T) {
		f := newFixture(t)
		sold := playerP(models.PoolA)
		sold.Status = models.PlayerStatusSold
		f.seedPlayers(sold, models.Player{PlayerID: "Q", Pool: models.PoolB, Status: models.PlayerStatusAvailable})
		_, err := f.app.LockPool(ctx, models.PoolA)
		require.NoError(t, err)
		before := f.state(t)
		f.mem.ResetCalls()

		_, err = f.app.PickNext(ctx)
		assert.ErrorIs(t, err, models.ErrNoEligiblePlayers)
		assert.Empty(t, f.writes())
		assert.Equal(t, before, f.state(t))
	})

	t.Run("stuck IN_AUCTION player blocks picking", func(t *testing.T) {
		f := newFixture(t)
		stuck := playerP(models.PoolA)
		stuck.Status = models.PlayerStatusInAuction
		f.seedPlayers(stuck, models.Player{PlayerID: "Q", Pool: models.PoolA, Status: models.PlayerStatusAvailable})
		_, err := f.app.LockPool(ctx, models.PoolA)
		require.NoError(t, err)

		_, err = f.app.PickNext(ctx)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.Contains(t, err.Error(), "P")
	})

	t.Run("default timer without a pool rule", func(t *testing.T) {
		f := newFixture(t, WithDefaultTimer(45))
		f.seedPlayers(playerP(models.PoolB))
		_, err := f.app.LockPool(ctx, models.PoolB)
		require.NoError(t, err)
		_, err = f.app.PickNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, 45, f.state(t).TimerDuration)
	})
}

// bid simulates a bidder write.
func (f *fixture) bid(t *testing.T, team string, amount int) {
	t.Helper()
	ctx := context.Background()
	tables := live.DefaultTables()
	require.NoError(t, f.mem.UpsertKV(ctx, tables.LiveAuction, models.KeyCurrentBid, strconv.Itoa(amount)))
	require.NoError(t, f.mem.UpsertKV(ctx, tables.LiveAuction, models.KeyLeadingTeam, team))
	require.NoError(t, f.mem.UpsertKV(ctx, tables.LiveAuction, models.KeyRefreshToken, strconv.FormatInt(f.state(t).NextToken(), 10)))
}

func liveFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.seedPlayers(playerP(models.PoolA))
	_, err := f.app.LockPool(context.Background(), models.PoolA)
	require.NoError(t, err)
	_, err = f.app.PickNext(context.Background())
	require.NoError(t, err)
	return f
}

func TestClose_Sold(t *testing.T) {
	ctx := context.Background()
	f := liveFixture(t)
	f.bid(t, "X", 110)
	before := f.state(t).RefreshToken
	f.clock.Advance(20 * time.Second)

	entry, err := f.app.Close(ctx, models.OutcomeSold)
	require.NoError(t, err)
	assert.Equal(t, "X", entry.TeamName)
	assert.Equal(t, 110, entry.BidAmount)

	state := f.state(t)
	assert.Equal(t, models.AuctionStatusSold, state.Status)
	assert.Equal(t, before+1, state.RefreshToken)
	assert.Equal(t, start.Unix(), state.TimerStartTS, "timer fields are left as they were")

	p := f.player(t, "P")
	assert.Equal(t, models.PlayerStatusSold, p.Status)
	assert.Equal(t, "X", p.SoldTo)
	assert.Equal(t, 110, p.SoldPrice)
	assert.Equal(t, models.PoolA, p.Round)

	logEntries, err := f.repo.AuctionLog(ctx)
	require.NoError(t, err)
	require.Len(t, logEntries, 1)
	assert.Equal(t, models.OutcomeSold, logEntries[0].Action)
	assert.Equal(t, 110, logEntries[0].BidAmount)
	assert.Equal(t, "X", logEntries[0].TeamName)
	assert.True(t, logEntries[0].Timestamp.Equal(start.Add(20*time.Second)))

	assert.Equal(t, []auctionlog.EventType{
		auctionlog.EventPoolLocked, auctionlog.EventPlayerPicked, auctionlog.EventPlayerSold,
	}, f.pub.Types())

	t.Run("next pick after sale", func(t *testing.T) {
		_, err := f.app.PickNext(ctx)
		assert.ErrorIs(t, err, models.ErrNoEligiblePlayers)
	})
}

func TestClose_SoldWithoutLeaderRejected(t *testing.T) {
	f := liveFixture(t)
	f.mem.ResetCalls()

	_, err := f.app.Close(context.Background(), models.OutcomeSold)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Empty(t, f.writes())
	assert.True(t, f.state(t).IsLive())
}

func TestClose_Unsold(t *testing.T) {
	ctx := context.Background()
	f := liveFixture(t)

	entry, err := f.app.Close(ctx, models.OutcomeUnsold)
	require.NoError(t, err)
	assert.Empty(t, entry.TeamName)
	assert.Zero(t, entry.BidAmount)

	assert.Equal(t, models.AuctionStatusUnsold, f.state(t).Status)
	p := f.player(t, "P")
	assert.Equal(t, models.PlayerStatusUnsold, p.Status)
	assert.Equal(t, models.PoolA, p.Round)
	assert.Empty(t, p.SoldTo)

	rows, err := f.mem.ReadTable(ctx, live.DefaultTables().AuctionLog)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "UNSOLD", rows[0].Get(live.ColAction))
	assert.Empty(t, rows[0].Get(live.ColTeamName))
	assert.Empty(t, rows[0].Get(live.ColBidAmount))

	t.Run("close again is rejected", func(t *testing.T) {
		_, err := f.app.Close(ctx, models.OutcomeUnsold)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})
}

func TestRefreshTokenStrictlyIncreases(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPlayers(playerP(models.PoolA), models.Player{PlayerID: "Q", Pool: models.PoolA, BasePrice: 20, Status: models.PlayerStatusAvailable})

	last := f.state(t).RefreshToken
	steps := []func() error{
		func() error { _, err := f.app.LockPool(ctx, models.PoolA); return err },
		func() error { _, err := f.app.PickNext(ctx); return err },
		func() error { _, err := f.app.Close(ctx, models.OutcomeUnsold); return err },
		func() error { _, err := f.app.PickNext(ctx); return err },
		func() error { _, err := f.app.Close(ctx, models.OutcomeUnsold); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		token := f.state(t).RefreshToken
		assert.Greater(t, token, last, "step %d", i)
		last = token
	}
}

func TestPartialWrite(t *testing.T) {
	ctx := context.Background()
	quota := store.Transient(store.OpUpsertKV, errors.New("quota"))

	failToken := func(f *fixture, times int) {
		left := times
		f.mem.SetFault(func(c store.Call) error {
			if c.Op == store.OpUpsertKV && c.Key == models.KeyRefreshToken && left > 0 {
				left--
				return quota
			}
			return nil
		})
	}

	t.Run("left mixed without replay", func(t *testing.T) {
		f := newFixture(t)
		f.seedPlayers(playerP(models.PoolA))
		_, err := f.app.LockPool(ctx, models.PoolA)
		require.NoError(t, err)
		before := f.state(t).RefreshToken
		failToken(f, 1)

		_, err = f.app.PickNext(ctx)
		var partial *live.PartialWriteError
		require.ErrorAs(t, err, &partial)
		assert.Len(t, partial.Remaining(), 1)

		state := f.state(t)
		assert.True(t, state.IsLive())
		assert.Equal(t, before, state.RefreshToken)
		assert.Equal(t, models.PlayerStatusInAuction, f.player(t, "P").Status)

		require.NoError(t, f.app.Reconcile(ctx, partial))
		assert.Equal(t, before+1, f.state(t).RefreshToken)
	})

	t.Run("replayed automatically when enabled", func(t *testing.T) {
		f := newFixture(t, WithReplay(2))
		f.seedPlayers(playerP(models.PoolA))
		_, err := f.app.LockPool(ctx, models.PoolA)
		require.NoError(t, err)
		before := f.state(t).RefreshToken
		failToken(f, 2)

		_, err = f.app.PickNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+1, f.state(t).RefreshToken)
	})

	t.Run("failure on the first write changes nothing", func(t *testing.T) {
		f := newFixture(t)
		f.mem.SetFault(func(c store.Call) error {
			if c.Op != store.OpReadTable {
				return quota
			}
			return nil
		})
		_, err := f.app.LockPool(ctx, models.PoolA)
		require.Error(t, err)
		var partial *live.PartialWriteError
		assert.False(t, errors.As(err, &partial))
		assert.False(t, f.state(t).PoolLocked())
	})
}

func TestRandomPicker(t *testing.T) {
	candidates := []models.Player{{PlayerID: "A"}, {PlayerID: "B"}, {PlayerID: "C"}}
	p := NewSeededPicker(1)
	seen := map[string]int{}
	for i := 0; i < 300; i++ {
		seen[p.Pick(candidates).PlayerID]++
	}
	assert.Len(t, seen, 3, "every candidate is drawn eventually")
	assert.Equal(t, "A", NewRandomPicker().Pick(candidates[:1]).PlayerID)
}
