package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePool(t *testing.T) {
	for in, want := range map[string]Pool{"A": PoolA, "b": PoolB, " final ": PoolFinal} {
		got, err := ParsePool(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParsePool("C")
	assert.Error(t, err)
	_, err = ParsePool("")
	assert.Error(t, err)
}

func TestParseOutcome(t *testing.T) {
	got, err := ParseOutcome("sold")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSold, got)

	got, err = ParseOutcome("UNSOLD")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnsold, got)

	_, err = ParseOutcome("LIVE")
	assert.Error(t, err)
}

func TestStatePredicates(t *testing.T) {
	var s LiveAuctionState
	assert.False(t, s.PoolLocked())
	assert.False(t, s.IsLive())
	assert.False(t, s.HasLeader())
	assert.Equal(t, int64(1), s.NextToken())

	s = LiveAuctionState{ActivePool: PoolB, Status: AuctionStatusLive, LeadingTeam: "X", RefreshToken: 41}
	assert.True(t, s.PoolLocked())
	assert.True(t, s.IsLive())
	assert.True(t, s.HasLeader())
	assert.Equal(t, int64(42), s.NextToken())
}

func TestPlayerEligible(t *testing.T) {
	p := Player{PlayerID: "P1", Pool: PoolA, Status: PlayerStatusAvailable}
	assert.True(t, p.Eligible(PoolA))
	assert.False(t, p.Eligible(PoolB))

	p.Status = PlayerStatusSold
	assert.False(t, p.Eligible(PoolA))
}

func TestTransitionErrorIsInvalidTransition(t *testing.T) {
	err := RejectTransition("close as SOLD", AuctionStatusLive, "no leading team")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, "cannot close as SOLD while LIVE: no leading team", err.Error())

	err = RejectTransition("pick next player", "", "pool not locked")
	assert.Contains(t, err.Error(), "while IDLE")
}
