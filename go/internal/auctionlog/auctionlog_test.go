package auctionlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/live-auction/go/internal/models"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	entry := models.AuctionLogEntry{Timestamp: at, PlayerID: "P1", Action: models.OutcomeSold, TeamName: "Red", BidAmount: 110, Round: models.PoolA}

	ev, err := NewEvent(EventPlayerSold, 9, at, PlayerClosedPayload{AuctionLogEntry: entry, PlayerName: "Asha"})
	require.NoError(t, err)
	assert.NotEqual(t, ev.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "P1", payload["player_id"])
	assert.Equal(t, "Asha", payload["player_name"])
	assert.Equal(t, float64(110), payload["bid_amount"])
}

func TestJetStreamMessage(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	ev, err := NewEvent(EventBidPlaced, 4, time.Now(), BidPlacedPayload{PlayerID: "P1", TeamName: "Red", Increment: 5, PriorBid: 100, NewBid: 105})
	require.NoError(t, err)

	msg, err := p.message(ev)
	require.NoError(t, err)
	assert.Equal(t, "auction.events.bid_placed", msg.Subject)
	assert.Equal(t, ev.ID.String(), msg.Header.Get("Event-ID"))
	assert.Equal(t, "4", msg.Header.Get("Refresh-Token"))

	var back Event
	require.NoError(t, json.Unmarshal(msg.Data, &back))
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, EventBidPlaced, back.Type)
}

func TestStreamConfigCoversPrefix(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	sc := p.streamConfig()
	assert.Equal(t, []string{"auction.events.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, p.streamConfig()))

	changed := sc
	changed.Replicas = 3
	assert.False(t, isStreamConfigEqual(sc, changed))
}

func TestEmitSwallowsErrors(t *testing.T) {
	rec := &RecordingPublisher{Err: errors.New("broker down")}
	ev, err := NewEvent(EventPoolLocked, 1, time.Now(), PoolLockedPayload{Pool: models.PoolA})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		Emit(context.Background(), rec, ev)
		Emit(context.Background(), nil, ev)
	})
	assert.Empty(t, rec.Events())

	rec.Err = nil
	Emit(context.Background(), rec, ev)
	assert.Equal(t, []EventType{EventPoolLocked}, rec.Types())
}
