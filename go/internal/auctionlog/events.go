// Package auctionlog mirrors auction events to an external sink. The
// Auction_Log table stays the source of record; publishing is best effort.
package auctionlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/live-auction/go/internal/models"
)

// EventType names an auction event. It becomes the last subject token.
type EventType string

const (
	EventPoolLocked   EventType = "pool_locked"
	EventPlayerPicked EventType = "player_picked"
	EventPlayerSold   EventType = "player_sold"
	EventPlayerUnsold EventType = "player_unsold"
	EventBidPlaced    EventType = "bid_placed"
	EventBidPassed    EventType = "bid_passed"
)

// Event is the envelope handed to publishers.
type Event struct {
	ID           uuid.UUID       `json:"event_id"`
	Type         EventType       `json:"event_type"`
	RefreshToken int64           `json:"refresh_token"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Payload      json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an envelope with a fresh id.
func NewEvent(typ EventType, token int64, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:           uuid.New(),
		Type:         typ,
		RefreshToken: token,
		OccurredAt:   at.UTC(),
		Payload:      data,
	}, nil
}

// PoolLockedPayload is the payload for a PoolLocked event
type PoolLockedPayload struct {
	Pool models.Pool `json:"pool"`
}

// PlayerPickedPayload is the payload for a PlayerPicked event
type PlayerPickedPayload struct {
	PlayerID      string      `json:"player_id"`
	PlayerName    string      `json:"player_name"`
	Pool          models.Pool `json:"pool"`
	Role          string      `json:"role"`
	BasePrice     int         `json:"base_price"`
	TimerStartTS  int64       `json:"timer_start_ts"`
	TimerDuration int         `json:"timer_duration"`
}

// PlayerClosedPayload is the payload for PlayerSold and PlayerUnsold; it
// carries the Auction_Log row as written.
type PlayerClosedPayload struct {
	models.AuctionLogEntry
	PlayerName string `json:"player_name"`
}

// BidPlacedPayload is the payload for a BidPlaced event
type BidPlacedPayload struct {
	PlayerID  string `json:"player_id"`
	TeamName  string `json:"team_name"`
	Increment int    `json:"increment"`
	PriorBid  int    `json:"prior_bid"`
	NewBid    int    `json:"new_bid"`
}

// BidPassedPayload is the payload for a BidPassed event
type BidPassedPayload struct {
	PlayerID string `json:"player_id"`
	TeamName string `json:"team_name"`
}
