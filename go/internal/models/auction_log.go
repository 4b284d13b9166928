package models

import "time"

// AuctionLogEntry is one immutable row of the Auction_Log table
type AuctionLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	PlayerID  string    `json:"player_id"`
	Action    Outcome   `json:"action"`
	TeamName  string    `json:"team_name,omitempty"`
	BidAmount int       `json:"bid_amount,omitempty"` // 0 when UNSOLD
	Round     Pool      `json:"round"`
}

// LogTimestampLayout is how log timestamps are written to the store.
const LogTimestampLayout = time.RFC3339
