package models

import (
	"fmt"
	"strings"
	"time"
)

// Pool is a named bracket of players auctioned together.
type Pool string

const (
	PoolNone  Pool = ""
	PoolA     Pool = "A"
	PoolB     Pool = "B"
	PoolFinal Pool = "FINAL"
)

// Pools lists the selectable pools in display order.
var Pools = []Pool{PoolA, PoolB, PoolFinal}

// ParsePool validates a pool name, case-insensitively.
func ParsePool(s string) (Pool, error) {
	p := Pool(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Pools {
		if p == known {
			return p, nil
		}
	}
	return PoolNone, fmt.Errorf("unknown pool %q", s)
}

// AuctionStatus is the phase of the player currently on the block.
type AuctionStatus string

const (
	AuctionStatusIdle   AuctionStatus = "IDLE"
	AuctionStatusLive   AuctionStatus = "LIVE"
	AuctionStatusSold   AuctionStatus = "SOLD"
	AuctionStatusUnsold AuctionStatus = "UNSOLD"
)

// Outcome is how the auctioneer closes a live player.
type Outcome string

const (
	OutcomeSold   Outcome = "SOLD"
	OutcomeUnsold Outcome = "UNSOLD"
)

// ParseOutcome validates a close outcome, case-insensitively.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(s))); o {
	case OutcomeSold, OutcomeUnsold:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

// Live_Auction keys. Each one is a row in the key/value table.
const (
	KeyActivePool        = "active_pool"
	KeyCurrentPlayerID   = "current_player_id"
	KeyCurrentPlayerName = "current_player_name"
	KeyPool              = "pool"
	KeyRole              = "role"
	KeyBasePrice         = "base_price"
	KeyCurrentBid        = "current_bid"
	KeyLeadingTeam       = "leading_team"
	KeyLeadingTeamColor  = "leading_team_color"
	KeyStatus            = "status"
	KeyTimerStartTS      = "timer_start_ts"
	KeyTimerDuration     = "timer_duration"
	KeyRefreshToken      = "refresh_token"
	KeyLastAction        = "last_action"
	KeyMessage           = "message"
)

// LiveAuctionState is the decoded Live_Auction table: the single shared
// record describing the in-progress auction.
type LiveAuctionState struct {
	ActivePool Pool `json:"active_pool"`

	CurrentPlayerID   string `json:"current_player_id"`
	CurrentPlayerName string `json:"current_player_name"`
	Pool              Pool   `json:"pool"`
	Role              string `json:"role"`
	BasePrice         int    `json:"base_price"`

	CurrentBid       int    `json:"current_bid"`
	LeadingTeam      string `json:"leading_team"`
	LeadingTeamColor string `json:"leading_team_color"`

	Status        AuctionStatus `json:"status"`
	TimerStartTS  int64         `json:"timer_start_ts"`
	TimerDuration int           `json:"timer_duration"`

	RefreshToken int64  `json:"refresh_token"`
	LastAction   string `json:"last_action"`
	Message      string `json:"message"`
}

// PoolLocked reports whether a pool has been chosen for this session.
func (s LiveAuctionState) PoolLocked() bool {
	return s.ActivePool != PoolNone
}

// IsLive reports whether bids are being accepted.
func (s LiveAuctionState) IsLive() bool {
	return s.Status == AuctionStatusLive
}

// HasLeader reports whether any team has bid on the current player.
func (s LiveAuctionState) HasLeader() bool {
	return s.LeadingTeam != ""
}

// RemainingSeconds derives the countdown for this state at now.
func (s LiveAuctionState) RemainingSeconds(now time.Time) int {
	return RemainingSeconds(s.TimerStartTS, s.TimerDuration, now)
}

// NextToken returns the refresh token the next mutation must write.
func (s LiveAuctionState) NextToken() int64 {
	return s.RefreshToken + 1
}
