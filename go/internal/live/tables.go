// Package live maps the auction's shared tables onto typed models and
// applies ordered write plans against a store.Store.
package live

import "github.com/mcdev12/live-auction/go/internal/store"

// Tables names the worksheets backing one auction.
type Tables struct {
	LiveAuction string `yaml:"live_auction"`
	Players     string `yaml:"players"`
	Teams       string `yaml:"teams"`
	AuctionLog  string `yaml:"auction_log"`
	Timers      string `yaml:"timers"`
	Access      string `yaml:"access"`
}

// DefaultTables returns the conventional sheet names.
func DefaultTables() Tables {
	return Tables{
		LiveAuction: "Live_Auction",
		Players:     "Players",
		Teams:       "Teams",
		AuctionLog:  "Auction_Log",
		Timers:      "Config_Timer",
		Access:      "Config_Access",
	}
}

// WithDefaults fills empty names from DefaultTables.
func (t Tables) WithDefaults() Tables {
	d := DefaultTables()
	if t.LiveAuction == "" {
		t.LiveAuction = d.LiveAuction
	}
	if t.Players == "" {
		t.Players = d.Players
	}
	if t.Teams == "" {
		t.Teams = d.Teams
	}
	if t.AuctionLog == "" {
		t.AuctionLog = d.AuctionLog
	}
	if t.Timers == "" {
		t.Timers = d.Timers
	}
	if t.Access == "" {
		t.Access = d.Access
	}
	return t
}

// Column headers.
const (
	ColPlayerID   = "player_id"
	ColPlayerName = "player_name"
	ColPool       = "pool"
	ColRole       = "role"
	ColBasePrice  = "base_price"
	ColStatus     = "status"
	ColSoldTo     = "sold_to"
	ColSoldPrice  = "sold_price"
	ColRound      = "round"

	ColTeamName  = "team_name"
	ColTeamColor = "team_color"
	ColTeamPIN   = "team_pin"

	ColTimestamp = "timestamp"
	ColAction    = "action"
	ColBidAmount = "bid_amount"

	ColTimerSeconds = "timer_seconds"
)

// KeyAuctioneerPIN is the Config_Access key holding the auctioneer PIN.
const KeyAuctioneerPIN = "auctioneer_pin"

var (
	playerColumns = []string{ColPlayerID, ColPlayerName, ColPool, ColRole, ColBasePrice, ColStatus, ColSoldTo, ColSoldPrice, ColRound}
	teamColumns   = []string{ColTeamName, ColTeamColor, ColTeamPIN}
	logColumns    = []string{ColTimestamp, ColPlayerID, ColAction, ColTeamName, ColBidAmount, ColRound}
	timerColumns  = []string{ColPool, ColTimerSeconds}
	kvColumns     = []string{store.KeyColumn, store.ValueColumn}
)

// Schema returns the header layout of every table.
func (t Tables) Schema() store.Schema {
	return store.Schema{
		t.LiveAuction: kvColumns,
		t.Players:     playerColumns,
		t.Teams:       teamColumns,
		t.AuctionLog:  logColumns,
		t.Timers:      timerColumns,
		t.Access:      kvColumns,
	}
}
