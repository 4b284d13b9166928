// Package projector is the read-only display client: it polls the live
// record and re-renders only when the refresh token moves.
package projector

import (
	"fmt"
	"time"

	"github.com/mcdev12/live-auction/go/internal/models"
)

// Display defaults for an empty or idle record.
const (
	DefaultHeader     = "Live Auction"
	DefaultPlayerName = "Waiting for Auction"
	DefaultTeamColor  = "#f5c518"
	Placeholder       = "-"
)

// View is the rendered display state. The countdown is not part of the
// cached render; call Remaining on each observation.
type View struct {
	RefreshToken int64  `json:"refresh_token"`
	Header       string `json:"header"`

	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Pool       string `json:"pool"`
	Role       string `json:"role"`
	BasePrice  int    `json:"base_price"`

	CurrentBid       int    `json:"current_bid"`
	LeadingTeam      string `json:"leading_team"`
	LeadingTeamColor string `json:"leading_team_color"`

	Status     models.AuctionStatus `json:"status"`
	ActivePool string               `json:"active_pool"`
	Banner     string               `json:"banner,omitempty"`

	TimerStartTS  int64 `json:"timer_start_ts"`
	TimerDuration int   `json:"timer_duration"`

	RenderedAt time.Time `json:"rendered_at"`
}

// Render derives the display view from a live record.
func Render(s models.LiveAuctionState, now time.Time) View {
	v := View{
		RefreshToken:     s.RefreshToken,
		Header:           orDefault(s.Message, DefaultHeader),
		PlayerID:         s.CurrentPlayerID,
		PlayerName:       orDefault(s.CurrentPlayerName, DefaultPlayerName),
		Pool:             orDefault(string(s.Pool), Placeholder),
		Role:             orDefault(s.Role, Placeholder),
		BasePrice:        s.BasePrice,
		CurrentBid:       s.CurrentBid,
		LeadingTeam:      orDefault(s.LeadingTeam, Placeholder),
		LeadingTeamColor: orDefault(s.LeadingTeamColor, DefaultTeamColor),
		Status:           s.Status,
		ActivePool:       orDefault(string(s.ActivePool), Placeholder),
		TimerStartTS:     s.TimerStartTS,
		TimerDuration:    s.TimerDuration,
		RenderedAt:       now.UTC(),
	}
	if v.Status == "" {
		v.Status = models.AuctionStatusIdle
	}

	switch s.Status {
	case models.AuctionStatusSold:
		v.Banner = fmt.Sprintf("SOLD to %s for %d", orDefault(s.LeadingTeam, Placeholder), s.CurrentBid)
	case models.AuctionStatusUnsold:
		v.Banner = "UNSOLD"
	}
	return v
}

// Remaining returns the countdown at now. It is only meaningful while LIVE.
func (v View) Remaining(now time.Time) int {
	if v.Status != models.AuctionStatusLive {
		return 0
	}
	return models.RemainingSeconds(v.TimerStartTS, v.TimerDuration, now)
}

// Snapshot pairs a view with its countdown at one instant.
type Snapshot struct {
	View
	RemainingSeconds int `json:"remaining_seconds"`
}

// At returns the view with its countdown evaluated at now.
func (v View) At(now time.Time) Snapshot {
	return Snapshot{View: v, RemainingSeconds: v.Remaining(now)}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
