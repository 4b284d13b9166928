package live

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/store"
)

// Stored values are untyped text. Decoding never fails: a malformed value
// decodes to its zero value.

func parseInt64(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	// Spreadsheets often hand back numbers as "100.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

func parseInt(s string) int {
	return int(parseInt64(s))
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}

func formatInt64(n int64) string {
	return strconv.FormatInt(n, 10)
}

// DecodeState builds the live record from Live_Auction key/value rows. The
// first occurrence of a key wins, matching UpsertKV.
func DecodeState(rows []store.Record) models.LiveAuctionState {
	kv := make(map[string]string, len(rows))
	for _, r := range rows {
		k := strings.TrimSpace(r.Get(store.KeyColumn))
		if _, seen := kv[k]; !seen {
			kv[k] = r.Get(store.ValueColumn)
		}
	}

	return models.LiveAuctionState{
		ActivePool:        models.Pool(strings.TrimSpace(kv[models.KeyActivePool])),
		CurrentPlayerID:   strings.TrimSpace(kv[models.KeyCurrentPlayerID]),
		CurrentPlayerName: kv[models.KeyCurrentPlayerName],
		Pool:              models.Pool(strings.TrimSpace(kv[models.KeyPool])),
		Role:              kv[models.KeyRole],
		BasePrice:         parseInt(kv[models.KeyBasePrice]),
		CurrentBid:        parseInt(kv[models.KeyCurrentBid]),
		LeadingTeam:       kv[models.KeyLeadingTeam],
		LeadingTeamColor:  kv[models.KeyLeadingTeamColor],
		Status:            models.AuctionStatus(strings.ToUpper(strings.TrimSpace(kv[models.KeyStatus]))),
		TimerStartTS:      parseInt64(kv[models.KeyTimerStartTS]),
		TimerDuration:     parseInt(kv[models.KeyTimerDuration]),
		RefreshToken:      parseInt64(kv[models.KeyRefreshToken]),
		LastAction:        kv[models.KeyLastAction],
		Message:           kv[models.KeyMessage],
	}
}

func decodePlayer(r store.Record) models.Player {
	return models.Player{
		PlayerID:   strings.TrimSpace(r.Get(ColPlayerID)),
		PlayerName: r.Get(ColPlayerName),
		Pool:       models.Pool(strings.ToUpper(strings.TrimSpace(r.Get(ColPool)))),
		Role:       r.Get(ColRole),
		BasePrice:  parseInt(r.Get(ColBasePrice)),
		Status:     models.PlayerStatus(strings.ToUpper(strings.TrimSpace(r.Get(ColStatus)))),
		SoldTo:     r.Get(ColSoldTo),
		SoldPrice:  parseInt(r.Get(ColSoldPrice)),
		Round:      models.Pool(strings.TrimSpace(r.Get(ColRound))),
	}
}

// EncodePlayer renders a player as a Players row.
func EncodePlayer(p models.Player) map[string]string {
	out := map[string]string{
		ColPlayerID:   p.PlayerID,
		ColPlayerName: p.PlayerName,
		ColPool:       string(p.Pool),
		ColRole:       p.Role,
		ColBasePrice:  formatInt(p.BasePrice),
		ColStatus:     string(p.Status),
		ColSoldTo:     p.SoldTo,
		ColRound:      string(p.Round),
	}
	if p.SoldPrice > 0 {
		out[ColSoldPrice] = formatInt(p.SoldPrice)
	}
	return out
}

func decodeTeam(r store.Record) models.Team {
	return models.Team{
		Name:  strings.TrimSpace(r.Get(ColTeamName)),
		Color: strings.TrimSpace(r.Get(ColTeamColor)),
		PIN:   strings.TrimSpace(r.Get(ColTeamPIN)),
	}
}

// EncodeTeam renders a team as a Teams row.
func EncodeTeam(t models.Team) map[string]string {
	return map[string]string{
		ColTeamName:  t.Name,
		ColTeamColor: t.Color,
		ColTeamPIN:   t.PIN,
	}
}

func decodeLogEntry(r store.Record) models.AuctionLogEntry {
	ts, _ := time.Parse(models.LogTimestampLayout, strings.TrimSpace(r.Get(ColTimestamp)))
	return models.AuctionLogEntry{
		Timestamp: ts,
		PlayerID:  strings.TrimSpace(r.Get(ColPlayerID)),
		Action:    models.Outcome(strings.ToUpper(strings.TrimSpace(r.Get(ColAction)))),
		TeamName:  r.Get(ColTeamName),
		BidAmount: parseInt(r.Get(ColBidAmount)),
		Round:     models.Pool(strings.TrimSpace(r.Get(ColRound))),
	}
}

// EncodeLogEntry renders an entry as an Auction_Log row. UNSOLD entries
// leave team and bid empty.
func EncodeLogEntry(e models.AuctionLogEntry) map[string]string {
	out := map[string]string{
		ColTimestamp: e.Timestamp.UTC().Format(models.LogTimestampLayout),
		ColPlayerID:  e.PlayerID,
		ColAction:    string(e.Action),
		ColTeamName:  e.TeamName,
		ColRound:     string(e.Round),
	}
	if e.Action == models.OutcomeSold {
		out[ColBidAmount] = formatInt(e.BidAmount)
	}
	return out
}
