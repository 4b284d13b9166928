// Package seed loads players, teams and access settings into an auction's
// tables. Existing rows are left untouched.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/live-auction/go/internal/live"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/store"
)

// Team carries the PIN, which models.Team never serialises.
type Team struct {
	Name  string `json:"team_name"`
	Color string `json:"team_color"`
	PIN   string `json:"team_pin"`
}

type Timer struct {
	Pool    string `json:"pool"`
	Seconds int    `json:"timer_seconds"`
}

type Access struct {
	AuctioneerPIN string `json:"auctioneer_pin"`
}

type Data struct {
	Players []models.Player
	Teams   []Team
	Timers  []Timer
	Access  Access
}

// Asset file names read by LoadDir. Missing files are skipped.
const (
	PlayersFile = "players.json"
	TeamsFile   = "teams.json"
	TimersFile  = "timers.json"
	AccessFile  = "access.json"
)

// LoadDir reads the seed files in dir.
func LoadDir(dir string) (Data, error) {
	var d Data
	files := []struct {
		name string
		dst  any
	}{
		{PlayersFile, &d.Players},
		{TeamsFile, &d.Teams},
		{TimersFile, &d.Timers},
		{AccessFile, &d.Access},
	}
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.name))
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("file", f.name).Msg("seed file not found, skipping")
			continue
		}
		if err != nil {
			return d, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := json.Unmarshal(data, f.dst); err != nil {
			return d, fmt.Errorf("unmarshal %s: %w", f.name, err)
		}
	}
	return d, nil
}

// Counts tallies one table's seed run.
type Counts struct {
	Total    int
	Inserted int
	Skipped  int
	Errors   int
}

func (c Counts) String() string {
	return fmt.Sprintf("total=%d inserted=%d skipped=%d errors=%d", c.Total, c.Inserted, c.Skipped, c.Errors)
}

type Report struct {
	Players   Counts
	Teams     Counts
	Timers    Counts
	Access    bool
	LiveReset bool
}

type Options struct {
	// ResetLive clears the player-on-the-block fields, sets status IDLE and
	// bumps the refresh token.
	ResetLive bool
}

// Run creates any missing tables, then inserts rows whose key is not yet
// present.
func Run(ctx context.Context, repo *live.Repository, d Data, opts Options) (Report, error) {
	var r Report
	if err := repo.EnsureSchema(ctx); err != nil {
		return r, err
	}

	s := repo.Store()
	t := repo.Tables()

	existing, err := keys(ctx, s, t.Players, live.ColPlayerID, identity)
	if err != nil {
		return r, err
	}
	r.Players.Total = len(d.Players)
	for _, p := range d.Players {
		p.PlayerID = strings.TrimSpace(p.PlayerID)
		pool, perr := models.ParsePool(string(p.Pool))
		if p.PlayerID == "" || perr != nil {
			log.Warn().Str("player_id", p.PlayerID).Str("pool", string(p.Pool)).Msg("skipping invalid player")
			r.Players.Errors++
			continue
		}
		if existing[p.PlayerID] {
			r.Players.Skipped++
			continue
		}
		p.Pool = pool
		if p.Status == "" {
			p.Status = models.PlayerStatusAvailable
		}
		if err := s.AppendRow(ctx, t.Players, live.EncodePlayer(p)); err != nil {
			log.Error().Err(err).Str("player_id", p.PlayerID).Msg("failed to seed player")
			r.Players.Errors++
			continue
		}
		existing[p.PlayerID] = true
		r.Players.Inserted++
	}

	existing, err = keys(ctx, s, t.Teams, live.ColTeamName, identity)
	if err != nil {
		return r, err
	}
	r.Teams.Total = len(d.Teams)
	for _, team := range d.Teams {
		name := strings.TrimSpace(team.Name)
		if name == "" {
			r.Teams.Errors++
			continue
		}
		if existing[name] {
			r.Teams.Skipped++
			continue
		}
		row := live.EncodeTeam(models.Team{Name: name, Color: team.Color, PIN: team.PIN})
		if err := s.AppendRow(ctx, t.Teams, row); err != nil {
			log.Error().Err(err).Str("team", name).Msg("failed to seed team")
			r.Teams.Errors++
			continue
		}
		existing[name] = true
		r.Teams.Inserted++
	}

	existing, err = keys(ctx, s, t.Timers, live.ColPool, strings.ToUpper)
	if err != nil {
		return r, err
	}
	r.Timers.Total = len(d.Timers)
	for _, tm := range d.Timers {
		pool, perr := models.ParsePool(tm.Pool)
		if perr != nil || tm.Seconds <= 0 {
			log.Warn().Str("pool", tm.Pool).Int("seconds", tm.Seconds).Msg("skipping invalid timer rule")
			r.Timers.Errors++
			continue
		}
		if existing[string(pool)] {
			r.Timers.Skipped++
			continue
		}
		row := map[string]string{live.ColPool: string(pool), live.ColTimerSeconds: strconv.Itoa(tm.Seconds)}
		if err := s.AppendRow(ctx, t.Timers, row); err != nil {
			log.Error().Err(err).Str("pool", string(pool)).Msg("failed to seed timer rule")
			r.Timers.Errors++
			continue
		}
		existing[string(pool)] = true
		r.Timers.Inserted++
	}

	if d.Access.AuctioneerPIN != "" {
		if err := s.UpsertKV(ctx, t.Access, live.KeyAuctioneerPIN, d.Access.AuctioneerPIN); err != nil {
			return r, fmt.Errorf("failed to write auctioneer pin: %w", err)
		}
		r.Access = true
	}

	if opts.ResetLive {
		if err := ResetLive(ctx, repo); err != nil {
			return r, err
		}
		r.LiveReset = true
	}
	return r, nil
}

// ResetLive returns the live record to an idle, unlocked state. The refresh
// token keeps increasing so projectors re-render.
func ResetLive(ctx context.Context, repo *live.Repository) error {
	state, err := repo.GetState(ctx)
	if err != nil {
		return err
	}
	plan := repo.NewLivePlan("reset")
	for _, key := range []string{
		models.KeyActivePool,
		models.KeyCurrentPlayerID,
		models.KeyCurrentPlayerName,
		models.KeyPool,
		models.KeyRole,
		models.KeyBasePrice,
		models.KeyCurrentBid,
		models.KeyLeadingTeam,
		models.KeyLeadingTeamColor,
		models.KeyTimerStartTS,
		models.KeyTimerDuration,
	} {
		plan.Set(key, "")
	}
	plan.Set(models.KeyStatus, string(models.AuctionStatusIdle)).
		Set(models.KeyLastAction, "RESET").
		BumpToken(state)
	if err := repo.Apply(ctx, plan.Plan); err != nil {
		return err
	}
	log.Info().Int64("refresh_token", state.NextToken()).Msg("live auction reset")
	return nil
}

func keys(ctx context.Context, s store.Store, table, column string, norm func(string) string) (map[string]bool, error) {
	rows, err := s.ReadTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	out := make(map[string]bool, len(rows))
	for _, row := range rows {
		if v := strings.TrimSpace(row.Get(column)); v != "" {
			out[norm(v)] = true
		}
	}
	return out, nil
}

func identity(s string) string { return s }
