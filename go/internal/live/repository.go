package live

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/store"
)

// ErrTeamNotFound is returned by GetTeam when no row matches.
var ErrTeamNotFound = errors.New("team not found")

type Repository struct {
	store  store.Store
	tables Tables
}

func NewRepository(s store.Store, tables Tables) *Repository {
	return &Repository{
		store:  s,
		tables: tables.WithDefaults(),
	}
}

func (r *Repository) Tables() Tables { return r.tables }

func (r *Repository) Store() store.Store { return r.store }

// EnsureSchema creates missing tables when the backend supports it.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	init, ok := r.store.(store.Initializer)
	if !ok {
		return nil
	}
	if err := init.EnsureSchema(ctx, r.tables.Schema()); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

func (r *Repository) GetState(ctx context.Context) (models.LiveAuctionState, error) {
	rows, err := r.store.ReadTable(ctx, r.tables.LiveAuction)
	if err != nil {
		return models.LiveAuctionState{}, fmt.Errorf("failed to read live state: %w", err)
	}
	return DecodeState(rows), nil
}

func (r *Repository) ListPlayers(ctx context.Context) ([]models.Player, error) {
	rows, err := r.store.ReadTable(ctx, r.tables.Players)
	if err != nil {
		return nil, fmt.Errorf("failed to read players: %w", err)
	}
	players := make([]models.Player, 0, len(rows))
	for _, row := range rows {
		p := decodePlayer(row)
		if p.PlayerID == "" {
			continue
		}
		players = append(players, p)
	}
	return players, nil
}

func (r *Repository) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := r.store.ReadTable(ctx, r.tables.Teams)
	if err != nil {
		return nil, fmt.Errorf("failed to read teams: %w", err)
	}
	teams := make([]models.Team, 0, len(rows))
	for _, row := range rows {
		t := decodeTeam(row)
		if t.Name == "" {
			continue
		}
		teams = append(teams, t)
	}
	return teams, nil
}

func (r *Repository) GetTeam(ctx context.Context, name string) (*models.Team, error) {
	teams, err := r.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	for _, t := range teams {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q: %w", name, ErrTeamNotFound)
}

// PoolTimer returns the configured countdown for pool. ok is false when
// Config_Timer has no usable row for it.
func (r *Repository) PoolTimer(ctx context.Context, pool models.Pool) (seconds int, ok bool, err error) {
	rows, err := r.store.ReadTable(ctx, r.tables.Timers)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read timer config: %w", err)
	}
	for _, row := range rows {
		if !strings.EqualFold(strings.TrimSpace(row.Get(ColPool)), string(pool)) {
			continue
		}
		if s := parseInt(row.Get(ColTimerSeconds)); s > 0 {
			return s, true, nil
		}
	}
	return 0, false, nil
}

// AccessValue reads a key from the Config_Access table.
func (r *Repository) AccessValue(ctx context.Context, key string) (string, error) {
	rows, err := r.store.ReadTable(ctx, r.tables.Access)
	if err != nil {
		return "", fmt.Errorf("failed to read access config: %w", err)
	}
	for _, row := range rows {
		if strings.TrimSpace(row.Get(store.KeyColumn)) == key {
			return strings.TrimSpace(row.Get(store.ValueColumn)), nil
		}
	}
	return "", nil
}

func (r *Repository) AuctionLog(ctx context.Context) ([]models.AuctionLogEntry, error) {
	rows, err := r.store.ReadTable(ctx, r.tables.AuctionLog)
	if err != nil {
		return nil, fmt.Errorf("failed to read auction log: %w", err)
	}
	entries := make([]models.AuctionLogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, decodeLogEntry(row))
	}
	return entries, nil
}

// Apply runs plan against the store. See Apply.
func (r *Repository) Apply(ctx context.Context, plan *Plan) error {
	return Apply(ctx, r.store, plan)
}

// Resume replays the remainder of a partial write.
func (r *Repository) Resume(ctx context.Context, partial *PartialWriteError) error {
	return Resume(ctx, r.store, partial)
}

// NewLivePlan starts a plan whose key/value intents target Live_Auction.
func (r *Repository) NewLivePlan(action string) *LivePlan {
	return &LivePlan{Plan: NewPlan(action), tables: r.tables}
}

// LivePlan is a Plan with helpers bound to this auction's table names.
type LivePlan struct {
	*Plan
	tables Tables
}

func (p *LivePlan) Set(key, value string) *LivePlan {
	p.SetKV(p.tables.LiveAuction, key, value)
	return p
}

func (p *LivePlan) SetInt(key string, n int) *LivePlan {
	return p.Set(key, formatInt(n))
}

func (p *LivePlan) SetInt64(key string, n int64) *LivePlan {
	return p.Set(key, formatInt64(n))
}

// UpdatePlayer appends an update to the player's row.
func (p *LivePlan) UpdatePlayer(playerID string, fields map[string]string) *LivePlan {
	p.UpdateRow(p.tables.Players, ColPlayerID, playerID, fields)
	return p
}

// AppendLog appends an Auction_Log entry.
func (p *LivePlan) AppendLog(e models.AuctionLogEntry) *LivePlan {
	p.AppendRow(p.tables.AuctionLog, EncodeLogEntry(e))
	return p
}

// BumpToken writes the next refresh token. Plans end with it so a poller
// that sees the new token also sees every field written before it.
func (p *LivePlan) BumpToken(state models.LiveAuctionState) *LivePlan {
	return p.SetInt64(models.KeyRefreshToken, state.NextToken())
}
