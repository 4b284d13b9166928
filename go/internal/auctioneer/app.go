// Package auctioneer drives the auction state machine. It is the only
// writer of status, the player-on-the-block fields and Player status
// transitions into and out of IN_AUCTION.
package auctioneer

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/live-auction/go/internal/auctionlog"
	"github.com/mcdev12/live-auction/go/internal/live"
	"github.com/mcdev12/live-auction/go/internal/models"
)

// DefaultTimerSeconds applies when a pool has no Config_Timer row.
const DefaultTimerSeconds = 30

// Repository defines what the app layer needs from the live tables
type Repository interface {
	GetState(ctx context.Context) (models.LiveAuctionState, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)
	PoolTimer(ctx context.Context, pool models.Pool) (int, bool, error)
	AccessValue(ctx context.Context, key string) (string, error)
	NewLivePlan(action string) *live.LivePlan
	Apply(ctx context.Context, plan *live.Plan) error
	Resume(ctx context.Context, partial *live.PartialWriteError) error
}

// App handles auctioneer business logic
type App struct {
	repo           Repository
	clock          clockwork.Clock
	picker         Picker
	publisher      auctionlog.Publisher
	defaultTimer   int
	replayAttempts int
}

type Option func(*App)

func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

func WithPicker(p Picker) Option {
	return func(a *App) { a.picker = p }
}

func WithPublisher(p auctionlog.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithDefaultTimer sets the countdown used when a pool has no timer rule.
func WithDefaultTimer(seconds int) Option {
	return func(a *App) {
		if seconds > 0 {
			a.defaultTimer = seconds
		}
	}
}

// WithReplay enables automatic replay of a transition's remaining writes
// after a partial failure. Zero, the default, leaves the mixed state for
// the operator to Reconcile.
func WithReplay(attempts int) Option {
	return func(a *App) { a.replayAttempts = attempts }
}

func NewApp(repo Repository, opts ...Option) *App {
	a := &App{
		repo:         repo,
		clock:        clockwork.NewRealClock(),
		picker:       NewRandomPicker(),
		publisher:    auctionlog.LogPublisher{},
		defaultTimer: DefaultTimerSeconds,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate checks pin against the auctioneer PIN in Config_Access. An
// unset PIN rejects every attempt.
func (a *App) Authenticate(ctx context.Context, pin string) error {
	want, err := a.repo.AccessValue(ctx, live.KeyAuctioneerPIN)
	if err != nil {
		return err
	}
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(pin)) != 1 {
		log.Warn().Msg("auctioneer authentication failed")
		return models.ErrAuthentication
	}
	return nil
}

// State returns the current live record.
func (a *App) State(ctx context.Context) (models.LiveAuctionState, error) {
	return a.repo.GetState(ctx)
}

// LockPool selects the pool for the session. The lock is one-way.
func (a *App) LockPool(ctx context.Context, pool models.Pool) (models.LiveAuctionState, error) {
	if _, err := models.ParsePool(string(pool)); err != nil {
		return models.LiveAuctionState{}, fmt.Errorf("lock pool: %w", err)
	}

	state, err := a.repo.GetState(ctx)
	if err != nil {
		return models.LiveAuctionState{}, err
	}
	if state.PoolLocked() {
		return state, models.RejectTransition("lock pool", state.Status,
			fmt.Sprintf("pool %s is already locked", state.ActivePool))
	}

	plan := a.repo.NewLivePlan("lock pool").
		Set(models.KeyActivePool, string(pool)).
		Set(models.KeyStatus, string(models.AuctionStatusIdle)).
		Set(models.KeyLastAction, "LOCK_POOL:"+string(pool)).
		BumpToken(state)
	if err := a.apply(ctx, plan.Plan); err != nil {
		return state, err
	}

	state.ActivePool = pool
	state.Status = models.AuctionStatusIdle
	state.RefreshToken = state.NextToken()

	log.Info().
		Str("pool", string(pool)).
		Int64("refresh_token", state.RefreshToken).
		Msg("pool locked")
	a.emit(ctx, auctionlog.EventPoolLocked, state.RefreshToken, auctionlog.PoolLockedPayload{Pool: pool})

	return state, nil
}

// PickNext draws a random AVAILABLE player from the locked pool, puts it on
// the block and starts its timer.
func (a *App) PickNext(ctx context.Context) (*models.Player, error) {
	state, err := a.repo.GetState(ctx)
	if err != nil {
		return nil, err
	}
	if !state.PoolLocked() {
		return nil, models.RejectTransition("pick next player", state.Status, "no pool is locked")
	}
	if state.IsLive() {
		return nil, models.RejectTransition("pick next player", state.Status,
			fmt.Sprintf("player %s is still live", state.CurrentPlayerID))
	}

	players, err := a.repo.ListPlayers(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.Player
	for _, p := range players {
		if p.Status == models.PlayerStatusInAuction {
			return nil, models.RejectTransition("pick next player", state.Status,
				fmt.Sprintf("player %s is stuck IN_AUCTION", p.PlayerID))
		}
		if p.Eligible(state.ActivePool) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		log.Info().Str("pool", string(state.ActivePool)).Msg("no eligible players left")
		return nil, fmt.Errorf("pool %s: %w", state.ActivePool, models.ErrNoEligiblePlayers)
	}

	choice := a.picker.Pick(candidates)

	duration, ok, err := a.repo.PoolTimer(ctx, state.ActivePool)
	if err != nil {
		return nil, err
	}
	if !ok {
		duration = a.defaultTimer
	}
	startTS := a.clock.Now().UTC().Unix()

	plan := a.repo.NewLivePlan("pick next player").
		UpdatePlayer(choice.PlayerID, map[string]string{live.ColStatus: string(models.PlayerStatusInAuction)}).
		Set(models.KeyCurrentPlayerID, choice.PlayerID).
		Set(models.KeyCurrentPlayerName, choice.PlayerName).
		Set(models.KeyPool, string(choice.Pool)).
		Set(models.KeyRole, choice.Role).
		SetInt(models.KeyBasePrice, choice.BasePrice).
		SetInt(models.KeyCurrentBid, choice.BasePrice).
		Set(models.KeyLeadingTeam, "").
		Set(models.KeyLeadingTeamColor, "").
		Set(models.KeyStatus, string(models.AuctionStatusLive)).
		SetInt64(models.KeyTimerStartTS, startTS).
		SetInt(models.KeyTimerDuration, duration).
		Set(models.KeyLastAction, "PICK:"+choice.PlayerID).
		BumpToken(state)
	if err := a.apply(ctx, plan.Plan); err != nil {
		return nil, err
	}

	token := state.NextToken()
	choice.Status = models.PlayerStatusInAuction

	log.Info().
		Str("player_id", choice.PlayerID).
		Str("player_name", choice.PlayerName).
		Str("pool", string(state.ActivePool)).
		Int("base_price", choice.BasePrice).
		Int("timer_duration", duration).
		Int("candidates", len(candidates)).
		Int64("refresh_token", token).
		Msg("player picked")
	a.emit(ctx, auctionlog.EventPlayerPicked, token, auctionlog.PlayerPickedPayload{
		PlayerID:      choice.PlayerID,
		PlayerName:    choice.PlayerName,
		Pool:          choice.Pool,
		Role:          choice.Role,
		BasePrice:     choice.BasePrice,
		TimerStartTS:  startTS,
		TimerDuration: duration,
	})

	return &choice, nil
}

// Close ends the live player as SOLD to the leading team or UNSOLD, and
// records the outcome in Auction_Log.
func (a *App) Close(ctx context.Context, outcome models.Outcome) (*models.AuctionLogEntry, error) {
	if _, err := models.ParseOutcome(string(outcome)); err != nil {
		return nil, fmt.Errorf("close: %w", err)
	}

	state, err := a.repo.GetState(ctx)
	if err != nil {
		return nil, err
	}
	action := "close as " + string(outcome)
	if !state.IsLive() {
		return nil, models.RejectTransition(action, state.Status, "no player is live")
	}
	if outcome == models.OutcomeSold && !state.HasLeader() {
		return nil, models.RejectTransition(action, state.Status, "no team has bid")
	}

	entry := models.AuctionLogEntry{
		Timestamp: a.clock.Now().UTC(),
		PlayerID:  state.CurrentPlayerID,
		Action:    outcome,
		Round:     state.ActivePool,
	}

	plan := a.repo.NewLivePlan(action)
	switch outcome {
	case models.OutcomeSold:
		entry.TeamName = state.LeadingTeam
		entry.BidAmount = state.CurrentBid
		plan.Set(models.KeyStatus, string(models.AuctionStatusSold)).
			AppendLog(entry).
			UpdatePlayer(state.CurrentPlayerID, map[string]string{
				live.ColStatus:    string(models.PlayerStatusSold),
				live.ColSoldTo:    state.LeadingTeam,
				live.ColSoldPrice: fmt.Sprint(state.CurrentBid),
				live.ColRound:     string(state.ActivePool),
			})
	case models.OutcomeUnsold:
		plan.Set(models.KeyStatus, string(models.AuctionStatusUnsold)).
			UpdatePlayer(state.CurrentPlayerID, map[string]string{
				live.ColStatus: string(models.PlayerStatusUnsold),
				live.ColRound:  string(state.ActivePool),
			}).
			AppendLog(entry)
	}
	plan.Set(models.KeyLastAction, string(outcome)+":"+state.CurrentPlayerID).
		BumpToken(state)

	if err := a.apply(ctx, plan.Plan); err != nil {
		return nil, err
	}

	token := state.NextToken()
	log.Info().
		Str("player_id", entry.PlayerID).
		Str("outcome", string(outcome)).
		Str("team", entry.TeamName).
		Int("bid_amount", entry.BidAmount).
		Int64("refresh_token", token).
		Msg("player closed")

	evType := auctionlog.EventPlayerUnsold
	if outcome == models.OutcomeSold {
		evType = auctionlog.EventPlayerSold
	}
	a.emit(ctx, evType, token, auctionlog.PlayerClosedPayload{
		AuctionLogEntry: entry,
		PlayerName:      state.CurrentPlayerName,
	})

	return &entry, nil
}

// Reconcile replays the writes a failed transition left undone.
func (a *App) Reconcile(ctx context.Context, partial *live.PartialWriteError) error {
	log.Info().
		Str("action", partial.Plan.Action).
		Int("applied", partial.Applied).
		Str("remaining", partial.Describe()).
		Msg("reconciling partial write")
	if err := a.repo.Resume(ctx, partial); err != nil {
		return fmt.Errorf("reconcile %s: %w", partial.Plan.Action, err)
	}
	return nil
}

func (a *App) apply(ctx context.Context, plan *live.Plan) error {
	err := a.repo.Apply(ctx, plan)

	var partial *live.PartialWriteError
	for attempt := 1; attempt <= a.replayAttempts && errors.As(err, &partial); attempt++ {
		log.Warn().
			Err(partial.Err).
			Str("action", plan.Action).
			Int("applied", partial.Applied).
			Int("attempt", attempt).
			Msg("replaying partial write")
		err = a.repo.Resume(ctx, partial)
	}

	if errors.As(err, &partial) {
		log.Error().
			Err(partial.Err).
			Str("action", plan.Action).
			Int("applied", partial.Applied).
			Str("remaining", partial.Describe()).
			Msg("transition left a partial write")
	}
	return err
}

func (a *App) emit(ctx context.Context, typ auctionlog.EventType, token int64, payload any) {
	ev, err := auctionlog.NewEvent(typ, token, a.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build auction event")
		return
	}
	auctionlog.Emit(ctx, a.publisher, ev)
}
