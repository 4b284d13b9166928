// Package bidder lets an authenticated team raise the bid on the live
// player or pass.
package bidder

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

// Increments are the preset raise amounts offered to bidders.
var Increments = []int{1, 2, 5, 10}

// DefaultIncrement is the preselected raise.
const DefaultIncrement = 2

// ErrInvalidIncrement is returned for a zero or negative raise.
var ErrInvalidIncrement = errors.New("increment must be positive")

// Repository defines what the app layer needs from the live tables
type Repository interface {
	GetState(ctx context.Context) (models.LiveAuctionState, error)
	GetTeam(ctx context.Context, name string) (*models.Team, error)
	NewLivePlan(action string) *live.LivePlan
	Apply(ctx context.Context, plan *live.Plan) error
}

// Session is an authenticated team. There is no expiry.
type Session struct {
	Team models.Team
}

// App handles bidder business logic
type App struct {
	repo      Repository
	submitter Submitter
	publisher auctionlog.Publisher
	clock     clockwork.Clock
}

type Option func(*App)

func WithSubmitter(s Submitter) Option {
	return func(a *App) { a.submitter = s }
}

func WithPublisher(p auctionlog.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

func NewApp(repo Repository, opts ...Option) *App {
	a := &App{
		repo:      repo,
		submitter: LastWriteWins{},
		publisher: auctionlog.LogPublisher{},
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate matches pin against the team's stored PIN.
func (a *App) Authenticate(ctx context.Context, team, pin string) (*Session, error) {
	t, err := a.repo.GetTeam(ctx, team)
	if errors.Is(err, live.ErrTeamNotFound) {
		log.Warn().Str("team", team).Msg("bidder authentication failed: unknown team")
		return nil, models.ErrAuthentication
	}
	if err != nil {
		return nil, err
	}
	if t.PIN == "" || subtle.ConstantTimeCompare([]byte(t.PIN), []byte(pin)) != 1 {
		log.Warn().Str("team", team).Msg("bidder authentication failed")
		return nil, models.ErrAuthentication
	}
	return &Session{Team: *t}, nil
}

// State returns the current live record.
func (a *App) State(ctx context.Context) (models.LiveAuctionState, error) {
	return a.repo.GetState(ctx)
}

// PlaceBid raises the current bid by increment for the session's team.
// There is no floor or ceiling beyond increment > 0.
func (a *App) PlaceBid(ctx context.Context, s *Session, increment int, expectedPrior *int) (models.LiveAuctionState, error) {
	if increment <= 0 {
		return models.LiveAuctionState{}, fmt.Errorf("%w: got %d", ErrInvalidIncrement, increment)
	}

	state, err := a.submitter.Submit(ctx, a.repo, BidRequest{
		Team:          s.Team,
		Increment:     increment,
		ExpectedPrior: expectedPrior,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("team", s.Team.Name).
			Int("increment", increment).
			Msg("bid rejected")
		return state, err
	}

	log.Info().
		Str("team", s.Team.Name).
		Str("player_id", state.CurrentPlayerID).
		Int("increment", increment).
		Int("current_bid", state.CurrentBid).
		Int64("refresh_token", state.RefreshToken).
		Msg("bid placed")
	a.emit(ctx, auctionlog.EventBidPlaced, state.RefreshToken, auctionlog.BidPlacedPayload{
		PlayerID:  state.CurrentPlayerID,
		TeamName:  s.Team.Name,
		Increment: increment,
		PriorBid:  state.CurrentBid - increment,
		NewBid:    state.CurrentBid,
	})
	return state, nil
}

// Pass records that the team sits out the live player. Only last_action
// and the token change.
func (a *App) Pass(ctx context.Context, s *Session) (models.LiveAuctionState, error) {
	state, err := a.repo.GetState(ctx)
	if err != nil {
		return state, err
	}
	if !state.IsLive() {
		return state, models.RejectTransition("pass", state.Status, "no player is live")
	}

	action := "PASS:" + s.Team.Name
	plan := a.repo.NewLivePlan("pass").
		Set(models.KeyLastAction, action).
		BumpToken(state)
	if err := a.repo.Apply(ctx, plan.Plan); err != nil {
		return state, err
	}
	state.LastAction = action
	state.RefreshToken = state.NextToken()

	log.Info().
		Str("team", s.Team.Name).
		Str("player_id", state.CurrentPlayerID).
		Msg("bid passed")
	a.emit(ctx, auctionlog.EventBidPassed, state.RefreshToken, auctionlog.BidPassedPayload{
		PlayerID: state.CurrentPlayerID,
		TeamName: s.Team.Name,
	})
	return state, nil
}

func (a *App) emit(ctx context.Context, typ auctionlog.EventType, token int64, payload any) {
	ev, err := auctionlog.NewEvent(typ, token, a.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build auction event")
		return
	}
	auctionlog.Emit(ctx, a.publisher, ev)
}
