package bidder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mcdev12/live-auction/go/internal/models"
)

// ErrBidConflict is returned by ExpectedPrior when the stored bid no longer
// matches the bid the client based its increment on.
var ErrBidConflict = errors.New("bid conflict")

// BidRequest is one increment submitted by an authenticated team.
type BidRequest struct {
	Team      models.Team
	Increment int
	// ExpectedPrior is the current bid the client saw. Nil skips the check.
	ExpectedPrior *int
}

// Submitter writes a bid. It is the single place bid concurrency policy
// lives.
type Submitter interface {
	Submit(ctx context.Context, repo Repository, req BidRequest) (models.LiveAuctionState, error)
}

// Mode names a Submitter in configuration.
type Mode string

const (
	ModeLastWriteWins Mode = "last_write_wins"
	ModeExpectedPrior Mode = "expected_prior"
)

// SubmitterFor maps a configured mode to its Submitter.
func SubmitterFor(mode Mode) (Submitter, error) {
	switch Mode(strings.ToLower(string(mode))) {
	case "", ModeLastWriteWins:
		return LastWriteWins{}, nil
	case ModeExpectedPrior:
		return ExpectedPrior{}, nil
	default:
		return nil, fmt.Errorf("unknown bid mode %q", mode)
	}
}

// LastWriteWins adds the increment to whatever bid it reads and writes the
// result. Two bidders reading the same bid both write the same total and the
// later write wins; the earlier bid is lost. ExpectedPrior is ignored.
type LastWriteWins struct{}

func (LastWriteWins) Submit(ctx context.Context, repo Repository, req BidRequest) (models.LiveAuctionState, error) {
	state, err := repo.GetState(ctx)
	if err != nil {
		return state, err
	}
	return writeBid(ctx, repo, state, req)
}

// ExpectedPrior rejects a bid whose ExpectedPrior differs from the stored
// bid. The store has no compare-and-swap, so this narrows the race to the
// gap between the read and the write; it does not close it.
type ExpectedPrior struct{}

func (ExpectedPrior) Submit(ctx context.Context, repo Repository, req BidRequest) (models.LiveAuctionState, error) {
	state, err := repo.GetState(ctx)
	if err != nil {
		return state, err
	}
	if req.ExpectedPrior != nil && *req.ExpectedPrior != state.CurrentBid {
		return state, fmt.Errorf("%w: expected %d, current bid is %d (leading %s)",
			ErrBidConflict, *req.ExpectedPrior, state.CurrentBid, state.LeadingTeam)
	}
	return writeBid(ctx, repo, state, req)
}

func writeBid(ctx context.Context, repo Repository, state models.LiveAuctionState, req BidRequest) (models.LiveAuctionState, error) {
	if !state.IsLive() {
		return state, models.RejectTransition("bid", state.Status, "no player is live")
	}

	if req.Increment > math.MaxInt-state.CurrentBid {
		return state, fmt.Errorf("%w: %d on top of %d overflows", ErrInvalidIncrement, req.Increment, state.CurrentBid)
	}
	newBid := state.CurrentBid + req.Increment
	plan := repo.NewLivePlan("bid").
		SetInt(models.KeyCurrentBid, newBid).
		Set(models.KeyLeadingTeam, req.Team.Name).
		Set(models.KeyLeadingTeamColor, req.Team.Color).
		Set(models.KeyLastAction, "BID:"+req.Team.Name).
		BumpToken(state)
	if err := repo.Apply(ctx, plan.Plan); err != nil {
		return state, err
	}

	state.CurrentBid = newBid
	state.LeadingTeam = req.Team.Name
	state.LeadingTeamColor = req.Team.Color
	state.LastAction = "BID:" + req.Team.Name
	state.RefreshToken = state.NextToken()
	return state, nil
}
