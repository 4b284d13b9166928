package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mcdev12/live-auction/go/internal/bidder"
	"github.com/mcdev12/live-auction/go/internal/config"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/projector"
	"github.com/mcdev12/live-auction/go/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("auctionctl failed")
	}
}

func newApp(out io.Writer) *cli.App {
	var svc *services.Services

	pinFlag := &cli.StringFlag{Name: "pin", Usage: "PIN", Required: true, EnvVars: []string{"AUCTION_PIN"}}
	teamFlag := &cli.StringFlag{Name: "team", Usage: "team name", Required: true, EnvVars: []string{"AUCTION_TEAM"}}

	return &cli.App{
		Name:      "auctionctl",
		Usage:     "drive a live auction from the terminal",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"AUCTION_CONFIG"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			services.SetupLogging(cfg.Log)
			svc, err = services.New(c.Context, cfg)
			return err
		},
		After: func(c *cli.Context) error {
			if svc == nil {
				return nil
			}
			return svc.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "auctioneer",
				Usage: "pool selection, player draw and close",
				Subcommands: []*cli.Command{
					{
						Name:  "lock-pool",
						Usage: "lock the session to a pool",
						Flags: []cli.Flag{pinFlag, &cli.StringFlag{Name: "pool", Required: true}},
						Action: func(c *cli.Context) error {
							if err := svc.Auctioneer.Authenticate(c.Context, c.String("pin")); err != nil {
								return err
							}
							pool, err := models.ParsePool(c.String("pool"))
							if err != nil {
								return err
							}
							st, err := svc.Auctioneer.LockPool(c.Context, pool)
							if err != nil {
								return err
							}
							return printJSON(c.App.Writer, st)
						},
					},
					{
						Name:  "pick-next",
						Usage: "draw a random eligible player and open bidding",
						Flags: []cli.Flag{pinFlag},
						Action: func(c *cli.Context) error {
							if err := svc.Auctioneer.Authenticate(c.Context, c.String("pin")); err != nil {
								return err
							}
							player, err := svc.Auctioneer.PickNext(c.Context)
							if err != nil {
								return err
							}
							return printJSON(c.App.Writer, player)
						},
					},
					{
						Name:  "close",
						Usage: "close the live player as SOLD or UNSOLD",
						Flags: []cli.Flag{pinFlag, &cli.StringFlag{Name: "outcome", Required: true}},
						Action: func(c *cli.Context) error {
							if err := svc.Auctioneer.Authenticate(c.Context, c.String("pin")); err != nil {
								return err
							}
							outcome, err := models.ParseOutcome(c.String("outcome"))
							if err != nil {
								return err
							}
							entry, err := svc.Auctioneer.Close(c.Context, outcome)
							if err != nil {
								return err
							}
							return printJSON(c.App.Writer, entry)
						},
					},
				},
			},
			{
				Name:  "bidder",
				Usage: "raise or pass on the live player",
				Subcommands: []*cli.Command{
					{
						Name:  "bid",
						Usage: "raise the current bid",
						Flags: []cli.Flag{
							teamFlag,
							pinFlag,
							&cli.IntFlag{Name: "increment", Value: bidder.DefaultIncrement},
							&cli.IntFlag{Name: "expected-prior", Usage: "fail if the current bid is not this value"},
						},
						Action: func(c *cli.Context) error {
							s, err := svc.Bidder.Authenticate(c.Context, c.String("team"), c.String("pin"))
							if err != nil {
								return err
							}
							var expected *int
							if c.IsSet("expected-prior") {
								v := c.Int("expected-prior")
								expected = &v
							}
							st, err := svc.Bidder.PlaceBid(c.Context, s, c.Int("increment"), expected)
							if err != nil {
								return err
							}
							return printJSON(c.App.Writer, st)
						},
					},
					{
						Name:  "pass",
						Usage: "sit out the live player",
						Flags: []cli.Flag{teamFlag, pinFlag},
						Action: func(c *cli.Context) error {
							s, err := svc.Bidder.Authenticate(c.Context, c.String("team"), c.String("pin"))
							if err != nil {
								return err
							}
							st, err := svc.Bidder.Pass(c.Context, s)
							if err != nil {
								return err
							}
							return printJSON(c.App.Writer, st)
						},
					},
				},
			},
			{
				Name:  "projector",
				Usage: "display views",
				Subcommands: []*cli.Command{
					{
						Name:  "watch",
						Usage: "print the view each time the refresh token changes",
						Flags: []cli.Flag{
							&cli.DurationFlag{Name: "tick", Value: time.Second, Usage: "countdown print interval"},
						},
						Action: func(c *cli.Context) error {
							return watch(c, svc.Projector, c.Duration("tick"))
						},
					},
				},
			},
			{
				Name:  "state",
				Usage: "print the live record",
				Action: func(c *cli.Context) error {
					st, err := svc.Repo.GetState(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, st)
				},
			},
			{
				Name:  "log",
				Usage: "print the auction log",
				Action: func(c *cli.Context) error {
					entries, err := svc.Repo.AuctionLog(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, entries)
				},
			},
			{
				Name:  "players",
				Usage: "print the player list",
				Action: func(c *cli.Context) error {
					players, err := svc.Repo.ListPlayers(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, players)
				},
			},
		},
	}
}

// watch prints each re-rendered view and, while a player is live, the
// countdown every tick.
func watch(c *cli.Context, p *projector.Poller, tick time.Duration) error {
	views, cancel := p.Subscribe()
	defer cancel()
	p.Start(c.Context)
	defer p.Stop()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var current *projector.View
	for {
		select {
		case <-c.Context.Done():
			return nil
		case v, ok := <-views:
			if !ok {
				return nil
			}
			current = &v
			if err := printJSON(c.App.Writer, v.At(time.Now())); err != nil {
				return err
			}
		case <-ticker.C:
			if current == nil || current.Status != models.AuctionStatusLive {
				continue
			}
			fmt.Fprintf(c.App.Writer, "%s  %d  %s  %ds\n",
				current.PlayerName, current.CurrentBid, current.LeadingTeam, current.Remaining(time.Now()))
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
