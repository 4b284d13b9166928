package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mcdev12/live-auction/go/internal/config"
	"github.com/mcdev12/live-auction/go/internal/seed"
	"github.com/mcdev12/live-auction/go/internal/services"
)

func main() {
	app := &cli.App{
		Name:  "seed_sheet",
		Usage: "create auction tables and load players, teams and timer rules",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"AUCTION_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "assets",
				Usage: "directory holding players.json, teams.json, timers.json and access.json",
				Value: "go/internal/assets",
			},
			&cli.BoolFlag{
				Name:  "reset-live",
				Usage: "return Live_Auction to an idle, unlocked state",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	services.SetupLogging(cfg.Log)

	data, err := seed.LoadDir(c.String("assets"))
	if err != nil {
		return err
	}

	svc, err := services.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	report, err := seed.Run(c.Context, svc.Repo, data, seed.Options{ResetLive: c.Bool("reset-live")})
	if err != nil {
		return err
	}

	fmt.Printf("Players seed: %s\n", report.Players)
	fmt.Printf("Teams seed: %s\n", report.Teams)
	fmt.Printf("Timer rules seed: %s\n", report.Timers)
	if report.Access {
		fmt.Println("Auctioneer PIN written")
	}
	if report.LiveReset {
		fmt.Println("Live_Auction reset")
	}
	return nil
}
