package main

import (
	"context"
	"net/http"

	"github.com/mcdev12/live-auction/go/internal/config"
	"github.com/mcdev12/live-auction/go/internal/gateway"
	"github.com/mcdev12/live-auction/go/internal/services"
)

// setupServer starts the projector poller and the display feed, then builds
// the HTTP server. Both background loops stop with ctx.
func setupServer(ctx context.Context, cfg *config.Config, svc *services.Services) *http.Server {
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go connections.Start(ctx)
	go connections.Feed(ctx, svc.Projector)

	svc.Projector.Start(ctx)

	handler := gateway.NewHandler(gateway.Deps{
		Auctioneer:  svc.Auctioneer,
		Bidder:      svc.Bidder,
		Projector:   svc.Projector,
		Catalog:     svc.Repo,
		Connections: connections,
		Gatherer:    svc.Registry,
	})

	return gateway.NewServer(cfg.Server.Port, cfg.Server.AllowedOrigins, handler.Routes())
}
