// Package services wires configuration into a store stack and the three
// auction clients.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/live-auction/go/internal/auctioneer"
	"github.com/mcdev12/live-auction/go/internal/auctionlog"
	"github.com/mcdev12/live-auction/go/internal/bidder"
	"github.com/mcdev12/live-auction/go/internal/config"
	"github.com/mcdev12/live-auction/go/internal/live"
	"github.com/mcdev12/live-auction/go/internal/projector"
	"github.com/mcdev12/live-auction/go/internal/store"
	"github.com/mcdev12/live-auction/go/internal/store/pgstore"
	"github.com/mcdev12/live-auction/go/internal/store/sheets"
	"github.com/mcdev12/live-auction/go/internal/store/workbook"
)

type Services struct {
	Config     *config.Config
	Registry   *prometheus.Registry
	Store      store.Store
	Repo       *live.Repository
	Auctioneer *auctioneer.App
	Bidder     *bidder.App
	Projector  *projector.Poller
	Publisher  auctionlog.Publisher

	closers []func() error
}

type Option func(*options)

type options struct {
	clock   clockwork.Clock
	backend store.Store
}

// WithClock overrides the real clock everywhere a clock is injected.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithBackend uses s instead of opening the configured backend.
func WithBackend(s store.Store) Option {
	return func(o *options) { o.backend = s }
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(cfg config.LogConfig) {
	if cfg.Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// New wires every layer:
// Backend → Instrumented → Retrying → Repository → App layer.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Services, error) {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Services{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
	}
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = s.openBackend(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
	}

	instrumented := store.NewInstrumented(backend, store.NewPrometheusMetrics(s.Registry))
	s.Store = store.NewRetrying(instrumented, store.RetryConfig{
		Attempts: cfg.Retry.Attempts,
		Backoff:  cfg.Retry.Backoff,
		Clock:    o.clock,
	})
	s.Repo = live.NewRepository(s.Store, cfg.Store.Tables)

	s.Publisher = auctionlog.LogPublisher{}
	if cfg.NATS.Enabled {
		pub, err := auctionlog.NewJetStreamPublisher(ctx, cfg.NATS.JetStreamConfig)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create jetstream publisher: %w", err)
		}
		s.Publisher = pub
		s.closers = append(s.closers, pub.Close)
	}

	submitter, err := bidder.SubmitterFor(cfg.Auction.BidMode)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Auctioneer = auctioneer.NewApp(s.Repo,
		auctioneer.WithClock(o.clock),
		auctioneer.WithPublisher(s.Publisher),
		auctioneer.WithDefaultTimer(cfg.Auction.DefaultTimer),
		auctioneer.WithReplay(cfg.Auction.ReplayAttempts),
	)
	s.Bidder = bidder.NewApp(s.Repo,
		bidder.WithClock(o.clock),
		bidder.WithPublisher(s.Publisher),
		bidder.WithSubmitter(submitter),
	)
	s.Projector = projector.NewPoller(s.Repo,
		projector.WithClock(o.clock),
		projector.WithInterval(cfg.Projector.PollInterval),
	)

	log.Info().
		Str("backend", string(cfg.Store.Backend)).
		Str("bid_mode", string(cfg.Auction.BidMode)).
		Int("retry_attempts", cfg.Retry.Attempts).
		Bool("nats", cfg.NATS.Enabled).
		Msg("services wired")
	return s, nil
}

func (s *Services) openBackend(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(cfg.Tables.Schema()), nil
	case config.BackendWorkbook:
		return workbook.New(cfg.Workbook.Path), nil
	case config.BackendSheets:
		st, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.Sheets.SpreadsheetID,
			CredentialsFile: cfg.Sheets.CredentialsFile,
			BaseURL:         cfg.Sheets.BaseURL,
			RequestsPerSec:  cfg.Sheets.RequestsPerSec,
			Burst:           cfg.Sheets.Burst,
			Timeout:         cfg.Sheets.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sheets backend: %w", err)
		}
		return st, nil
	case config.BackendPostgres:
		st, err := pgstore.Open(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres backend: %w", err)
		}
		s.closers = append(s.closers, func() error {
			st.Close()
			return nil
		})
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// EnsureSchema creates any missing tables and headers.
func (s *Services) EnsureSchema(ctx context.Context) error {
	return s.Repo.EnsureSchema(ctx)
}

// Close stops the projector and releases the publisher and backend.
func (s *Services) Close() error {
	if s.Projector != nil {
		s.Projector.Stop()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
