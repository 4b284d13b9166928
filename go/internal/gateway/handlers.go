// Package gateway exposes the auctioneer, bidder and projector over HTTP and
// pushes projector views to display screens over WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/live-auction/go/internal/auctioneer"
	"github.com/mcdev12/live-auction/go/internal/bidder"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/projector"
)

// AuctioneerPINHeader carries the auctioneer PIN on every auctioneer call.
const AuctioneerPINHeader = "X-Auctioneer-Pin"

// Catalog is the read-only table access the gateway exposes directly.
type Catalog interface {
	ListPlayers(ctx context.Context) ([]models.Player, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	AuctionLog(ctx context.Context) ([]models.AuctionLogEntry, error)
}

type Handler struct {
	auctioneer  *auctioneer.App
	bidder      *bidder.App
	projector   *projector.Poller
	catalog     Catalog
	connections *ConnectionManager
	gatherer    prometheus.Gatherer
}

type Deps struct {
	Auctioneer  *auctioneer.App
	Bidder      *bidder.App
	Projector   *projector.Poller
	Catalog     Catalog
	Connections *ConnectionManager
	Gatherer    prometheus.Gatherer
}

func NewHandler(d Deps) *Handler {
	if d.Connections == nil {
		d.Connections = NewConnectionManager(DefaultConnectionConfig())
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		auctioneer:  d.Auctioneer,
		bidder:      d.Bidder,
		projector:   d.Projector,
		catalog:     d.Catalog,
		connections: d.Connections,
		gatherer:    d.Gatherer,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws/projector", h.projectorSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Get("/players", h.players)
		r.Get("/teams", h.teams)
		r.Get("/log", h.auctionLog)

		r.Route("/auctioneer", func(r chi.Router) {
			r.Use(h.requireAuctioneer)
			r.Post("/pool", h.lockPool)
			r.Post("/next", h.pickNext)
			r.Post("/close", h.closePlayer)
		})

		r.Route("/bidder", func(r chi.Router) {
			r.Get("/increments", h.increments)
			r.Post("/bid", h.placeBid)
			r.Post("/pass", h.pass)
		})

		r.Route("/projector", func(r chi.Router) {
			r.Get("/view", h.view)
			r.Post("/refresh", h.refresh)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request handled")
	})
}

func (h *Handler) requireAuctioneer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.auctioneer.Authenticate(r.Context(), r.Header.Get(AuctioneerPINHeader)); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return fmt.Errorf("%w: request body is required", errBadRequest)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}

type readyResponse struct {
	Ready       bool             `json:"ready"`
	Projector   projector.Status `json:"projector"`
	Connections int              `json:"connections"`
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	st := h.projector.Status()
	status := http.StatusOK
	if !st.IsReady() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResponse{
		Ready:       st.IsReady(),
		Projector:   st,
		Connections: h.connections.Count(),
	})
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	st, err := h.auctioneer.State(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) players(w http.ResponseWriter, r *http.Request) {
	players, err := h.catalog.ListPlayers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if pool := r.URL.Query().Get("pool"); pool != "" {
		p, err := models.ParsePool(pool)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		filtered := players[:0]
		for _, pl := range players {
			if pl.Pool == p {
				filtered = append(filtered, pl)
			}
		}
		players = filtered
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *Handler) teams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.catalog.ListTeams(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *Handler) auctionLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.AuctionLog(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type lockPoolRequest struct {
	Pool string `json:"pool"`
}

func (h *Handler) lockPool(w http.ResponseWriter, r *http.Request) {
	var req lockPoolRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pool, err := models.ParsePool(req.Pool)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	st, err := h.auctioneer.LockPool(r.Context(), pool)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) pickNext(w http.ResponseWriter, r *http.Request) {
	player, err := h.auctioneer.PickNext(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

type closeRequest struct {
	Outcome string `json:"outcome"`
}

func (h *Handler) closePlayer(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := models.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	entry, err := h.auctioneer.Close(r.Context(), outcome)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type incrementsResponse struct {
	Increments []int `json:"increments"`
	Default    int   `json:"default"`
}

func (h *Handler) increments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, incrementsResponse{
		Increments: bidder.Increments,
		Default:    bidder.DefaultIncrement,
	})
}

type teamCredentials struct {
	Team string `json:"team"`
	PIN  string `json:"pin"`
}

type bidRequest struct {
	teamCredentials
	Increment     *int `json:"increment"`
	ExpectedPrior *int `json:"expected_prior_bid,omitempty"`
}

func (h *Handler) login(r *http.Request, c teamCredentials) (*bidder.Session, error) {
	return h.bidder.Authenticate(r.Context(), c.Team, c.PIN)
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.login(r, req.teamCredentials)
	if err != nil {
		writeError(w, r, err)
		return
	}

	increment := bidder.DefaultIncrement
	if req.Increment != nil {
		increment = *req.Increment
	}
	st, err := h.bidder.PlaceBid(r.Context(), session, increment, req.ExpectedPrior)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) pass(w http.ResponseWriter, r *http.Request) {
	var req teamCredentials
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.login(r, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.bidder.Pass(r.Context(), session)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.projector.Snapshot()
	if !ok {
		if _, err := h.projector.Refresh(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		snap, _ = h.projector.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.projector.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	snap, _ := h.projector.Snapshot()
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) projectorSocket(w http.ResponseWriter, r *http.Request) {
	var initial *Message
	if snap, ok := h.projector.Snapshot(); ok {
		initial = &Message{Type: MessageView, View: &snap}
	}
	if err := h.connections.UpgradeConnection(w, r, initial); err != nil {
		// The upgrader has already written the HTTP error.
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
	}
}
