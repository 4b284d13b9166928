package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/live-auction/go/internal/bidder"
	"github.com/mcdev12/live-auction/go/internal/live"
	"github.com/mcdev12/live-auction/go/internal/models"
	"github.com/mcdev12/live-auction/go/internal/store"
)

// errBadRequest marks malformed input.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error   string `json:"error"`
	Partial string `json:"partial_write,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, bidder.ErrBidConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrNoEligiblePlayers):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest), errors.Is(err, bidder.ErrInvalidIncrement):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var partial *live.PartialWriteError
	if errors.As(err, &partial) {
		resp.Partial = partial.Describe()
	}

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
