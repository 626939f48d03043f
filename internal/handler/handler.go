// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/eventgrid/eventgrid/internal/service"
)

// Handler holds all HTTP handlers for the registration and ticketing API.
type Handler struct {
	events        *service.EventService
	registrations *service.RegistrationService
	tickets       *service.TicketService
	teams         *service.TeamManager
}

// New constructs a Handler.
func New(
	events *service.EventService,
	registrations *service.RegistrationService,
	tickets *service.TicketService,
	teams *service.TeamManager,
) *Handler {
	return &Handler{
		events:        events,
		registrations: registrations,
		tickets:       tickets,
		teams:         teams,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps the domain error taxonomy to HTTP statuses so
// every handler surfaces failures consistently.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrTeamCodeInvalid):
		writeError(w, http.StatusNotFound, "team code is invalid")
	case errors.Is(err, model.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "event is full")
	case errors.Is(err, model.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "you are already registered for this event")
	case errors.Is(err, model.ErrEventNotOpen):
		writeError(w, http.StatusConflict, "event is not open for registration")
	case errors.Is(err, model.ErrTeamFull):
		writeError(w, http.StatusConflict, "team is full")
	case errors.Is(err, model.ErrAlreadyOnTeam):
		writeError(w, http.StatusConflict, "already on a team for this event")
	case errors.Is(err, model.ErrTeamSizeBelowMinimum):
		writeError(w, http.StatusConflict, "one or more teams are below their minimum size")
	case errors.Is(err, model.ErrAlreadyResolved):
		writeError(w, http.StatusConflict, "registration already resolved")
	case errors.Is(err, model.ErrStorageConflict):
		writeError(w, http.StatusServiceUnavailable, "temporary conflict, please retry")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
