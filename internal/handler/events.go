package handler

import (
	"net/http"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/go-chi/chi/v5"
)

// CreateEvent handles POST /events
// Creates a new event; it starts in draft until opened.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.CreateEvent(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// TransitionEvent handles POST /events/{id}/transition
// Moves the event forward through its lifecycle (draft→upcoming→live→ended).
func (h *Handler) TransitionEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.EventStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.events.Transition(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CloseEvent handles POST /events/{id}/close
// Ends the registration window. The response lists teams still below
// their minimum size; with enforce_team_minimums the close is refused
// when any exist.
func (h *Handler) CloseEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EnforceTeamMinimums bool `json:"enforce_team_minimums"`
	}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	underfilled, err := h.events.CloseEvent(r.Context(), chi.URLParam(r, "id"), req.EnforceTeamMinimums)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if underfilled == nil {
		underfilled = []model.Team{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"underfilled_teams": underfilled})
}

// UnderfilledTeams handles GET /events/{id}/teams/underfilled
func (h *Handler) UnderfilledTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.Underfilled(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if teams == nil {
		teams = []model.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

// GetTeam handles GET /teams/{id}
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.teams.Team(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}
