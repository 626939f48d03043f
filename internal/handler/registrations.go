package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/go-chi/chi/v5"
)

// Register handles POST /events/{id}/register
// Admits a registration against event capacity and team rules.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	reg, err := h.registrations.Register(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// GetRegistration handles GET /registrations/{id}
func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.registrations.Registration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CancelRegistration handles DELETE /registrations/{id}
// The single cancellation path shared by users and the janitor.
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	if err := h.registrations.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.registrations.ListByEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// PaymentCallback handles POST /payments/callback
// Consumes the payment gateway's outcome notification. Duplicate
// deliveries get a 409 and change nothing.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var cb model.PaymentCallback
	if err := decodeJSON(r, &cb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if cb.RegistrationID == "" {
		writeError(w, http.StatusBadRequest, "registration_id is required")
		return
	}

	reg, err := h.registrations.ConfirmPayment(r.Context(), cb)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ExportRegistrations handles GET /events/{id}/registrations/export
// Streams the organizer CSV: one row per registration.
func (h *Handler) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	regs, err := h.registrations.ListByEvent(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	teamSizes, err := h.teams.MemberCounts(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "registrations_"+eventID+".csv"))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Name", "Email", "College", "Status", "Submitted At", "Team Size"})
	for _, reg := range regs {
		size := 1
		if reg.TeamID != "" {
			if n, ok := teamSizes[reg.TeamID]; ok {
				size = n
			}
		}
		_ = cw.Write([]string{
			reg.Name,
			reg.Email,
			reg.College,
			string(reg.Status),
			reg.RegisteredAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(size),
		})
	}
	cw.Flush()
}
