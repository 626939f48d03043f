package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// VerifyTicket handles GET /tickets/verify/{code}
// Pure read used by the preview-before-check-in UI; never mutates state.
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	result, err := h.tickets.Verify(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckIn handles POST /tickets/checkin
// The crew scanning endpoint. Exactly one scan of a code ever succeeds;
// repeats report already_used with the original timestamp.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRCode string `json:"qr_code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.QRCode == "" {
		writeError(w, http.StatusBadRequest, "qr_code is required")
		return
	}

	result, err := h.tickets.CheckIn(r.Context(), req.QRCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
