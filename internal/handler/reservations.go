package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// CreateReservation handles POST /reservations/{id}, where id is the event.
// The body is optional.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateReservationRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.reservations.Create(r.Context(), chi.URLParam(r, "id"), principal(r).UserID, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// MyReservations handles GET /reservations/me
func (h *Handler) MyReservations(w http.ResponseWriter, r *http.Request) {
	views, err := h.reservations.ListMine(r.Context(), principal(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// CancelReservation handles PATCH /reservations/{id}/cancel
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.Cancel(r.Context(), chi.URLParam(r, "id"), principal(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListReservations handles GET /reservations?eventId=&participantId=&status=
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	views, err := h.reservations.ListAll(r.Context(), q.Get("eventId"), q.Get("participantId"), q.Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetReservation handles GET /reservations/{id}
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	view, err := h.reservations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ConfirmReservation handles PATCH /reservations/{id}/confirm
func (h *Handler) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RefuseReservation handles PATCH /reservations/{id}/refuse
func (h *Handler) RefuseReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.Refuse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdminCancelReservation handles PATCH /reservations/{id}/admin-cancel
func (h *Handler) AdminCancelReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.reservations.AdminCancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DownloadTicket handles GET /tickets/{id} and streams the PDF ticket.
func (h *Handler) DownloadTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pdf, err := h.tickets.Generate(r.Context(), id, principal(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ticket-%s.pdf"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.log.Warn("ticket write failed", "reservation_id", id, "error", err)
	}
}
