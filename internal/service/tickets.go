package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// TicketRenderer turns a joined reservation into a printable document.
type TicketRenderer interface {
	Render(v *model.ReservationView) ([]byte, error)
}

// TicketService issues tickets for confirmed reservations. It never
// writes to storage.
type TicketService struct {
	reservations *ReservationService
	renderer     TicketRenderer
}

// NewTicketService constructs a TicketService.
func NewTicketService(reservations *ReservationService, renderer TicketRenderer) *TicketService {
	return &TicketService{reservations: reservations, renderer: renderer}
}

// Generate renders the ticket of reservationID for requesterID, who must
// own the reservation, and the reservation must be confirmed.
func (s *TicketService) Generate(ctx context.Context, reservationID, requesterID string) ([]byte, error) {
	view, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if view.ParticipantID != requesterID {
		return nil, model.Errorf(model.ErrForbidden, "you can only download tickets for your own reservations")
	}
	if view.Status != model.ReservationConfirmed {
		return nil, model.Errorf(model.ErrInvalidState, "a ticket is only available for a confirmed reservation (status is %s)", view.Status)
	}
	if view.Event == nil {
		return nil, model.Errorf(model.ErrNotFound, "event not found")
	}
	if view.Participant == nil {
		return nil, model.Errorf(model.ErrNotFound, "participant not found")
	}

	pdf, err := s.renderer.Render(view)
	if err != nil {
		return nil, fmt.Errorf("generate ticket: %w", err)
	}
	return pdf, nil
}
