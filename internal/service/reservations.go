package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// ReservationService orchestrates the reservation lifecycle and the
// capacity admission check.
type ReservationService struct {
	reservations repository.ReservationStore
	events       repository.EventStore
	users        repository.UserStore
	log          *slog.Logger
	now          func() time.Time
}

// NewReservationService constructs a ReservationService with its dependencies.
func NewReservationService(
	reservations repository.ReservationStore,
	events repository.EventStore,
	users repository.UserStore,
	logger *slog.Logger,
) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		events:       events,
		users:        users,
		log:          logger,
		now:          time.Now,
	}
}

var errEventFull = model.Errorf(model.ErrInvalidState, "event is full")

// Create reserves a seat for participantID. Guards run in a fixed order
// and the first failure wins: malformed id, missing event, canceled
// event, unpublished event, duplicate active reservation, full event.
// The duplicate and capacity checks run under the event lock, so
// concurrent requests cannot overbook.
func (s *ReservationService) Create(ctx context.Context, eventID, participantID, comment string) (*model.Reservation, error) {
	if err := checkID(eventID, "event"); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(comment) > model.MaxCommentLength {
		return nil, model.Errorf(model.ErrInvalidInput, "comment must be at most %d characters", model.MaxCommentLength)
	}

	var created *model.Reservation
	err := s.reservations.WithEventLock(ctx, eventID, func(ctx context.Context, event *model.Event, tx repository.AdmissionTx) error {
		if event.IsCanceled() {
			return model.Errorf(model.ErrInvalidState, "event is canceled")
		}
		if !event.IsPublished() {
			return model.Errorf(model.ErrInvalidState, "event is not open for reservations")
		}

		active, err := tx.HasActiveReservation(ctx, eventID, participantID)
		if err != nil {
			return err
		}
		if active {
			return model.Errorf(model.ErrConflict, "you already have an active reservation for this event")
		}

		confirmed, err := tx.CountConfirmed(ctx, eventID)
		if err != nil {
			return err
		}
		if confirmed >= event.Capacity {
			return errEventFull
		}

		now := s.now().UTC()
		created = &model.Reservation{
			ID:            uuid.NewString(),
			EventID:       eventID,
			ParticipantID: participantID,
			Status:        model.ReservationPending,
			Comment:       comment,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.InsertReservation(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation created", "reservation_id", created.ID, "event_id", eventID, "participant_id", participantID)
	return created, nil
}

// Cancel lets the owning participant withdraw a pending or confirmed
// reservation.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, participantID string) (*model.Reservation, error) {
	res, err := s.load(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.ParticipantID != participantID {
		return nil, model.Errorf(model.ErrForbidden, "you can only cancel your own reservations")
	}
	if !res.Status.CanTransition(model.ReservationCanceled, model.RoleParticipant) {
		return nil, model.Errorf(model.ErrInvalidState, "reservation is already %s", res.Status)
	}
	return s.transition(ctx, res, model.ReservationCanceled, model.RoleParticipant)
}

// Confirm admits a pending reservation if the event is still published
// and has a free seat.
func (s *ReservationService) Confirm(ctx context.Context, reservationID string) (*model.Reservation, error) {
	res, err := s.load(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !res.Status.CanTransition(model.ReservationConfirmed, model.RoleAdmin) {
		return nil, model.Errorf(model.ErrInvalidState, "only pending reservations can be confirmed (status is %s)", res.Status)
	}

	err = s.reservations.WithEventLock(ctx, res.EventID, func(ctx context.Context, event *model.Event, tx repository.AdmissionTx) error {
		locked, err := tx.ReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if !locked.Status.CanTransition(model.ReservationConfirmed, model.RoleAdmin) {
			return model.Errorf(model.ErrInvalidState, "only pending reservations can be confirmed (status is %s)", locked.Status)
		}
		if event.IsCanceled() {
			return model.Errorf(model.ErrInvalidState, "event is canceled")
		}
		if !event.IsPublished() {
			return model.Errorf(model.ErrInvalidState, "event is not published")
		}

		confirmed, err := tx.CountConfirmed(ctx, event.ID)
		if err != nil {
			return err
		}
		if confirmed >= event.Capacity {
			return errEventFull
		}

		now := s.now().UTC()
		if err := tx.SetReservationStatus(ctx, reservationID, model.ReservationConfirmed, now); err != nil {
			return err
		}
		res = locked
		res.Status = model.ReservationConfirmed
		res.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation confirmed", "reservation_id", res.ID, "event_id", res.EventID)
	return res, nil
}

// Refuse rejects a pending reservation.
func (s *ReservationService) Refuse(ctx context.Context, reservationID string) (*model.Reservation, error) {
	res, err := s.load(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !res.Status.CanTransition(model.ReservationRefused, model.RoleAdmin) {
		return nil, model.Errorf(model.ErrInvalidState, "only pending reservations can be refused (status is %s)", res.Status)
	}
	return s.transition(ctx, res, model.ReservationRefused, model.RoleAdmin)
}

// AdminCancel force-cancels any reservation that is not canceled yet,
// including a confirmed one, which frees its seat, and a refused one.
func (s *ReservationService) AdminCancel(ctx context.Context, reservationID string) (*model.Reservation, error) {
	res, err := s.load(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !res.Status.CanTransition(model.ReservationCanceled, model.RoleAdmin) {
		return nil, model.Errorf(model.ErrInvalidState, "reservation is already %s", res.Status)
	}
	return s.transition(ctx, res, model.ReservationCanceled, model.RoleAdmin)
}

// ListMine returns the participant's reservations, newest first, with
// their events attached.
func (s *ReservationService) ListMine(ctx context.Context, participantID string) ([]model.ReservationView, error) {
	list, err := s.reservations.ListReservations(ctx, model.ReservationFilter{ParticipantID: participantID})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return s.views(ctx, list, false)
}

// ListAll returns reservations matching the optional filters, newest
// first, with events and participants attached.
func (s *ReservationService) ListAll(ctx context.Context, eventID, participantID, status string) ([]model.ReservationView, error) {
	var f model.ReservationFilter
	if eventID != "" {
		if err := checkID(eventID, "event"); err != nil {
			return nil, err
		}
		f.EventID = eventID
	}
	if participantID != "" {
		if err := checkID(participantID, "participant"); err != nil {
			return nil, err
		}
		f.ParticipantID = participantID
	}
	if status != "" {
		st, ok := model.ParseReservationStatus(status)
		if !ok {
			return nil, model.Errorf(model.ErrInvalidInput, "unknown reservation status %q", status)
		}
		f.Status = st
	}

	list, err := s.reservations.ListReservations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return s.views(ctx, list, true)
}

// Get returns one reservation with its event and participant attached.
func (s *ReservationService) Get(ctx context.Context, reservationID string) (*model.ReservationView, error) {
	res, err := s.load(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []model.Reservation{*res}, true)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ReservationService) load(ctx context.Context, reservationID string) (*model.Reservation, error) {
	if err := checkID(reservationID, "reservation"); err != nil {
		return nil, err
	}
	return s.reservations.ReservationByID(ctx, reservationID)
}

// transition applies a compare-and-set status change from any status the
// state machine lets by leave for to. Losing a race to a concurrent
// transition surfaces as InvalidState.
func (s *ReservationService) transition(ctx context.Context, res *model.Reservation, to model.ReservationStatus, by model.Role) (*model.Reservation, error) {
	from := model.TransitionSources(to, by)
	updated, err := s.reservations.TransitionReservation(ctx, res.ID, to, from, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return nil, model.Errorf(model.ErrInvalidState, "reservation status changed, cannot move to %s", to)
		}
		return nil, err
	}
	s.log.Info("reservation status changed", "reservation_id", res.ID, "from", res.Status, "to", to)
	return updated, nil
}

// views joins events (and optionally participants) onto reservations.
func (s *ReservationService) views(ctx context.Context, list []model.Reservation, withParticipant bool) ([]model.ReservationView, error) {
	out := make([]model.ReservationView, len(list))
	if len(list) == 0 {
		return out, nil
	}

	eventIDs := make([]string, 0, len(list))
	userIDs := make([]string, 0, len(list))
	for _, r := range list {
		eventIDs = append(eventIDs, r.EventID)
		userIDs = append(userIDs, r.ParticipantID)
	}

	events, err := s.events.EventsByIDs(ctx, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("join events: %w", err)
	}
	var users map[string]*model.User
	if withParticipant {
		if users, err = s.users.UsersByIDs(ctx, userIDs); err != nil {
			return nil, fmt.Errorf("join participants: %w", err)
		}
	}

	for i, r := range list {
		out[i] = model.ReservationView{Reservation: r, Event: events[r.EventID]}
		if u, ok := users[r.ParticipantID]; ok {
			summary := model.UserSummary{ID: u.ID, FullName: u.FullName, Email: u.Email}
			out[i].Participant = &summary
		}
	}
	return out, nil
}
