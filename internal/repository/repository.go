// Package repository implements persistence for users, events and
// reservations. The PostgreSQL implementation uses pgx directly (no ORM);
// Memory is a process-local implementation for development and tests.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// ErrStatusMismatch is returned by conditional updates when the row exists
// but its current status is not one of the allowed source statuses.
var ErrStatusMismatch = errors.New("status changed concurrently")

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts u. A duplicate email yields a model.ErrConflict error.
	CreateUser(ctx context.Context, u *model.User) error
	UserByID(ctx context.Context, id string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	EventByID(ctx context.Context, id string) (*model.Event, error)
	EventsByIDs(ctx context.Context, ids []string) (map[string]*model.Event, error)
	// UpdateEventDetails writes the descriptive fields and capacity of e,
	// unless the stored event is canceled (ErrStatusMismatch).
	UpdateEventDetails(ctx context.Context, e *model.Event) error
	// SetEventStatus moves the event to status if its current status is
	// in from (any status when from is empty).
	SetEventStatus(ctx context.Context, id string, status model.EventStatus, from []model.EventStatus, at time.Time) (*model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	// ListPublishedEvents returns published events by date ascending.
	ListPublishedEvents(ctx context.Context) ([]model.Event, error)
	// ListEvents returns every event by creation time descending.
	ListEvents(ctx context.Context) ([]model.Event, error)
	EventCounts(ctx context.Context, now time.Time) (model.EventCounts, error)
	// UpcomingPublishedEvents returns up to limit published events dated
	// at or after now, nearest first.
	UpcomingPublishedEvents(ctx context.Context, now time.Time, limit int) ([]model.Event, error)
}

// ReservationStore persists reservations.
type ReservationStore interface {
	ReservationByID(ctx context.Context, id string) (*model.Reservation, error)
	// ListReservations returns reservations matching f, newest first.
	ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
	// TransitionReservation moves the reservation to status if its current
	// status is in from; otherwise ErrStatusMismatch.
	TransitionReservation(ctx context.Context, id string, status model.ReservationStatus, from []model.ReservationStatus, at time.Time) (*model.Reservation, error)
	// WithEventLock runs fn while holding an exclusive lock on the event
	// row. Everything fn does through tx commits atomically when fn returns
	// nil and is discarded otherwise. A missing event yields a
	// model.ErrNotFound error without calling fn.
	WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, event *model.Event, tx AdmissionTx) error) error
}

// AdmissionTx is the set of reservation operations available while an
// event is locked. Capacity checks made through it cannot race with
// other admissions for the same event.
type AdmissionTx interface {
	ReservationForUpdate(ctx context.Context, id string) (*model.Reservation, error)
	HasActiveReservation(ctx context.Context, eventID, participantID string) (bool, error)
	CountConfirmed(ctx context.Context, eventID string) (int, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	SetReservationStatus(ctx context.Context, id string, status model.ReservationStatus, at time.Time) error
}

func notFound(entity string) error {
	return model.Errorf(model.ErrNotFound, "%s not found", entity)
}
