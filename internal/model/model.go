// Package model defines the core domain types for the event reservation system.
package model

import (
	"slices"
	"time"
)

// Role is a capability granted to a user account.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleParticipant
}

// User is an account that can authenticate against the API.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole returns true when the user holds role.
func (u *User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

// Summary strips credentials for API responses.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.FullName, Email: u.Email, Roles: u.Roles}
}

// UserSummary is the public projection of a User.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Roles    []Role `json:"roles,omitempty"`
}

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCanceled  EventStatus = "CANCELED"
)

// Event represents a schedulable activity created by an organizer.
type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        time.Time   `json:"date"`
	Location    string      `json:"location"`
	Capacity    int         `json:"capacity"`
	Status      EventStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsCanceled returns true once the event has been canceled. A canceled
// event accepts no further mutation, publication or reservation.
func (e *Event) IsCanceled() bool {
	return e.Status == EventCanceled
}

// IsPublished returns true when participants may reserve a seat.
func (e *Event) IsPublished() bool {
	return e.Status == EventPublished
}

// ReservationStatus is the approval state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationRefused   ReservationStatus = "REFUSED"
	ReservationCanceled  ReservationStatus = "CANCELED"
)

// ParseReservationStatus validates a status string coming from a client.
func ParseReservationStatus(s string) (ReservationStatus, bool) {
	st := ReservationStatus(s)
	if slices.Contains(reservationStatuses, st) {
		return st, true
	}
	return "", false
}

var reservationStatuses = []ReservationStatus{
	ReservationPending, ReservationConfirmed, ReservationRefused, ReservationCanceled,
}

// Active reports whether s holds or requests a seat.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// CanTransition reports whether a caller acting as by may move a
// reservation from s to next. PENDING may become CONFIRMED, REFUSED or
// CANCELED and CONFIRMED may become CANCELED. Only an admin may cancel a
// REFUSED reservation. Nothing leaves CANCELED.
func (s ReservationStatus) CanTransition(next ReservationStatus, by Role) bool {
	switch s {
	case ReservationPending:
		return next == ReservationConfirmed || next == ReservationRefused || next == ReservationCanceled
	case ReservationConfirmed:
		return next == ReservationCanceled
	case ReservationRefused:
		return next == ReservationCanceled && by == RoleAdmin
	}
	return false
}

// TransitionSources lists the statuses from which by may move a
// reservation to next.
func TransitionSources(next ReservationStatus, by Role) []ReservationStatus {
	var from []ReservationStatus
	for _, s := range reservationStatuses {
		if s.CanTransition(next, by) {
			from = append(from, s)
		}
	}
	return from
}

// MaxCommentLength bounds the optional reservation comment.
const MaxCommentLength = 300

// Reservation is one participant's claim on a seat at one event.
type Reservation struct {
	ID            string            `json:"id"`
	EventID       string            `json:"event_id"`
	ParticipantID string            `json:"participant_id"`
	Status        ReservationStatus `json:"status"`
	Comment       string            `json:"comment,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ReservationView is a reservation with its event and participant
// joined in. Event is nil when the referenced event has been deleted.
type ReservationView struct {
	Reservation
	Event       *Event       `json:"event"`
	Participant *UserSummary `json:"participant,omitempty"`
}

// ReservationFilter narrows an admin listing. Empty fields match all.
type ReservationFilter struct {
	EventID       string
	ParticipantID string
	Status        ReservationStatus
}

// EventStats is the admin dashboard aggregate.
type EventStats struct {
	Total      int     `json:"total"`
	Published  int     `json:"published"`
	Upcoming   int     `json:"upcoming"`
	Past       int     `json:"past"`
	Draft      int     `json:"draft"`
	Canceled   int     `json:"canceled"`
	NextEvents []Event `json:"next_events"`
}

// EventCounts is the raw aggregate a store computes for EventStats.
type EventCounts struct {
	Total     int
	Published int
	Upcoming  int
	Past      int
	Draft     int
	Canceled  int
}

// ─── Requests ─────────────────────────────────────────────────────────────────

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Capacity    int    `json:"capacity" validate:"required,min=1"`
}

// UpdateEventRequest carries a partial event update. Nil fields are left as-is.
type UpdateEventRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=1"`
	Date        *string `json:"date,omitempty" validate:"omitempty,min=1"`
	Location    *string `json:"location,omitempty" validate:"omitempty,min=1"`
	Capacity    *int    `json:"capacity,omitempty" validate:"omitempty,min=1"`
}

// CreateReservationRequest is the payload for reserving a seat.
type CreateReservationRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=300"`
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	FullName string   `json:"fullName" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Roles    []string `json:"roles,omitempty" validate:"omitempty,dive,oneof=admin participant"`
}

// LoginRequest is the payload for exchanging credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// MessageResponse is a plain confirmation envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
