package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// fixedNow is the clock every test service starts from.
var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store        *repository.Memory
	events       *EventService
	reservations *ReservationService
	auth         *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:        store,
		events:       NewEventService(store, logger),
		reservations: NewReservationService(store, store, store, logger),
		auth:         NewAuthService(store, auth.NewTokens("test-secret", time.Hour), logger),
	}
	clock := func() time.Time { return fixedNow }
	f.events.now = clock
	f.reservations.now = clock
	f.auth.now = clock
	return f
}

// publishedEvent creates and publishes an event a week after fixedNow.
func (f *fixture) publishedEvent(t *testing.T, capacity int) *model.Event {
	t.Helper()
	e := f.draftEvent(t, capacity)
	published, err := f.events.Publish(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return published
}

func (f *fixture) draftEvent(t *testing.T, capacity int) *model.Event {
	t.Helper()
	e, err := f.events.Create(context.Background(), model.CreateEventRequest{
		Title:       "Workshop",
		Description: "Hands-on session",
		Date:        fixedNow.Add(7 * 24 * time.Hour).Format(time.RFC3339),
		Location:    "Room 1",
		Capacity:    capacity,
	})
	if err != nil {
		t.Fatalf("Create event: %v", err)
	}
	return e
}

// participant registers a participant and returns their id.
func (f *fixture) participant(t *testing.T, name string) string {
	t.Helper()
	u, err := f.auth.Register(context.Background(), model.RegisterRequest{
		FullName: name,
		Email:    name + "@example.com",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("Register %s: %v", name, err)
	}
	return u.ID
}

func (f *fixture) reserve(t *testing.T, eventID, participantID string) *model.Reservation {
	t.Helper()
	r, err := f.reservations.Create(context.Background(), eventID, participantID, "")
	if err != nil {
		t.Fatalf("Create reservation: %v", err)
	}
	return r
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want kind %v", err, kind)
	}
}

func unknownID() string { return uuid.NewString() }
