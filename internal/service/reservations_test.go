package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

func TestCreateReservationGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed event id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reservations.Create(ctx, "123", f.participant(t, "a"), "")
		wantKind(t, err, model.ErrInvalidInput)
	})

	t.Run("comment too long", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 2)
		_, err := f.reservations.Create(ctx, e.ID, f.participant(t, "a"), strings.Repeat("x", model.MaxCommentLength+1))
		wantKind(t, err, model.ErrInvalidInput)
	})

	t.Run("missing event", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reservations.Create(ctx, unknownID(), f.participant(t, "a"), "")
		wantKind(t, err, model.ErrNotFound)
	})

	t.Run("draft event", func(t *testing.T) {
		f := newFixture(t)
		e := f.draftEvent(t, 2)
		_, err := f.reservations.Create(ctx, e.ID, f.participant(t, "a"), "")
		wantKind(t, err, model.ErrInvalidState)
	})

	t.Run("canceled event", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 2)
		if _, err := f.events.Cancel(ctx, e.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.reservations.Create(ctx, e.ID, f.participant(t, "a"), "")
		wantKind(t, err, model.ErrInvalidState)
	})

	t.Run("duplicate active reservation", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 2)
		p := f.participant(t, "a")
		f.reserve(t, e.ID, p)
		_, err := f.reservations.Create(ctx, e.ID, p, "")
		wantKind(t, err, model.ErrConflict)
	})

	t.Run("duplicate checked before capacity", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 1)
		p := f.participant(t, "a")
		r := f.reserve(t, e.ID, p)
		if _, err := f.reservations.Confirm(ctx, r.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.reservations.Create(ctx, e.ID, p, "")
		wantKind(t, err, model.ErrConflict)
	})

	t.Run("full event", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 1)
		r := f.reserve(t, e.ID, f.participant(t, "a"))
		if _, err := f.reservations.Confirm(ctx, r.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.reservations.Create(ctx, e.ID, f.participant(t, "b"), "")
		wantKind(t, err, model.ErrInvalidState)
		if !strings.Contains(err.Error(), "full") {
			t.Errorf("error = %q, want an event-full message", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 1)
		r, err := f.reservations.Create(ctx, e.ID, f.participant(t, "a"), "window seat")
		if err != nil {
			t.Fatal(err)
		}
		if r.Status != model.ReservationPending || r.Comment != "window seat" || r.EventID != e.ID {
			t.Errorf("reservation = %+v", r)
		}
	})
}

func TestReserveAgainAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.publishedEvent(t, 2)
	p := f.participant(t, "a")
	r := f.reserve(t, e.ID, p)
	if _, err := f.reservations.Cancel(ctx, r.ID, p); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reservations.Create(ctx, e.ID, p, ""); err != nil {
		t.Fatalf("re-reserve after cancel: %v", err)
	}
}

func TestConfirmRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const capacity = 3
	e := f.publishedEvent(t, capacity)

	var pending []*model.Reservation
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		pending = append(pending, f.reserve(t, e.ID, f.participant(t, name)))
	}
	for _, r := range pending[:capacity] {
		confirmed, err := f.reservations.Confirm(ctx, r.ID)
		if err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if confirmed.Status != model.ReservationConfirmed {
			t.Errorf("Status = %v, want %v", confirmed.Status, model.ReservationConfirmed)
		}
	}
	for _, r := range pending[capacity:] {
		_, err := f.reservations.Confirm(ctx, r.ID)
		wantKind(t, err, model.ErrInvalidState)
	}

	// Revoking a confirmed seat frees it.
	if _, err := f.reservations.AdminCancel(ctx, pending[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reservations.Confirm(ctx, pending[capacity].ID); err != nil {
		t.Fatalf("Confirm after revocation: %v", err)
	}
}

func TestConfirmGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("missing reservation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reservations.Confirm(ctx, unknownID())
		wantKind(t, err, model.ErrNotFound)
	})

	t.Run("event canceled", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 2)
		r := f.reserve(t, e.ID, f.participant(t, "a"))
		if _, err := f.events.Cancel(ctx, e.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.reservations.Confirm(ctx, r.ID)
		wantKind(t, err, model.ErrInvalidState)
	})

	t.Run("event deleted", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 2)
		r := f.reserve(t, e.ID, f.participant(t, "a"))
		if _, err := f.events.Delete(ctx, e.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.reservations.Confirm(ctx, r.ID)
		wantKind(t, err, model.ErrNotFound)
	})

	t.Run("already confirmed", func(t *testing.T) {
		f := newFixture(t)
		e := f.publishedEvent(t, 2)
		r := f.reserve(t, e.ID, f.participant(t, "a"))
		if _, err := f.reservations.Confirm(ctx, r.ID); err != nil {
			t.Fatal(err)
		}
		_, err := f.reservations.Confirm(ctx, r.ID)
		wantKind(t, err, model.ErrInvalidState)
	})
}

func TestTerminalStatusesAreFinal(t *testing.T) {
	ctx := context.Background()
	for _, terminal := range []model.ReservationStatus{model.ReservationRefused, model.ReservationCanceled} {
		t.Run(string(terminal), func(t *testing.T) {
			f := newFixture(t)
			e := f.publishedEvent(t, 5)
			p := f.participant(t, "a")
			r := f.reserve(t, e.ID, p)

			var err error
			if terminal == model.ReservationRefused {
				_, err = f.reservations.Refuse(ctx, r.ID)
			} else {
				_, err = f.reservations.Cancel(ctx, r.ID, p)
			}
			if err != nil {
				t.Fatal(err)
			}

			_, err = f.reservations.Confirm(ctx, r.ID)
			wantKind(t, err, model.ErrInvalidState)
			_, err = f.reservations.Refuse(ctx, r.ID)
			wantKind(t, err, model.ErrInvalidState)
			_, err = f.reservations.Cancel(ctx, r.ID, p)
			wantKind(t, err, model.ErrInvalidState)
		})
	}
}

func TestCancelByNonOwnerIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.publishedEvent(t, 5)
	owner := f.participant(t, "owner")
	other := f.participant(t, "other")

	pending := f.reserve(t, e.ID, owner)
	_, err := f.reservations.Cancel(ctx, pending.ID, other)
	wantKind(t, err, model.ErrForbidden)

	// Forbidden wins over the terminal-status check.
	if _, err := f.reservations.Refuse(ctx, pending.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.reservations.Cancel(ctx, pending.ID, other)
	wantKind(t, err, model.ErrForbidden)

	second := f.reserve(t, e.ID, owner)
	if _, err := f.reservations.Confirm(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.reservations.Cancel(ctx, second.ID, other)
	wantKind(t, err, model.ErrForbidden)

	canceled, err := f.reservations.Cancel(ctx, second.ID, owner)
	if err != nil {
		t.Fatalf("owner cancel of confirmed reservation: %v", err)
	}
	if canceled.Status != model.ReservationCanceled {
		t.Errorf("Status = %v, want %v", canceled.Status, model.ReservationCanceled)
	}
}

func TestAdminCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.publishedEvent(t, 5)

	pending := f.reserve(t, e.ID, f.participant(t, "a"))
	confirmed := f.reserve(t, e.ID, f.participant(t, "b"))
	if _, err := f.reservations.Confirm(ctx, confirmed.ID); err != nil {
		t.Fatal(err)
	}
	refused := f.reserve(t, e.ID, f.participant(t, "c"))
	if _, err := f.reservations.Refuse(ctx, refused.ID); err != nil {
		t.Fatal(err)
	}

	for _, r := range []*model.Reservation{pending, confirmed, refused} {
		got, err := f.reservations.AdminCancel(ctx, r.ID)
		if err != nil {
			t.Fatalf("AdminCancel(%s): %v", r.Status, err)
		}
		if got.Status != model.ReservationCanceled {
			t.Errorf("Status = %v, want %v", got.Status, model.ReservationCanceled)
		}
		_, err = f.reservations.AdminCancel(ctx, r.ID)
		wantKind(t, err, model.ErrInvalidState)
	}

	_, err := f.reservations.AdminCancel(ctx, unknownID())
	wantKind(t, err, model.ErrNotFound)
	_, err = f.reservations.AdminCancel(ctx, "bogus")
	wantKind(t, err, model.ErrInvalidInput)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e1 := f.publishedEvent(t, 5)
	e2 := f.publishedEvent(t, 5)
	a := f.participant(t, "a")
	b := f.participant(t, "b")

	r1 := f.reserve(t, e1.ID, a)
	r2 := f.reserve(t, e2.ID, a)
	r3 := f.reserve(t, e1.ID, b)
	if _, err := f.reservations.Confirm(ctx, r3.ID); err != nil {
		t.Fatal(err)
	}

	mine, err := f.reservations.ListMine(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].ID != r2.ID || mine[1].ID != r1.ID {
		t.Fatalf("ListMine order = %+v", mine)
	}
	if mine[0].Event == nil || mine[0].Event.ID != e2.ID {
		t.Errorf("ListMine event not attached: %+v", mine[0])
	}

	all, err := f.reservations.ListAll(ctx, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != r3.ID {
		t.Fatalf("ListAll = %+v", all)
	}
	if all[0].Participant == nil || all[0].Participant.ID != b {
		t.Errorf("ListAll participant not attached: %+v", all[0])
	}

	byEvent, _ := f.reservations.ListAll(ctx, e1.ID, "", "")
	if len(byEvent) != 2 {
		t.Errorf("ListAll(event) len = %d, want 2", len(byEvent))
	}
	byStatus, _ := f.reservations.ListAll(ctx, "", "", "CONFIRMED")
	if len(byStatus) != 1 || byStatus[0].ID != r3.ID {
		t.Errorf("ListAll(status) = %+v", byStatus)
	}
	combined, _ := f.reservations.ListAll(ctx, e1.ID, a, "PENDING")
	if len(combined) != 1 || combined[0].ID != r1.ID {
		t.Errorf("ListAll(combined) = %+v", combined)
	}

	_, err = f.reservations.ListAll(ctx, "", "", "LOST")
	wantKind(t, err, model.ErrInvalidInput)
	_, err = f.reservations.ListAll(ctx, "x", "", "")
	wantKind(t, err, model.ErrInvalidInput)

	view, err := f.reservations.Get(ctx, r1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Event == nil || view.Participant == nil || view.Participant.Email != "a@example.com" {
		t.Errorf("Get view = %+v", view)
	}
	_, err = f.reservations.Get(ctx, unknownID())
	wantKind(t, err, model.ErrNotFound)
}

func TestWorkshopScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e, err := f.events.Create(ctx, model.CreateEventRequest{
		Title: "Workshop", Description: "d", Location: "l", Capacity: 1,
		Date: "2026-12-01T10:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != model.EventDraft {
		t.Fatalf("new event status = %v", e.Status)
	}
	if _, err := f.events.Publish(ctx, e.ID); err != nil {
		t.Fatal(err)
	}

	ra := f.reserve(t, e.ID, f.participant(t, "a"))
	if ra.Status != model.ReservationPending {
		t.Fatalf("A status = %v", ra.Status)
	}
	confirmed, err := f.reservations.Confirm(ctx, ra.ID)
	if err != nil || confirmed.Status != model.ReservationConfirmed {
		t.Fatalf("confirm A: %v, %+v", err, confirmed)
	}

	// Create-time capacity check already rejects B.
	_, err = f.reservations.Create(ctx, e.ID, f.participant(t, "b"), "")
	wantKind(t, err, model.ErrInvalidState)
}

func TestWorkshopScenarioConfirmPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.publishedEvent(t, 1)

	ra := f.reserve(t, e.ID, f.participant(t, "a"))
	rb := f.reserve(t, e.ID, f.participant(t, "b"))
	if _, err := f.reservations.Confirm(ctx, ra.ID); err != nil {
		t.Fatal(err)
	}
	_, err := f.reservations.Confirm(ctx, rb.ID)
	wantKind(t, err, model.ErrInvalidState)
	if err.Error() != "event is full" {
		t.Errorf("error = %q, want %q", err, "event is full")
	}
}

func TestCancelEventKeepsConfirmedReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.publishedEvent(t, 3)
	r := f.reserve(t, e.ID, f.participant(t, "a"))
	if _, err := f.reservations.Confirm(ctx, r.ID); err != nil {
		t.Fatal(err)
	}

	canceled, err := f.events.Cancel(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if canceled.Status != model.EventCanceled {
		t.Fatalf("event status = %v", canceled.Status)
	}

	_, err = f.reservations.Create(ctx, e.ID, f.participant(t, "b"), "")
	wantKind(t, err, model.ErrInvalidState)

	view, err := f.reservations.Get(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != model.ReservationConfirmed {
		t.Errorf("reservation status = %v, want %v", view.Status, model.ReservationConfirmed)
	}
}

func TestConcurrentConfirmationsNeverOverbook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const capacity = 5
	e := f.publishedEvent(t, capacity)

	var ids []string
	for i := 0; i < 40; i++ {
		r := f.reserve(t, e.ID, f.participant(t, fmt.Sprintf("p%d", i)))
		ids = append(ids, r.ID)
	}

	var ok, full atomic.Int32
	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.reservations.Confirm(ctx, id); err == nil {
				ok.Add(1)
			} else {
				full.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != capacity {
		t.Fatalf("confirmed %d, want %d (rejected %d)", ok.Load(), capacity, full.Load())
	}
	confirmed, _ := f.reservations.ListAll(ctx, e.ID, "", "CONFIRMED")
	if len(confirmed) != capacity {
		t.Fatalf("stored confirmed = %d, want %d", len(confirmed), capacity)
	}
}

func TestConcurrentDuplicateReservations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := f.publishedEvent(t, 10)
	p := f.participant(t, "a")

	var ok atomic.Int32
	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.reservations.Create(ctx, e.ID, p, ""); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	if ok.Load() != 1 {
		t.Fatalf("created %d active reservations, want 1", ok.Load())
	}
}

// TestActionsFollowStateMachine checks every service action against
// model.CanTransition from every starting status.
func TestActionsFollowStateMachine(t *testing.T) {
	ctx := context.Background()

	// into moves a fresh pending reservation owned by owner to status.
	into := func(t *testing.T, f *fixture, id, owner string, status model.ReservationStatus) {
		t.Helper()
		var err error
		switch status {
		case model.ReservationConfirmed:
			_, err = f.reservations.Confirm(ctx, id)
		case model.ReservationRefused:
			_, err = f.reservations.Refuse(ctx, id)
		case model.ReservationCanceled:
			_, err = f.reservations.Cancel(ctx, id, owner)
		}
		if err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
	}

	actions := []struct {
		name string
		to   model.ReservationStatus
		by   model.Role
		run  func(f *fixture, id, owner string) (*model.Reservation, error)
	}{
		{"confirm", model.ReservationConfirmed, model.RoleAdmin, func(f *fixture, id, _ string) (*model.Reservation, error) {
			return f.reservations.Confirm(ctx, id)
		}},
		{"refuse", model.ReservationRefused, model.RoleAdmin, func(f *fixture, id, _ string) (*model.Reservation, error) {
			return f.reservations.Refuse(ctx, id)
		}},
		{"owner cancel", model.ReservationCanceled, model.RoleParticipant, func(f *fixture, id, owner string) (*model.Reservation, error) {
			return f.reservations.Cancel(ctx, id, owner)
		}},
		{"admin cancel", model.ReservationCanceled, model.RoleAdmin, func(f *fixture, id, _ string) (*model.Reservation, error) {
			return f.reservations.AdminCancel(ctx, id)
		}},
	}
	starts := []model.ReservationStatus{
		model.ReservationPending, model.ReservationConfirmed, model.ReservationRefused, model.ReservationCanceled,
	}

	for _, from := range starts {
		for _, a := range actions {
			t.Run(string(from)+" "+a.name, func(t *testing.T) {
				f := newFixture(t)
				e := f.publishedEvent(t, 5)
				owner := f.participant(t, "owner")
				r := f.reserve(t, e.ID, owner)
				into(t, f, r.ID, owner, from)

				got, err := a.run(f, r.ID, owner)
				if from.CanTransition(a.to, a.by) {
					if err != nil {
						t.Fatalf("%s from %s: %v", a.name, from, err)
					}
					if got.Status != a.to {
						t.Errorf("Status = %v, want %v", got.Status, a.to)
					}
					return
				}
				wantKind(t, err, model.ErrInvalidState)
			})
		}
	}
}
