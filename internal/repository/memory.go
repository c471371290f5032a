package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

var (
	_ UserStore        = (*Memory)(nil)
	_ EventStore       = (*Memory)(nil)
	_ ReservationStore = (*Memory)(nil)
)

// Memory is an in-process store implementing UserStore, EventStore and
// ReservationStore. A single mutex guards all state; WithEventLock holds
// it for the duration of the callback.
type Memory struct {
	mu           sync.Mutex
	seq          int64
	users        map[string]*memUser
	events       map[string]*memEvent
	reservations map[string]*memReservation
}

type memUser struct {
	seq int64
	model.User
}

type memEvent struct {
	seq int64
	model.Event
}

type memReservation struct {
	seq int64
	model.Reservation
}

// NewMemory constructs an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		users:        make(map[string]*memUser),
		events:       make(map[string]*memEvent),
		reservations: make(map[string]*memReservation),
	}
}

func (m *Memory) next() int64 {
	m.seq++
	return m.seq
}

// ─── Users ────────────────────────────────────────────────────────────────────

// CreateUser stores a copy of u. Emails are unique case-insensitively.
func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.Errorf(model.ErrConflict, "email %s is already registered", u.Email)
		}
	}
	cp := *u
	cp.Roles = slices.Clone(u.Roles)
	m.users[u.ID] = &memUser{seq: m.next(), User: cp}
	return nil
}

// UserByID returns a copy of the user with the given id.
func (m *Memory) UserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return u.copy(), nil
}

// UserByEmail looks a user up by email, ignoring case.
func (m *Memory) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u.copy(), nil
		}
	}
	return nil, notFound("user")
}

// UsersByIDs returns the known users among ids, keyed by id. Unknown ids
// are skipped.
func (m *Memory) UsersByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out[id] = u.copy()
		}
	}
	return out, nil
}

func (u *memUser) copy() *model.User {
	cp := u.User
	cp.Roles = slices.Clone(u.Roles)
	return &cp
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent stores a copy of e.
func (m *Memory) CreateEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = &memEvent{seq: m.next(), Event: *e}
	return nil
}

// EventByID returns a copy of the event with the given id.
func (m *Memory) EventByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, notFound("event")
	}
	cp := e.Event
	return &cp, nil
}

// EventsByIDs is the event counterpart of UsersByIDs.
func (m *Memory) EventsByIDs(_ context.Context, ids []string) (map[string]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.Event, len(ids))
	for _, id := range ids {
		if e, ok := m.events[id]; ok {
			cp := e.Event
			out[id] = &cp
		}
	}
	return out, nil
}

// UpdateEventDetails overwrites the editable fields of a stored event. A
// canceled event yields ErrStatusMismatch.
func (m *Memory) UpdateEventDetails(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[e.ID]
	if !ok {
		return notFound("event")
	}
	if stored.IsCanceled() {
		return ErrStatusMismatch
	}
	stored.Title = e.Title
	stored.Description = e.Description
	stored.Date = e.Date
	stored.Location = e.Location
	stored.Capacity = e.Capacity
	stored.UpdatedAt = e.UpdatedAt
	return nil
}

// SetEventStatus moves an event to status if its current status is in
// from. An empty from applies the change unconditionally.
func (m *Memory) SetEventStatus(_ context.Context, id string, status model.EventStatus, from []model.EventStatus, at time.Time) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[id]
	if !ok {
		return nil, notFound("event")
	}
	if len(from) > 0 && !slices.Contains(from, stored.Status) {
		return nil, ErrStatusMismatch
	}
	stored.Status = status
	stored.UpdatedAt = at
	cp := stored.Event
	return &cp, nil
}

// DeleteEvent removes an event. Its reservations are kept.
func (m *Memory) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return notFound("event")
	}
	delete(m.events, id)
	return nil
}

// ListPublishedEvents returns published events, soonest first.
func (m *Memory) ListPublishedEvents(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.filterEvents(func(e *memEvent) bool { return e.IsPublished() })
	slices.SortFunc(matched, byDateAsc)
	return unwrapEvents(matched), nil
}

// ListEvents returns every event, newest first.
func (m *Memory) ListEvents(_ context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filterEvents(func(*memEvent) bool { return true })
	slices.SortFunc(all, func(a, b *memEvent) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	return unwrapEvents(all), nil
}

// EventCounts tallies events by status and by whether their date is
// before now.
func (m *Memory) EventCounts(_ context.Context, now time.Time) (model.EventCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c model.EventCounts
	for _, e := range m.events {
		c.Total++
		switch e.Status {
		case model.EventPublished:
			c.Published++
		case model.EventDraft:
			c.Draft++
		case model.EventCanceled:
			c.Canceled++
		}
		if e.Date.Before(now) {
			c.Past++
		} else {
			c.Upcoming++
		}
	}
	return c, nil
}

// UpcomingPublishedEvents returns at most limit published events dated
// at or after now, soonest first.
func (m *Memory) UpcomingPublishedEvents(_ context.Context, now time.Time, limit int) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.filterEvents(func(e *memEvent) bool {
		return e.IsPublished() && !e.Date.Before(now)
	})
	slices.SortFunc(matched, byDateAsc)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return unwrapEvents(matched), nil
}

func (m *Memory) filterEvents(keep func(*memEvent) bool) []*memEvent {
	var out []*memEvent
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func byDateAsc(a, b *memEvent) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

func unwrapEvents(in []*memEvent) []model.Event {
	out := make([]model.Event, len(in))
	for i, e := range in {
		out[i] = e.Event
	}
	return out
}

// ─── Reservations ─────────────────────────────────────────────────────────────

// ReservationByID returns a copy of the reservation with the given id.
func (m *Memory) ReservationByID(_ context.Context, id string) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservation(id)
}

func (m *Memory) reservation(id string) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, notFound("reservation")
	}
	cp := r.Reservation
	return &cp, nil
}

// ListReservations applies the non-empty fields of f and returns the
// matches newest first.
func (m *Memory) ListReservations(_ context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*memReservation
	for _, r := range m.reservations {
		if f.EventID != "" && r.EventID != f.EventID {
			continue
		}
		if f.ParticipantID != "" && r.ParticipantID != f.ParticipantID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		matched = append(matched, r)
	}
	slices.SortFunc(matched, func(a, b *memReservation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	out := make([]model.Reservation, len(matched))
	for i, r := range matched {
		out[i] = r.Reservation
	}
	return out, nil
}

// TransitionReservation sets status when the current status is in from,
// and returns ErrStatusMismatch otherwise.
func (m *Memory) TransitionReservation(_ context.Context, id string, status model.ReservationStatus, from []model.ReservationStatus, at time.Time) (*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, notFound("reservation")
	}
	if !slices.Contains(from, r.Status) {
		return nil, ErrStatusMismatch
	}
	r.Status = status
	r.UpdatedAt = at
	cp := r.Reservation
	return &cp, nil
}

// WithEventLock runs fn with the store mutex held. Writes made through tx
// are buffered and applied only when fn returns nil.
func (m *Memory) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, event *model.Event, tx AdmissionTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventID]
	if !ok {
		return notFound("event")
	}
	snapshot := e.Event

	tx := &memAdmission{m: m, statuses: make(map[string]memStatusChange)}
	if err := fn(ctx, &snapshot, tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

type memStatusChange struct {
	status model.ReservationStatus
	at     time.Time
}

// memAdmission reads through to the locked store and buffers writes.
type memAdmission struct {
	m        *Memory
	inserts  []model.Reservation
	statuses map[string]memStatusChange
}

func (a *memAdmission) current(id string) (*model.Reservation, bool) {
	for i := range a.inserts {
		if a.inserts[i].ID == id {
			cp := a.inserts[i]
			return &cp, true
		}
	}
	r, ok := a.m.reservations[id]
	if !ok {
		return nil, false
	}
	cp := r.Reservation
	if ch, ok := a.statuses[id]; ok {
		cp.Status = ch.status
		cp.UpdatedAt = ch.at
	}
	return &cp, true
}

func (a *memAdmission) each(fn func(r *model.Reservation)) {
	for id := range a.m.reservations {
		r, _ := a.current(id)
		fn(r)
	}
	for i := range a.inserts {
		fn(&a.inserts[i])
	}
}

func (a *memAdmission) ReservationForUpdate(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := a.current(id)
	if !ok {
		return nil, notFound("reservation")
	}
	return r, nil
}

func (a *memAdmission) HasActiveReservation(_ context.Context, eventID, participantID string) (bool, error) {
	found := false
	a.each(func(r *model.Reservation) {
		if r.EventID == eventID && r.ParticipantID == participantID && r.Status.Active() {
			found = true
		}
	})
	return found, nil
}

func (a *memAdmission) CountConfirmed(_ context.Context, eventID string) (int, error) {
	n := 0
	a.each(func(r *model.Reservation) {
		if r.EventID == eventID && r.Status == model.ReservationConfirmed {
			n++
		}
	})
	return n, nil
}

func (a *memAdmission) InsertReservation(_ context.Context, r *model.Reservation) error {
	a.inserts = append(a.inserts, *r)
	return nil
}

func (a *memAdmission) SetReservationStatus(_ context.Context, id string, status model.ReservationStatus, at time.Time) error {
	for i := range a.inserts {
		if a.inserts[i].ID == id {
			a.inserts[i].Status = status
			a.inserts[i].UpdatedAt = at
			return nil
		}
	}
	if _, ok := a.m.reservations[id]; !ok {
		return notFound("reservation")
	}
	a.statuses[id] = memStatusChange{status: status, at: at}
	return nil
}

func (a *memAdmission) apply() {
	for id, ch := range a.statuses {
		r := a.m.reservations[id]
		r.Status = ch.status
		r.UpdatedAt = ch.at
	}
	for _, r := range a.inserts {
		a.m.reservations[r.ID] = &memReservation{seq: a.m.next(), Reservation: r}
	}
}
