package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

var (
	_ UserStore        = (*UserRepository)(nil)
	_ EventStore       = (*EventRepository)(nil)
	_ ReservationStore = (*ReservationRepository)(nil)
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ─── Users ────────────────────────────────────────────────────────────────────

// UserRepository handles persistence for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, full_name, email, password_hash, roles, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u     model.User
		roles []string
	)
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &roles, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Roles = make([]model.Role, len(roles))
	for i, r := range roles {
		u.Roles[i] = model.Role(r)
	}
	return &u, nil
}

func roleStrings(roles []model.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, full_name, email, password_hash, roles, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.FullName, u.Email, u.PasswordHash, roleStrings(u.Roles), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Errorf(model.ErrConflict, "email %s is already registered", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByID returns a single user or a not-found error.
func (r *UserRepository) UserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserByEmail looks a user up by their (lower-cased) email.
func (r *UserRepository) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UsersByIDs returns the users that exist among ids, keyed by id.
func (r *UserRepository) UsersByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// ─── Events ───────────────────────────────────────────────────────────────────

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, description, date, location, capacity, status, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Capacity, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func getEvent(ctx context.Context, q querier, id string, forUpdate bool) (*model.Event, error) {
	sql := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	e, err := scanEvent(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("event")
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, description, date, location, capacity, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Title, e.Description, e.Date, e.Location, e.Capacity, e.Status, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventByID returns a single event or a not-found error.
func (r *EventRepository) EventByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, r.db, id, false)
}

// EventsByIDs returns the events that exist among ids, keyed by id.
func (r *EventRepository) EventsByIDs(ctx context.Context, ids []string) (map[string]*model.Event, error) {
	out := make(map[string]*model.Event, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("list events by id: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	for i := range events {
		out[events[i].ID] = &events[i]
	}
	return out, nil
}

// UpdateEventDetails writes every mutable field except status. The
// status predicate keeps a concurrent cancel from being overwritten.
func (r *EventRepository) UpdateEventDetails(ctx context.Context, e *model.Event) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, date = $4, location = $5, capacity = $6, updated_at = $7
		 WHERE id = $1 AND status <> $8`,
		e.ID, e.Title, e.Description, e.Date, e.Location, e.Capacity, e.UpdatedAt, model.EventCanceled,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrMismatch(ctx, e.ID)
	}
	return nil
}

// SetEventStatus performs a conditional status change.
func (r *EventRepository) SetEventStatus(ctx context.Context, id string, status model.EventStatus, from []model.EventStatus, at time.Time) (*model.Event, error) {
	sql := `UPDATE events SET status = $2, updated_at = $3 WHERE id = $1`
	args := []any{id, status, at}
	if len(from) > 0 {
		sql += ` AND status = ANY($4)`
		args = append(args, eventStatusStrings(from))
	}
	sql += ` RETURNING ` + eventColumns

	e, err := scanEvent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrMismatch(ctx, id)
		}
		return nil, fmt.Errorf("set event status: %w", err)
	}
	return e, nil
}

func (r *EventRepository) missOrMismatch(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return notFound("event")
	}
	return ErrStatusMismatch
}

// DeleteEvent hard-deletes an event. Reservations are left untouched.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("event")
	}
	return nil
}

// ListPublishedEvents returns published events ordered by date ascending.
func (r *EventRepository) ListPublishedEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE status = $1 ORDER BY date ASC`,
		model.EventPublished,
	)
	if err != nil {
		return nil, fmt.Errorf("list published events: %w", err)
	}
	return collectEvents(rows)
}

// ListEvents returns all events ordered by creation time descending.
func (r *EventRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collectEvents(rows)
}

// EventCounts aggregates events by status and by date relative to now.
func (r *EventRepository) EventCounts(ctx context.Context, now time.Time) (model.EventCounts, error) {
	var c model.EventCounts
	err := r.db.QueryRow(ctx,
		`SELECT
		   COUNT(*),
		   COUNT(*) FILTER (WHERE status = 'PUBLISHED'),
		   COUNT(*) FILTER (WHERE date >= $1),
		   COUNT(*) FILTER (WHERE date < $1),
		   COUNT(*) FILTER (WHERE status = 'DRAFT'),
		   COUNT(*) FILTER (WHERE status = 'CANCELED')
		 FROM events`,
		now,
	).Scan(&c.Total, &c.Published, &c.Upcoming, &c.Past, &c.Draft, &c.Canceled)
	if err != nil {
		return c, fmt.Errorf("count events: %w", err)
	}
	return c, nil
}

// UpcomingPublishedEvents returns the nearest published events from now on.
func (r *EventRepository) UpcomingPublishedEvents(ctx context.Context, now time.Time, limit int) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE status = $1 AND date >= $2
		 ORDER BY date ASC
		 LIMIT $3`,
		model.EventPublished, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return collectEvents(rows)
}

func eventStatusStrings(in []model.EventStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// ─── Reservations ─────────────────────────────────────────────────────────────

// ReservationRepository handles persistence for reservations.
type ReservationRepository struct {
	db *pgxpool.Pool
}

// NewReservationRepository constructs a ReservationRepository.
func NewReservationRepository(db *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `id, event_id, participant_id, status, COALESCE(comment, ''), created_at, updated_at`

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.EventID, &res.ParticipantID, &res.Status, &res.Comment, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func getReservation(ctx context.Context, q querier, id string, forUpdate bool) (*model.Reservation, error) {
	sql := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	res, err := scanReservation(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("reservation")
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// ReservationByID returns a single reservation or a not-found error.
func (r *ReservationRepository) ReservationByID(ctx context.Context, id string) (*model.Reservation, error) {
	return getReservation(ctx, r.db, id, false)
}

// ListReservations returns reservations matching f, newest first.
func (r *ReservationRepository) ListReservations(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	sql := `SELECT ` + reservationColumns + ` FROM reservations WHERE TRUE`
	var args []any
	if f.EventID != "" {
		args = append(args, f.EventID)
		sql += fmt.Sprintf(` AND event_id = $%d`, len(args))
	}
	if f.ParticipantID != "" {
		args = append(args, f.ParticipantID)
		sql += fmt.Sprintf(` AND participant_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		sql += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	sql += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// TransitionReservation performs a compare-and-set on the status column so
// two concurrent transitions cannot both succeed from the same state.
func (r *ReservationRepository) TransitionReservation(ctx context.Context, id string, status model.ReservationStatus, from []model.ReservationStatus, at time.Time) (*model.Reservation, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}
	res, err := scanReservation(r.db.QueryRow(ctx,
		`UPDATE reservations SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = ANY($4)
		 RETURNING `+reservationColumns,
		id, status, at, fromStrs,
	))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transition reservation: %w", err)
		}
		if _, getErr := r.ReservationByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusMismatch
	}
	return res, nil
}

// WithEventLock runs fn inside a transaction that holds a row-level lock
// on the event.
//
// SELECT ... FOR UPDATE blocks every other transaction trying to lock the
// same event until this one commits or rolls back, so the duplicate
// check, the confirmed count and the write that follows are serialised
// per event and capacity can never be exceeded.
func (r *ReservationRepository) WithEventLock(ctx context.Context, eventID string, fn func(ctx context.Context, event *model.Event, tx AdmissionTx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	event, err := getEvent(ctx, tx, eventID, true)
	if err != nil {
		return err
	}

	if err = fn(ctx, event, pgAdmission{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// pgAdmission implements AdmissionTx on an open transaction.
type pgAdmission struct {
	q querier
}

func (a pgAdmission) ReservationForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	return getReservation(ctx, a.q, id, true)
}

func (a pgAdmission) HasActiveReservation(ctx context.Context, eventID, participantID string) (bool, error) {
	var exists bool
	err := a.q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM reservations
		   WHERE event_id = $1 AND participant_id = $2 AND status IN ('PENDING', 'CONFIRMED'))`,
		eventID, participantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active reservation: %w", err)
	}
	return exists, nil
}

func (a pgAdmission) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	var n int
	err := a.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM reservations WHERE event_id = $1 AND status = 'CONFIRMED'`,
		eventID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return n, nil
}

func (a pgAdmission) InsertReservation(ctx context.Context, res *model.Reservation) error {
	var comment *string
	if res.Comment != "" {
		comment = &res.Comment
	}
	_, err := a.q.Exec(ctx,
		`INSERT INTO reservations (id, event_id, participant_id, status, comment, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, res.EventID, res.ParticipantID, res.Status, comment, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Errorf(model.ErrConflict, "you already have an active reservation for this event")
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (a pgAdmission) SetReservationStatus(ctx context.Context, id string, status model.ReservationStatus, at time.Time) error {
	tag, err := a.q.Exec(ctx,
		`UPDATE reservations SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, at,
	)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("reservation")
	}
	return nil
}
