// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-reservations/internal/model"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
)

// nextEventsLimit is how many upcoming events Stats reports.
const nextEventsLimit = 5

// EventService orchestrates the event lifecycle.
type EventService struct {
	events repository.EventStore
	log    *slog.Logger
	now    func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events repository.EventStore, logger *slog.Logger) *EventService {
	return &EventService{events: events, log: logger, now: time.Now}
}

// Create validates the request and stores a new DRAFT event.
func (s *EventService) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	event := &model.Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Date:        date,
		Location:    req.Location,
		Capacity:    req.Capacity,
		Status:      model.EventDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.log.Info("event created", "event_id", event.ID, "capacity", event.Capacity)
	return event, nil
}

// Get returns a single event by ID.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	if err := checkID(id, "event"); err != nil {
		return nil, err
	}
	return s.events.EventByID(ctx, id)
}

// Update merges the provided fields into the event. Canceled events are
// frozen.
func (s *EventService) Update(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.IsCanceled() {
		return nil, model.Errorf(model.ErrInvalidState, "cannot update a canceled event")
	}

	trim(req.Title, req.Description, req.Location, req.Date)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	fields := []struct {
		name string
		val  *string
	}{{"title", req.Title}, {"description", req.Description}, {"date", req.Date}, {"location", req.Location}}
	for _, f := range fields {
		if f.val != nil && *f.val == "" {
			return nil, model.Errorf(model.ErrInvalidInput, "%s must not be empty", f.name)
		}
	}
	if req.Capacity != nil && *req.Capacity < 1 {
		return nil, model.Errorf(model.ErrInvalidInput, "capacity must be at least 1")
	}
	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.Capacity != nil {
		event.Capacity = *req.Capacity
	}
	if req.Date != nil {
		if event.Date, err = parseDate(*req.Date); err != nil {
			return nil, err
		}
	}
	event.UpdatedAt = s.now().UTC()

	if err := s.events.UpdateEventDetails(ctx, event); err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return nil, model.Errorf(model.ErrInvalidState, "cannot update a canceled event")
		}
		return nil, err
	}
	s.log.Info("event updated", "event_id", event.ID)
	return event, nil
}

// Publish opens the event for reservations.
func (s *EventService) Publish(ctx context.Context, id string) (*model.Event, error) {
	if err := checkID(id, "event"); err != nil {
		return nil, err
	}
	event, err := s.events.SetEventStatus(ctx, id, model.EventPublished,
		[]model.EventStatus{model.EventDraft, model.EventPublished}, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return nil, model.Errorf(model.ErrInvalidState, "cannot publish a canceled event")
		}
		return nil, err
	}
	s.log.Info("event published", "event_id", id)
	return event, nil
}

// Cancel marks the event canceled whatever its current status. Existing
// reservations are left as they are.
func (s *EventService) Cancel(ctx context.Context, id string) (*model.Event, error) {
	if err := checkID(id, "event"); err != nil {
		return nil, err
	}
	event, err := s.events.SetEventStatus(ctx, id, model.EventCanceled, nil, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.log.Info("event canceled", "event_id", id)
	return event, nil
}

// Delete hard-deletes the event.
func (s *EventService) Delete(ctx context.Context, id string) (*model.MessageResponse, error) {
	if err := checkID(id, "event"); err != nil {
		return nil, err
	}
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		return nil, err
	}
	s.log.Info("event deleted", "event_id", id)
	return &model.MessageResponse{Message: fmt.Sprintf("event %s deleted", id)}, nil
}

// ListPublished returns published events, soonest first.
func (s *EventService) ListPublished(ctx context.Context) ([]model.Event, error) {
	return s.events.ListPublishedEvents(ctx)
}

// ListAll returns every event, newest first.
func (s *EventService) ListAll(ctx context.Context) ([]model.Event, error) {
	return s.events.ListEvents(ctx)
}

// Stats reports event counts and the next published events.
func (s *EventService) Stats(ctx context.Context) (*model.EventStats, error) {
	now := s.now().UTC()
	counts, err := s.events.EventCounts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	next, err := s.events.UpcomingPublishedEvents(ctx, now, nextEventsLimit)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	if next == nil {
		next = []model.Event{}
	}
	return &model.EventStats{
		Total:      counts.Total,
		Published:  counts.Published,
		Upcoming:   counts.Upcoming,
		Past:       counts.Past,
		Draft:      counts.Draft,
		Canceled:   counts.Canceled,
		NextEvents: next,
	}, nil
}

func trim(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}
