package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventgrid/eventgrid/internal/clock"
	"github.com/eventgrid/eventgrid/internal/model"
)

// EventService handles event creation and the status transitions that
// gate registration.
type EventService struct {
	events EventStore
	teams  *TeamManager
	clock  clock.Clock
}

// NewEventService constructs an EventService.
func NewEventService(events EventStore, teams *TeamManager, clk clock.Clock) *EventService {
	return &EventService{events: events, teams: teams, clock: clk}
}

// CreateEvent validates the request and delegates to the store. New events
// start in draft and must be opened explicitly.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("event name is required")
	}
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be a positive integer")
	}
	if req.Capacity > 100_000 {
		return nil, fmt.Errorf("capacity cannot exceed 100,000")
	}
	if req.Price < 0 {
		return nil, fmt.Errorf("price cannot be negative")
	}
	if req.TeamBased {
		if req.MinTeamSize < 1 || req.MaxTeamSize < req.MinTeamSize {
			return nil, fmt.Errorf("team size bounds must satisfy 1 <= min <= max")
		}
	}
	for _, f := range req.FormFields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("form fields must be named")
		}
	}
	return s.events.Create(ctx, req, s.clock.Now())
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("event id is required")
	}
	return s.events.GetByID(ctx, id)
}

// rank orders the event lifecycle; transitions only ever move forward.
var statusRank = map[model.EventStatus]int{
	model.EventDraft:    0,
	model.EventUpcoming: 1,
	model.EventLive:     2,
	model.EventEnded:    3,
}

// Transition moves the event forward through its lifecycle. Moving to
// ended closes registration; see CloseEvent for the team-minimum check.
func (s *EventService) Transition(ctx context.Context, id string, to model.EventStatus) (*model.Event, error) {
	toRank, ok := statusRank[to]
	if !ok {
		return nil, fmt.Errorf("unknown event status %q", to)
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if statusRank[event.Status] >= toRank {
		return nil, fmt.Errorf("cannot move event from %s to %s", event.Status, to)
	}
	if err := s.events.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	event.Status = to
	return event, nil
}

// CloseEvent ends the event's registration window. Teams that never
// reached their minimum size are returned so the organizer can follow up;
// with enforceTeamMinimums set, the close is refused instead. Underfilled
// teams are flagged, never auto-cancelled.
func (s *EventService) CloseEvent(ctx context.Context, id string, enforceTeamMinimums bool) ([]model.Team, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var underfilled []model.Team
	if event.TeamBased {
		underfilled, err = s.teams.Underfilled(ctx, id)
		if err != nil {
			return nil, err
		}
		if enforceTeamMinimums && len(underfilled) > 0 {
			return underfilled, model.ErrTeamSizeBelowMinimum
		}
	}

	if event.Status != model.EventEnded {
		if _, err := s.Transition(ctx, id, model.EventEnded); err != nil {
			return nil, err
		}
	}
	return underfilled, nil
}
