package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventgrid/eventgrid/internal/clock"
	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/google/uuid"
)

// TicketService issues QR-coded tickets for confirmed registrations and
// performs verify and check-in at the venue.
type TicketService struct {
	tickets       TicketStore
	registrations RegistrationStore
	events        EventStore
	bus           *Bus
	clock         clock.Clock
	newCode       func() string
}

// TicketServiceOption customises a TicketService.
type TicketServiceOption func(*TicketService)

// WithQRCodeSource overrides the QR token generator (useful for tests).
func WithQRCodeSource(fn func() string) TicketServiceOption {
	return func(s *TicketService) {
		s.newCode = fn
	}
}

// NewTicketService constructs a TicketService.
func NewTicketService(
	tickets TicketStore,
	registrations RegistrationStore,
	events EventStore,
	bus *Bus,
	clk clock.Clock,
	opts ...TicketServiceOption,
) *TicketService {
	s := &TicketService{
		tickets:       tickets,
		registrations: registrations,
		events:        events,
		bus:           bus,
		clock:         clk,
		newCode:       newQRCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates the ticket for a confirmed registration. Issuance is
// idempotent: a second call returns the existing ticket instead of
// creating a second row. QR token collisions are detected by the unique
// index and regenerated.
func (s *TicketService) Issue(ctx context.Context, reg *model.Registration) (*model.Ticket, error) {
	if reg.Status != model.RegistrationConfirmed {
		return nil, model.ErrNotConfirmed
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		ticket := &model.Ticket{
			ID:             uuid.New().String(),
			EventID:        reg.EventID,
			UserID:         reg.UserID,
			RegistrationID: reg.ID,
			QRCode:         s.newCode(),
			Status:         model.TicketValid,
			GeneratedAt:    s.clock.Now(),
		}
		err := s.tickets.Create(ctx, ticket)
		if errors.Is(err, model.ErrCodeCollision) {
			continue
		}
		if errors.Is(err, model.ErrDuplicateTicket) {
			return s.tickets.GetByRegistration(ctx, reg.ID)
		}
		if err != nil {
			return nil, err
		}

		s.bus.Publish(DomainEvent{
			Name:           TicketIssued,
			OccurredAt:     s.clock.Now(),
			EventID:        ticket.EventID,
			RegistrationID: ticket.RegistrationID,
			TicketID:       ticket.ID,
			UserID:         ticket.UserID,
		})
		return ticket, nil
	}
	return nil, fmt.Errorf("issue ticket: qr generation kept colliding")
}

// CancelForRegistration moves the registration's ticket to cancelled, if
// one was ever issued and is still valid.
func (s *TicketService) CancelForRegistration(ctx context.Context, registrationID string) error {
	ticket, err := s.tickets.GetByRegistration(ctx, registrationID)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.tickets.Cancel(ctx, ticket.ID)
}

// Verify resolves a scanned code without mutating anything. Used by the
// preview-before-check-in UI and automated validation.
func (s *TicketService) Verify(ctx context.Context, code string) (*model.VerifyResult, error) {
	ticket, err := s.tickets.GetByQRCode(ctx, code)
	if err != nil {
		return nil, err
	}
	event, attendee, err := s.describe(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return &model.VerifyResult{Ticket: ticket, Event: event, Attendee: attendee}, nil
}

// CheckIn marks the ticket used, exactly once. The first scanner to win
// the race gets checked_in; every later scan of the same code gets
// already_used with the original timestamp. Codes that resolve to no
// ticket or a cancelled one are invalid.
func (s *TicketService) CheckIn(ctx context.Context, code string) (*model.CheckInResult, error) {
	ticket, err := s.tickets.GetByQRCode(ctx, code)
	if errors.Is(err, model.ErrNotFound) {
		return &model.CheckInResult{Valid: false, Status: model.InvalidScan}, nil
	}
	if err != nil {
		return nil, err
	}

	scanAt := s.clock.Now()
	var usedAt *time.Time
	var checkInErr error
	err = withRetry(func() error {
		stamped, err := s.tickets.CheckIn(ctx, ticket.ID, scanAt)
		if err == nil || errors.Is(err, model.ErrTicketAlreadyUsed) {
			usedAt = &stamped
			checkInErr = err
			return nil
		}
		if errors.Is(err, model.ErrTicketInvalid) {
			checkInErr = err
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case checkInErr == nil:
		ticket.Status = model.TicketUsed
		ticket.UsedAt = usedAt
		event, attendee, err := s.describe(ctx, ticket)
		if err != nil {
			return nil, err
		}
		s.bus.Publish(DomainEvent{
			Name:           TicketCheckedIn,
			OccurredAt:     scanAt,
			EventID:        ticket.EventID,
			RegistrationID: ticket.RegistrationID,
			TicketID:       ticket.ID,
			UserID:         ticket.UserID,
		})
		return &model.CheckInResult{
			Valid:    true,
			Status:   model.CheckedIn,
			Ticket:   ticket,
			Event:    event,
			Attendee: attendee,
			UsedAt:   usedAt,
		}, nil

	case errors.Is(checkInErr, model.ErrTicketAlreadyUsed):
		ticket.Status = model.TicketUsed
		ticket.UsedAt = usedAt
		event, attendee, err := s.describe(ctx, ticket)
		if err != nil {
			return nil, err
		}
		return &model.CheckInResult{
			Valid:    false,
			Status:   model.AlreadyUsed,
			Ticket:   ticket,
			Event:    event,
			Attendee: attendee,
			UsedAt:   usedAt,
		}, nil

	default:
		return &model.CheckInResult{Valid: false, Status: model.InvalidScan}, nil
	}
}

func (s *TicketService) describe(ctx context.Context, ticket *model.Ticket) (*model.Event, *model.Attendee, error) {
	event, err := s.events.GetByID(ctx, ticket.EventID)
	if err != nil {
		return nil, nil, err
	}
	reg, err := s.registrations.GetByID(ctx, ticket.RegistrationID)
	if err != nil {
		return nil, nil, err
	}
	return event, &model.Attendee{UserID: reg.UserID, Name: reg.Name, Email: reg.Email}, nil
}
