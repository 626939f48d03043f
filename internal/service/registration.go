package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/eventgrid/eventgrid/internal/clock"
	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/google/uuid"
)

// RegistrationService admits registrations against event capacity and team
// rules, applies payment outcomes, and owns cancellation.
type RegistrationService struct {
	events        EventStore
	registrations RegistrationStore
	teams         *TeamManager
	tickets       *TicketService
	bus           *Bus
	clock         clock.Clock
	pendingTTL    time.Duration
}

// NewRegistrationService constructs a RegistrationService. pendingTTL is
// how long a pending-payment registration may wait before the janitor
// sweep reclaims its slot.
func NewRegistrationService(
	events EventStore,
	registrations RegistrationStore,
	teams *TeamManager,
	tickets *TicketService,
	bus *Bus,
	clk clock.Clock,
	pendingTTL time.Duration,
) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		teams:         teams,
		tickets:       tickets,
		bus:           bus,
		clock:         clk,
		pendingTTL:    pendingTTL,
	}
}

// Register validates and admits a registration request. The team step runs
// before the capacity reservation so a failed join never consumes a slot,
// and a successful team step is rolled back if the reservation fails
// afterwards. Free events confirm immediately and get a ticket; paid
// events stay pending until the gateway callback.
func (s *RegistrationService) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registration, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !model.IsValidEmail(req.Email) {
		return nil, fmt.Errorf("email is not a valid email address")
	}
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.Open() {
		return nil, model.ErrEventNotOpen
	}
	if err := model.ValidateResponses(event.FormFields, req.Responses); err != nil {
		return nil, err
	}

	if existing, err := s.registrations.FindActive(ctx, eventID, req.UserID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, model.ErrAlreadyRegistered
	}

	// Team step first: a failed join must not consume a capacity slot.
	var team *model.Team
	var createdTeam bool
	if event.TeamBased {
		member := model.TeamMember{
			UserID: req.UserID,
			Name:   req.Name,
			Email:  req.Email,
			Role:   req.TeamRole,
		}
		switch req.TeamChoice {
		case model.TeamChoiceCreate:
			team, err = s.teams.CreateTeam(ctx, event, member, req.TeamMembers)
			createdTeam = true
		case model.TeamChoiceJoin:
			team, err = s.teams.JoinTeam(ctx, req.TeamCode, member)
		default:
			return nil, fmt.Errorf("team_choice must be %q or %q for a team event",
				model.TeamChoiceCreate, model.TeamChoiceJoin)
		}
		if err != nil {
			return nil, err
		}
	}

	rollbackTeam := func() {
		if team == nil {
			return
		}
		var rbErr error
		if createdTeam {
			rbErr = s.teams.Disband(ctx, team.ID)
		} else {
			rbErr = s.teams.Leave(ctx, team.ID, req.UserID)
		}
		if rbErr != nil {
			log.Printf("team rollback failed team=%s user=%s: %v", team.ID, req.UserID, rbErr)
		}
	}

	if err := withRetry(func() error { return s.events.ReserveSlot(ctx, eventID) }); err != nil {
		rollbackTeam()
		return nil, err
	}

	reg := &model.Registration{
		ID:            uuid.New().String(),
		EventID:       eventID,
		UserID:        req.UserID,
		Name:          req.Name,
		Email:         req.Email,
		College:       req.College,
		Status:        model.RegistrationConfirmed,
		PaymentStatus: model.PaymentNotRequired,
		Responses:     req.Responses,
		RegisteredAt:  s.clock.Now(),
	}
	if event.Paid() {
		reg.Status = model.RegistrationPending
		reg.PaymentStatus = model.PaymentPending
	}
	if team != nil {
		reg.TeamID = team.ID
	}

	if err := s.registrations.Create(ctx, reg); err != nil {
		_ = s.events.ReleaseSlot(ctx, eventID)
		rollbackTeam()
		return nil, err
	}

	if reg.Status == model.RegistrationConfirmed {
		if _, err := s.tickets.Issue(ctx, reg); err != nil {
			// Unwind the whole admission: a registration the caller never
			// saw must not keep holding a slot or a team membership.
			if cErr := withRetry(func() error { return s.registrations.MarkCancelled(ctx, reg.ID) }); cErr != nil {
				log.Printf("cancel after failed issuance registration=%s: %v", reg.ID, cErr)
			}
			if rErr := s.events.ReleaseSlot(ctx, eventID); rErr != nil {
				log.Printf("release slot after failed issuance event=%s: %v", eventID, rErr)
			}
			rollbackTeam()
			return nil, fmt.Errorf("issue ticket: %w", err)
		}
		s.bus.Publish(DomainEvent{
			Name:           RegistrationConfirmed,
			OccurredAt:     s.clock.Now(),
			EventID:        eventID,
			RegistrationID: reg.ID,
			UserID:         reg.UserID,
		})
	}
	return reg, nil
}

// ConfirmPayment applies a payment gateway callback. It is idempotent
// against duplicate delivery: only the first callback transitions the
// registration, later ones get model.ErrAlreadyResolved. A failure
// outcome releases the capacity slot exactly once and never issues a
// ticket.
func (s *RegistrationService) ConfirmPayment(ctx context.Context, cb model.PaymentCallback) (*model.Registration, error) {
	success := cb.Outcome == "success"
	if !success && cb.Outcome != "failure" {
		return nil, fmt.Errorf("outcome must be %q or %q", "success", "failure")
	}

	err := withRetry(func() error {
		return s.registrations.MarkPaymentOutcome(ctx, cb.RegistrationID, success, cb.TransactionRef)
	})
	if errors.Is(err, model.ErrAlreadyResolved) && success {
		// A gateway retry after the first callback confirmed the
		// registration but crashed before issuing the ticket. Issue is
		// idempotent, so re-running it here makes the retry double as the
		// recovery path; the duplicate is still reported as resolved.
		if reg, gErr := s.registrations.GetByID(ctx, cb.RegistrationID); gErr == nil &&
			reg.Status == model.RegistrationConfirmed && reg.PaymentStatus == model.PaymentCompleted {
			if _, iErr := s.tickets.Issue(ctx, reg); iErr != nil {
				log.Printf("issue ticket on callback retry registration=%s: %v", reg.ID, iErr)
			}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	reg, err := s.registrations.GetByID(ctx, cb.RegistrationID)
	if err != nil {
		return nil, err
	}

	if success {
		if _, err := s.tickets.Issue(ctx, reg); err != nil {
			return nil, fmt.Errorf("issue ticket: %w", err)
		}
		s.bus.Publish(DomainEvent{
			Name:           RegistrationConfirmed,
			OccurredAt:     s.clock.Now(),
			EventID:        reg.EventID,
			RegistrationID: reg.ID,
			UserID:         reg.UserID,
		})
		return reg, nil
	}

	// Failed payment: the slot reserved at registration time is released,
	// and any team membership is dropped.
	if err := s.events.ReleaseSlot(ctx, reg.EventID); err != nil {
		return nil, err
	}
	if reg.TeamID != "" {
		if lErr := s.teams.Leave(ctx, reg.TeamID, reg.UserID); lErr != nil {
			log.Printf("leave team after failed payment team=%s user=%s: %v", reg.TeamID, reg.UserID, lErr)
		}
	}
	s.bus.Publish(DomainEvent{
		Name:           PaymentFailed,
		OccurredAt:     s.clock.Now(),
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
	})
	return reg, nil
}

// Cancel moves a pending or confirmed registration to cancelled, releases
// its capacity slot, and cancels any issued ticket. This is the single
// mutation both users and the janitor use; the conditional status update
// makes it safe for them to race.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID string) error {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return err
	}

	if err := withRetry(func() error { return s.registrations.MarkCancelled(ctx, registrationID) }); err != nil {
		return err
	}

	if err := s.events.ReleaseSlot(ctx, reg.EventID); err != nil {
		return err
	}
	if err := s.tickets.CancelForRegistration(ctx, registrationID); err != nil {
		return err
	}
	if reg.TeamID != "" {
		if lErr := s.teams.Leave(ctx, reg.TeamID, reg.UserID); lErr != nil {
			log.Printf("leave team on cancel team=%s user=%s: %v", reg.TeamID, reg.UserID, lErr)
		}
	}

	s.bus.Publish(DomainEvent{
		Name:           RegistrationCancelled,
		OccurredAt:     s.clock.Now(),
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		UserID:         reg.UserID,
	})
	return nil
}

// Registration returns a registration by id.
func (s *RegistrationService) Registration(ctx context.Context, id string) (*model.Registration, error) {
	return s.registrations.GetByID(ctx, id)
}

// ListByEvent returns all registrations for an event in submission order.
func (s *RegistrationService) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.registrations.ListByEvent(ctx, eventID)
}

// ReapStalePending cancels pending-payment registrations that never
// received a gateway callback within the TTL, releasing their slots. Runs
// from a janitor ticker, outside the request hot path.
func (s *RegistrationService) ReapStalePending(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.pendingTTL)
	stale, err := s.registrations.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, reg := range stale {
		err := s.Cancel(ctx, reg.ID)
		if errors.Is(err, model.ErrAlreadyResolved) {
			continue // payment callback won the race
		}
		if err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}
