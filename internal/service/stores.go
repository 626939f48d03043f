// Package service implements the business logic of the registration and
// ticketing core: capacity admission, team formation, payment-gated
// ticket issuance, and single-use check-in.
package service

import (
	"context"
	"time"

	"github.com/eventgrid/eventgrid/internal/model"
)

// EventStore is the durable store for events and their capacity counters.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest, now time.Time) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	UpdateStatus(ctx context.Context, id string, status model.EventStatus) error

	// ReserveSlot atomically increments registered_count only while the
	// event is open and below capacity. ReleaseSlot is its inverse,
	// floored at zero.
	ReserveSlot(ctx context.Context, id string) error
	ReleaseSlot(ctx context.Context, id string) error
}

// RegistrationStore is the durable store for registrations.
type RegistrationStore interface {
	Create(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)

	// MarkPaymentOutcome and MarkCancelled are conditional single-row
	// updates guarded on current status; the second writer observes
	// model.ErrAlreadyResolved.
	MarkPaymentOutcome(ctx context.Context, id string, success bool, transactionRef string) error
	MarkCancelled(ctx context.Context, id string) error
	ListStalePending(ctx context.Context, before time.Time) ([]model.Registration, error)
}

// TeamStore is the durable store for teams and memberships.
type TeamStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, team *model.Team) error
	Delete(ctx context.Context, teamID string) error
	GetByCodeForUpdate(ctx context.Context, code string) (*model.Team, error)
	GetByID(ctx context.Context, id string) (*model.Team, error)
	AddMember(ctx context.Context, teamID, eventID string, m model.TeamMember, position int) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	HasMembership(ctx context.Context, eventID, userID string) (bool, error)
	MemberCounts(ctx context.Context, eventID string) (map[string]int, error)
	ListUnderfilled(ctx context.Context, eventID string) ([]model.Team, error)
}

// TicketStore is the durable store for tickets, keyed by id, registration
// and QR code.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByRegistration(ctx context.Context, registrationID string) (*model.Ticket, error)
	GetByQRCode(ctx context.Context, code string) (*model.Ticket, error)

	// CheckIn is the atomic valid→used transition. Exactly one concurrent
	// caller succeeds; the rest get model.ErrTicketAlreadyUsed with the
	// original used_at.
	CheckIn(ctx context.Context, ticketID string, now time.Time) (time.Time, error)
	Cancel(ctx context.Context, ticketID string) error
}
