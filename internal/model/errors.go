package model

import "errors"

// Domain error taxonomy. All of these are recoverable and surfaced to the
// caller; none is treated as a fatal process error. ErrStorageConflict is
// the only one services retry automatically.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCapacityExceeded is returned when an event has no remaining slots.
	ErrCapacityExceeded = errors.New("event capacity exceeded")

	// ErrAlreadyRegistered is returned when a user holds a non-cancelled
	// registration for the event.
	ErrAlreadyRegistered = errors.New("already registered for this event")

	// ErrEventNotOpen is returned when the event is not accepting
	// registrations (draft or ended).
	ErrEventNotOpen = errors.New("event is not open for registration")

	// ErrTeamCodeInvalid is returned when a join code matches no team.
	ErrTeamCodeInvalid = errors.New("team code is invalid")

	// ErrTeamFull is returned when a team is at its maximum size.
	ErrTeamFull = errors.New("team is full")

	// ErrAlreadyOnTeam is returned when a user already belongs to a team
	// for the event.
	ErrAlreadyOnTeam = errors.New("already on a team for this event")

	// ErrTeamSizeBelowMinimum is returned at event close for teams that
	// never reached their minimum size.
	ErrTeamSizeBelowMinimum = errors.New("team size below minimum")

	// ErrAlreadyResolved is returned on a duplicate payment callback or a
	// repeated cancel of an already-terminal registration.
	ErrAlreadyResolved = errors.New("registration already resolved")

	// ErrNotConfirmed is returned when ticket issuance is attempted for a
	// registration that is not confirmed.
	ErrNotConfirmed = errors.New("registration is not confirmed")

	// ErrTicketAlreadyUsed is returned by the conditional check-in update
	// when the ticket was used by an earlier scan.
	ErrTicketAlreadyUsed = errors.New("ticket already used")

	// ErrTicketInvalid is returned when a code resolves to no ticket or to
	// a cancelled one.
	ErrTicketInvalid = errors.New("ticket is invalid")

	// ErrCodeCollision signals that a freshly generated token (team join
	// code or ticket QR code) collided with an existing one. The generator
	// detects this and retries with a new token.
	ErrCodeCollision = errors.New("generated code already in use")

	// ErrDuplicateTicket signals that a ticket already exists for the
	// registration. Issuance treats it as success and returns the existing
	// ticket.
	ErrDuplicateTicket = errors.New("ticket already issued for this registration")

	// ErrStorageConflict is a transient compare-and-swap failure at the
	// storage layer. Safe to retry: every conditional update here is
	// idempotent with respect to retries.
	ErrStorageConflict = errors.New("storage conflict")
)
