// Package model defines the core domain types for the registration and
// ticketing system.
package model

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventDraft    EventStatus = "draft"
	EventUpcoming EventStatus = "upcoming"
	EventLive     EventStatus = "live"
	EventEnded    EventStatus = "ended"
)

// Open reports whether the event accepts registrations in this status.
func (s EventStatus) Open() bool {
	return s == EventUpcoming || s == EventLive
}

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// PaymentStatus tracks the payment leg of a registration.
type PaymentStatus string

const (
	PaymentNotRequired PaymentStatus = "not_required"
	PaymentPending     PaymentStatus = "pending"
	PaymentCompleted   PaymentStatus = "completed"
	PaymentFailed      PaymentStatus = "failed"
)

// TicketStatus is the lifecycle state of a ticket. Transitions are
// monotonic: valid→used and valid→cancelled are both terminal.
type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

// Event represents a capacity-constrained event created by an organizer.
// Capacity and Status are owned by event-management flows; this core only
// ever mutates RegisteredCount, and only through a conditional update.
type Event struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Capacity        int               `json:"capacity"`
	RegisteredCount int               `json:"registered_count"`
	Price           int64             `json:"price"` // minor currency units; 0 means free
	Status          EventStatus       `json:"status"`
	TeamBased       bool              `json:"team_based"`
	MinTeamSize     int               `json:"min_team_size,omitempty"`
	MaxTeamSize     int               `json:"max_team_size,omitempty"`
	FormFields      []FieldDescriptor `json:"form_fields,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Remaining returns the number of available capacity slots.
func (e *Event) Remaining() int {
	return e.Capacity - e.RegisteredCount
}

// IsFull returns true when no slots remain.
func (e *Event) IsFull() bool {
	return e.RegisteredCount >= e.Capacity
}

// Paid reports whether ticket issuance is gated behind payment.
func (e *Event) Paid() bool {
	return e.Price > 0
}

// Registration represents one user's registration for an event. It is
// never deleted, only cancelled.
type Registration struct {
	ID             string             `json:"id"`
	EventID        string             `json:"event_id"`
	UserID         string             `json:"user_id"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	College        string             `json:"college,omitempty"`
	Status         RegistrationStatus `json:"status"`
	PaymentStatus  PaymentStatus      `json:"payment_status"`
	TeamID         string             `json:"team_id,omitempty"`
	TransactionRef string             `json:"transaction_ref,omitempty"`
	Responses      map[string]string  `json:"responses,omitempty"`
	RegisteredAt   time.Time          `json:"registered_at"`
}

// Active reports whether the registration currently holds a capacity slot.
func (r *Registration) Active() bool {
	return r.Status == RegistrationPending || r.Status == RegistrationConfirmed
}

// TeamMemberInput is a prospective roster entry submitted alongside a
// create-team registration. Roster entries are informational: each listed
// member still registers individually with the join code.
type TeamMemberInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// TeamMember is one entry in a team's ordered member list. Index 0 is
// always the leader.
type TeamMember struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Team groups registrations for a team-based event. Members are
// append-only and never reordered.
type Team struct {
	ID           string            `json:"id"`
	EventID      string            `json:"event_id"`
	LeaderUserID string            `json:"leader_user_id"`
	Code         string            `json:"code"`
	Members      []TeamMember      `json:"members"`
	Roster       []TeamMemberInput `json:"roster,omitempty"`
	MinSize      int               `json:"min_size"`
	MaxSize      int               `json:"max_size"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Underfilled reports whether the team is below its minimum size.
func (t *Team) Underfilled() bool {
	return len(t.Members) < t.MinSize
}

// Ticket is the QR-coded admission credential for a confirmed
// registration. At most one ticket exists per registration.
type Ticket struct {
	ID             string       `json:"id"`
	EventID        string       `json:"event_id"`
	UserID         string       `json:"user_id"`
	RegistrationID string       `json:"registration_id"`
	QRCode         string       `json:"qr_code"`
	Status         TicketStatus `json:"status"`
	GeneratedAt    time.Time    `json:"generated_at"`
	UsedAt         *time.Time   `json:"used_at,omitempty"`
}

// Attendee is the user projection attached to verify/check-in responses.
type Attendee struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// TeamChoice values select the team step of a registration request.
const (
	TeamChoiceCreate = "create"
	TeamChoiceJoin   = "join"
)

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	College     string            `json:"college,omitempty"`
	TeamChoice  string            `json:"team_choice,omitempty"` // "create" or "join"
	TeamCode    string            `json:"team_code,omitempty"`
	TeamRole    string            `json:"team_role,omitempty"`
	TeamMembers []TeamMemberInput `json:"team_members,omitempty"` // prospective roster on create
	Responses   map[string]string `json:"responses,omitempty"`
}

// PaymentCallback is the payload delivered by the payment gateway.
// Exactly-once delivery is not assumed; the handler is idempotent.
type PaymentCallback struct {
	RegistrationID string `json:"registration_id"`
	Outcome        string `json:"outcome"` // "success" or "failure"
	TransactionRef string `json:"transaction_ref"`
}

// CheckInStatus is the outcome category of a check-in scan.
type CheckInStatus string

const (
	CheckedIn   CheckInStatus = "checked_in"
	AlreadyUsed CheckInStatus = "already_used"
	InvalidScan CheckInStatus = "invalid"
)

// CheckInResult is the contract exposed to crew scanning tooling.
type CheckInResult struct {
	Valid    bool          `json:"valid"`
	Status   CheckInStatus `json:"status"`
	Ticket   *Ticket       `json:"ticket,omitempty"`
	Event    *Event        `json:"event,omitempty"`
	Attendee *Attendee     `json:"user,omitempty"`
	UsedAt   *time.Time    `json:"used_at,omitempty"`
}

// VerifyResult is the read-only ticket preview returned before check-in.
type VerifyResult struct {
	Ticket   *Ticket   `json:"ticket"`
	Event    *Event    `json:"event"`
	Attendee *Attendee `json:"user"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Capacity    int               `json:"capacity"`
	Price       int64             `json:"price"`
	TeamBased   bool              `json:"team_based"`
	MinTeamSize int               `json:"min_team_size"`
	MaxTeamSize int               `json:"max_team_size"`
	FormFields  []FieldDescriptor `json:"form_fields"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
