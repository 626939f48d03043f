// Package memory provides a mutex-guarded in-memory implementation of the
// store interfaces. It mirrors the conditional-update semantics of the
// postgres repositories and backs the unit and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/google/uuid"
)

// Store holds all four entity collections behind one mutex. The Events,
// Registrations, Teams and Tickets views satisfy the service-facing store
// interfaces.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	events        map[string]*model.Event
	registrations map[string]*model.Registration
	teams         map[string]*model.Team
	tickets       map[string]*model.Ticket
	ticketByQR    map[string]string // qr code -> ticket id
	ticketByReg   map[string]string // registration id -> ticket id
	teamByCode    map[string]string // join code -> team id
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		events:        make(map[string]*model.Event),
		registrations: make(map[string]*model.Registration),
		teams:         make(map[string]*model.Team),
		tickets:       make(map[string]*model.Ticket),
		ticketByQR:    make(map[string]string),
		ticketByReg:   make(map[string]string),
		teamByCode:    make(map[string]string),
	}
}

// Events returns the event-store view.
func (s *Store) Events() *Events { return &Events{s: s} }

// Registrations returns the registration-store view.
func (s *Store) Registrations() *Registrations { return &Registrations{s: s} }

// Teams returns the team-store view.
func (s *Store) Teams() *Teams { return &Teams{s: s} }

// Tickets returns the ticket-store view.
func (s *Store) Tickets() *Tickets { return &Tickets{s: s} }

// SeedEvent inserts an event as-is, for tests that need full control.
func (s *Store) SeedEvent(e model.Event) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.events[e.ID] = &e
	return copyEvent(&e)
}

// Events implements the event store over the shared core.
type Events struct {
	s *Store
}

func copyEvent(e *model.Event) *model.Event {
	c := *e
	c.FormFields = append([]model.FieldDescriptor(nil), e.FormFields...)
	return &c
}

func (v *Events) Create(ctx context.Context, req model.CreateEventRequest, now time.Time) (*model.Event, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	event := &model.Event{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Capacity:    req.Capacity,
		Price:       req.Price,
		Status:      model.EventDraft,
		TeamBased:   req.TeamBased,
		MinTeamSize: req.MinTeamSize,
		MaxTeamSize: req.MaxTeamSize,
		FormFields:  append([]model.FieldDescriptor{}, req.FormFields...),
		CreatedAt:   now,
	}
	v.s.events[event.ID] = event
	return copyEvent(event), nil
}

func (v *Events) GetByID(ctx context.Context, id string) (*model.Event, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyEvent(e), nil
}

func (v *Events) List(ctx context.Context) ([]model.Event, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	events := make([]model.Event, 0, len(v.s.events))
	for _, e := range v.s.events {
		events = append(events, *copyEvent(e))
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (v *Events) UpdateStatus(ctx context.Context, id string, status model.EventStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.events[id]
	if !ok {
		return model.ErrNotFound
	}
	e.Status = status
	return nil
}

func (v *Events) ReserveSlot(ctx context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.events[id]
	if !ok {
		return model.ErrNotFound
	}
	if !e.Status.Open() {
		return model.ErrEventNotOpen
	}
	if e.RegisteredCount >= e.Capacity {
		return model.ErrCapacityExceeded
	}
	e.RegisteredCount++
	return nil
}

func (v *Events) ReleaseSlot(ctx context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	e, ok := v.s.events[id]
	if !ok {
		return model.ErrNotFound
	}
	if e.RegisteredCount > 0 {
		e.RegisteredCount--
	}
	return nil
}

// Registrations implements the registration store over the shared core.
type Registrations struct {
	s *Store
}

func copyRegistration(r *model.Registration) *model.Registration {
	c := *r
	if r.Responses != nil {
		c.Responses = make(map[string]string, len(r.Responses))
		for k, v := range r.Responses {
			c.Responses[k] = v
		}
	}
	return &c
}

func (v *Registrations) Create(ctx context.Context, reg *model.Registration) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.registrations {
		if existing.EventID == reg.EventID && existing.UserID == reg.UserID &&
			existing.Status != model.RegistrationCancelled {
			return model.ErrAlreadyRegistered
		}
	}
	v.s.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (v *Registrations) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	reg, ok := v.s.registrations[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyRegistration(reg), nil
}

func (v *Registrations) FindActive(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, reg := range v.s.registrations {
		if reg.EventID == eventID && reg.UserID == userID &&
			reg.Status != model.RegistrationCancelled {
			return copyRegistration(reg), nil
		}
	}
	return nil, nil
}

func (v *Registrations) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var regs []model.Registration
	for _, reg := range v.s.registrations {
		if reg.EventID == eventID {
			regs = append(regs, *copyRegistration(reg))
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
	return regs, nil
}

func (v *Registrations) MarkPaymentOutcome(ctx context.Context, id string, success bool, transactionRef string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	reg, ok := v.s.registrations[id]
	if !ok {
		return model.ErrNotFound
	}
	if reg.Status != model.RegistrationPending || reg.PaymentStatus != model.PaymentPending {
		return model.ErrAlreadyResolved
	}
	if success {
		reg.Status = model.RegistrationConfirmed
		reg.PaymentStatus = model.PaymentCompleted
	} else {
		reg.Status = model.RegistrationCancelled
		reg.PaymentStatus = model.PaymentFailed
	}
	reg.TransactionRef = transactionRef
	return nil
}

func (v *Registrations) MarkCancelled(ctx context.Context, id string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	reg, ok := v.s.registrations[id]
	if !ok {
		return model.ErrNotFound
	}
	if !reg.Active() {
		return model.ErrAlreadyResolved
	}
	reg.Status = model.RegistrationCancelled
	return nil
}

func (v *Registrations) ListStalePending(ctx context.Context, before time.Time) ([]model.Registration, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var regs []model.Registration
	for _, reg := range v.s.registrations {
		if reg.Status == model.RegistrationPending &&
			reg.PaymentStatus == model.PaymentPending &&
			reg.RegisteredAt.Before(before) {
			regs = append(regs, *copyRegistration(reg))
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
	return regs, nil
}

// Teams implements the team store over the shared core.
type Teams struct {
	s *Store
}

func copyTeam(t *model.Team) *model.Team {
	c := *t
	c.Members = append([]model.TeamMember(nil), t.Members...)
	c.Roster = append([]model.TeamMemberInput(nil), t.Roster...)
	return &c
}

// WithTx serialises team mutations the way the postgres row lock does.
func (v *Teams) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	v.s.txMu.Lock()
	defer v.s.txMu.Unlock()
	return fn(ctx)
}

func (v *Teams) Create(ctx context.Context, team *model.Team) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, exists := v.s.teamByCode[team.Code]; exists {
		return model.ErrCodeCollision
	}
	for _, m := range team.Members {
		if v.s.onTeamLocked(team.EventID, m.UserID) {
			return model.ErrAlreadyOnTeam
		}
	}
	v.s.teams[team.ID] = copyTeam(team)
	v.s.teamByCode[team.Code] = team.ID
	return nil
}

func (v *Teams) Delete(ctx context.Context, teamID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.teams[teamID]
	if !ok {
		return nil
	}
	delete(v.s.teamByCode, t.Code)
	delete(v.s.teams, teamID)
	return nil
}

func (v *Teams) GetByCodeForUpdate(ctx context.Context, code string) (*model.Team, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	id, ok := v.s.teamByCode[code]
	if !ok {
		return nil, model.ErrTeamCodeInvalid
	}
	return copyTeam(v.s.teams[id]), nil
}

func (v *Teams) GetByID(ctx context.Context, id string) (*model.Team, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.teams[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyTeam(t), nil
}

func (s *Store) onTeamLocked(eventID, userID string) bool {
	for _, t := range s.teams {
		if t.EventID != eventID {
			continue
		}
		for _, m := range t.Members {
			if m.UserID == userID {
				return true
			}
		}
	}
	return false
}

func (v *Teams) AddMember(ctx context.Context, teamID, eventID string, m model.TeamMember, position int) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.teams[teamID]
	if !ok {
		return model.ErrNotFound
	}
	if v.s.onTeamLocked(eventID, m.UserID) {
		return model.ErrAlreadyOnTeam
	}
	t.Members = append(t.Members, m)
	return nil
}

func (v *Teams) RemoveMember(ctx context.Context, teamID, userID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.teams[teamID]
	if !ok {
		return nil
	}
	for i, m := range t.Members {
		if m.UserID == userID {
			t.Members = append(t.Members[:i], t.Members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (v *Teams) HasMembership(ctx context.Context, eventID, userID string) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.onTeamLocked(eventID, userID), nil
}

func (v *Teams) MemberCounts(ctx context.Context, eventID string) (map[string]int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	counts := make(map[string]int)
	for id, t := range v.s.teams {
		if t.EventID == eventID {
			counts[id] = len(t.Members)
		}
	}
	return counts, nil
}

func (v *Teams) ListUnderfilled(ctx context.Context, eventID string) ([]model.Team, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var teams []model.Team
	for _, t := range v.s.teams {
		if t.EventID == eventID && t.Underfilled() {
			teams = append(teams, *copyTeam(t))
		}
	}
	sort.Slice(teams, func(i, j int) bool {
		return teams[i].CreatedAt.Before(teams[j].CreatedAt)
	})
	return teams, nil
}

// Tickets implements the ticket store over the shared core.
type Tickets struct {
	s *Store
}

func copyTicket(t *model.Ticket) *model.Ticket {
	c := *t
	if t.UsedAt != nil {
		usedAt := *t.UsedAt
		c.UsedAt = &usedAt
	}
	return &c
}

func (v *Tickets) Create(ctx context.Context, t *model.Ticket) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, exists := v.s.ticketByReg[t.RegistrationID]; exists {
		return model.ErrDuplicateTicket
	}
	if _, exists := v.s.ticketByQR[t.QRCode]; exists {
		return model.ErrCodeCollision
	}
	v.s.tickets[t.ID] = copyTicket(t)
	v.s.ticketByReg[t.RegistrationID] = t.ID
	v.s.ticketByQR[t.QRCode] = t.ID
	return nil
}

func (v *Tickets) GetByRegistration(ctx context.Context, registrationID string) (*model.Ticket, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	id, ok := v.s.ticketByReg[registrationID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyTicket(v.s.tickets[id]), nil
}

func (v *Tickets) GetByQRCode(ctx context.Context, code string) (*model.Ticket, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	id, ok := v.s.ticketByQR[code]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyTicket(v.s.tickets[id]), nil
}

func (v *Tickets) CheckIn(ctx context.Context, ticketID string, now time.Time) (time.Time, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tickets[ticketID]
	if !ok {
		return time.Time{}, model.ErrTicketInvalid
	}
	switch t.Status {
	case model.TicketValid:
		t.Status = model.TicketUsed
		t.UsedAt = &now
		return now, nil
	case model.TicketUsed:
		return *t.UsedAt, model.ErrTicketAlreadyUsed
	default:
		return time.Time{}, model.ErrTicketInvalid
	}
}

func (v *Tickets) Cancel(ctx context.Context, ticketID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tickets[ticketID]
	if !ok {
		return nil
	}
	if t.Status == model.TicketValid {
		t.Status = model.TicketCancelled
	}
	return nil
}
