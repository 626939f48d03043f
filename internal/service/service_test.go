package service

import (
	"sync"
	"testing"
	"time"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/eventgrid/eventgrid/internal/repository/memory"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// stepClock is a controllable clock for tests.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock(t time.Time) *stepClock {
	return &stepClock{now: t.UTC()}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	store   *memory.Store
	clock   *stepClock
	bus     *Bus
	teams   *TeamManager
	tickets *TicketService
	regs    *RegistrationService
	events  *EventService
}

// wireEnv assembles services over explicit stores, so tests can swap in
// failing store implementations.
func wireEnv(t *testing.T, store *memory.Store, teamStore TeamStore, ticketStore TicketStore) *env {
	t.Helper()
	clk := newStepClock(testNow)
	bus := NewBus()
	teams := NewTeamManager(teamStore, clk)
	tickets := NewTicketService(ticketStore, store.Registrations(), store.Events(), bus, clk)
	regs := NewRegistrationService(store.Events(), store.Registrations(), teams, tickets, bus, clk, 30*time.Minute)
	events := NewEventService(store.Events(), teams, clk)
	return &env{store: store, clock: clk, bus: bus, teams: teams, tickets: tickets, regs: regs, events: events}
}

func newEnv(t *testing.T, opts ...TicketServiceOption) *env {
	t.Helper()
	store := memory.NewStore()
	clk := newStepClock(testNow)
	bus := NewBus()
	teams := NewTeamManager(store.Teams(), clk)
	tickets := NewTicketService(store.Tickets(), store.Registrations(), store.Events(), bus, clk, opts...)
	regs := NewRegistrationService(store.Events(), store.Registrations(), teams, tickets, bus, clk, 30*time.Minute)
	events := NewEventService(store.Events(), teams, clk)
	return &env{store: store, clock: clk, bus: bus, teams: teams, tickets: tickets, regs: regs, events: events}
}

func (e *env) seedEvent(t *testing.T, ev model.Event) *model.Event {
	t.Helper()
	if ev.Status == "" {
		ev.Status = model.EventLive
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = testNow
	}
	return e.store.SeedEvent(ev)
}

func registerReq(userID string) model.RegisterRequest {
	return model.RegisterRequest{
		UserID:  userID,
		Name:    "User " + userID,
		Email:   userID + "@example.com",
		College: "Sample Institute",
	}
}
