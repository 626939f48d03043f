package service

import (
	"sync"
	"time"
)

// Domain event names published by the core. Notification and UI concerns
// subscribe to these instead of being called from business logic.
const (
	RegistrationConfirmed = "registration.confirmed"
	RegistrationCancelled = "registration.cancelled"
	PaymentFailed         = "payment.failed"
	TicketIssued          = "ticket.issued"
	TicketCheckedIn       = "ticket.checked_in"
)

// DomainEvent is the payload delivered to subscribers.
type DomainEvent struct {
	Name           string
	OccurredAt     time.Time
	EventID        string
	RegistrationID string
	TicketID       string
	UserID         string
}

// Bus is a small in-process publish/subscribe fan-out. Delivery is
// synchronous and in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []func(DomainEvent)
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all domain events.
func (b *Bus) Subscribe(fn func(DomainEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(evt DomainEvent) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(evt)
	}
}
