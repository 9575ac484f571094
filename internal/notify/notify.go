// Package notify fans loan events out to Telegram and websocket listeners.
package notify

import (
	"context"
	"time"
)

// EventType names what happened to a loan
type EventType string

const (
	EventLoanCreated  EventType = "loan.created"
	EventLoanReturned EventType = "loan.returned"
)

// Event describes one loan change
type Event struct {
	Type   EventType `json:"type"`
	ISBN   string    `json:"isbn"`
	Title  string    `json:"title,omitempty"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Publisher delivers events. Publish must not block the caller on delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Multi publishes every event to each of its publishers
type Multi []Publisher

// Publish forwards event to all publishers
func (m Multi) Publish(ctx context.Context, event Event) {
	for _, p := range m {
		p.Publish(ctx, event)
	}
}

// Nop discards events
type Nop struct{}

// Publish does nothing
func (Nop) Publish(context.Context, Event) {}
