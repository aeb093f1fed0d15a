// Package events publishes booking lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"spacebooking-backend/internal/model"
)

// Event types. They double as routing key suffixes.
const (
	BookingCreated   = "created"
	BookingConfirmed = "confirmed"
	BookingRejected  = "rejected"
	BookingCancelled = "cancelled"
	BookingCheckedIn = "checked_in"
	BookingCompleted = "completed"
	BookingNoShow    = "no_show"
)

// Event describes a booking state change. CreditsUsed and CreditsRefunded
// let consumers settle payments without reading the booking back.
type Event struct {
	Type            string              `json:"type"`
	BookingID       int64               `json:"booking_id"`
	Code            string              `json:"code"`
	ResourceID      int64               `json:"resource_id"`
	Party           model.Party         `json:"party"`
	Status          model.BookingStatus `json:"status"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
	Currency        string              `json:"currency"`
	CreditsUsed     decimal.Decimal     `json:"credits_used"`
	CreditsRefunded decimal.Decimal     `json:"credits_refunded"`
	Reason          string              `json:"reason,omitempty"`
	OccurredAt      time.Time           `json:"occurred_at"`
}

// FromBooking builds an event of typ for b.
func FromBooking(typ string, b *model.Booking, at time.Time) Event {
	return Event{
		Type:            typ,
		BookingID:       b.ID,
		Code:            b.Code,
		ResourceID:      b.ResourceID,
		Party:           b.Party(),
		Status:          b.Status,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		TotalPrice:      b.TotalPrice,
		Currency:        b.Currency,
		CreditsUsed:     b.CreditsUsed,
		CreditsRefunded: decimal.Zero,
		Reason:          b.CancellationReason,
		OccurredAt:      at.UTC(),
	}
}

// RoutingKey is the topic key an event is published under.
func (e Event) RoutingKey() string { return "booking." + e.Type }

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
