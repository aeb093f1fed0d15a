package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
	StatusRejected  BookingStatus = "rejected"
)

// DefaultBlockingStatuses are the statuses that occupy a resource's timeline.
var DefaultBlockingStatuses = []BookingStatus{StatusPending, StatusConfirmed}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRejected:
		return true
	}
	return false
}

// PaymentStatus tracks settlement of a booking with the payment collaborator.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentNotDue   PaymentStatus = "not_due"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking is a single reservation of a resource for a contiguous interval.
type Booking struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	Code       string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	ResourceID int64     `gorm:"not null;index:idx_bookings_resource_window,priority:1" json:"resource_id"`
	PartyKind  PartyKind `gorm:"size:16;not null;index:idx_bookings_party,priority:1" json:"party_kind"`
	PartyID    int64     `gorm:"not null;index:idx_bookings_party,priority:2" json:"party_id"`
	StartTime  time.Time `gorm:"not null;index:idx_bookings_resource_window,priority:2" json:"start_time"`
	EndTime    time.Time `gorm:"not null;index:idx_bookings_resource_window,priority:3" json:"end_time"`
	// BlockedUntil is EndTime plus the resource buffer at booking time.
	BlockedUntil time.Time     `gorm:"not null" json:"-"`
	Status       BookingStatus `gorm:"size:16;not null;index" json:"status"`

	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	PriceUnit      PriceUnit       `gorm:"size:8;not null" json:"price_unit"`
	Quantity       decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"quantity"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_amount"`
	TotalPrice     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Currency       string          `gorm:"size:3;not null" json:"currency"`
	CreditsUsed    decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"credits_used"`
	PaymentStatus  PaymentStatus   `gorm:"size:16;not null" json:"payment_status"`

	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt       *time.Time `json:"checked_out_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"size:512" json:"cancellation_reason,omitempty"`

	Attendees       int    `gorm:"not null;default:1" json:"attendees"`
	Notes           string `gorm:"size:1024" json:"notes,omitempty"`
	ParentBookingID *int64 `gorm:"index" json:"parent_booking_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Resource *Resource `gorm:"constraint:OnDelete:RESTRICT" json:"resource,omitempty"`
}

// Party returns the bookable party that holds the booking.
func (b *Booking) Party() Party {
	return Party{Kind: b.PartyKind, ID: b.PartyID}
}

// Blocking reports whether the booking occupies its resource under statuses.
func (b *Booking) Blocking(statuses []BookingStatus) bool {
	for _, s := range statuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// Duration is the booked interval length.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}
