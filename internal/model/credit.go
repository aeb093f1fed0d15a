package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingCredit is a member's credit allocation for a resource type over a
// calendar-date period. Credits are denominated in the resource type's price
// unit: one credit pays for one hour of a room.
type BookingCredit struct {
	ID           int64           `gorm:"primaryKey" json:"id"`
	MemberID     int64           `gorm:"not null;uniqueIndex:idx_credit_period,priority:1" json:"member_id"`
	ResourceType ResourceType    `gorm:"size:32;not null;uniqueIndex:idx_credit_period,priority:2" json:"resource_type"`
	PeriodStart  time.Time       `gorm:"not null;uniqueIndex:idx_credit_period,priority:3" json:"period_start"`
	PeriodEnd    time.Time       `gorm:"not null;uniqueIndex:idx_credit_period,priority:4" json:"period_end"`
	Allocated    decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"allocated"`
	Used         decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"used"`
	PlanID       *int64          `json:"plan_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Remaining is allocated minus used, floored at zero.
func (c *BookingCredit) Remaining() decimal.Decimal {
	r := c.Allocated.Sub(c.Used)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// ActiveOn reports whether date lies within the period, bounds inclusive.
func (c *BookingCredit) ActiveOn(date time.Time) bool {
	return !date.Before(c.PeriodStart) && !date.After(c.PeriodEnd)
}

// CreditTransactionType is the business reason of a credit movement.
type CreditTransactionType string

const (
	CreditDeduction CreditTransactionType = "deduction"
	CreditRefund    CreditTransactionType = "refund"
)

// CreditTransaction records a debit or refund of a credit row for a booking.
type CreditTransaction struct {
	ID        int64                 `gorm:"primaryKey" json:"id"`
	CreditID  int64                 `gorm:"not null;index" json:"credit_id"`
	BookingID *int64                `gorm:"index" json:"booking_id,omitempty"`
	Type      CreditTransactionType `gorm:"size:16;not null" json:"type"`
	Amount    decimal.Decimal       `gorm:"type:numeric(12,4);not null" json:"amount"`
	CreatedAt time.Time             `json:"created_at"`
}
