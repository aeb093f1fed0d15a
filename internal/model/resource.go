package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResourceType is the closed set of bookable resource kinds.
type ResourceType string

const (
	ResourceRoom       ResourceType = "room"
	ResourceDesk       ResourceType = "desk"
	ResourceOffice     ResourceType = "office"
	ResourceEventSpace ResourceType = "event_space"
)

// Valid reports whether t is one of the known resource types.
func (t ResourceType) Valid() bool {
	switch t {
	case ResourceRoom, ResourceDesk, ResourceOffice, ResourceEventSpace:
		return true
	}
	return false
}

// DefaultPriceUnit is the unit a resource of this type is billed in.
func (t ResourceType) DefaultPriceUnit() PriceUnit {
	switch t {
	case ResourceDesk:
		return PriceUnitDay
	case ResourceOffice:
		return PriceUnitMonth
	default:
		return PriceUnitHour
	}
}

// PriceUnit is the billing granularity of a rate.
type PriceUnit string

const (
	PriceUnitHour  PriceUnit = "hour"
	PriceUnitDay   PriceUnit = "day"
	PriceUnitMonth PriceUnit = "month"
)

// Resource is a bookable unit: a room, desk, office or event space.
type Resource struct {
	ID                int64        `gorm:"primaryKey" json:"id"`
	Slug              string       `gorm:"uniqueIndex;size:160;not null" json:"slug"`
	Name              string       `gorm:"size:256;not null" json:"name"`
	Type              ResourceType `gorm:"size:32;not null;index" json:"type"`
	Capacity          *int         `json:"capacity,omitempty"`
	OpensAt           *TimeOfDay   `json:"opens_at,omitempty"`
	ClosesAt          *TimeOfDay   `json:"closes_at,omitempty"`
	BufferMinutes     int          `gorm:"not null;default:0" json:"buffer_minutes"`
	MinBookingMinutes int          `gorm:"not null" json:"min_booking_minutes"`
	MaxBookingMinutes *int         `json:"max_booking_minutes,omitempty"`

	HourlyRate  *decimal.Decimal `gorm:"type:numeric(12,2)" json:"hourly_rate,omitempty"`
	DailyRate   *decimal.Decimal `gorm:"type:numeric(12,2)" json:"daily_rate,omitempty"`
	MonthlyRate *decimal.Decimal `gorm:"type:numeric(12,2)" json:"monthly_rate,omitempty"`
	Currency    string           `gorm:"size:3;not null" json:"currency"`

	RequiresApproval bool `gorm:"not null;default:false" json:"requires_approval"`
	Active           bool `gorm:"not null" json:"active"`

	// Attributes holds descriptive metadata only (amenities, display hints).
	Attributes datatypes.JSONMap `json:"attributes,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Associations
	PricingRules []PricingRule `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE" json:"pricing_rules,omitempty"`
}

// PricingRule is a per-plan pricing adjustment for a resource.
type PricingRule struct {
	ID               int64            `gorm:"primaryKey" json:"id"`
	ResourceID       int64            `gorm:"index;not null" json:"resource_id"`
	PlanID           int64            `gorm:"not null" json:"plan_id"`
	DiscountPercent  *decimal.Decimal `gorm:"type:numeric(5,2)" json:"discount_percent,omitempty"`
	FreeHoursMonthly *decimal.Decimal `gorm:"type:numeric(8,2)" json:"free_hours_monthly,omitempty"`
}

// Buffer returns the padding applied around every booking of the resource.
func (r *Resource) Buffer() time.Duration {
	return time.Duration(r.BufferMinutes) * time.Minute
}

// Hours returns the operating-hours window. ok is false for 24/7 resources.
func (r *Resource) Hours() (opens, closes TimeOfDay, ok bool) {
	if r.OpensAt == nil || r.ClosesAt == nil {
		return 0, 0, false
	}
	return *r.OpensAt, *r.ClosesAt, true
}

// PriceUnit is the unit this resource is billed in.
func (r *Resource) PriceUnit() PriceUnit {
	return r.Type.DefaultPriceUnit()
}

// RateFor returns the configured rate for unit, if any.
func (r *Resource) RateFor(unit PriceUnit) (decimal.Decimal, bool) {
	var rate *decimal.Decimal
	switch unit {
	case PriceUnitHour:
		rate = r.HourlyRate
	case PriceUnitDay:
		rate = r.DailyRate
	case PriceUnitMonth:
		rate = r.MonthlyRate
	}
	if rate == nil {
		return decimal.Zero, false
	}
	return *rate, true
}

// PricingRuleForPlan returns the first rule matching planID.
func (r *Resource) PricingRuleForPlan(planID int64) (*PricingRule, bool) {
	for i := range r.PricingRules {
		if r.PricingRules[i].PlanID == planID {
			return &r.PricingRules[i], true
		}
	}
	return nil, false
}

// Validate checks the invariants operators must respect when editing a resource.
func (r *Resource) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("resource name is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("resource %q: unknown type %q", r.Name, r.Type)
	}
	if r.Capacity != nil && *r.Capacity <= 0 {
		return fmt.Errorf("resource %q: capacity must be positive", r.Name)
	}
	if r.BufferMinutes < 0 {
		return fmt.Errorf("resource %q: buffer minutes must be >= 0", r.Name)
	}
	if r.MinBookingMinutes <= 0 {
		return fmt.Errorf("resource %q: min booking minutes must be positive", r.Name)
	}
	if r.MaxBookingMinutes != nil && *r.MaxBookingMinutes < r.MinBookingMinutes {
		return fmt.Errorf("resource %q: max booking minutes %d below min %d", r.Name, *r.MaxBookingMinutes, r.MinBookingMinutes)
	}
	if (r.OpensAt == nil) != (r.ClosesAt == nil) {
		return fmt.Errorf("resource %q: operating hours need both opens_at and closes_at", r.Name)
	}
	if opens, closes, ok := r.Hours(); ok {
		if !opens.Valid() || !closes.Valid() || opens >= closes {
			return fmt.Errorf("resource %q: invalid operating hours %s-%s", r.Name, opens, closes)
		}
	}
	for _, rule := range r.PricingRules {
		if rule.DiscountPercent != nil && (rule.DiscountPercent.IsNegative() || rule.DiscountPercent.GreaterThan(decimal.NewFromInt(100))) {
			return fmt.Errorf("resource %q: plan %d discount must be within 0-100", r.Name, rule.PlanID)
		}
		if rule.FreeHoursMonthly != nil && rule.FreeHoursMonthly.IsNegative() {
			return fmt.Errorf("resource %q: plan %d free hours must be >= 0", r.Name, rule.PlanID)
		}
	}
	return nil
}
