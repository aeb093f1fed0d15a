// Package pricing computes booking prices from a resource's rate card, the
// member's plan rule and available credits.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"spacebooking-backend/internal/bookerr"
	"spacebooking-backend/internal/model"
)

// PlanLookup resolves the plan a member is subscribed to. A nil plan id
// means no plan.
type PlanLookup interface {
	MemberPlan(ctx context.Context, memberID int64) (*int64, error)
}

// CreditSource reports a member's spendable credits, counting a monthly
// allowance that has not been allocated yet.
type CreditSource interface {
	Available(ctx context.Context, memberID int64, resourceType model.ResourceType, date time.Time, monthlyAllowance decimal.Decimal) (decimal.Decimal, error)
}

// Breakdown is a priced booking window. Amounts are rounded to cents;
// quantities and credits to four places.
type Breakdown struct {
	UnitPrice        decimal.Decimal `json:"unit_price"`
	PriceUnit        model.PriceUnit `json:"price_unit"`
	Quantity         decimal.Decimal `json:"quantity"`
	Gross            decimal.Decimal `json:"gross"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	CreditsUsed      decimal.Decimal `json:"credits_used"`
	CreditsValue     decimal.Decimal `json:"credits_value"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Currency         string          `json:"currency"`
	PlanID           *int64          `json:"plan_id,omitempty"`
	// MonthlyAllowance is the plan's free hours for the month, in PriceUnit.
	MonthlyAllowance decimal.Decimal `json:"-"`
}

var (
	hundred       = decimal.NewFromInt(100)
	sixty         = decimal.NewFromInt(60)
	monthDuration = 30 * 24 * time.Hour
	hoursPerDay   = decimal.NewFromInt(24)
	hoursPerMonth = decimal.NewFromInt(30 * 24)
)

// Engine prices booking windows. It never writes.
type Engine struct {
	plans           PlanLookup
	credits         CreditSource
	loc             *time.Location
	hourlyIncrement time.Duration
	defaultCurrency string
}

// New creates a pricing engine. Hourly durations are rounded up to
// hourlyIncrementMinutes.
func New(plans PlanLookup, credits CreditSource, loc *time.Location, hourlyIncrementMinutes int, defaultCurrency string) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if hourlyIncrementMinutes <= 0 {
		hourlyIncrementMinutes = 15
	}
	return &Engine{
		plans:           plans,
		credits:         credits,
		loc:             loc,
		hourlyIncrement: time.Duration(hourlyIncrementMinutes) * time.Minute,
		defaultCurrency: defaultCurrency,
	}
}

// Quantity converts a duration into billable units of unit.
//
// Hours are rounded up to the configured increment, days and 30-day
// months up to whole units.
func (e *Engine) Quantity(unit model.PriceUnit, d time.Duration) decimal.Decimal {
	switch unit {
	case model.PriceUnitHour:
		steps := ceilDiv(d, e.hourlyIncrement)
		minutes := steps * int64(e.hourlyIncrement/time.Minute)
		return decimal.NewFromInt(minutes).Div(sixty).Round(4)
	case model.PriceUnitDay:
		return decimal.NewFromInt(ceilDiv(d, 24*time.Hour))
	case model.PriceUnitMonth:
		return decimal.NewFromInt(ceilDiv(d, monthDuration))
	}
	return decimal.Zero
}

// HoursInUnit expresses hours in unit, rounded down to four places. Credits
// are denominated in the resource's price unit, so a plan's free hours on a
// desk become a fraction of a day.
func HoursInUnit(unit model.PriceUnit, hours decimal.Decimal) decimal.Decimal {
	switch unit {
	case model.PriceUnitHour:
		return hours
	case model.PriceUnitDay:
		return hours.Div(hoursPerDay).RoundDown(4)
	case model.PriceUnitMonth:
		return hours.Div(hoursPerMonth).RoundDown(4)
	}
	return decimal.Zero
}

func ceilDiv(d, unit time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + unit - 1) / unit)
}

// CalculatePrice prices [start, end) on res. memberID is nil for parties
// without a membership; they get neither plan discounts nor credits.
func (e *Engine) CalculatePrice(ctx context.Context, res *model.Resource, start, end time.Time, memberID *int64) (*Breakdown, error) {
	if !end.After(start) {
		return nil, bookerr.New(bookerr.InvalidRequest, "invalid_window", "end is not after start")
	}

	unit := res.PriceUnit()
	unitPrice, ok := res.RateFor(unit)
	if !ok {
		return nil, bookerr.New(bookerr.RateNotConfigured, string(unit), "resource %d has no rate per %s", res.ID, unit)
	}

	currency := res.Currency
	if currency == "" {
		currency = e.defaultCurrency
	}
	qty := e.Quantity(unit, end.Sub(start))
	b := &Breakdown{
		UnitPrice:        unitPrice,
		PriceUnit:        unit,
		Quantity:         qty,
		Gross:            unitPrice.Mul(qty).Round(2),
		DiscountPercent:  decimal.Zero,
		DiscountAmount:   decimal.Zero,
		CreditsUsed:      decimal.Zero,
		CreditsValue:     decimal.Zero,
		Currency:         currency,
		MonthlyAllowance: decimal.Zero,
	}

	if memberID != nil {
		if err := e.applyMember(ctx, b, res, start, *memberID); err != nil {
			return nil, err
		}
	}

	// Credits come off first; the plan discount applies to what is left.
	remainder := b.Gross.Sub(b.CreditsValue)
	if remainder.IsNegative() {
		remainder = decimal.Zero
	}
	b.DiscountAmount = remainder.Mul(b.DiscountPercent).Div(hundred).Round(2)

	total := b.Gross.Sub(b.DiscountAmount).Sub(b.CreditsValue)
	if total.IsNegative() {
		total = decimal.Zero
	}
	b.TotalPrice = total.Round(2)
	return b, nil
}

func (e *Engine) applyMember(ctx context.Context, b *Breakdown, res *model.Resource, start time.Time, memberID int64) error {
	planID, err := e.plans.MemberPlan(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to resolve plan for member %d: %w", memberID, err)
	}
	b.PlanID = planID

	if planID != nil {
		if rule, ok := res.PricingRuleForPlan(*planID); ok {
			if rule.DiscountPercent != nil {
				b.DiscountPercent = *rule.DiscountPercent
			}
			if rule.FreeHoursMonthly != nil {
				b.MonthlyAllowance = HoursInUnit(b.PriceUnit, *rule.FreeHoursMonthly)
			}
		}
	}

	date := model.DateOf(start, e.loc)
	available, err := e.credits.Available(ctx, memberID, res.Type, date, b.MonthlyAllowance)
	if err != nil {
		return fmt.Errorf("failed to read credits for member %d: %w", memberID, err)
	}
	if available.IsPositive() {
		b.CreditsUsed = decimal.Min(b.Quantity, available).Round(4)
		b.CreditsValue = b.CreditsUsed.Mul(b.UnitPrice).Round(2)
	}
	return nil
}
