// Package credit manages members' booking credit balances.
//
// A credit row holds an allocation for one member, resource type and
// period. Balances only move through Use and Refund, which are single
// conditional updates in the store and never take used outside
// [0, allocated].
package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"spacebooking-backend/internal/bookerr"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/store"
)

// Ledger is the credit ledger.
type Ledger struct {
	store store.Store
	log   *logrus.Logger
}

// New creates a ledger on top of s.
func New(s store.Store, log *logrus.Logger) *Ledger {
	return &Ledger{store: s, log: log}
}

// Use debits amount from a credit row. It returns false without changing
// anything if the remaining balance is smaller than amount.
func (l *Ledger) Use(ctx context.Context, creditID int64, amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, bookerr.New(bookerr.InvalidRequest, "amount", "credit amount %s is negative", amount)
	}
	if amount.IsZero() {
		return true, nil
	}
	ok, err := l.store.UseCredits(ctx, creditID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to use credits on %d: %w", creditID, err)
	}
	return ok, nil
}

// Refund gives amount back to a credit row. used never drops below zero.
func (l *Ledger) Refund(ctx context.Context, creditID int64, amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, bookerr.New(bookerr.InvalidRequest, "amount", "credit amount %s is negative", amount)
	}
	if amount.IsZero() {
		return true, nil
	}
	if err := l.store.RefundCredits(ctx, creditID, amount); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, bookerr.New(bookerr.NotFound, "credit", "credit %d not found", creditID)
		}
		return false, fmt.Errorf("failed to refund credits on %d: %w", creditID, err)
	}
	return true, nil
}

// AvailableForMember sums the remaining balance of every allocation of
// resourceType active on date.
func (l *Ledger) AvailableForMember(ctx context.Context, memberID int64, resourceType model.ResourceType, date time.Time) (decimal.Decimal, error) {
	credits, err := l.store.ActiveCredits(ctx, memberID, resourceType, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load credits for member %d: %w", memberID, err)
	}
	total := decimal.Zero
	for i := range credits {
		total = total.Add(credits[i].Remaining())
	}
	return total, nil
}

// Available is AvailableForMember plus a monthly allowance that has not
// been allocated yet for date's month. It never writes.
func (l *Ledger) Available(ctx context.Context, memberID int64, resourceType model.ResourceType, date time.Time, monthlyAllowance decimal.Decimal) (decimal.Decimal, error) {
	total, err := l.AvailableForMember(ctx, memberID, resourceType, date)
	if err != nil {
		return decimal.Zero, err
	}
	if !monthlyAllowance.IsPositive() {
		return total, nil
	}

	start, end := model.MonthPeriod(date)
	_, err = l.store.FindCreditForPeriod(ctx, store.CreditKey{
		MemberID: memberID, ResourceType: resourceType, PeriodStart: start, PeriodEnd: end,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return total.Add(monthlyAllowance), nil
	case err != nil:
		return decimal.Zero, fmt.Errorf("failed to look up monthly credits for member %d: %w", memberID, err)
	}
	return total, nil
}

// GetOrCreateForPeriod returns the allocation for the period, creating it
// with allocated credits if it does not exist yet. An existing row is
// returned unchanged.
func (l *Ledger) GetOrCreateForPeriod(ctx context.Context, key store.CreditKey, allocated decimal.Decimal, planID *int64) (*model.BookingCredit, error) {
	if allocated.IsNegative() {
		return nil, bookerr.New(bookerr.InvalidRequest, "allocated", "allocation %s is negative", allocated)
	}
	if key.PeriodEnd.Before(key.PeriodStart) {
		return nil, bookerr.New(bookerr.InvalidRequest, "period", "period ends before it starts")
	}
	c, err := l.store.GetOrCreateCredit(ctx, &model.BookingCredit{
		MemberID:     key.MemberID,
		ResourceType: key.ResourceType,
		PeriodStart:  key.PeriodStart,
		PeriodEnd:    key.PeriodEnd,
		Allocated:    allocated,
		Used:         decimal.Zero,
		PlanID:       planID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create credits for member %d: %w", key.MemberID, err)
	}
	return c, nil
}

// EnsureMonthlyAllowance allocates a plan's monthly allowance for date's
// calendar month. allowance is in the resource type's price unit, not hours.
// It returns nil when the allowance is not positive.
func (l *Ledger) EnsureMonthlyAllowance(ctx context.Context, memberID int64, resourceType model.ResourceType, date time.Time, allowance decimal.Decimal, planID *int64) (*model.BookingCredit, error) {
	if !allowance.IsPositive() {
		return nil, nil
	}
	start, end := model.MonthPeriod(date)
	return l.GetOrCreateForPeriod(ctx, store.CreditKey{
		MemberID: memberID, ResourceType: resourceType, PeriodStart: start, PeriodEnd: end,
	}, allowance, planID)
}

// Draw debits amount across the member's active allocations, earliest
// expiry first, and returns one deduction per row touched. Nothing is
// debited if the balances cannot cover amount.
//
// The returned transactions are not persisted; the caller stores them with
// the booking they pay for, or hands them back to Release.
func (l *Ledger) Draw(ctx context.Context, memberID int64, resourceType model.ResourceType, date time.Time, amount decimal.Decimal) ([]model.CreditTransaction, error) {
	if !amount.IsPositive() {
		return nil, nil
	}
	credits, err := l.store.ActiveCredits(ctx, memberID, resourceType, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load credits for member %d: %w", memberID, err)
	}

	need := amount
	var drawn []model.CreditTransaction
	for i := range credits {
		if !need.IsPositive() {
			break
		}
		take, err := l.drawFrom(ctx, &credits[i], need)
		if err != nil {
			l.rollback(ctx, drawn)
			return nil, err
		}
		if take.IsPositive() {
			drawn = append(drawn, model.CreditTransaction{
				CreditID: credits[i].ID,
				Type:     model.CreditDeduction,
				Amount:   take,
			})
			need = need.Sub(take)
		}
	}

	if need.IsPositive() {
		l.rollback(ctx, drawn)
		return nil, bookerr.New(bookerr.CreditExhausted, "insufficient",
			"member %d is %s credits short for %s", memberID, need, resourceType)
	}
	return drawn, nil
}

// drawFrom takes up to need from one row. A lost compare-and-swap re-reads
// the row and tries once more with its fresh balance.
func (l *Ledger) drawFrom(ctx context.Context, c *model.BookingCredit, need decimal.Decimal) (decimal.Decimal, error) {
	for attempt := 0; attempt < 2; attempt++ {
		take := decimal.Min(c.Remaining(), need)
		if !take.IsPositive() {
			return decimal.Zero, nil
		}
		ok, err := l.Use(ctx, c.ID, take)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			return take, nil
		}
		fresh, err := l.store.GetCredit(ctx, c.ID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to reload credit %d: %w", c.ID, err)
		}
		*c = *fresh
	}
	return decimal.Zero, nil
}

// Release refunds deductions returned by Draw that never got attached to a
// booking.
func (l *Ledger) Release(ctx context.Context, drawn []model.CreditTransaction) error {
	var errs []error
	for _, tx := range drawn {
		if tx.Type != model.CreditDeduction {
			continue
		}
		if _, err := l.Refund(ctx, tx.CreditID, tx.Amount); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Ledger) rollback(ctx context.Context, drawn []model.CreditTransaction) {
	if err := l.Release(ctx, drawn); err != nil {
		l.log.WithError(err).Error("failed to roll back partial credit draw")
	}
}

// RefundBooking returns every credit still held by a booking and records
// the refunds. Calling it again refunds nothing.
func (l *Ledger) RefundBooking(ctx context.Context, bookingID int64) (decimal.Decimal, error) {
	txs, err := l.store.ListCreditTransactions(ctx, bookingID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load credit transactions for booking %d: %w", bookingID, err)
	}

	held := make(map[int64]decimal.Decimal)
	var order []int64
	for _, tx := range txs {
		if _, seen := held[tx.CreditID]; !seen {
			order = append(order, tx.CreditID)
		}
		switch tx.Type {
		case model.CreditDeduction:
			held[tx.CreditID] = held[tx.CreditID].Add(tx.Amount)
		case model.CreditRefund:
			held[tx.CreditID] = held[tx.CreditID].Sub(tx.Amount)
		}
	}

	total := decimal.Zero
	for _, creditID := range order {
		amount := held[creditID]
		if !amount.IsPositive() {
			continue
		}
		if _, err := l.Refund(ctx, creditID, amount); err != nil {
			return total, err
		}
		refund := model.CreditTransaction{
			CreditID:  creditID,
			BookingID: &bookingID,
			Type:      model.CreditRefund,
			Amount:    amount,
		}
		if err := l.store.RecordCreditTransactions(ctx, []model.CreditTransaction{refund}); err != nil {
			return total, fmt.Errorf("failed to record refund for booking %d: %w", bookingID, err)
		}
		total = total.Add(amount)
	}

	if total.IsPositive() {
		l.log.WithFields(logrus.Fields{"booking_id": bookingID, "credits": total.String()}).Info("credits refunded")
	}
	return total, nil
}
