package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spacebooking-backend/internal/model"
)

// GetCredit loads a credit row by id.
func (s *gormStore) GetCredit(ctx context.Context, id int64) (*model.BookingCredit, error) {
	var c model.BookingCredit
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func creditKeyScope(key CreditKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("member_id = ? AND resource_type = ? AND period_start = ? AND period_end = ?",
			key.MemberID, key.ResourceType, key.PeriodStart.UTC(), key.PeriodEnd.UTC())
	}
}

// FindCreditForPeriod returns the allocation for exactly key's period.
func (s *gormStore) FindCreditForPeriod(ctx context.Context, key CreditKey) (*model.BookingCredit, error) {
	var c model.BookingCredit
	if err := s.db.WithContext(ctx).Scopes(creditKeyScope(key)).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// GetOrCreateCredit inserts c unless a row with the same member, type and
// period exists, and returns the stored row either way.
func (s *gormStore) GetOrCreateCredit(ctx context.Context, c *model.BookingCredit) (*model.BookingCredit, error) {
	c.PeriodStart = c.PeriodStart.UTC()
	c.PeriodEnd = c.PeriodEnd.UTC()

	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "member_id"}, {Name: "resource_type"}, {Name: "period_start"}, {Name: "period_end"},
		},
		DoNothing: true,
	}).Create(c).Error; err != nil {
		return nil, err
	}

	return s.FindCreditForPeriod(ctx, CreditKey{
		MemberID:     c.MemberID,
		ResourceType: c.ResourceType,
		PeriodStart:  c.PeriodStart,
		PeriodEnd:    c.PeriodEnd,
	})
}

// ActiveCredits returns the member's allocations for resourceType whose period
// covers date, earliest expiry first.
func (s *gormStore) ActiveCredits(ctx context.Context, memberID int64, resourceType model.ResourceType, date time.Time) ([]model.BookingCredit, error) {
	var credits []model.BookingCredit
	err := s.db.WithContext(ctx).
		Where("member_id = ? AND resource_type = ?", memberID, resourceType).
		Where("period_start <= ? AND period_end >= ?", date.UTC(), date.UTC()).
		Order("period_end ASC, id ASC").
		Find(&credits).Error
	if err != nil {
		return nil, err
	}
	return credits, nil
}

// UseCredits debits amount from the credit row with a single compare-and-swap
// update. It returns false, leaving the row untouched, when the remaining
// balance is smaller than amount.
func (s *gormStore) UseCredits(ctx context.Context, creditID int64, amount decimal.Decimal) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&model.BookingCredit{}).
		Where("id = ? AND used + ? <= allocated", creditID, amount).
		Update("used", gorm.Expr("used + ?", amount))
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// RefundCredits gives amount back to the credit row, clamping used at zero.
func (s *gormStore) RefundCredits(ctx context.Context, creditID int64, amount decimal.Decimal) error {
	result := s.db.WithContext(ctx).
		Model(&model.BookingCredit{}).
		Where("id = ?", creditID).
		Update("used", gorm.Expr("CASE WHEN used - ? < 0 THEN 0 ELSE used - ? END", amount, amount))
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCreditTransactions returns the credit movements recorded for a booking.
func (s *gormStore) ListCreditTransactions(ctx context.Context, bookingID int64) ([]model.CreditTransaction, error) {
	var txs []model.CreditTransaction
	if err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id ASC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// RecordCreditTransactions appends credit movements.
func (s *gormStore) RecordCreditTransactions(ctx context.Context, txs []model.CreditTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&txs).Error
}
