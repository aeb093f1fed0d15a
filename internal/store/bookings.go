package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spacebooking-backend/internal/model"
)

func overlapScope(q OverlapQuery) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("resource_id = ? AND status IN ?", q.ResourceID, q.Statuses).
			Where("start_time < ? AND end_time > ?", q.End.UTC(), q.Start.UTC())
		if q.ExcludeID != nil {
			db = db.Where("id <> ?", *q.ExcludeID)
		}
		return db
	}
}

func hasOverlap(db *gorm.DB, q OverlapQuery) (bool, error) {
	var ids []int64
	if err := db.Model(&model.Booking{}).Scopes(overlapScope(q)).Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// HasOverlappingBooking reports whether any booking matches the range predicate.
func (s *gormStore) HasOverlappingBooking(ctx context.Context, q OverlapQuery) (bool, error) {
	if len(q.Statuses) == 0 {
		return false, nil
	}
	return hasOverlap(s.db.WithContext(ctx), q)
}

// ListBlockingBookings returns bookings in statuses intersecting [from, to),
// ordered by start time.
func (s *gormStore) ListBlockingBookings(ctx context.Context, resourceID int64, from, to time.Time, statuses []model.BookingStatus) ([]model.Booking, error) {
	var bookings []model.Booking
	if len(statuses) == 0 {
		return bookings, nil
	}
	err := s.db.WithContext(ctx).
		Scopes(overlapScope(OverlapQuery{ResourceID: resourceID, Start: from, End: to, Statuses: statuses})).
		Order("start_time ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// CreateBooking inserts b after re-validating guard inside a transaction that
// holds a row lock on the resource, so concurrent creations for the same
// resource are serialised. debits are linked to the new booking and stored in
// the same transaction.
func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking, guard OverlapQuery, debits []model.CreditTransaction) error {
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	b.BlockedUntil = b.BlockedUntil.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res model.Resource
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&res, b.ResourceID).Error; err != nil {
			return err
		}

		overlapping, err := hasOverlap(tx, guard)
		if err != nil {
			return fmt.Errorf("failed to re-validate overlap: %w", err)
		}
		if overlapping {
			return ErrOverlap
		}

		if err := tx.Omit(clause.Associations).Create(b).Error; err != nil {
			return err
		}

		if len(debits) > 0 {
			for i := range debits {
				debits[i].BookingID = &b.ID
			}
			if err := tx.Create(&debits).Error; err != nil {
				return fmt.Errorf("failed to record credit transactions: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, ErrOverlap) {
		return ErrOverlap
	}
	return translate(err)
}

// GetBooking loads a booking by id.
func (s *gormStore) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// UpdateBooking locks the booking row, lets mutate inspect and change it, and
// saves the result. An error from mutate aborts the transaction unchanged and
// is returned as is.
func (s *gormStore) UpdateBooking(ctx context.Context, id int64, mutate func(b *model.Booking) error) (*model.Booking, error) {
	var b model.Booking
	var mutateErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
			return err
		}
		if err := mutate(&b); err != nil {
			mutateErr = err
			return err
		}
		return tx.Omit(clause.Associations).Save(&b).Error
	})
	if mutateErr != nil {
		return nil, mutateErr
	}
	if err != nil {
		return nil, translate(err)
	}
	return &b, nil
}
