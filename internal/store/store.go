package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"spacebooking-backend/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrOverlap is returned when the locked re-validation inside CreateBooking
	// finds a blocking booking in the buffered window.
	ErrOverlap = errors.New("slot overlapped")
	// ErrConflict is returned when the database rejected a write because a
	// concurrent transaction won: an exclusion violation, a serialization
	// failure or a busy database. The operation is safe to retry.
	ErrConflict = errors.New("concurrent write conflict")
)

// Store defines the interface for all database operations.
type Store interface {
	GetResource(ctx context.Context, id int64) (*model.Resource, error)
	ListResources(ctx context.Context, filter ResourceFilter) ([]model.Resource, error)
	UpsertResources(ctx context.Context, resources []model.Resource) ([]model.Resource, error)
	RetireResource(ctx context.Context, id int64) error

	GetMember(ctx context.Context, id int64) (*model.Member, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	HasOverlappingBooking(ctx context.Context, q OverlapQuery) (bool, error)
	ListBlockingBookings(ctx context.Context, resourceID int64, from, to time.Time, statuses []model.BookingStatus) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking, guard OverlapQuery, debits []model.CreditTransaction) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	UpdateBooking(ctx context.Context, id int64, mutate func(b *model.Booking) error) (*model.Booking, error)

	GetCredit(ctx context.Context, id int64) (*model.BookingCredit, error)
	FindCreditForPeriod(ctx context.Context, key CreditKey) (*model.BookingCredit, error)
	GetOrCreateCredit(ctx context.Context, c *model.BookingCredit) (*model.BookingCredit, error)
	ActiveCredits(ctx context.Context, memberID int64, resourceType model.ResourceType, date time.Time) ([]model.BookingCredit, error)
	UseCredits(ctx context.Context, creditID int64, amount decimal.Decimal) (bool, error)
	RefundCredits(ctx context.Context, creditID int64, amount decimal.Decimal) error
	ListCreditTransactions(ctx context.Context, bookingID int64) ([]model.CreditTransaction, error)
	RecordCreditTransactions(ctx context.Context, txs []model.CreditTransaction) error
}

// ResourceFilter narrows ListResources.
type ResourceFilter struct {
	Type       model.ResourceType
	ActiveOnly bool
}

// OverlapQuery is the buffered range predicate over a resource's bookings:
// a booking matches when its status is in Statuses and
// start_time < End AND end_time > Start.
type OverlapQuery struct {
	ResourceID int64
	Start      time.Time
	End        time.Time
	Statuses   []model.BookingStatus
	ExcludeID  *int64
}

// CreditKey identifies one allocation period of a member's credits.
type CreditKey struct {
	MemberID     int64
	ResourceType model.ResourceType
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Postgres SQLSTATE codes that signal a lost race.
const (
	pgExclusionViolation   = "23P01"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	// SQLite reports writer contention as a plain error string.
	if strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
