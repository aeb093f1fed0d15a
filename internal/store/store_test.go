package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_UseCredits(t *testing.T) {
	testCases := []struct {
		name         string
		rowsAffected int64
		expected     bool
	}{
		{name: "Balance covers the debit", rowsAffected: 1, expected: true},
		{name: "Balance too small, row untouched", rowsAffected: 0, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE "booking_credits" SET "used"=used \+ \$1,"updated_at"=\$2 WHERE id = \$3 AND used \+ \$4 <= allocated`).
				WithArgs(Any{}, Any{}, int64(7), Any{}).
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))
			mock.ExpectCommit()

			ok, err := store.UseCredits(context.Background(), 7, decimal.NewFromInt(2))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_RefundCreditsClamps(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "booking_credits" SET "used"=CASE WHEN used - $1 < 0 THEN 0 ELSE used - $2 END`)).
		WithArgs(Any{}, Any{}, Any{}, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.RefundCredits(context.Background(), 3, decimal.NewFromInt(1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_RefundCreditsMissingRow(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "booking_credits"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.RefundCredits(context.Background(), 99, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)

	for _, code := range []string{pgExclusionViolation, pgSerializationFailure, pgDeadlockDetected} {
		err := translate(&pgconn.PgError{Code: code, Message: "boom"})
		assert.ErrorIs(t, err, ErrConflict, code)
	}

	assert.NotErrorIs(t, translate(&pgconn.PgError{Code: "23505"}), ErrConflict)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
