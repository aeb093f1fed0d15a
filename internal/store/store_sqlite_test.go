package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacebooking-backend/internal/db/dbtest"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/store"
)

var blocking = model.DefaultBlockingStatuses

func at(hour, minute int) time.Time {
	return time.Date(2030, 3, 4, hour, minute, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedResource(t *testing.T, s store.Store, slug string) model.Resource {
	t.Helper()
	rate := dec("100")
	saved, err := s.UpsertResources(context.Background(), []model.Resource{{
		Slug:              slug,
		Name:              "Room " + slug,
		Type:              model.ResourceRoom,
		BufferMinutes:     15,
		MinBookingMinutes: 30,
		HourlyRate:        &rate,
		Currency:          "EGP",
		Active:            true,
	}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	return saved[0]
}

func newBooking(res model.Resource, code string, start, end time.Time) *model.Booking {
	return &model.Booking{
		Code:          code,
		ResourceID:    res.ID,
		PartyKind:     model.PartyUser,
		PartyID:       1,
		StartTime:     start,
		EndTime:       end,
		BlockedUntil:  end.Add(res.Buffer()),
		Status:        model.StatusConfirmed,
		UnitPrice:     dec("100"),
		PriceUnit:     model.PriceUnitHour,
		Quantity:      dec("1"),
		TotalPrice:    dec("100"),
		Currency:      "EGP",
		PaymentStatus: model.PaymentUnpaid,
		Attendees:     1,
	}
}

func guardFor(res model.Resource, start, end time.Time) store.OverlapQuery {
	return store.OverlapQuery{
		ResourceID: res.ID,
		Start:      start.Add(-res.Buffer()),
		End:        end.Add(res.Buffer()),
		Statuses:   blocking,
	}
}

func TestCreateBooking_OverlapPredicate(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))
	res := seedResource(t, s, "alpha")

	b := newBooking(res, "BK-1", at(10, 0), at(11, 0))
	require.NoError(t, s.CreateBooking(ctx, b, guardFor(res, b.StartTime, b.EndTime), nil))
	require.NotZero(t, b.ID)

	testCases := []struct {
		name       string
		start, end time.Time
		expected   bool
	}{
		{"Inside buffer after", at(11, 10), at(12, 0), true},
		{"Buffer edge after", at(11, 15), at(12, 0), false},
		{"Inside buffer before", at(9, 0), at(9, 50), true},
		{"Buffer edge before", at(9, 0), at(9, 45), false},
		{"Straddles", at(10, 30), at(10, 45), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.HasOverlappingBooking(ctx, guardFor(res, tc.start, tc.end))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	q := guardFor(res, at(10, 0), at(11, 0))
	q.ExcludeID = &b.ID
	got, err := s.HasOverlappingBooking(ctx, q)
	require.NoError(t, err)
	assert.False(t, got, "a booking never overlaps itself")

	q = guardFor(res, at(10, 0), at(11, 0))
	q.Statuses = []model.BookingStatus{model.StatusCancelled}
	got, err = s.HasOverlappingBooking(ctx, q)
	require.NoError(t, err)
	assert.False(t, got, "only listed statuses block")
}

func TestCreateBooking_RevalidatesUnderLock(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))
	res := seedResource(t, s, "beta")

	first := newBooking(res, "BK-1", at(10, 0), at(11, 0))
	require.NoError(t, s.CreateBooking(ctx, first, guardFor(res, first.StartTime, first.EndTime), nil))

	second := newBooking(res, "BK-2", at(11, 5), at(12, 0))
	err := s.CreateBooking(ctx, second, guardFor(res, second.StartTime, second.EndTime), nil)
	assert.ErrorIs(t, err, store.ErrOverlap)
	assert.Zero(t, second.ID)

	missing := newBooking(model.Resource{ID: 999}, "BK-3", at(14, 0), at(15, 0))
	err = s.CreateBooking(ctx, missing, guardFor(model.Resource{ID: 999}, missing.StartTime, missing.EndTime), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateBooking_ConcurrentRequestsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))
	res := seedResource(t, s, "gamma")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(10, i*5)
			b := newBooking(res, "BK-C"+string(rune('A'+i)), start, start.Add(time.Hour))
			errs[i] = s.CreateBooking(ctx, b, guardFor(res, b.StartTime, b.EndTime), nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, store.ErrOverlap)
	}
	assert.Equal(t, 1, wins)

	booked, err := s.ListBlockingBookings(ctx, res.ID, at(0, 0), at(23, 59), blocking)
	require.NoError(t, err)
	assert.Len(t, booked, 1)
}

func TestCreateBooking_LinksDebits(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))
	res := seedResource(t, s, "delta")

	b := newBooking(res, "BK-1", at(10, 0), at(11, 0))
	debits := []model.CreditTransaction{{CreditID: 5, Type: model.CreditDeduction, Amount: dec("1")}}
	require.NoError(t, s.CreateBooking(ctx, b, guardFor(res, b.StartTime, b.EndTime), debits))

	txs, err := s.ListCreditTransactions(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, b.ID, *txs[0].BookingID)
	assert.True(t, txs[0].Amount.Equal(dec("1")))
}

func TestUpdateBooking(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))
	res := seedResource(t, s, "epsilon")

	b := newBooking(res, "BK-1", at(10, 0), at(11, 0))
	require.NoError(t, s.CreateBooking(ctx, b, guardFor(res, b.StartTime, b.EndTime), nil))

	updated, err := s.UpdateBooking(ctx, b.ID, func(b *model.Booking) error {
		b.Status = model.StatusCancelled
		b.CancellationReason = "plans changed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, updated.Status)

	guardErr := assert.AnError
	_, err = s.UpdateBooking(ctx, b.ID, func(b *model.Booking) error {
		b.Status = model.StatusConfirmed
		return guardErr
	})
	assert.ErrorIs(t, err, guardErr)

	stored, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Equal(t, "plans changed", stored.CancellationReason)

	_, err = s.UpdateBooking(ctx, 12345, func(*model.Booking) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCredits_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))

	start, end := model.MonthPeriod(at(0, 0))
	c, err := s.GetOrCreateCredit(ctx, &model.BookingCredit{
		MemberID: 1, ResourceType: model.ResourceRoom,
		PeriodStart: start, PeriodEnd: end,
		Allocated: dec("2"), Used: decimal.Zero,
	})
	require.NoError(t, err)

	again, err := s.GetOrCreateCredit(ctx, &model.BookingCredit{
		MemberID: 1, ResourceType: model.ResourceRoom,
		PeriodStart: start, PeriodEnd: end,
		Allocated: dec("9"), Used: decimal.Zero,
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID, "same period is never allocated twice")
	assert.True(t, again.Allocated.Equal(dec("2")))

	steps := []struct {
		amount string
		ok     bool
		used   string
	}{
		{"1.5", true, "1.5"},
		{"1", false, "1.5"},
		{"0.5", true, "2"},
		{"0.25", false, "2"},
	}
	for _, step := range steps {
		ok, err := s.UseCredits(ctx, c.ID, dec(step.amount))
		require.NoError(t, err)
		assert.Equal(t, step.ok, ok, step.amount)

		got, err := s.GetCredit(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, got.Used.Equal(dec(step.used)), "used=%s want %s", got.Used, step.used)
	}

	require.NoError(t, s.RefundCredits(ctx, c.ID, dec("5")))
	got, err := s.GetCredit(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Used.IsZero(), "refund clamps at zero")
}

func TestActiveCredits(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))

	mk := func(start, end time.Time, rtype model.ResourceType) {
		_, err := s.GetOrCreateCredit(ctx, &model.BookingCredit{
			MemberID: 4, ResourceType: rtype, PeriodStart: start, PeriodEnd: end,
			Allocated: dec("3"), Used: decimal.Zero,
		})
		require.NoError(t, err)
	}
	day := func(d int) time.Time { return time.Date(2030, 3, d, 0, 0, 0, 0, time.UTC) }

	mk(day(1), day(31), model.ResourceRoom)
	mk(day(1), day(10), model.ResourceRoom)
	mk(day(20), day(25), model.ResourceRoom)
	mk(day(1), day(31), model.ResourceDesk)

	credits, err := s.ActiveCredits(ctx, 4, model.ResourceRoom, day(10))
	require.NoError(t, err)
	require.Len(t, credits, 2)
	assert.True(t, credits[0].PeriodEnd.Equal(day(10)), "earliest expiry first")
	assert.True(t, credits[1].PeriodEnd.Equal(day(31)))
}

func TestUpsertResources_ReplacesRulesAndRestores(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(dbtest.New(t))

	pct := dec("10")
	res := seedResource(t, s, "zeta")
	res.Name = "Renamed"
	res.PricingRules = []model.PricingRule{{PlanID: 1, DiscountPercent: &pct}, {PlanID: 2}}
	_, err := s.UpsertResources(ctx, []model.Resource{res})
	require.NoError(t, err)

	got, err := s.GetResource(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	require.Len(t, got.PricingRules, 2)
	assert.Equal(t, int64(1), got.PricingRules[0].PlanID)

	require.NoError(t, s.RetireResource(ctx, res.ID))
	_, err = s.GetResource(ctx, res.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.RetireResource(ctx, res.ID), store.ErrNotFound)

	res.PricingRules = nil
	saved, err := s.UpsertResources(ctx, []model.Resource{res})
	require.NoError(t, err)
	assert.Equal(t, res.ID, saved[0].ID, "slug keeps identity across retirement")

	got, err = s.GetResource(ctx, res.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PricingRules)

	list, err := s.ListResources(ctx, store.ResourceFilter{Type: model.ResourceRoom, ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
