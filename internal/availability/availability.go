// Package availability decides whether a resource can be booked for a window
// and enumerates the free slots of a day.
package availability

import (
	"context"
	"fmt"
	"iter"
	"time"

	"spacebooking-backend/internal/bookerr"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/store"
)

// Reasons reported in a Verdict when a window is not bookable.
const (
	ReasonInvalidWindow = "invalid_window"
	ReasonInactive      = "inactive"
	ReasonOutsideHours  = "outside_hours"
	ReasonTooShort      = "too_short"
	ReasonTooLong       = "too_long"
	ReasonOverlap       = "overlap"
	ReasonBufferOverlap = "buffer_overlap"
)

// Verdict is the outcome of an availability check.
type Verdict struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Err converts a negative verdict into a SlotUnavailable rejection.
func (v Verdict) Err() error {
	if v.Available {
		return nil
	}
	return bookerr.New(bookerr.SlotUnavailable, v.Reason, "%s", v.Detail)
}

func unavailable(reason, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Slot is a free bookable window.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Engine checks requested windows against a resource's rules and the
// booking ledger.
type Engine struct {
	store    store.Store
	loc      *time.Location
	blocking []model.BookingStatus
}

// New creates an engine. loc is the zone operating hours and calendar days
// are expressed in; blocking lists the statuses that occupy the timeline.
func New(s store.Store, loc *time.Location, blocking []model.BookingStatus) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if len(blocking) == 0 {
		blocking = model.DefaultBlockingStatuses
	}
	return &Engine{store: s, loc: loc, blocking: blocking}
}

// BlockingStatuses returns the statuses treated as occupying the timeline.
func (e *Engine) BlockingStatuses() []model.BookingStatus { return e.blocking }

// Location returns the engine's local time zone.
func (e *Engine) Location() *time.Location { return e.loc }

// Check runs every availability rule for [start, end) in order and reports
// the first that fails.
func (e *Engine) Check(ctx context.Context, res *model.Resource, start, end time.Time) (Verdict, error) {
	if !end.After(start) {
		return unavailable(ReasonInvalidWindow, "end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)), nil
	}
	if !res.Active {
		return unavailable(ReasonInactive, "resource %d is not active", res.ID), nil
	}

	if !e.withinHours(res, start, end) {
		opens, closes, _ := res.Hours()
		return unavailable(ReasonOutsideHours, "resource %d is open %s-%s", res.ID, opens, closes), nil
	}

	minutes := end.Sub(start).Minutes()
	if minutes < float64(res.MinBookingMinutes) {
		return unavailable(ReasonTooShort, "%.0f minutes is below the %d minute minimum", minutes, res.MinBookingMinutes), nil
	}
	if res.MaxBookingMinutes != nil && minutes > float64(*res.MaxBookingMinutes) {
		return unavailable(ReasonTooLong, "%.0f minutes exceeds the %d minute maximum", minutes, *res.MaxBookingMinutes), nil
	}

	overlapping, err := e.HasOverlappingBooking(ctx, res, start, end, nil)
	if err != nil {
		return Verdict{}, err
	}
	if overlapping {
		// Distinguish a direct clash from one caused by the buffer alone.
		if res.BufferMinutes > 0 {
			direct, err := e.store.HasOverlappingBooking(ctx, e.query(res.ID, start, end, 0, nil))
			if err != nil {
				return Verdict{}, fmt.Errorf("failed to check overlap: %w", err)
			}
			if !direct {
				return unavailable(ReasonBufferOverlap, "window is within the %d minute buffer of another booking", res.BufferMinutes), nil
			}
		}
		return unavailable(ReasonOverlap, "window overlaps another booking"), nil
	}

	return Verdict{Available: true}, nil
}

// IsAvailable reports whether [start, end) passes every availability rule.
func (e *Engine) IsAvailable(ctx context.Context, res *model.Resource, start, end time.Time) (bool, error) {
	v, err := e.Check(ctx, res, start, end)
	if err != nil {
		return false, err
	}
	return v.Available, nil
}

// HasOverlappingBooking reports whether a blocking booking intersects
// [start, end) widened by the resource buffer on both sides. excludeID
// leaves one booking out, for re-validating a booking against the others.
func (e *Engine) HasOverlappingBooking(ctx context.Context, res *model.Resource, start, end time.Time, excludeID *int64) (bool, error) {
	found, err := e.store.HasOverlappingBooking(ctx, e.query(res.ID, start, end, res.Buffer(), excludeID))
	if err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return found, nil
}

// OverlapQuery returns the buffered predicate used for [start, end), for
// callers that must re-run it inside their own transaction.
func (e *Engine) OverlapQuery(res *model.Resource, start, end time.Time) store.OverlapQuery {
	return e.query(res.ID, start, end, res.Buffer(), nil)
}

func (e *Engine) query(resourceID int64, start, end time.Time, buffer time.Duration, excludeID *int64) store.OverlapQuery {
	return store.OverlapQuery{
		ResourceID: resourceID,
		Start:      start.Add(-buffer),
		End:        end.Add(buffer),
		Statuses:   e.blocking,
		ExcludeID:  excludeID,
	}
}

func (e *Engine) withinHours(res *model.Resource, start, end time.Time) bool {
	opens, closes, ok := res.Hours()
	if !ok {
		return true
	}
	day := model.StartOfDay(start, e.loc)
	return !start.Before(opens.On(day)) && !end.After(closes.On(day))
}

// dayBounds returns the bookable window of the calendar day containing date.
func (e *Engine) dayBounds(res *model.Resource, date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, e.loc)
	if opens, closes, ok := res.Hours(); ok {
		return opens.On(day), closes.On(day)
	}
	return day, day.AddDate(0, 0, 1)
}

// AvailableSlots enumerates back-to-back slots of slotMinutes on date that
// do not intersect any blocking booking widened by the buffer. Gaps shorter
// than a slot are skipped. date's year, month and day are read as a local
// calendar day.
//
// The day's bookings are loaded before returning; the sequence itself does
// no I/O and may be ranged over more than once.
func (e *Engine) AvailableSlots(ctx context.Context, res *model.Resource, date time.Time, slotMinutes int) (iter.Seq[Slot], error) {
	dayStart, dayEnd := e.dayBounds(res, date)
	if slotMinutes <= 0 {
		return nil, bookerr.New(bookerr.InvalidRequest, "slot_minutes", "slot length must be positive, got %d", slotMinutes)
	}
	// Checked before converting to a Duration, which overflows for huge values.
	if window := int(dayEnd.Sub(dayStart) / time.Minute); slotMinutes > window {
		return nil, bookerr.New(bookerr.InvalidRequest, "slot_minutes", "slot length %d exceeds the %d minute day window", slotMinutes, window)
	}
	slot := time.Duration(slotMinutes) * time.Minute
	buffer := res.Buffer()

	bookings, err := e.store.ListBlockingBookings(ctx, res.ID, dayStart.Add(-buffer), dayEnd.Add(buffer), e.blocking)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return func(yield func(Slot) bool) {
		cursor := dayStart
		emit := func(limit time.Time) bool {
			for !cursor.Add(slot).After(limit) {
				if !yield(Slot{Start: cursor, End: cursor.Add(slot)}) {
					return false
				}
				cursor = cursor.Add(slot)
			}
			return true
		}

		for _, b := range bookings {
			gapEnd := b.StartTime.Add(-buffer)
			if gapEnd.After(dayEnd) {
				gapEnd = dayEnd
			}
			if !emit(gapEnd) {
				return
			}
			if next := b.EndTime.Add(buffer); next.After(cursor) {
				cursor = next
			}
		}
		emit(dayEnd)
	}, nil
}
