// Package booking orchestrates booking creation and lifecycle transitions.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spacebooking-backend/internal/availability"
	"spacebooking-backend/internal/bookerr"
	"spacebooking-backend/internal/credit"
	"spacebooking-backend/internal/events"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/pricing"
	"spacebooking-backend/internal/store"
)

// Resources looks up bookable resources.
type Resources interface {
	Get(ctx context.Context, id int64) (*model.Resource, error)
}

// Parties checks that a bookable party exists.
type Parties interface {
	Resolve(ctx context.Context, p model.Party) error
}

// Options carries the optional attributes of a new booking.
type Options struct {
	Attendees       int
	Notes           string
	ParentBookingID *int64
}

// Request asks for a booking of one resource.
type Request struct {
	ResourceID int64
	Party      model.Party
	Start      time.Time
	End        time.Time
	Options
}

// Config holds the lifecycle rules.
type Config struct {
	AllowPastBookings bool
	// CancellationWindow is how long before start CancelBooking stops
	// accepting cancellations. Zero disables the guard.
	CancellationWindow time.Duration
	Location           *time.Location
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Store        store.Store
	Resources    Resources
	Parties      Parties
	Availability *availability.Engine
	Pricing      *pricing.Engine
	Credits      *credit.Ledger
	Events       events.Publisher
	Clock        clockwork.Clock
	Codes        CodeGenerator
	Log          *logrus.Logger
}

// Manager is the booking lifecycle manager.
type Manager struct {
	Deps
	cfg    Config
	tracer trace.Tracer
}

// NewManager creates a manager. Missing clock, code generator and event
// publisher fall back to the real clock, "BK" codes and a no-op publisher.
func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Codes == nil {
		deps.Codes = UUIDCodes("BK")
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Manager{
		Deps:   deps,
		cfg:    cfg,
		tracer: otel.Tracer("spacebooking-backend/internal/booking"),
	}
}

// CreateBooking reserves a resource for [req.Start, req.End). On success the
// booking row and its credit deductions are stored together; on failure no
// credits stay debited.
func (m *Manager) CreateBooking(ctx context.Context, req Request) (*model.Booking, error) {
	ctx, span := m.tracer.Start(ctx, "booking.Create", trace.WithAttributes(
		attribute.Int64("resource.id", req.ResourceID),
		attribute.String("party", req.Party.String()),
	))
	defer span.End()

	b, err := m.createBooking(ctx, req)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.code", b.Code))
	return b, nil
}

func (m *Manager) createBooking(ctx context.Context, req Request) (*model.Booking, error) {
	if err := req.Party.Validate(); err != nil {
		return nil, bookerr.New(bookerr.InvalidRequest, "party", "%v", err)
	}
	if req.Attendees == 0 {
		req.Attendees = 1
	}
	if req.Attendees < 0 {
		return nil, bookerr.New(bookerr.InvalidRequest, "attendees", "attendees must be positive")
	}
	if !req.End.After(req.Start) {
		return nil, bookerr.New(bookerr.SlotUnavailable, availability.ReasonInvalidWindow, "end is not after start")
	}
	if !m.cfg.AllowPastBookings && req.Start.Before(m.Clock.Now()) {
		return nil, bookerr.New(bookerr.SlotUnavailable, "in_past", "start %s is in the past", req.Start.Format(time.RFC3339))
	}

	if err := m.Parties.Resolve(ctx, req.Party); err != nil {
		return nil, err
	}
	res, err := m.Resources.Get(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if res.Capacity != nil && req.Attendees > *res.Capacity {
		return nil, bookerr.New(bookerr.InvalidRequest, "capacity", "%d attendees exceed capacity %d", req.Attendees, *res.Capacity)
	}

	b, err := m.tryCreate(ctx, res, req)
	if errors.Is(err, store.ErrConflict) {
		m.Log.WithFields(logrus.Fields{"resource_id": res.ID, "error": err}).Warn("booking insert lost a race, retrying once")
		b, err = m.tryCreate(ctx, res, req)
		if errors.Is(err, store.ErrConflict) {
			return nil, bookerr.Wrap(bookerr.ConcurrencyConflict, "retry_exhausted", err)
		}
	}
	if err != nil {
		return nil, err
	}

	m.Log.WithFields(logrus.Fields{
		"booking_id":   b.ID,
		"code":         b.Code,
		"resource_id":  b.ResourceID,
		"party":        b.Party().String(),
		"status":       b.Status,
		"total":        b.TotalPrice.String(),
		"credits_used": b.CreditsUsed.String(),
	}).Info("booking created")
	m.publish(ctx, events.FromBooking(events.BookingCreated, b, m.Clock.Now()))
	return b, nil
}

// tryCreate runs one availability, pricing, credit and insert pass.
// store.ErrConflict is returned unwrapped so the caller can retry.
func (m *Manager) tryCreate(ctx context.Context, res *model.Resource, req Request) (*model.Booking, error) {
	verdict, err := m.Availability.Check(ctx, res, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if !verdict.Available {
		return nil, verdict.Err()
	}

	memberID, isMember := req.Party.MemberID()
	var member *int64
	if isMember {
		member = &memberID
	}
	price, err := m.Pricing.CalculatePrice(ctx, res, req.Start, req.End, member)
	if err != nil {
		return nil, err
	}

	var drawn []model.CreditTransaction
	if isMember && price.CreditsUsed.IsPositive() {
		date := model.DateOf(req.Start, m.cfg.Location)
		if _, err := m.Credits.EnsureMonthlyAllowance(ctx, memberID, res.Type, date, price.MonthlyAllowance, price.PlanID); err != nil {
			return nil, err
		}

		drawn, err = m.Credits.Draw(ctx, memberID, res.Type, date, price.CreditsUsed)
		if errors.Is(err, bookerr.ErrCreditExhausted) {
			// Another booking spent the credits since pricing; price again
			// against what is left.
			m.Log.WithField("member_id", memberID).Info("credits changed during booking, re-pricing")
			verdict, err = m.Availability.Check(ctx, res, req.Start, req.End)
			if err != nil {
				return nil, err
			}
			if !verdict.Available {
				return nil, verdict.Err()
			}
			price, err = m.Pricing.CalculatePrice(ctx, res, req.Start, req.End, member)
			if err != nil {
				return nil, err
			}
			drawn, err = m.Credits.Draw(ctx, memberID, res.Type, date, price.CreditsUsed)
		}
		if err != nil {
			return nil, err
		}
	}

	b := m.newBooking(res, req, price)
	err = m.Store.CreateBooking(ctx, b, m.Availability.OverlapQuery(res, req.Start, req.End), drawn)
	if err != nil {
		if relErr := m.Credits.Release(ctx, drawn); relErr != nil {
			m.Log.WithError(relErr).WithField("code", b.Code).Error("failed to release credits after failed insert")
		}
		switch {
		case errors.Is(err, store.ErrOverlap):
			return nil, bookerr.New(bookerr.SlotUnavailable, availability.ReasonOverlap, "window was taken by a concurrent booking")
		case errors.Is(err, store.ErrNotFound):
			return nil, bookerr.New(bookerr.NotFound, "resource", "resource %d not found", res.ID)
		case errors.Is(err, store.ErrConflict):
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}
	return b, nil
}

func (m *Manager) newBooking(res *model.Resource, req Request, price *pricing.Breakdown) *model.Booking {
	status := model.StatusConfirmed
	if res.RequiresApproval {
		status = model.StatusPending
	}
	payment := model.PaymentUnpaid
	if price.TotalPrice.IsZero() {
		payment = model.PaymentNotDue
	}
	return &model.Booking{
		Code:            m.Codes(),
		ResourceID:      res.ID,
		PartyKind:       req.Party.Kind,
		PartyID:         req.Party.ID,
		StartTime:       req.Start,
		EndTime:         req.End,
		BlockedUntil:    req.End.Add(res.Buffer()),
		Status:          status,
		UnitPrice:       price.UnitPrice,
		PriceUnit:       price.PriceUnit,
		Quantity:        price.Quantity,
		DiscountAmount:  price.DiscountAmount,
		TotalPrice:      price.TotalPrice,
		Currency:        price.Currency,
		CreditsUsed:     price.CreditsUsed,
		PaymentStatus:   payment,
		Attendees:       req.Attendees,
		Notes:           req.Notes,
		ParentBookingID: req.ParentBookingID,
	}
}

// Get returns a booking by id.
func (m *Manager) Get(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := m.Store.GetBooking(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, bookerr.New(bookerr.NotFound, "booking", "booking %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", id, err)
	}
	return b, nil
}

// Confirm moves a pending booking to confirmed.
func (m *Manager) Confirm(ctx context.Context, id int64) (*model.Booking, error) {
	return m.transition(ctx, id, ActionConfirm, "", events.BookingConfirmed)
}

// Reject declines a pending booking and returns its credits.
func (m *Manager) Reject(ctx context.Context, id int64, reason string) (*model.Booking, error) {
	b, err := m.transition(ctx, id, ActionReject, reason, "")
	if err != nil {
		return nil, err
	}
	refunded, err := m.Credits.RefundBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	e := events.FromBooking(events.BookingRejected, b, m.Clock.Now())
	e.CreditsRefunded = refunded
	m.publish(ctx, e)
	return b, nil
}

// Cancel moves a pending or confirmed booking to cancelled. It applies no
// cancellation window and leaves credits untouched; CreditsUsed on the
// result tells the caller what to refund.
func (m *Manager) Cancel(ctx context.Context, id int64, reason string) (*model.Booking, error) {
	return m.transition(ctx, id, ActionCancel, reason, events.BookingCancelled)
}

// CancelBooking is the member-facing cancellation: it refuses once the
// cancellation window before start has been reached, cancels, and refunds
// the booking's credits.
func (m *Manager) CancelBooking(ctx context.Context, id int64, reason string) (*model.Booking, decimal.Decimal, error) {
	b, err := m.Get(ctx, id)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if m.cfg.CancellationWindow > 0 {
		deadline := b.StartTime.Add(-m.cfg.CancellationWindow)
		if !m.Clock.Now().Before(deadline) {
			return nil, decimal.Zero, bookerr.New(bookerr.CancellationClosed, "window",
				"booking %s can only be cancelled until %s", b.Code, deadline.Format(time.RFC3339))
		}
	}

	b, err = m.transition(ctx, id, ActionCancel, reason, "")
	if err != nil {
		return nil, decimal.Zero, err
	}
	refunded, err := m.Credits.RefundBooking(ctx, b.ID)
	if err != nil {
		return b, decimal.Zero, err
	}
	e := events.FromBooking(events.BookingCancelled, b, m.Clock.Now())
	e.CreditsRefunded = refunded
	m.publish(ctx, e)
	return b, refunded, nil
}

// CheckIn records arrival on a confirmed booking.
func (m *Manager) CheckIn(ctx context.Context, id int64) (*model.Booking, error) {
	return m.transition(ctx, id, ActionCheckIn, "", events.BookingCheckedIn)
}

// CheckOut records departure on a checked-in booking and completes it.
func (m *Manager) CheckOut(ctx context.Context, id int64) (*model.Booking, error) {
	return m.transition(ctx, id, ActionCheckOut, "", events.BookingCompleted)
}

// Complete marks a confirmed booking as completed.
func (m *Manager) Complete(ctx context.Context, id int64) (*model.Booking, error) {
	return m.transition(ctx, id, ActionComplete, "", events.BookingCompleted)
}

// MarkNoShow marks a confirmed booking nobody checked in to.
func (m *Manager) MarkNoShow(ctx context.Context, id int64) (*model.Booking, error) {
	return m.transition(ctx, id, ActionNoShow, "", events.BookingNoShow)
}

// RefundCredits returns whatever credits a booking still holds.
func (m *Manager) RefundCredits(ctx context.Context, id int64) (decimal.Decimal, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return decimal.Zero, err
	}
	return m.Credits.RefundBooking(ctx, id)
}

// transition applies a under the booking's row lock. eventType, when set,
// is published after the change commits.
func (m *Manager) transition(ctx context.Context, id int64, a Action, reason, eventType string) (*model.Booking, error) {
	ctx, span := m.tracer.Start(ctx, "booking."+string(a), trace.WithAttributes(attribute.Int64("booking.id", id)))
	defer span.End()

	now := m.Clock.Now().UTC()
	b, err := m.Store.UpdateBooking(ctx, id, func(b *model.Booking) error {
		return apply(b, a, now, reason)
	})
	if errors.Is(err, store.ErrNotFound) {
		err = bookerr.New(bookerr.NotFound, "booking", "booking %d not found", id)
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	m.Log.WithFields(logrus.Fields{"booking_id": b.ID, "code": b.Code, "action": a, "status": b.Status}).Info("booking updated")
	if eventType != "" {
		m.publish(ctx, events.FromBooking(eventType, b, now))
	}
	return b, nil
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if err := m.Events.Publish(ctx, e); err != nil {
		m.Log.WithError(err).WithFields(logrus.Fields{"code": e.Code, "type": e.Type}).Warn("failed to publish booking event")
	}
}

func recordError(span trace.Span, err error) {
	if _, ok := bookerr.KindOf(err); ok {
		span.SetAttributes(attribute.String("booking.rejection", err.Error()))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
