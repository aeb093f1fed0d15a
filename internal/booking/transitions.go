package booking

import (
	"time"

	"spacebooking-backend/internal/bookerr"
	"spacebooking-backend/internal/model"
)

// Action is a lifecycle operation on an existing booking.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

func invalid(b *model.Booking, a Action, reason string) error {
	return bookerr.New(bookerr.InvalidTransition, reason, "cannot %s booking %s in status %s", a, b.Code, b.Status)
}

// apply performs a guarded state change on b. b is left untouched when the
// guard rejects the action.
func apply(b *model.Booking, a Action, now time.Time, reason string) error {
	if b.Status.Terminal() {
		return invalid(b, a, "terminal")
	}

	switch a {
	case ActionConfirm:
		if b.Status != model.StatusPending {
			return invalid(b, a, "not_pending")
		}
		b.Status = model.StatusConfirmed

	case ActionReject:
		if b.Status != model.StatusPending {
			return invalid(b, a, "not_pending")
		}
		b.Status = model.StatusRejected
		b.CancellationReason = reason

	case ActionCancel:
		b.Status = model.StatusCancelled
		b.CancelledAt = &now
		b.CancellationReason = reason

	case ActionCheckIn:
		if b.Status != model.StatusConfirmed {
			return invalid(b, a, "not_confirmed")
		}
		if b.CheckedInAt != nil {
			return invalid(b, a, "already_checked_in")
		}
		b.CheckedInAt = &now

	case ActionCheckOut:
		if b.Status != model.StatusConfirmed {
			return invalid(b, a, "not_confirmed")
		}
		if b.CheckedInAt == nil {
			return invalid(b, a, "not_checked_in")
		}
		b.CheckedOutAt = &now
		return apply(b, ActionComplete, now, reason)

	case ActionComplete:
		if b.Status != model.StatusConfirmed {
			return invalid(b, a, "not_confirmed")
		}
		b.Status = model.StatusCompleted
		if b.CheckedOutAt == nil {
			b.CheckedOutAt = &now
		}

	case ActionNoShow:
		if b.Status != model.StatusConfirmed {
			return invalid(b, a, "not_confirmed")
		}
		if b.CheckedInAt != nil {
			return invalid(b, a, "checked_in")
		}
		b.Status = model.StatusNoShow

	default:
		return bookerr.New(bookerr.InvalidRequest, "action", "unknown action %q", a)
	}
	return nil
}
