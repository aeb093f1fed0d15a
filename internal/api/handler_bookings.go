package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spacebooking-backend/internal/booking"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/parse"
)

type createBookingRequest struct {
	ResourceID      int64       `json:"resource_id" binding:"required,gt=0"`
	Party           model.Party `json:"party"`
	Start           string      `json:"start" binding:"required"`
	End             string      `json:"end" binding:"required"`
	Attendees       int         `json:"attendees" binding:"gte=0"`
	Notes           string      `json:"notes" binding:"max=1024"`
	ParentBookingID *int64      `json:"parent_booking_id"`
}

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	start, err := parse.Instant(req.Start, h.loc)
	if err != nil {
		h.badRequest(c, fmt.Errorf("start: %w", err))
		return
	}
	end, err := parse.Instant(req.End, h.loc)
	if err != nil {
		h.badRequest(c, fmt.Errorf("end: %w", err))
		return
	}

	b, err := h.Bookings.CreateBooking(c.Request.Context(), booking.Request{
		ResourceID: req.ResourceID,
		Party:      req.Party,
		Start:      start,
		End:        end,
		Options: booking.Options{
			Attendees:       req.Attendees,
			Notes:           req.Notes,
			ParentBookingID: req.ParentBookingID,
		},
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GetBooking handles GET /api/bookings/:id.
func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	b, err := h.Bookings.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"max=512"`
}

// bindReason reads an optional {"reason": "..."} body.
func (h *Handler) bindReason(c *gin.Context) (string, bool) {
	var req reasonRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return "", false
	}
	return req.Reason, true
}

type cancelResponse struct {
	Booking         *model.Booking  `json:"booking"`
	CreditsRefunded decimal.Decimal `json:"credits_refunded"`
}

// CancelBooking handles POST /api/bookings/:id/cancel. Credits drawn by the
// booking are refunded.
func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	reason, ok := h.bindReason(c)
	if !ok {
		return
	}
	b, refunded, err := h.Bookings.CancelBooking(c.Request.Context(), id, reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cancelResponse{Booking: b, CreditsRefunded: refunded})
}

// RejectBooking handles POST /api/bookings/:id/reject.
func (h *Handler) RejectBooking(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	reason, ok := h.bindReason(c)
	if !ok {
		return
	}
	h.respond(c, func(ctx context.Context) (*model.Booking, error) {
		return h.Bookings.Reject(ctx, id, reason)
	})
}

// transitionHandler adapts a lifecycle transition that takes no body.
func (h *Handler) transitionHandler(fn func(ctx context.Context, id int64) (*model.Booking, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.idParam(c, "id")
		if !ok {
			return
		}
		h.respond(c, func(ctx context.Context) (*model.Booking, error) {
			return fn(ctx, id)
		})
	}
}

func (h *Handler) respond(c *gin.Context, fn func(ctx context.Context) (*model.Booking, error)) {
	b, err := fn(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
