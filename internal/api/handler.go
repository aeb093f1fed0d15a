package api

import (
	"time"

	"github.com/sirupsen/logrus"

	"spacebooking-backend/internal/availability"
	"spacebooking-backend/internal/booking"
	"spacebooking-backend/internal/credit"
	"spacebooking-backend/internal/pricing"
	"spacebooking-backend/internal/registry"
)

// Services are the booking core components exposed over HTTP.
type Services struct {
	Resources    *registry.Registry
	Availability *availability.Engine
	Pricing      *pricing.Engine
	Bookings     *booking.Manager
	Credits      *credit.Ledger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	Services
	loc         *time.Location
	slotMinutes int
	log         *logrus.Logger
}

// NewHandler creates a new API handler. Timestamps without an offset and
// calendar dates are read in loc.
func NewHandler(s Services, loc *time.Location, slotMinutes int, log *logrus.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if slotMinutes <= 0 {
		slotMinutes = 60
	}
	return &Handler{
		Services:    s,
		loc:         loc,
		slotMinutes: slotMinutes,
		log:         log,
	}
}
