package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"spacebooking-backend/internal/availability"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/parse"
	"spacebooking-backend/internal/store"
)

// ListResources handles GET /api/resources?type=room&active=true.
func (h *Handler) ListResources(c *gin.Context) {
	filter := store.ResourceFilter{Type: model.ResourceType(c.Query("type"))}
	if filter.Type != "" && !filter.Type.Valid() {
		h.badRequest(c, fmt.Errorf("unknown resource type %q", filter.Type))
		return
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.badRequest(c, fmt.Errorf("invalid active flag %q", raw))
			return
		}
		filter.ActiveOnly = active
	}

	resources, err := h.Resources.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resources)
}

// GetResource handles GET /api/resources/:id.
func (h *Handler) GetResource(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

// RetireResource handles DELETE /api/resources/:id.
func (h *Handler) RetireResource(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Resources.Retire(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAvailability handles GET /api/resources/:id/availability?start=&end=.
func (h *Handler) GetAvailability(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	start, end, ok := h.window(c)
	if !ok {
		return
	}

	verdict, err := h.Availability.Check(c.Request.Context(), res, start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// maxSlotMinutes bounds slot_minutes to one calendar day.
const maxSlotMinutes = 24 * 60

type slotsResponse struct {
	ResourceID  int64               `json:"resource_id"`
	Date        string              `json:"date"`
	SlotMinutes int                 `json:"slot_minutes"`
	Slots       []availability.Slot `json:"slots"`
}

// GetSlots handles GET /api/resources/:id/slots?date=2030-03-04&slot_minutes=30.
func (h *Handler) GetSlots(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	date, err := parse.Date(c.Query("date"), h.loc)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	slotMinutes := h.slotMinutes
	if raw := c.Query("slot_minutes"); raw != "" {
		if slotMinutes, err = strconv.Atoi(raw); err != nil || slotMinutes <= 0 || slotMinutes > maxSlotMinutes {
			h.badRequest(c, fmt.Errorf("invalid slot_minutes %q", raw))
			return
		}
	}

	seq, err := h.Availability.AvailableSlots(c.Request.Context(), res, date, slotMinutes)
	if err != nil {
		h.writeError(c, err)
		return
	}
	slots := slices.Collect(seq)
	if slots == nil {
		slots = []availability.Slot{}
	}
	c.JSON(http.StatusOK, slotsResponse{
		ResourceID:  res.ID,
		Date:        date.Format(time.DateOnly),
		SlotMinutes: slotMinutes,
		Slots:       slots,
	})
}

// GetPrice handles GET /api/resources/:id/price?start=&end=&member_id=.
func (h *Handler) GetPrice(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	start, end, ok := h.window(c)
	if !ok {
		return
	}
	var memberID *int64
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.badRequest(c, fmt.Errorf("invalid member_id %q", raw))
			return
		}
		memberID = &id
	}

	price, err := h.Pricing.CalculatePrice(c.Request.Context(), res, start, end, memberID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, price)
}

func (h *Handler) resource(c *gin.Context) (*model.Resource, bool) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return nil, false
	}
	res, err := h.Resources.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return res, true
}

func (h *Handler) window(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := parse.Instant(c.Query("start"), h.loc)
	if err != nil {
		h.badRequest(c, fmt.Errorf("start: %w", err))
		return time.Time{}, time.Time{}, false
	}
	end, err := parse.Instant(c.Query("end"), h.loc)
	if err != nil {
		h.badRequest(c, fmt.Errorf("end: %w", err))
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
