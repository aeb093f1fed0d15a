package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/parse"
)

type creditsResponse struct {
	MemberID     int64              `json:"member_id"`
	ResourceType model.ResourceType `json:"resource_type"`
	Date         string             `json:"date"`
	Available    decimal.Decimal    `json:"available"`
}

// GetMemberCredits handles GET /api/members/:id/credits?resource_type=room&date=.
// date defaults to today.
func (h *Handler) GetMemberCredits(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	resourceType := model.ResourceType(c.Query("resource_type"))
	if !resourceType.Valid() {
		h.badRequest(c, fmt.Errorf("unknown resource_type %q", resourceType))
		return
	}
	date := model.StartOfDay(time.Now(), h.loc)
	if raw := c.Query("date"); raw != "" {
		var err error
		if date, err = parse.Date(raw, h.loc); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	available, err := h.Credits.AvailableForMember(c.Request.Context(), id, resourceType, date)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, creditsResponse{
		MemberID:     id,
		ResourceType: resourceType,
		Date:         date.Format(time.DateOnly),
		Available:    available,
	})
}
