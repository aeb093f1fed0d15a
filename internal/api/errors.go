package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spacebooking-backend/internal/bookerr"
)

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

var kindStatus = map[bookerr.Kind]int{
	bookerr.InvalidRequest:      http.StatusBadRequest,
	bookerr.NotFound:            http.StatusNotFound,
	bookerr.SlotUnavailable:     http.StatusConflict,
	bookerr.ConcurrencyConflict: http.StatusConflict,
	bookerr.InvalidTransition:   http.StatusConflict,
	bookerr.CreditExhausted:     http.StatusUnprocessableEntity,
	bookerr.RateNotConfigured:   http.StatusUnprocessableEntity,
	bookerr.CancellationClosed:  http.StatusUnprocessableEntity,
}

// writeError renders err. Business rejections keep their kind and reason;
// anything else is an internal error whose details stay in the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	var e *bookerr.Error
	if errors.As(err, &e) {
		status, ok := kindStatus[e.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: string(e.Kind), Reason: e.Reason, Message: e.Message})
		return
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal server error"})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: string(bookerr.InvalidRequest), Message: err.Error()})
}

// idParam reads a positive integer path parameter.
func (h *Handler) idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
			Error:   string(bookerr.InvalidRequest),
			Message: "invalid " + name,
		})
		return 0, false
	}
	return id, true
}
