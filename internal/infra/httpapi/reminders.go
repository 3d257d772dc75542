package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"billing_collections/internal/app"
	"billing_collections/internal/domain/message"

	"github.com/gin-gonic/gin"
)

// listPendingReminders serves the dispatch poller. The optional
// lookahead_minutes query overrides the configured window.
func (s *Server) listPendingReminders(c *gin.Context) {
	var lookahead time.Duration
	if raw := c.Query("lookahead_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid lookahead_minutes")
			return
		}
		lookahead = time.Duration(n) * time.Minute
	}
	rs, err := s.svc.Dispatch.ListDue(c.Request.Context(), lookahead)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toReminderResponses(rs)})
}

type ackReminderRequest struct {
	Status          string         `json:"status" binding:"required"`
	ResponsePayload map[string]any `json:"response_payload"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at"`
}

func (s *Server) acknowledgeReminder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ackReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	r, err := s.svc.Dispatch.Acknowledge(c.Request.Context(), id, app.AckInput{
		Status:          req.Status,
		ResponsePayload: req.ResponsePayload,
		AcknowledgedAt:  req.AcknowledgedAt,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReminderResponse(r))
}

func (s *Server) renderReminderMessage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	text, err := s.svc.Dispatch.RenderMessage(c.Request.Context(), id)
	if errors.Is(err, message.ErrTemplateMissing) {
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminder_id": id, "message": text})
}
