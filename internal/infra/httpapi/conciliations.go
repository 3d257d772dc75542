package httpapi

import (
	"net/http"
	"time"

	"billing_collections/internal/app"

	"github.com/gin-gonic/gin"
)

type createConciliationRequest struct {
	PaymentID  int64      `json:"payment_id"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes"`
	VerifiedAt *time.Time `json:"verified_at"`
	ReviewedBy string     `json:"reviewed_by"`
}

func (s *Server) createConciliation(c *gin.Context) {
	var req createConciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	conc, err := s.svc.Conciliations.Create(c.Request.Context(), app.CreateConciliationInput{
		PaymentID:  req.PaymentID,
		Status:     req.Status,
		Notes:      req.Notes,
		VerifiedAt: req.VerifiedAt,
		ReviewedBy: req.ReviewedBy,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toConciliationResponse(conc))
}

func (s *Server) getConciliation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	conc, err := s.svc.Conciliations.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConciliationResponse(conc))
}

type updateConciliationRequest struct {
	Status     *string    `json:"status"`
	Notes      *string    `json:"notes"`
	VerifiedAt *time.Time `json:"verified_at"`
	ReviewedBy *string    `json:"reviewed_by"`
}

func (s *Server) updateConciliation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateConciliationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	conc, err := s.svc.Conciliations.Update(c.Request.Context(), id, app.UpdateConciliationInput{
		Status:     req.Status,
		Notes:      req.Notes,
		VerifiedAt: req.VerifiedAt,
		ReviewedBy: req.ReviewedBy,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConciliationResponse(conc))
}

func (s *Server) deleteConciliation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Conciliations.Delete(c.Request.Context(), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) settleConciliation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := s.svc.Conciliations.Resettle(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettlementResponse(res))
}
