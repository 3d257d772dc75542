package httpapi

import (
	"net/http"
	"strings"

	"billing_collections/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createContractRequest struct {
	ClientID        *int64          `json:"client_id"`
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	BillingCycle    string          `json:"billing_cycle"`
	NextDueDate     *string         `json:"next_due_date"`
	DueDay          *int            `json:"due_day"`
	GracePeriodDays int             `json:"grace_period_days"`
	Metadata        map[string]any  `json:"metadata"`
}

func (s *Server) createContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	due, err := parseDate("next_due_date", req.NextDueDate)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	ct, err := s.svc.Contracts.Create(c.Request.Context(), app.CreateContractInput{
		ClientID:        req.ClientID,
		Name:            strings.TrimSpace(req.Name),
		Amount:          req.Amount,
		Currency:        req.Currency,
		BillingCycle:    req.BillingCycle,
		NextDueDate:     due,
		DueDay:          req.DueDay,
		GracePeriodDays: req.GracePeriodDays,
		Metadata:        req.Metadata,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(ct))
}

func (s *Server) getContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ct, err := s.svc.Contracts.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(ct))
}

type updateContractRequest struct {
	Name            *string          `json:"name"`
	Amount          *decimal.Decimal `json:"amount"`
	Currency        *string          `json:"currency"`
	BillingCycle    *string          `json:"billing_cycle"`
	NextDueDate     *string          `json:"next_due_date"`
	GracePeriodDays *int             `json:"grace_period_days"`
	Metadata        map[string]any   `json:"metadata"`
}

func (s *Server) updateContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	due, err := parseDate("next_due_date", req.NextDueDate)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	ct, err := s.svc.Contracts.Update(c.Request.Context(), id, app.UpdateContractInput{
		Name:            req.Name,
		Amount:          req.Amount,
		Currency:        req.Currency,
		BillingCycle:    req.BillingCycle,
		NextDueDate:     due,
		GracePeriodDays: req.GracePeriodDays,
		Metadata:        req.Metadata,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(ct))
}

func (s *Server) deleteContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Contracts.Delete(c.Request.Context(), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assignContractRequest struct {
	ClientID int64 `json:"client_id" binding:"required"`
}

func (s *Server) assignContract(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req assignContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "client_id is required")
		return
	}
	ct, err := s.svc.Contracts.Assign(c.Request.Context(), id, req.ClientID)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(ct))
}

func (s *Server) listContractReminders(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rs, err := s.svc.Contracts.ListReminders(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toReminderResponses(rs)})
}
