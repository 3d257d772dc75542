package httpapi

import (
	"net/http"
	"time"

	"billing_collections/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createPaymentRequest struct {
	ClientID   int64           `json:"client_id"`
	ContractID *int64          `json:"contract_id"`
	ReminderID *int64          `json:"reminder_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Channel    string          `json:"channel"`
	Status     string          `json:"status"`
	Reference  string          `json:"reference"`
	PaidAt     *time.Time      `json:"paid_at"`
	Metadata   map[string]any  `json:"metadata"`
}

func (s *Server) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := s.svc.Payments.Create(c.Request.Context(), app.CreatePaymentInput{
		ClientID:   req.ClientID,
		ContractID: req.ContractID,
		ReminderID: req.ReminderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Channel:    req.Channel,
		Status:     req.Status,
		Reference:  req.Reference,
		PaidAt:     req.PaidAt,
		Metadata:   req.Metadata,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPaymentResponse(p))
}

func (s *Server) getPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := s.svc.Payments.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(p))
}

type updatePaymentRequest struct {
	ContractID *int64           `json:"contract_id"`
	ReminderID *int64           `json:"reminder_id"`
	Amount     *decimal.Decimal `json:"amount"`
	Currency   *string          `json:"currency"`
	Channel    *string          `json:"channel"`
	Status     *string          `json:"status"`
	Reference  *string          `json:"reference"`
	PaidAt     *time.Time       `json:"paid_at"`
	Metadata   map[string]any   `json:"metadata"`
}

func (s *Server) updatePayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := s.svc.Payments.Update(c.Request.Context(), id, app.UpdatePaymentInput{
		ContractID: req.ContractID,
		ReminderID: req.ReminderID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Channel:    req.Channel,
		Status:     req.Status,
		Reference:  req.Reference,
		PaidAt:     req.PaidAt,
		Metadata:   req.Metadata,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(p))
}

func (s *Server) deletePayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Payments.Delete(c.Request.Context(), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
