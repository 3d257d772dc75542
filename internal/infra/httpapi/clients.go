package httpapi

import (
	"net/http"
	"strings"

	"billing_collections/internal/app"
	"billing_collections/internal/domain/client"

	"github.com/gin-gonic/gin"
)

type createClientRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	TelegramChatID int64  `json:"telegram_chat_id"`
	Status         string `json:"status"`
}

func (s *Server) createClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cl, err := s.svc.Clients.Create(c.Request.Context(), app.CreateClientInput{
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		TelegramChatID: req.TelegramChatID,
		Status:         req.Status,
	})
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toClientResponse(cl))
}

func (s *Server) getClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cl, err := s.svc.Clients.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(cl))
}

type updateClientRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) updateClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cl, err := s.svc.Clients.SetStatus(c.Request.Context(), id, client.Status(strings.ToLower(req.Status)))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toClientResponse(cl))
}

func (s *Server) deleteClient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Clients.Delete(c.Request.Context(), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
