package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"billing_collections/internal/domain/client"

	"github.com/sirupsen/logrus"
)

type ClientService struct {
	clients client.Repository
	logger  *logrus.Entry
}

func NewClientService(cr client.Repository, logger *logrus.Entry) *ClientService {
	return &ClientService{clients: cr, logger: logger.WithField("component", "client_service")}
}

type CreateClientInput struct {
	Name           string
	Email          string
	Phone          string
	TelegramChatID int64
	Status         string
}

func (s *ClientService) Create(ctx context.Context, in CreateClientInput) (*client.Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	status := client.StatusActive
	if in.Status != "" {
		status = client.Status(strings.ToLower(in.Status))
		if !status.Valid() {
			return nil, invalid("status", fmt.Sprintf("unknown client status %q", in.Status))
		}
	}

	c := &client.Client{
		Name:           name,
		Email:          nullString(in.Email),
		Phone:          nullString(in.Phone),
		TelegramChatID: sql.NullInt64{Int64: in.TelegramChatID, Valid: in.TelegramChatID != 0},
		Status:         status,
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	s.logger.WithField("client_id", c.ID).Info("Client created")
	return c, nil
}

func (s *ClientService) Get(ctx context.Context, id int64) (*client.Client, error) {
	c, err := s.clients.GetByID(ctx, id)
	return c, classify(err)
}

func (s *ClientService) SetStatus(ctx context.Context, id int64, status client.Status) (*client.Client, error) {
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown client status %q", status))
	}
	c, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	c.Status = status
	if err := s.clients.Update(ctx, c); err != nil {
		return nil, classify(err)
	}
	return c, nil
}

func (s *ClientService) Delete(ctx context.Context, id int64) error {
	if err := s.clients.SoftDelete(ctx, id); err != nil {
		return classify(err)
	}
	s.logger.WithField("client_id", id).Info("Client soft-deleted")
	return nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
