package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/reminder"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ContractService struct {
	tx        Transactor
	clients   client.Repository
	contracts contract.Repository
	reminders reminder.Repository
	scheduler *ReminderScheduler
	loc       *time.Location
	logger    *logrus.Entry
	now       func() time.Time
}

func NewContractService(
	tx Transactor,
	clr client.Repository,
	cr contract.Repository,
	rr reminder.Repository,
	scheduler *ReminderScheduler,
	loc *time.Location,
	logger *logrus.Entry,
) *ContractService {
	if loc == nil {
		loc = time.Local
	}
	return &ContractService{
		tx:        tx,
		clients:   clr,
		contracts: cr,
		reminders: rr,
		scheduler: scheduler,
		loc:       loc,
		logger:    logger.WithField("component", "contract_service"),
		now:       time.Now,
	}
}

// CreateContractInput carries a new contract. DueDay is a day of month used
// when no absolute NextDueDate is known (imports).
type CreateContractInput struct {
	ClientID        *int64
	Name            string
	Amount          decimal.Decimal
	Currency        string
	BillingCycle    string
	NextDueDate     *time.Time
	DueDay          *int
	GracePeriodDays int
	Metadata        map[string]any
}

// Create persists the contract and, when it already has a client, schedules
// its first reminder in the same transaction.
func (s *ContractService) Create(ctx context.Context, in CreateContractInput) (*contract.Contract, error) {
	c := &contract.Contract{
		Name:            in.Name,
		Amount:          in.Amount,
		GracePeriodDays: in.GracePeriodDays,
		Metadata:        in.Metadata,
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if err := s.applyBilling(c, in.Amount, in.Currency, in.BillingCycle); err != nil {
		return nil, err
	}
	if in.GracePeriodDays < 0 {
		return nil, invalid("grace_period_days", "must not be negative")
	}
	switch {
	case in.NextDueDate != nil:
		c.NextDueDate = sql.NullTime{Time: *in.NextDueDate, Valid: true}
	case in.DueDay != nil:
		c.NextDueDate = sql.NullTime{Time: contract.NextDueDateFromDayOfMonth(*in.DueDay, s.today()), Valid: true}
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if in.ClientID != nil {
			if _, err := s.clients.GetByID(ctx, *in.ClientID); err != nil {
				return classify(err)
			}
			c.ClientID = sql.NullInt64{Int64: *in.ClientID, Valid: true}
		}
		if err := s.contracts.Create(ctx, c); err != nil {
			return fmt.Errorf("failed to create contract: %w", err)
		}
		_, err := s.scheduler.Schedule(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithField("contract_id", c.ID).Info("Contract created")
	return c, nil
}

func (s *ContractService) Get(ctx context.Context, id int64) (*contract.Contract, error) {
	c, err := s.contracts.GetByID(ctx, id)
	return c, classify(err)
}

// Assign attaches a client to a contract and (re)schedules its reminder.
func (s *ContractService) Assign(ctx context.Context, contractID, clientID int64) (*contract.Contract, error) {
	var c *contract.Contract
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = s.contracts.GetByID(ctx, contractID); err != nil {
			return classify(err)
		}
		if _, err := s.clients.GetByID(ctx, clientID); err != nil {
			return classify(err)
		}
		previous := c.ClientID
		c.ClientID = sql.NullInt64{Int64: clientID, Valid: true}
		if err := s.contracts.Update(ctx, c); err != nil {
			return fmt.Errorf("failed to assign contract: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"contract_id":    c.ID,
			"client_id":      clientID,
			"was_unassigned": !previous.Valid,
		}).Info("Contract assigned to client")
		_, err = s.scheduler.Schedule(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateContractInput holds optional changes; nil fields are left as they are.
type UpdateContractInput struct {
	Name            *string
	Amount          *decimal.Decimal
	Currency        *string
	BillingCycle    *string
	NextDueDate     *time.Time
	GracePeriodDays *int
	Metadata        map[string]any
}

// Update applies the changes and refreshes the outstanding reminder of an
// assigned contract.
func (s *ContractService) Update(ctx context.Context, id int64, in UpdateContractInput) (*contract.Contract, error) {
	var c *contract.Contract
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if c, err = s.contracts.GetByID(ctx, id); err != nil {
			return classify(err)
		}
		amount, currency, cycle := c.Amount, c.Currency, string(c.BillingCycle)
		if in.Amount != nil {
			amount = *in.Amount
		}
		if in.Currency != nil {
			currency = *in.Currency
		}
		if in.BillingCycle != nil {
			cycle = *in.BillingCycle
		}
		if err := s.applyBilling(c, amount, currency, cycle); err != nil {
			return err
		}
		if in.Name != nil {
			c.Name = *in.Name
		}
		if in.NextDueDate != nil {
			c.NextDueDate = sql.NullTime{Time: *in.NextDueDate, Valid: true}
		}
		if in.GracePeriodDays != nil {
			if *in.GracePeriodDays < 0 {
				return invalid("grace_period_days", "must not be negative")
			}
			c.GracePeriodDays = *in.GracePeriodDays
		}
		if in.Metadata != nil {
			c.Metadata = in.Metadata
		}
		if err := s.contracts.Update(ctx, c); err != nil {
			return classify(err)
		}
		_, err = s.scheduler.Schedule(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete soft-deletes the contract together with its reminders.
func (s *ContractService) Delete(ctx context.Context, id int64) error {
	if err := s.contracts.SoftDelete(ctx, id); err != nil {
		return classify(err)
	}
	s.logger.WithField("contract_id", id).Info("Contract and its reminders soft-deleted")
	return nil
}

func (s *ContractService) ListReminders(ctx context.Context, id int64) ([]*reminder.Reminder, error) {
	if _, err := s.contracts.GetByID(ctx, id); err != nil {
		return nil, classify(err)
	}
	return s.reminders.ListByContract(ctx, id)
}

func (s *ContractService) applyBilling(c *contract.Contract, amount decimal.Decimal, currency, cycle string) error {
	if amount.IsNegative() || amount.IsZero() {
		return invalid("amount", "must be positive")
	}
	code, ok := contract.NormalizeCurrency(currency)
	if !ok {
		return invalid("currency", "must be a 3-letter code")
	}
	bc := contract.CycleMonthly
	if cycle != "" {
		if bc, ok = contract.ParseBillingCycle(cycle); !ok {
			return invalid("billing_cycle", fmt.Sprintf("unknown billing cycle %q", cycle))
		}
	}
	c.Amount = amount.Round(2)
	c.Currency = code
	c.BillingCycle = bc
	return nil
}

func (s *ContractService) today() time.Time {
	n := s.now().In(s.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc)
}
