package app

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"testing"
	"time"

	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/payment"
	"billing_collections/internal/domain/reminder"
	"billing_collections/internal/infra/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeMessenger struct {
	sent []sentMessage
	err  error
}

func (m *fakeMessenger) SendMessage(chatID int64, text string, _ *telebot.SendOptions) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return len(m.sent), nil
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memStore
	now   time.Time

	clientRepo       memClients
	contractRepo     memContracts
	reminderRepo     memReminders
	paymentRepo      memPayments
	conciliationRepo memConciliations

	scheduler     *ReminderScheduler
	settlement    *SettlementService
	clients       *ClientService
	contracts     *ContractService
	payments      *PaymentService
	conciliations *ConciliationService
	dispatch      *DispatchService
	messenger     *fakeMessenger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	f := &fixture{
		t:                t,
		ctx:              context.Background(),
		store:            store,
		now:              time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		clientRepo:       memClients{store},
		contractRepo:     memContracts{store},
		reminderRepo:     memReminders{store},
		paymentRepo:      memPayments{store},
		conciliationRepo: memConciliations{store},
		messenger:        &fakeMessenger{},
	}

	base := logrus.New()
	base.SetOutput(io.Discard)
	log := logrus.NewEntry(base)
	m := metrics.New(nil)
	clock := func() time.Time { return f.now }

	f.scheduler = NewReminderScheduler(store, f.contractRepo, f.reminderRepo, SendTime{Hour: 9}, time.UTC, m, log)
	f.scheduler.now = clock
	f.settlement = NewSettlementService(store, f.reminderRepo, f.paymentRepo, f.scheduler, time.UTC, m, log)
	f.settlement.now = clock
	f.clients = NewClientService(f.clientRepo, log)
	f.contracts = NewContractService(store, f.clientRepo, f.contractRepo, f.reminderRepo, f.scheduler, time.UTC, log)
	f.contracts.now = clock
	f.payments = NewPaymentService(store, f.clientRepo, f.contractRepo, f.reminderRepo, f.paymentRepo, f.conciliationRepo, f.settlement, log)
	f.conciliations = NewConciliationService(store, f.conciliationRepo, f.paymentRepo, f.settlement, m, log)
	f.conciliations.now = clock
	f.dispatch = NewDispatchService(f.clientRepo, f.contractRepo, f.reminderRepo, memSettings{store}, f.messenger, "es", 15*time.Minute, m, log)
	f.dispatch.now = clock
	return f
}

func (f *fixture) newClient(name string) *client.Client {
	f.t.Helper()
	c, err := f.clients.Create(f.ctx, CreateClientInput{Name: name, TelegramChatID: 1000 + int64(len(f.store.clients))})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) newContract(clientID int64, amount string, due *time.Time) *contract.Contract {
	f.t.Helper()
	c, err := f.contracts.Create(f.ctx, CreateContractInput{
		ClientID:     &clientID,
		Name:         "Hosting",
		Amount:       decimal.RequireFromString(amount),
		Currency:     "crc",
		BillingCycle: "monthly",
		NextDueDate:  due,
	})
	require.NoError(f.t, err)
	return c
}

// addReminder stores a pending reminder directly, the way an already
// scheduled future month would look.
func (f *fixture) addReminder(c *contract.Contract, at time.Time) *reminder.Reminder {
	f.t.Helper()
	r := &reminder.Reminder{
		ContractID:   c.ID,
		ClientID:     c.ClientID.Int64,
		Channel:      reminder.ChannelTelegram,
		ScheduledFor: at,
		Status:       reminder.StatusPending,
		Payload:      map[string]any{"due_date": at.Format("2006-01-02")},
	}
	require.NoError(f.t, f.reminderRepo.Create(f.ctx, r))
	return r
}

func (f *fixture) reminder(id int64) *reminder.Reminder {
	f.t.Helper()
	r, err := f.reminderRepo.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) payment(id int64) *payment.Payment {
	f.t.Helper()
	p, err := f.paymentRepo.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return p
}

// derivedFrom returns the live derived payments of a source payment.
func (f *fixture) derivedFrom(sourceID int64) []payment.Payment {
	var out []payment.Payment
	for _, p := range f.store.payments {
		if p.IsDerived() && !p.DeletedAt.Valid {
			if id, _ := intFromAny(p.Metadata[payment.MetaSourcePaymentID]); id == sourceID {
				out = append(out, p)
			}
		}
	}
	return out
}

func intFromAny(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at9(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func nullInt(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
