package app

import (
	"errors"
	"testing"

	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/payment"
	"billing_collections/internal/domain/reminder"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentCreate_DirectVerifiedSettlesNearestReminder(t *testing.T) {
	f := newFixture(t)
	cl := f.newClient("Client X")
	c := f.newContract(cl.ID, "10000", ptr(day(2026, 2, 15)))
	r, err := f.reminderRepo.GetOutstandingForContract(f.ctx, c.ID)
	require.NoError(t, err)

	p, err := f.payments.Create(f.ctx, CreatePaymentInput{
		ClientID:   cl.ID,
		ContractID: &c.ID,
		Amount:     decimal.NewFromInt(10000),
		Currency:   "crc",
		Channel:    "cash",
		Status:     "verified",
	})
	require.NoError(t, err)

	settled := f.reminder(r.ID)
	assert.Equal(t, reminder.StatusPaid, settled.Status)
	assert.True(t, settled.AcknowledgedAt.Valid)
	assert.Equal(t, f.now, settled.AcknowledgedAt.Time)

	stored := f.payment(p.ID)
	assert.Equal(t, "CRC", stored.Currency)
	assert.Equal(t, r.ID, stored.ReminderID.Int64, "payment gets linked to the settled reminder")
	assert.Empty(t, f.derivedFrom(p.ID))
}

func TestPaymentCreate_SecondVerifiedPaymentForReminderConflicts(t *testing.T) {
	f := newFixture(t)
	cl := f.newClient("Client X")
	c := f.newContract(cl.ID, "10000", ptr(day(2026, 2, 15)))
	r, err := f.reminderRepo.GetOutstandingForContract(f.ctx, c.ID)
	require.NoError(t, err)

	in := CreatePaymentInput{
		ClientID: cl.ID, ReminderID: &r.ID,
		Amount: decimal.NewFromInt(10000), Currency: "CRC", Channel: "cash", Status: "verified",
	}
	_, err = f.payments.Create(f.ctx, in)
	require.NoError(t, err)
	_, err = f.payments.Create(f.ctx, in)
	assert.True(t, errors.Is(err, ErrConflict))

	assert.Equal(t, reminder.StatusPaid, f.reminder(r.ID).Status)
	assert.Len(t, f.store.payments, 1)
}

func TestPaymentUpdate_StatusUnderConciliationIsRejected(t *testing.T) {
	f := newFixture(t)
	p := f.unverifiedPayment()
	conc, err := f.conciliations.Create(f.ctx, CreateConciliationInput{PaymentID: p.ID})
	require.NoError(t, err)

	_, err = f.payments.Update(f.ctx, p.ID, UpdatePaymentInput{Status: ptr("verified")})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "status", verr.Field)

	assert.Equal(t, payment.StatusInReview, f.payment(p.ID).Status)
	stored, err := f.conciliationRepo.GetByID(f.ctx, conc.ID)
	require.NoError(t, err)
	assert.Equal(t, conciliation.StatusPending, stored.Status)

	updated, err := f.payments.Update(f.ctx, p.ID, UpdatePaymentInput{Reference: ptr("SINPE-42")})
	require.NoError(t, err)
	assert.Equal(t, "SINPE-42", updated.Reference.String)
}

func TestPaymentUpdate_SettledRemindersScheduleNextMonth(t *testing.T) {
	f := newFixture(t)
	cl := f.newClient("Client X")
	c := f.newContract(cl.ID, "10000", ptr(day(2026, 2, 15)))
	feb, err := f.reminderRepo.GetOutstandingForContract(f.ctx, c.ID)
	require.NoError(t, err)

	_, err = f.payments.Create(f.ctx, CreatePaymentInput{
		ClientID: cl.ID, ContractID: &c.ID,
		Amount: decimal.NewFromInt(10000), Currency: "CRC", Channel: "cash", Status: "verified",
	})
	require.NoError(t, err)

	assert.Equal(t, reminder.StatusPaid, f.reminder(feb.ID).Status)
	next, err := f.reminderRepo.GetOutstandingForContract(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, at9(2026, 3, 15), next.ScheduledFor)
	assert.Equal(t, "2026-03-15", next.Payload["due_date"])
}

func TestPaymentUpdate_VerifyingSettles(t *testing.T) {
	f := newFixture(t)
	cl := f.newClient("Client X")
	c := f.newContract(cl.ID, "10000", ptr(day(2026, 2, 15)))
	r, err := f.reminderRepo.GetOutstandingForContract(f.ctx, c.ID)
	require.NoError(t, err)

	p, err := f.payments.Create(f.ctx, CreatePaymentInput{
		ClientID: cl.ID, ContractID: &c.ID,
		Amount: decimal.NewFromInt(10000), Currency: "CRC", Channel: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusPending, f.reminder(r.ID).Status)

	_, err = f.payments.Update(f.ctx, p.ID, UpdatePaymentInput{Status: ptr("verified")})
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusPaid, f.reminder(r.ID).Status)
}

func TestPaymentCreate_VerifiedMultiMonthRunsAllocator(t *testing.T) {
	f := newFixture(t)
	cl := f.newClient("Client X")
	c := f.newContract(cl.ID, "10000", ptr(day(2026, 2, 15)))
	mar := f.addReminder(c, at9(2026, 3, 15))

	p, err := f.payments.Create(f.ctx, CreatePaymentInput{
		ClientID: cl.ID, ContractID: &c.ID,
		Amount: decimal.NewFromInt(20000), Currency: "CRC", Channel: "sinpe", Status: "verified",
		PaidAt:   ptr(day(2026, 2, 1)),
		Metadata: map[string]any{payment.MetaMonths: 2},
	})
	require.NoError(t, err)

	derived := f.derivedFrom(p.ID)
	require.Len(t, derived, 2)
	assert.Equal(t, reminder.StatusPaid, f.reminder(mar.ID).Status)
	assert.False(t, f.payment(p.ID).ReminderID.Valid)
}

func TestPaymentCreate_OwnershipIsChecked(t *testing.T) {
	f := newFixture(t)
	owner := f.newClient("Owner")
	other := f.newClient("Other")
	c := f.newContract(owner.ID, "10000", ptr(day(2026, 2, 15)))
	r, err := f.reminderRepo.GetOutstandingForContract(f.ctx, c.ID)
	require.NoError(t, err)
	otherContract := f.newContract(owner.ID, "5000", ptr(day(2026, 2, 20)))

	tests := []struct {
		name  string
		in    CreatePaymentInput
		field string
	}{
		{"contract of another client", CreatePaymentInput{ClientID: other.ID, ContractID: &c.ID}, "contract_id"},
		{"reminder of another client", CreatePaymentInput{ClientID: other.ID, ReminderID: &r.ID}, "reminder_id"},
		{"reminder of another contract", CreatePaymentInput{ClientID: owner.ID, ContractID: &otherContract.ID, ReminderID: &r.ID}, "reminder_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Amount = decimal.NewFromInt(100)
			tt.in.Currency = "USD"
			tt.in.Channel = "cash"
			tt.in.Status = "verified"
			_, err := f.payments.Create(f.ctx, tt.in)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, f.store.payments)
	assert.Equal(t, reminder.StatusPending, f.reminder(r.ID).Status)
}

func TestPaymentCreate_Validation(t *testing.T) {
	f := newFixture(t)
	cl := f.newClient("Client X")
	valid := func() CreatePaymentInput {
		return CreatePaymentInput{ClientID: cl.ID, Amount: decimal.NewFromInt(1), Currency: "USD", Channel: "cash"}
	}

	tests := []struct {
		name   string
		mutate func(*CreatePaymentInput)
		field  string
	}{
		{"missing client", func(in *CreatePaymentInput) { in.ClientID = 0 }, "client_id"},
		{"zero amount", func(in *CreatePaymentInput) { in.Amount = decimal.Zero }, "amount"},
		{"bad currency", func(in *CreatePaymentInput) { in.Currency = "₡" }, "currency"},
		{"no channel", func(in *CreatePaymentInput) { in.Channel = " " }, "channel"},
		{"bad status", func(in *CreatePaymentInput) { in.Status = "paid" }, "status"},
		{"bad months", func(in *CreatePaymentInput) { in.Metadata = map[string]any{payment.MetaMonths: "x"} }, "metadata.months"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := f.payments.Create(f.ctx, in)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Empty(t, f.store.payments)
}

func TestPaymentCreate_UnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.payments.Create(f.ctx, CreatePaymentInput{ClientID: 42, Amount: decimal.NewFromInt(1), Currency: "USD", Channel: "cash"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPaymentDelete(t *testing.T) {
	f := newFixture(t)
	p := f.unverifiedPayment()
	require.NoError(t, f.payments.Delete(f.ctx, p.ID))

	_, err := f.payments.Get(f.ctx, p.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
