package message

import (
	"database/sql"
	"testing"
	"time"

	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/reminder"
	"billing_collections/internal/domain/settings"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSettings(tmpl string) map[string]string {
	return map[string]string{
		settings.KeyReminderTemplate: tmpl,
		settings.KeyCompanyName:      "Acme Hosting",
		settings.KeyPaymentContact:   "pagos@acme.test",
		settings.KeyBankAccounts:     "BCR 123-456",
		settings.KeyBeneficiaryName:  "Acme S.A.",
	}
}

func TestRender_FullTemplate(t *testing.T) {
	r := &reminder.Reminder{Payload: map[string]any{
		"contract_name": "Old name",
		"amount":        "10.00",
		"currency":      "usd",
		"due_date":      "2024-02-29",
	}}
	c := &contract.Contract{
		Name:     "Hosting Pro",
		Amount:   decimal.RequireFromString("25000"),
		Currency: "CRC",
		Metadata: map[string]any{"services": []any{"hosting", "dominio"}},
	}
	cl := &client.Client{Name: "Ana"}

	out, err := Render(Input{
		Settings: baseSettings("Hola {client_name}, {company_name} le recuerda el pago de {amount} por {contract_name} ({services}) con vencimiento {due_date}. Cuentas: {bank_accounts} a nombre de {beneficiary_name}. Consultas: {payment_contact}."),
		Reminder: r,
		Contract: c,
		Client:   cl,
		Locale:   "es",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana, Acme Hosting le recuerda el pago de ₡25,000.00 por Hosting Pro (hosting, dominio) con vencimiento 29/02/2024. Cuentas: BCR 123-456 a nombre de Acme S.A.. Consultas: pagos@acme.test.", out)
}

func TestRender_FallsBackToPayload(t *testing.T) {
	r := &reminder.Reminder{Payload: map[string]any{
		"contract_name": "Soporte",
		"amount":        "1500.5",
		"currency":      "usd",
		"due_date":      "2024-03-05",
	}}
	out, err := Render(Input{
		Settings: baseSettings("{contract_name}: {amount} vence {due_date}"),
		Reminder: r,
		Locale:   "en",
	})
	require.NoError(t, err)
	assert.Equal(t, "Soporte: $1,500.50 vence 2024-03-05", out)
}

func TestRender_UnknownPlaceholderKept(t *testing.T) {
	out, err := Render(Input{Settings: baseSettings("{company_name} {nope}")})
	require.NoError(t, err)
	assert.Equal(t, "Acme Hosting {nope}", out)
}

func TestRender_MissingTemplate(t *testing.T) {
	_, err := Render(Input{Settings: map[string]string{settings.KeyReminderTemplate: "   "}})
	assert.ErrorIs(t, err, ErrTemplateMissing)

	_, err = Render(Input{Settings: map[string]string{}})
	assert.ErrorIs(t, err, ErrTemplateMissing)
}

func TestVariables_DueDateFromContract(t *testing.T) {
	c := &contract.Contract{
		Currency:    "EUR",
		Amount:      decimal.NewFromInt(99),
		NextDueDate: sql.NullTime{Time: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Valid: true},
	}
	vars := Variables(Input{Settings: map[string]string{}, Contract: c, Locale: "es"})
	assert.Equal(t, "01/06/2024", vars["due_date"])
	assert.Equal(t, "EUR 99.00", vars["amount"])
	assert.Equal(t, "", vars["client_name"])
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"0", "", "0.00"},
		{"999.999", "USD", "$1,000.00"},
		{"1234567.8", "CRC", "₡1,234,567.80"},
		{"-1200", "MXN", "MXN -1,200.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.amount), tt.currency))
	}
}
