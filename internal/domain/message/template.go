// Package message renders outbound reminder text from the global template.
package message

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"billing_collections/internal/domain/client"
	"billing_collections/internal/domain/contract"
	"billing_collections/internal/domain/reminder"
	"billing_collections/internal/domain/settings"

	"github.com/shopspring/decimal"
)

// ErrTemplateMissing is returned when no reminder template is configured.
var ErrTemplateMissing = errors.New("reminder template is not configured")

var placeholder = regexp.MustCompile(`\{([a-zA-Z_]+)\}`)

var currencySymbols = map[string]string{
	"CRC": "₡",
	"USD": "$",
}

// Input bundles everything a reminder message can reference. Contract and
// Client may be nil when they were deleted after scheduling.
type Input struct {
	Settings map[string]string
	Reminder *reminder.Reminder
	Contract *contract.Contract
	Client   *client.Client
	Locale   string
}

// Render substitutes {placeholder} tokens in the configured template.
// Unknown placeholders are left as they are.
func Render(in Input) (string, error) {
	tmpl := strings.TrimSpace(in.Settings[settings.KeyReminderTemplate])
	if tmpl == "" {
		return "", ErrTemplateMissing
	}
	vars := Variables(in)
	return placeholder.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := token[1 : len(token)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		return token
	}), nil
}

// Variables resolves the values available to the template.
func Variables(in Input) map[string]string {
	payload := map[string]any{}
	if in.Reminder != nil && in.Reminder.Payload != nil {
		payload = in.Reminder.Payload
	}

	vars := map[string]string{
		"company_name":     in.Settings[settings.KeyCompanyName],
		"payment_contact":  in.Settings[settings.KeyPaymentContact],
		"bank_accounts":    in.Settings[settings.KeyBankAccounts],
		"beneficiary_name": in.Settings[settings.KeyBeneficiaryName],
		"client_name":      stringFrom(payload["client_name"]),
		"contract_name":    stringFrom(payload["contract_name"]),
		"services":         stringFrom(payload["services"]),
		"currency":         strings.ToUpper(stringFrom(payload["currency"])),
	}
	if in.Client != nil {
		vars["client_name"] = in.Client.Name
	}

	amount := decimal.Zero
	if v, err := decimal.NewFromString(stringFrom(payload["amount"])); err == nil {
		amount = v
	}
	if c := in.Contract; c != nil {
		if c.Name != "" {
			vars["contract_name"] = c.Name
		}
		if s := c.Services(); s != "" {
			vars["services"] = s
		}
		if c.Currency != "" {
			vars["currency"] = c.Currency
		}
		if !c.Amount.IsZero() {
			amount = c.Amount
		}
	}
	vars["amount"] = FormatAmount(amount, vars["currency"])
	vars["due_date"] = dueDate(payload, in.Contract, in.Locale)
	return vars
}

func dueDate(payload map[string]any, c *contract.Contract, locale string) string {
	if raw := stringFrom(payload["due_date"]); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return FormatDate(t, locale)
		}
		return raw
	}
	if c != nil && c.NextDueDate.Valid {
		return FormatDate(c.NextDueDate.Time, locale)
	}
	return ""
}

// FormatDate formats a date for the configured locale.
func FormatDate(t time.Time, locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "es") {
		return t.Format("02/01/2006")
	}
	return t.Format("2006-01-02")
}

// FormatAmount renders an amount with thousands separators and the currency
// symbol for CRC and USD, or the currency code for anything else.
func FormatAmount(amount decimal.Decimal, currency string) string {
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	number := b.String() + "." + frac
	if amount.IsNegative() {
		number = "-" + number
	}

	if sym, ok := currencySymbols[currency]; ok {
		return sym + number
	}
	if currency == "" {
		return number
	}
	return currency + " " + number
}

func stringFrom(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
