package settings

import "context"

// Keys of the global settings consumed by the reminder template.
const (
	KeyCompanyName      = "company_name"
	KeyReminderTemplate = "reminder_template"
	KeyPaymentContact   = "payment_contact"
	KeyBankAccounts     = "bank_accounts"
	KeyBeneficiaryName  = "beneficiary_name"
)

// Repository reads the global key/value settings.
type Repository interface {
	GetAll(ctx context.Context) (map[string]string, error)
}
