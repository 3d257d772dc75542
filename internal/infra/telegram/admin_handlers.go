package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"billing_collections/internal/app"
	"billing_collections/internal/domain/conciliation"
	"billing_collections/internal/domain/payment"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Reviewer moves a payment through the conciliation lifecycle.
type Reviewer interface {
	Review(ctx context.Context, paymentID int64, status conciliation.Status, notes, reviewer string) (*conciliation.Conciliation, error)
}

// PaymentLookup loads a payment for display.
type PaymentLookup interface {
	Get(ctx context.Context, id int64) (*payment.Payment, error)
}

const msgUnauthorized = "Error: no tiene permisos para ejecutar este comando."

// RegisterAdminHandlers registers the payment review commands. Only the
// configured admin Telegram ID may use them.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, reviewer Reviewer, payments PaymentLookup, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/review", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/review",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		// Expected format: /review <payment_id>
		if len(args) != 1 {
			return c.Send("Formato inválido. Use: /review <payment_id>")
		}
		paymentID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: el ID del pago debe ser un número.")
		}
		handlerLogger = handlerLogger.WithField("payment_id", paymentID)

		if _, err := reviewer.Review(ctx, paymentID, conciliation.StatusInReview, "", reviewerName(c)); err != nil {
			return c.Send(reviewFailure(handlerLogger, paymentID, err))
		}
		p, err := payments.Get(ctx, paymentID)
		if err != nil {
			handlerLogger.WithError(err).Error("Failed to load payment after review")
			return c.Send(fmt.Sprintf("Pago %d en revisión.", paymentID))
		}
		handlerLogger.Info("Payment moved to review")
		return c.Send(describePayment(p), reviewKeyboard(paymentID))
	})

	b.Handle("/approve", decisionHandler(ctx, reviewer, adminTelegramID, conciliation.StatusApproved, baseLogger))
	b.Handle("/reject", decisionHandler(ctx, reviewer, adminTelegramID, conciliation.StatusRejected, baseLogger))
}

func decisionHandler(ctx context.Context, reviewer Reviewer, adminTelegramID int64, status conciliation.Status, baseLogger *logrus.Entry) telebot.HandlerFunc {
	command := "/approve"
	if status == conciliation.StatusRejected {
		command = "/reject"
	}
	return func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   command,
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		// Expected format: /approve <payment_id> [notes...]
		if len(args) < 1 {
			return c.Send(fmt.Sprintf("Formato inválido. Use: %s <payment_id> [notas]", command))
		}
		paymentID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: el ID del pago debe ser un número.")
		}
		notes := strings.Join(args[1:], " ")
		handlerLogger = handlerLogger.WithField("payment_id", paymentID)

		conc, err := reviewer.Review(ctx, paymentID, status, notes, reviewerName(c))
		if err != nil {
			return c.Send(reviewFailure(handlerLogger, paymentID, err))
		}
		handlerLogger.WithField("conciliation_id", conc.ID).Info("Payment reviewed")
		return c.Send(decisionText(paymentID, status))
	}
}

func decisionText(paymentID int64, status conciliation.Status) string {
	if status == conciliation.StatusApproved {
		return fmt.Sprintf("Pago %d aprobado.", paymentID)
	}
	return fmt.Sprintf("Pago %d rechazado.", paymentID)
}

func reviewFailure(log *logrus.Entry, paymentID int64, err error) string {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrNotFound):
		logWithError.Warn("Payment not found")
		return fmt.Sprintf("No se encontró el pago %d.", paymentID)
	case errors.Is(err, app.ErrInvalidTransition):
		logWithError.Warn("Transition not allowed")
		return fmt.Sprintf("El pago %d ya fue resuelto y no admite ese cambio.", paymentID)
	case app.IsValidation(err):
		logWithError.Warn("Review rejected")
		return fmt.Sprintf("Error: %s", err.Error())
	default:
		logWithError.Error("Failed to review payment")
		return fmt.Sprintf("Ocurrió un error al revisar el pago %d.", paymentID)
	}
}

func reviewerName(c telebot.Context) string {
	if u := c.Sender().Username; u != "" {
		return "telegram:@" + u
	}
	return "telegram:" + strconv.FormatInt(c.Sender().ID, 10)
}

func describePayment(p *payment.Payment) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Pago %d en revisión\n", p.ID))
	b.WriteString(fmt.Sprintf("Cliente: %d\n", p.ClientID))
	if p.ContractID.Valid {
		b.WriteString(fmt.Sprintf("Contrato: %d\n", p.ContractID.Int64))
	}
	b.WriteString(fmt.Sprintf("Monto: %s %s\n", p.Amount.StringFixed(2), p.Currency))
	b.WriteString(fmt.Sprintf("Canal: %s\n", p.Channel))
	if p.Reference.Valid {
		b.WriteString(fmt.Sprintf("Referencia: %s\n", p.Reference.String))
	}
	if months := p.Months(); months > 0 {
		b.WriteString(fmt.Sprintf("Meses: %d\n", months))
	}
	return b.String()
}
