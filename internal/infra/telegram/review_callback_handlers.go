package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"billing_collections/internal/domain/conciliation"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	callbackApprove = "rev_ok_"
	callbackReject  = "rev_no_"
)

func reviewKeyboard(paymentID int64) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	id := strconv.FormatInt(paymentID, 10)
	markup.Inline(markup.Row(
		markup.Data("Aprobar", "", callbackApprove+id),
		markup.Data("Rechazar", "", callbackReject+id),
	))
	return markup
}

// parseReviewCallback splits "rev_ok_123" into the decision and payment ID.
func parseReviewCallback(data string) (conciliation.Status, int64, error) {
	// telebot prefixes unique-less data buttons with "\f".
	data = strings.TrimPrefix(data, "\f")
	var status conciliation.Status
	var raw string
	switch {
	case strings.HasPrefix(data, callbackApprove):
		status, raw = conciliation.StatusApproved, strings.TrimPrefix(data, callbackApprove)
	case strings.HasPrefix(data, callbackReject):
		status, raw = conciliation.StatusRejected, strings.TrimPrefix(data, callbackReject)
	default:
		return "", 0, fmt.Errorf("unknown callback data: %s", data)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid payment id '%s' in callback: %w", raw, err)
	}
	return status, id, nil
}

// RegisterReviewCallbackHandlers handles the approve/reject buttons attached
// to /review replies.
func RegisterReviewCallbackHandlers(ctx context.Context, b *telebot.Bot, reviewer Reviewer, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{
			"handler":   "review_callback",
			"sender_id": c.Sender().ID,
		})
		if c.Sender().ID != adminTelegramID {
			log.Warn("Unauthorized callback")
			return c.Respond(&telebot.CallbackResponse{Text: msgUnauthorized})
		}

		status, paymentID, err := parseReviewCallback(c.Callback().Data)
		if err != nil {
			c.Bot().OnError(err, c)
			return c.Respond(&telebot.CallbackResponse{Text: "Acción desconocida."})
		}
		log = log.WithField("payment_id", paymentID)

		if _, err := reviewer.Review(ctx, paymentID, status, "", reviewerName(c)); err != nil {
			return c.Respond(&telebot.CallbackResponse{Text: reviewFailure(log, paymentID, err)})
		}
		log.WithField("status", status).Info("Payment reviewed from callback")
		if err := c.Respond(); err != nil {
			return err
		}
		return c.Send(decisionText(paymentID, status))
	})
}
