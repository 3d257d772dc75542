// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"billing_collections/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	cfg *config.AppConfig, // For AdminTelegramID
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == cfg.AdminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hola, %s. El bot de cobros está listo. Use /help para ver los comandos.", c.Sender().FirstName))
		}

		// Clients are linked by chat ID, which they hand to the back office.
		logCtx.Info("User is not the admin, replying with chat ID")
		return c.Send(fmt.Sprintf("¡Hola! Por este medio recibirá sus recordatorios de pago. Su ID de chat es %d; compártalo con administración para activar los avisos.", c.Chat().ID))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID == cfg.AdminTelegramID {
			var helpText strings.Builder
			helpText.WriteString("Comandos de administración:\n\n")
			helpText.WriteString("`/review <payment_id>`\n - Poner un pago en revisión y mostrar sus datos.\n\n")
			helpText.WriteString("`/approve <payment_id> [notas]`\n - Aprobar el pago y aplicar los meses pagados.\n\n")
			helpText.WriteString("`/reject <payment_id> [notas]`\n - Rechazar el pago.\n\n")
			helpText.WriteString("`/help`\n - Mostrar este mensaje.")
			return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}

		return c.Send("Recibirá aquí los recordatorios de sus pagos. Para consultas, contacte a administración.")
	})
}
