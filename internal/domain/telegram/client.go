package telegram

import "gopkg.in/telebot.v3"

// Client sends outbound reminder text to a chat on the messaging channel.
// It returns the id of the delivered message so callers can record it.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) (int, error)
}
