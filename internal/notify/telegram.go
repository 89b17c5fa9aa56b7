package notify

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// TelegramNotifier posts message bodies to a fixed announcement chat, e.g. a
// faculty channel students follow. Per-recipient addressing is the email
// gateway's job; this one only broadcasts.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID string
	logger *zap.Logger
}

var _ Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(token, chatID string, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, err
	}

	return &TelegramNotifier{
		bot:    b,
		chatID: chatID,
		logger: logger,
	}, nil
}

func (n *TelegramNotifier) Send(messages ...*Message) {
	// Collapse duplicates: approval mails go to every student of a group but
	// the channel needs each announcement once.
	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		if _, ok := seen[msg.Body]; ok {
			continue
		}
		seen[msg.Body] = struct{}{}
		go n.announce(msg.Body)
	}
}

func (n *TelegramNotifier) announce(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.logger.Error("Failed to post telegram announcement", zap.Error(err))
	}
}
