package notify

import (
	"go.uber.org/zap"
)

// ConsoleNotifier logs messages instead of delivering them. Used in
// development and as the fallback when no real gateway is configured.
type ConsoleNotifier struct {
	logger *zap.Logger
}

var _ Notifier = (*ConsoleNotifier)(nil)

func NewConsoleNotifier(logger *zap.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) Send(messages ...*Message) {
	for _, msg := range messages {
		n.logger.Info("Notification (console)",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("body", msg.Body),
		)
	}
}
