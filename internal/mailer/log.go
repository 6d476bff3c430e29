package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogSender records messages in the log instead of delivering them. Used in development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender writing to logger.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (sender *LogSender) Send(ctx context.Context, message Message) error {
	if err := validateMessage(message); err != nil {
		return &DeliveryError{Transport: TransportLog, Stage: StageComposition, Err: err}
	}
	sender.logger.Info("mail_logged",
		zap.String("from", message.From),
		zap.String("to", message.To),
		zap.String("reply_to", message.ReplyTo),
		zap.String("subject", message.Subject),
		zap.Int("body_bytes", len(message.Text)),
	)
	return nil
}
