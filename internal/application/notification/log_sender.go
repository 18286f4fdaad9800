package notification

import (
	"context"

	"github.com/garyjia/expense-workflow/internal/application/port"
)

// LogSender writes messages to the log. Used when no chat integration is configured.
type LogSender struct {
	logger Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendText(ctx context.Context, receiverID, text string) error {
	s.logger.Info("Notification", "receiver", receiverID, "text", text)
	return nil
}

var _ port.MessageSender = (*LogSender)(nil)
