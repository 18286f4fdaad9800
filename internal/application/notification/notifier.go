// Package notification turns expense events into chat messages.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Notifier posts a message for every status change and every flagged review
type Notifier struct {
	sender     port.MessageSender
	expenses   port.ExpenseRepository
	receiverID string
	logger     Logger
}

// NewNotifier creates a notifier. An empty receiverID lets the sender pick its default.
func NewNotifier(sender port.MessageSender, expenses port.ExpenseRepository, receiverID string, logger Logger) *Notifier {
	return &Notifier{
		sender:     sender,
		expenses:   expenses,
		receiverID: receiverID,
		logger:     logger,
	}
}

// Register subscribes the notifier's handlers
func (n *Notifier) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeStatusChanged, "status-notifier", n.HandleStatusChanged)
	d.SubscribeNamed(event.TypeAnalysisCompleted, "review-notifier", n.HandleAnalysisCompleted)
}

// HandleStatusChanged sends a one-line summary of the transition
func (n *Notifier) HandleStatusChanged(ctx context.Context, evt *event.Event) error {
	view, err := n.expenses.GetView(ctx, evt.ExpenseID)
	if err != nil {
		return fmt.Errorf("failed to load expense %d: %w", evt.ExpenseID, err)
	}
	if view == nil {
		// deleted before the handler ran
		return nil
	}

	text := FormatStatusChange(view,
		evt.GetPayloadString(event.KeyFrom),
		evt.GetPayloadString(event.KeyTo),
		evt.GetPayloadString(event.KeyComment))
	return n.send(ctx, evt, text)
}

// HandleAnalysisCompleted only speaks up when the review flagged the expense
func (n *Notifier) HandleAnalysisCompleted(ctx context.Context, evt *event.Event) error {
	flagged, _ := evt.Payload["flagged"].(bool)
	if !flagged {
		return nil
	}
	confidence, _ := evt.Payload["confidence"].(float64)

	text := fmt.Sprintf("Expense #%d was flagged by automated review (confidence %.2f)", evt.ExpenseID, confidence)
	return n.send(ctx, evt, text)
}

func (n *Notifier) send(ctx context.Context, evt *event.Event, text string) error {
	if err := n.sender.SendText(ctx, n.receiverID, text); err != nil {
		n.logger.Error("Failed to send notification", "event_id", evt.ID, "expense_id", evt.ExpenseID, "error", err)
		return err
	}
	n.logger.Info("Notification sent", "event_id", evt.ID, "expense_id", evt.ExpenseID)
	return nil
}

// FormatStatusChange renders a transition as a single line
func FormatStatusChange(view *entity.ExpenseView, from, to, comment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Expense #%d %q by %s (%s %s): %s -> %s",
		view.ID,
		view.Description,
		view.OwnerName,
		view.ReferenceAmount.StringFixed(2),
		entity.ReferenceCurrency,
		from,
		to)
	if comment = strings.TrimSpace(comment); comment != "" {
		fmt.Fprintf(&b, ". Comment: %s", comment)
	}
	return b.String()
}
