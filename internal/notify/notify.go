// Package notify defines the outbound notification boundary. Delivery is
// best-effort: the core never blocks or fails a transition on a notifier
// error.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Template names understood by the mail delivery collaborator.
const (
	TemplateOrderConfirmation = "orderConfirmation"
	TemplateOrderApproved     = "orderApproved"
	TemplateOrderShipped      = "orderShipped"
	TemplateOrderCancelled    = "orderCancelled"
	TemplateReturnProcessed   = "returnProcessed"
)

// Notifier delivers a templated notification to a recipient.
type Notifier interface {
	Send(ctx context.Context, to, template string, data map[string]any) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and as the default when no mail provider is configured.
type LogNotifier struct {
	lg *zap.Logger
}

// NewLogNotifier returns a Notifier that logs every notification.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg}
}

// Send logs the notification and always succeeds.
func (n *LogNotifier) Send(_ context.Context, to, template string, data map[string]any) error {
	n.lg.Info("notification",
		zap.String("to", to),
		zap.String("template", template),
		zap.Any("data", data),
	)
	return nil
}
