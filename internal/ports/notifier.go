package ports

import "context"

// Notifier is the push-message sink for human-readable alerts. Delivery is
// fire-and-forget: callers log failures but never block business logic on
// them.
type Notifier interface {
	// Send delivers a plain text message.
	Send(ctx context.Context, text string) error
	// SendWithAction delivers a message with a single inline action button
	// and returns the message id for later deletion.
	SendWithAction(ctx context.Context, text, buttonLabel, actionToken string) (int, error)
	// SendConfirmation delivers a message with confirm/cancel buttons and
	// returns the message id for later deletion.
	SendConfirmation(ctx context.Context, text, confirmLabel, confirmToken, cancelLabel, cancelToken string) (int, error)
	// DeleteMessage removes a previously sent interactive message.
	DeleteMessage(ctx context.Context, messageID int) error
}
