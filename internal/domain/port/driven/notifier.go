package driven

import "context"

// Notifier defines the driven port for outbound run notifications.
// Implementations must treat delivery as best-effort; the batch runner logs
// failures and continues.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
