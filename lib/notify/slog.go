package notify

import (
	"context"
	"log/slog"

	"github.com/mazen160/go-random"
)

// Slog writes notifications to the process log. meant for the one-shot
// CLI commands where a push channel would be overkill.
type Slog struct{}

func (Slog) Push(ctx context.Context, notification Notification) (string, error) {
	if notification.Silent {
		slog.DebugContext(ctx, "notification", "title", notification.Title, "body", notification.Body)
	} else {
		slog.InfoContext(ctx, "notification", "title", notification.Title, "body", notification.Body)
	}
	return random.String(16)
}

func (Slog) Dismiss(ctx context.Context, id string) error {
	return nil
}
