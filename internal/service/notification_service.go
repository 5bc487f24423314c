package service

import (
	"context"
	"log/slog"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/repository"
)

// Notifier records user-facing events. Notifications are a side effect of
// publishing, never a reason to fail it: Notify swallows storage errors.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind, message string)
}

type notifier struct {
	nr repository.NotificationRepository
}

func NewNotifier(nr repository.NotificationRepository) Notifier {
	return &notifier{nr: nr}
}

func (n *notifier) Notify(ctx context.Context, userID int64, kind, message string) {
	_, err := n.nr.Create(ctx, &models.Notification{
		UserID:  userID,
		Kind:    kind,
		Message: message,
	})
	if err != nil {
		slog.Error("failed to record notification", "user_id", userID, "kind", kind, "error", err)
	}
}
