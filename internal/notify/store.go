package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
)

// ErrNotFound is returned when a notification doesn't exist for the owner.
var ErrNotFound = errors.New("notification not found")

// Inbox stores delivered notifications for the in-app channel.
type Inbox interface {
	// Save inserts n. n.ID must be set.
	Save(ctx context.Context, n *domain.Notification) error

	// List returns an owner's notifications, newest first.
	List(ctx context.Context, ownerID string, f InboxFilter) ([]domain.Notification, error)

	// MarkRead stamps read_at. Returns ErrNotFound if the owner has no such
	// notification.
	MarkRead(ctx context.Context, ownerID, id string, at time.Time) error
}

// InboxFilter controls inbox listing.
type InboxFilter struct {
	UnreadOnly bool
	Limit      int
}

// PreferenceStore persists owner notification settings. Preferences returns
// domain.DefaultPreferences for owners who never saved any.
type PreferenceStore interface {
	Preferences(ctx context.Context, ownerID string) (domain.NotificationPreferences, error)
	SavePreferences(ctx context.Context, p domain.NotificationPreferences) error
}
