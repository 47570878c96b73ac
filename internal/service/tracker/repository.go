package tracker

import (
	"context"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
)

// Repository defines the data access contract for engagement records.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a record by id. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.EngagementRecord, error)

	// GetByToken returns a record by its public token. Returns ErrNotFound
	// if no record carries the token.
	GetByToken(ctx context.Context, token string) (*domain.EngagementRecord, error)

	// Create inserts a new record. rec.Version must be 1.
	Create(ctx context.Context, rec *domain.EngagementRecord) error

	// Put replaces the stored record if its version still equals rec.Version,
	// then bumps rec.Version. Returns ErrConflict on a version mismatch and
	// ErrNotFound if the record is gone.
	Put(ctx context.Context, rec *domain.EngagementRecord) error

	// List returns an owner's records, newest first, plus the total match count.
	List(ctx context.Context, ownerID string, f ListFilter) ([]domain.EngagementRecord, int, error)

	// ListExpired returns up to limit records whose expiry is at or before
	// now and whose status is neither expired nor converted.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.EngagementRecord, error)
}

// ListFilter controls pagination and filtering for record lists.
type ListFilter struct {
	Status string
	Since  time.Time // created_at >= Since when non-zero
	Limit  int
	Offset int
}

// Notifier receives transitions that passed the notification gate.
type Notifier interface {
	Notify(ctx context.Context, tr Notice) error
}

// PreferenceSource returns an owner's notification settings, or the defaults
// when the owner never saved any.
type PreferenceSource interface {
	Preferences(ctx context.Context, ownerID string) (domain.NotificationPreferences, error)
}
