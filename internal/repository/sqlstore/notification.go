package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/notify"
)

// Inbox implements notify.Inbox.
type Inbox struct{ s *Store }

// NewInbox creates a SQL-backed notification inbox.
func NewInbox(s *Store) *Inbox { return &Inbox{s: s} }

type notificationRow struct {
	ReadNS  sql.NullInt64 `db:"read_ns"`
	Payload []byte        `db:"payload"`
}

func (b *Inbox) Save(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		return fmt.Errorf("notification id required")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = b.s.db.ExecContext(ctx, b.s.db.Rebind(`
		INSERT INTO spark_notifications (id, owner_id, created_ns, read_ns, payload)
		VALUES (?, ?, ?, ?, ?)`),
		n.ID, n.OwnerID, n.CreatedAt.UnixNano(), nanos(n.ReadAt), string(payload),
	)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

func (b *Inbox) List(ctx context.Context, ownerID string, f notify.InboxFilter) ([]domain.Notification, error) {
	q := `SELECT read_ns, payload FROM spark_notifications WHERE owner_id = ?`
	if f.UnreadOnly {
		q += ` AND read_ns IS NULL`
	}
	q += ` ORDER BY created_ns DESC LIMIT ?`

	var rows []notificationRow
	if err := b.s.db.SelectContext(ctx, &rows, b.s.db.Rebind(q), ownerID, limitOrAll(f.Limit)); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		var n domain.Notification
		if err := json.Unmarshal(row.Payload, &n); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		n.ReadAt = nil
		if row.ReadNS.Valid {
			ts := time.Unix(0, row.ReadNS.Int64).UTC()
			n.ReadAt = &ts
		}
		out = append(out, n)
	}
	return out, nil
}

func (b *Inbox) MarkRead(ctx context.Context, ownerID, id string, at time.Time) error {
	res, err := b.s.db.ExecContext(ctx, b.s.db.Rebind(
		`UPDATE spark_notifications SET read_ns = ? WHERE owner_id = ? AND id = ?`),
		at.UnixNano(), ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return notify.ErrNotFound
	}
	return nil
}

// PreferenceStore implements notify.PreferenceStore.
type PreferenceStore struct{ s *Store }

// NewPreferenceStore creates a SQL-backed preference store.
func NewPreferenceStore(s *Store) *PreferenceStore { return &PreferenceStore{s: s} }

func (p *PreferenceStore) Preferences(ctx context.Context, ownerID string) (domain.NotificationPreferences, error) {
	var payload []byte
	err := p.s.db.GetContext(ctx, &payload, p.s.db.Rebind(
		`SELECT payload FROM notification_preferences WHERE owner_id = ?`), ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultPreferences(ownerID), nil
	}
	if err != nil {
		return domain.NotificationPreferences{}, fmt.Errorf("get preferences: %w", err)
	}
	var prefs domain.NotificationPreferences
	if err := json.Unmarshal(payload, &prefs); err != nil {
		return domain.NotificationPreferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	prefs.OwnerID = ownerID
	return prefs, nil
}

func (p *PreferenceStore) SavePreferences(ctx context.Context, prefs domain.NotificationPreferences) error {
	if prefs.OwnerID == "" {
		return fmt.Errorf("owner_id required")
	}
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = p.s.db.ExecContext(ctx, p.s.db.Rebind(`
		INSERT INTO notification_preferences (owner_id, updated_ns, payload)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET updated_ns = excluded.updated_ns, payload = excluded.payload`),
		prefs.OwnerID, time.Now().UnixNano(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
