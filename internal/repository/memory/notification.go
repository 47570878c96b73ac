package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/notify"
)

// Inbox implements notify.Inbox in memory.
type Inbox struct {
	mu    sync.Mutex
	items map[string][]domain.Notification // keyed by owner
}

// NewInbox creates an empty in-memory inbox.
func NewInbox() *Inbox {
	return &Inbox{items: make(map[string][]domain.Notification)}
}

func (b *Inbox) Save(_ context.Context, n *domain.Notification) error {
	if n.ID == "" {
		return fmt.Errorf("notification id required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *n
	cp.Channels = append([]domain.Channel(nil), n.Channels...)
	cp.RecommendedActions = append([]string(nil), n.RecommendedActions...)
	b.items[n.OwnerID] = append(b.items[n.OwnerID], cp)
	return nil
}

func (b *Inbox) List(_ context.Context, ownerID string, f notify.InboxFilter) ([]domain.Notification, error) {
	b.mu.Lock()
	var out []domain.Notification
	for _, n := range b.items[ownerID] {
		if f.UnreadOnly && n.ReadAt != nil {
			continue
		}
		out = append(out, n)
	}
	b.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (b *Inbox) MarkRead(_ context.Context, ownerID, id string, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items[ownerID]
	for i := range items {
		if items[i].ID == id {
			ts := at
			items[i].ReadAt = &ts
			return nil
		}
	}
	return notify.ErrNotFound
}

// PreferenceStore implements notify.PreferenceStore in memory.
type PreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]domain.NotificationPreferences
}

// NewPreferenceStore creates an empty preference store.
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{prefs: make(map[string]domain.NotificationPreferences)}
}

func (s *PreferenceStore) Preferences(_ context.Context, ownerID string) (domain.NotificationPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prefs[ownerID]; ok {
		return p, nil
	}
	return domain.DefaultPreferences(ownerID), nil
}

func (s *PreferenceStore) SavePreferences(_ context.Context, p domain.NotificationPreferences) error {
	if p.OwnerID == "" {
		return fmt.Errorf("owner_id required")
	}
	s.mu.Lock()
	s.prefs[p.OwnerID] = p
	s.mu.Unlock()
	return nil
}
