// Package memory holds in-process repository implementations for tests and
// single-node development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

// SparkRepo implements tracker.Repository in memory.
type SparkRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.EngagementRecord // keyed by id
	tokens  map[string]string                   // token -> id
}

// NewSparkRepo creates an empty in-memory Spark repository.
func NewSparkRepo() *SparkRepo {
	return &SparkRepo{
		records: make(map[string]*domain.EngagementRecord),
		tokens:  make(map[string]string),
	}
}

func (r *SparkRepo) Get(_ context.Context, id string) (*domain.EngagementRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *SparkRepo) GetByToken(ctx context.Context, token string) (*domain.EngagementRecord, error) {
	r.mu.RLock()
	id, ok := r.tokens[token]
	r.mu.RUnlock()
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *SparkRepo) Create(_ context.Context, rec *domain.EngagementRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == "" || rec.Token == "" {
		return fmt.Errorf("id and token required")
	}
	if _, ok := r.records[rec.ID]; ok {
		return fmt.Errorf("spark %s already exists", rec.ID)
	}
	if _, ok := r.tokens[rec.Token]; ok {
		return fmt.Errorf("token already in use")
	}
	r.records[rec.ID] = rec.Clone()
	r.tokens[rec.Token] = rec.ID
	return nil
}

func (r *SparkRepo) Put(_ context.Context, rec *domain.EngagementRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.records[rec.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	if cur.Version != rec.Version {
		return tracker.ErrConflict
	}
	rec.Version++
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *SparkRepo) List(_ context.Context, ownerID string, f tracker.ListFilter) ([]domain.EngagementRecord, int, error) {
	r.mu.RLock()
	var out []domain.EngagementRecord
	for _, rec := range r.records {
		if rec.OwnerID != ownerID {
			continue
		}
		if f.Status != "" && string(rec.Status) != f.Status {
			continue
		}
		if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, *rec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := len(out)
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	end := len(out)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return out[f.Offset:end], total, nil
}

func (r *SparkRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.EngagementRecord, error) {
	r.mu.RLock()
	var out []domain.EngagementRecord
	for _, rec := range r.records {
		if rec.Status == domain.StatusExpired || rec.Status == domain.StatusConverted {
			continue
		}
		if rec.ExpiresAt == nil || rec.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *rec.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
