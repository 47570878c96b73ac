// Package repotest holds the shared behavioural suite every
// tracker.Repository implementation must pass.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/engagement"
	"github.com/ignite/spark-tracker/internal/pkg/clock"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

var base = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

// NewRecord returns a minimal valid record for owner created at base+offset.
func NewRecord(id, owner string, offset time.Duration) *domain.EngagementRecord {
	created := base.Add(offset)
	return &domain.EngagementRecord{
		ID:                id,
		Token:             tracker.TokenPrefix + id,
		OwnerID:           owner,
		Recipient:         domain.Recipient{Email: "lead@example.com", Name: "Dr. Lee", PracticeName: "Lee Dental"},
		SubjectLine:       "Subject " + id,
		EngagementQuality: domain.QualityLow,
		LeadTemperature:   domain.TemperatureCold,
		BuyingStage:       domain.StageAwareness,
		InterestSignals:   []string{},
		Status:            domain.StatusSent,
		Version:           1,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

// SparkRepository runs the suite against repos built by newRepo. Each subtest
// gets a fresh repository.
func SparkRepository(t *testing.T, newRepo func(t *testing.T) tracker.Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		exp := base.Add(48 * time.Hour)
		rec := NewRecord("a1", "rep-1", 0)
		rec.ExpiresAt = &exp
		rec.InterestSignals = []string{"pricing"}
		rec.Opens = 2
		require.NoError(t, repo.Create(ctx, rec))

		got, err := repo.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, rec.Token, got.Token)
		assert.Equal(t, "rep-1", got.OwnerID)
		assert.Equal(t, rec.Recipient, got.Recipient)
		assert.Equal(t, 2, got.Opens)
		assert.Equal(t, []string{"pricing"}, got.InterestSignals)
		assert.Equal(t, domain.StatusSent, got.Status)
		assert.Equal(t, int64(1), got.Version)
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, got.ExpiresAt.Equal(exp))
		assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))

		byToken, err := repo.GetByToken(ctx, rec.Token)
		require.NoError(t, err)
		assert.Equal(t, "a1", byToken.ID)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, tracker.ErrNotFound)
		_, err = repo.GetByToken(ctx, "spk_missing")
		assert.ErrorIs(t, err, tracker.ErrNotFound)
		err = repo.Put(ctx, NewRecord("missing", "rep-1", 0))
		assert.ErrorIs(t, err, tracker.ErrNotFound)
	})

	t.Run("put bumps version and rejects stale writes", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewRecord("v1", "rep-1", 0)))

		first, err := repo.Get(ctx, "v1")
		require.NoError(t, err)
		stale, err := repo.Get(ctx, "v1")
		require.NoError(t, err)

		first.Clicks = 3
		first.Status = domain.StatusViewed
		require.NoError(t, repo.Put(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		stale.Shares = 1
		assert.ErrorIs(t, repo.Put(ctx, stale), tracker.ErrConflict)

		got, err := repo.Get(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Clicks)
		assert.Equal(t, 0, got.Shares)
		assert.Equal(t, domain.StatusViewed, got.Status)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("list by owner", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.Create(ctx, NewRecord(fmt.Sprintf("o%d", i), "rep-1", time.Duration(i)*time.Hour)))
		}
		require.NoError(t, repo.Create(ctx, NewRecord("other", "rep-2", 0)))

		page, total, err := repo.List(ctx, "rep-1", tracker.ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, page, 2)
		assert.Equal(t, "o4", page[0].ID)
		assert.Equal(t, "o3", page[1].ID)

		page, _, err = repo.List(ctx, "rep-1", tracker.ListFilter{Limit: 2, Offset: 4})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "o0", page[0].ID)

		recent, total, err := repo.List(ctx, "rep-1", tracker.ListFilter{Since: base.Add(3 * time.Hour)})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, recent, 2)

		conv, err := repo.Get(ctx, "o1")
		require.NoError(t, err)
		conv.Status = domain.StatusConverted
		require.NoError(t, repo.Put(ctx, conv))
		only, total, err := repo.List(ctx, "rep-1", tracker.ListFilter{Status: string(domain.StatusConverted)})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, only, 1)
		assert.Equal(t, "o1", only[0].ID)
	})

	t.Run("list expired", func(t *testing.T) {
		repo := newRepo(t)
		past := base.Add(-time.Hour)
		future := base.Add(time.Hour)

		due := NewRecord("due", "rep-1", 0)
		due.ExpiresAt = &past
		notYet := NewRecord("later", "rep-1", 0)
		notYet.ExpiresAt = &future
		never := NewRecord("never", "rep-1", 0)
		converted := NewRecord("conv", "rep-1", 0)
		converted.ExpiresAt = &past
		converted.Status = domain.StatusConverted
		gone := NewRecord("gone", "rep-1", 0)
		gone.ExpiresAt = &past
		gone.Status = domain.StatusExpired

		for _, r := range []*domain.EngagementRecord{due, notYet, never, converted, gone} {
			require.NoError(t, repo.Create(ctx, r))
		}

		out, err := repo.ListExpired(ctx, base, 10)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "due", out[0].ID)
	})

	t.Run("concurrent events are all applied", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewRecord("race", "rep-1", 0)))

		svc := tracker.NewService(repo, engagement.DefaultModel())
		svc.SetMaxAttempts(200)
		svc.SetClock(clock.NewFixed(base))

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Track(ctx, "race", domain.Event{Type: domain.EventClick})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.Get(ctx, "race")
		require.NoError(t, err)
		assert.Equal(t, workers, got.Clicks)
		assert.Equal(t, int64(workers+1), got.Version)
	})
}
