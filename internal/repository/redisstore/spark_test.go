package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/repository/redisstore"
	"github.com/ignite/spark-tracker/internal/repository/repotest"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

func newRepo(t *testing.T) (*redisstore.SparkRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redisstore.NewSparkRepo(client, ""), mr
}

func TestSparkRepo(t *testing.T) {
	repotest.SparkRepository(t, func(t *testing.T) tracker.Repository {
		repo, _ := newRepo(t)
		return repo
	})
}

func TestSparkRepo_KeyLayout(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t)
	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := repotest.NewRecord("k1", "rep-7", 0)
	rec.ExpiresAt = &exp
	require.NoError(t, repo.Create(ctx, rec))

	assert.True(t, mr.Exists("spark:rec:k1"))
	id, err := mr.Get("spark:token:" + rec.Token)
	require.NoError(t, err)
	assert.Equal(t, "k1", id)
	members, err := mr.ZMembers("spark:owner:rep-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, members)
	score, err := mr.ZScore("spark:expiry", "k1")
	require.NoError(t, err)
	assert.Equal(t, float64(exp.UnixMilli()), score)
}

func TestSparkRepo_TerminalLeavesExpiryIndex(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRepo(t)
	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := repotest.NewRecord("k2", "rep-7", 0)
	rec.ExpiresAt = &exp
	require.NoError(t, repo.Create(ctx, rec))

	rec.Status = domain.StatusConverted
	require.NoError(t, repo.Put(ctx, rec))

	members, err := mr.ZMembers("spark:expiry")
	if err == nil {
		assert.NotContains(t, members, "k2")
	}
	due, err := repo.ListExpired(ctx, exp.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSparkRepo_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	require.NoError(t, repo.Create(ctx, repotest.NewRecord("d1", "rep-1", 0)))
	assert.Error(t, repo.Create(ctx, repotest.NewRecord("d1", "rep-1", 0)))
}

func TestSparkRepo_ConnectionError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	repo := redisstore.NewSparkRepo(client, "")
	mr.Close()

	_, err = repo.Get(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, tracker.ErrNotFound)
}
