// Package redisstore keeps Sparks in Redis. Writes are optimistic: Put
// watches the record key and commits with MULTI/EXEC, so a concurrent writer
// aborts the transaction and surfaces tracker.ErrConflict.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/spark-tracker/internal/domain"
	"github.com/ignite/spark-tracker/internal/service/tracker"
)

const DefaultPrefix = "spark:"

// SparkRepo implements tracker.Repository on Redis.
//
// Layout:
//
//	{prefix}rec:{id}      JSON record
//	{prefix}token:{token} record id
//	{prefix}owner:{owner} ZSET of ids scored by created_at (unix ms)
//	{prefix}expiry        ZSET of live ids scored by expires_at (unix ms)
type SparkRepo struct {
	client *redis.Client
	prefix string
}

// NewSparkRepo creates a Redis-backed Spark repository. An empty prefix
// selects DefaultPrefix.
func NewSparkRepo(client *redis.Client, prefix string) *SparkRepo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SparkRepo{client: client, prefix: prefix}
}

func (r *SparkRepo) recKey(id string) string       { return r.prefix + "rec:" + id }
func (r *SparkRepo) tokenKey(token string) string { return r.prefix + "token:" + token }
func (r *SparkRepo) ownerKey(owner string) string { return r.prefix + "owner:" + owner }
func (r *SparkRepo) expiryKey() string            { return r.prefix + "expiry" }

func decode(raw string) (*domain.EngagementRecord, error) {
	rec := &domain.EngagementRecord{}
	if err := json.Unmarshal([]byte(raw), rec); err != nil {
		return nil, fmt.Errorf("decode spark: %w", err)
	}
	return rec, nil
}

func (r *SparkRepo) Get(ctx context.Context, id string) (*domain.EngagementRecord, error) {
	raw, err := r.client.Get(ctx, r.recKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, tracker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spark %s: %w", id, err)
	}
	return decode(raw)
}

func (r *SparkRepo) GetByToken(ctx context.Context, token string) (*domain.EngagementRecord, error) {
	id, err := r.client.Get(ctx, r.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, tracker.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *SparkRepo) Create(ctx context.Context, rec *domain.EngagementRecord) error {
	if rec.ID == "" || rec.Token == "" {
		return fmt.Errorf("id and token required")
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode spark: %w", err)
	}

	recKey, tokenKey := r.recKey(rec.ID), r.tokenKey(rec.Token)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, recKey, tokenKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("spark %s or its token already exists", rec.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, recKey, blob, 0)
			pipe.Set(ctx, tokenKey, rec.ID, 0)
			pipe.ZAdd(ctx, r.ownerKey(rec.OwnerID), redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: rec.ID})
			r.indexExpiry(ctx, pipe, rec)
			return nil
		})
		return err
	}, recKey, tokenKey)
	if err != nil {
		return fmt.Errorf("create spark: %w", err)
	}
	return nil
}

func (r *SparkRepo) Put(ctx context.Context, rec *domain.EngagementRecord) error {
	expected := rec.Version
	next := *rec
	next.Version = expected + 1
	blob, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode spark: %w", err)
	}

	key := r.recKey(rec.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return tracker.ErrNotFound
		}
		if err != nil {
			return err
		}
		cur, err := decode(raw)
		if err != nil {
			return err
		}
		if cur.Version != expected {
			return tracker.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, blob, 0)
			r.indexExpiry(ctx, pipe, &next)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		rec.Version = expected + 1
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return tracker.ErrConflict
	case errors.Is(err, tracker.ErrConflict), errors.Is(err, tracker.ErrNotFound):
		return err
	default:
		return fmt.Errorf("put spark %s: %w", rec.ID, err)
	}
}

// indexExpiry keeps the expiry set limited to records the sweeper can still act on.
func (r *SparkRepo) indexExpiry(ctx context.Context, pipe redis.Pipeliner, rec *domain.EngagementRecord) {
	if rec.ExpiresAt == nil || rec.Status == domain.StatusExpired || rec.Status == domain.StatusConverted {
		pipe.ZRem(ctx, r.expiryKey(), rec.ID)
		return
	}
	pipe.ZAdd(ctx, r.expiryKey(), redis.Z{Score: float64(rec.ExpiresAt.UnixMilli()), Member: rec.ID})
}

func (r *SparkRepo) load(ctx context.Context, ids []string) ([]domain.EngagementRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sparks: %w", err)
	}
	out := make([]domain.EngagementRecord, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // deleted between index read and load
		}
		rec, err := decode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *SparkRepo) List(ctx context.Context, ownerID string, f tracker.ListFilter) ([]domain.EngagementRecord, int, error) {
	lo := "-inf"
	if !f.Since.IsZero() {
		lo = strconv.FormatInt(f.Since.UnixMilli(), 10)
	}
	ids, err := r.client.ZRangeByScore(ctx, r.ownerKey(ownerID), &redis.ZRangeBy{Min: lo, Max: "+inf"}).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("list sparks: %w", err)
	}
	recs, err := r.load(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	out := recs[:0]
	for _, rec := range recs {
		if f.Status != "" && string(rec.Status) != f.Status {
			continue
		}
		if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	total := len(out)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return out[f.Offset:end], total, nil
}

func (r *SparkRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.EngagementRecord, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10)}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := r.client.ZRangeByScore(ctx, r.expiryKey(), by).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired sparks: %w", err)
	}
	recs, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if rec.Status == domain.StatusExpired || rec.Status == domain.StatusConverted {
			continue
		}
		if rec.ExpiresAt == nil || rec.ExpiresAt.After(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
