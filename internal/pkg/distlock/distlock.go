// Package distlock provides the leader lock that keeps a single expiry
// sweeper active across replicas.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a non-blocking mutual-exclusion lock. A Lock value belongs to one
// holder; separate holders need separate values.
type Lock interface {
	// TryAcquire takes the lock if it is free and reports whether it did.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this holder still owns it.
	Release(ctx context.Context) error
}

// New picks a backend: Redis when a client is given, Postgres advisory locks
// when only a Postgres handle is given, and an in-process lock otherwise.
func New(rdb *redis.Client, pg *sql.DB, key string, ttl time.Duration) Lock {
	switch {
	case rdb != nil:
		return NewRedisLock(rdb, key, ttl)
	case pg != nil:
		return NewAdvisoryLock(pg, key)
	default:
		return localFor(key)
	}
}

// AdvisoryLock uses pg_try_advisory_lock. The lock is session scoped, so it
// is pinned to one pooled connection for as long as it is held.
type AdvisoryLock struct {
	db   *sql.DB
	id   int64
	conn *sql.Conn
}

// NewAdvisoryLock derives a stable lock id from key.
func NewAdvisoryLock(db *sql.DB, key string) *AdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &AdvisoryLock{db: db, id: int64(h.Sum64())}
}

func (l *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&ok); err != nil || !ok {
		conn.Close()
		return false, err
	}
	l.conn = conn
	return true, nil
}

func (l *AdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	l.conn.Close()
	l.conn = nil
	return err
}

var (
	localMu    sync.Mutex
	localLocks = map[string]*sync.Mutex{}
)

// LocalLock serializes holders within one process. It backs single-node
// deployments that run without Redis or Postgres.
type LocalLock struct {
	mu   *sync.Mutex
	held bool
}

func localFor(key string) *LocalLock {
	localMu.Lock()
	defer localMu.Unlock()
	m, ok := localLocks[key]
	if !ok {
		m = &sync.Mutex{}
		localLocks[key] = m
	}
	return &LocalLock{mu: m}
}

func (l *LocalLock) TryAcquire(context.Context) (bool, error) {
	if l.held {
		return true, nil
	}
	l.held = l.mu.TryLock()
	return l.held, nil
}

func (l *LocalLock) Release(context.Context) error {
	if l.held {
		l.held = false
		l.mu.Unlock()
	}
	return nil
}
