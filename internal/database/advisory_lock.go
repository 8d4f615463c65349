package database

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/pfrederiksen/ducksgather/internal/lock"
)

// AdvisoryLock is a session-level PostgreSQL advisory lock. It pins one
// connection from the pool for as long as the lock is held, because the lock
// belongs to the session that took it.
type AdvisoryLock struct {
	db  *sqlx.DB
	key int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewAdvisoryLock creates a lock identified by name
func NewAdvisoryLock(db *sqlx.DB, name string) *AdvisoryLock {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return &AdvisoryLock{db: db, key: int64(h.Sum64())}
}

// Acquire takes the lock or returns lock.ErrLockNotAcquired without waiting
func (l *AdvisoryLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return fmt.Errorf("%w: already held by this process", lock.ErrLockNotAcquired)
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&ok); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	if !ok {
		_ = conn.Close()
		return lock.ErrLockNotAcquired
	}

	l.conn = conn
	return nil
}

// Release frees the lock and returns the pinned connection to the pool
func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return lock.ErrLockNotHeld
	}
	conn := l.conn
	l.conn = nil
	defer func() { _ = conn.Close() }()

	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&ok); err != nil {
		return fmt.Errorf("failed to release advisory lock: %w", err)
	}
	if !ok {
		return lock.ErrLockNotHeld
	}
	return nil
}
