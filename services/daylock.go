package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hearthbakery/bakery-orders-api/config"
	"gorm.io/gorm"
)

// DayLock is a mutual-exclusion lock on one day-key, scoped to a single
// transaction. On PostgreSQL it is a transaction-level advisory lock that the
// server drops on commit or rollback; on SQLite it is a keyed in-process lock.
// Release must be deferred right after a successful Acquire.
type DayLock struct {
	key      string
	release  func()
	released bool
}

// Key returns the day-key the lock protects.
func (l *DayLock) Key() string {
	return l.key
}

// Release frees the lock. Safe to call more than once.
func (l *DayLock) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	if l.release != nil {
		l.release()
	}
}

// keyedLocks hands out one buffered channel per key; holding the token is holding the lock.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

var localDayLocks = &keyedLocks{locks: make(map[string]chan struct{})}

func (k *keyedLocks) get(key string) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	ch, ok := k.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.locks[key] = ch
	}
	return ch
}

func (k *keyedLocks) acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	ch := k.get(key)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, &ServiceError{Code: CodeConcurrencyTimeout, Message: fmt.Sprintf("timed out waiting for lock %s", key)}
	case <-ctx.Done():
		return nil, &ServiceError{Code: CodeConcurrencyTimeout, Message: fmt.Sprintf("gave up waiting for lock %s", key), Err: ctx.Err()}
	}
}

// advisoryKey folds a day-key into the bigint space used by pg_advisory_xact_lock.
func advisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func lockTimeout() time.Duration {
	timeout := config.GetConfig().OrderLockTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return timeout
}

// AcquireDayLock takes the lock for key. On PostgreSQL db must be the
// transaction the lock belongs to; elsewhere the lock lives in this process.
func AcquireDayLock(ctx context.Context, db *gorm.DB, key string) (*DayLock, error) {
	timeout := lockTimeout()
	if config.IsPostgres(db) {
		return acquirePostgresDayLock(db.WithContext(ctx), key, timeout)
	}

	release, err := localDayLocks.acquire(ctx, key, timeout)
	if err != nil {
		return nil, err
	}
	return &DayLock{key: key, release: release}, nil
}

// WithDayLock runs fn inside one transaction that holds the lock for key for
// its whole duration. Any error from fn rolls the transaction back; the lock
// is released on every exit path.
func WithDayLock(ctx context.Context, db *gorm.DB, key string, fn func(tx *gorm.DB) error) error {
	if config.IsPostgres(db) {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			lock, err := AcquireDayLock(ctx, tx, key)
			if err != nil {
				return err
			}
			defer lock.Release()
			return fn(tx)
		})
	}

	// SQLite serialises on its single connection, so the lock is taken
	// before the transaction opens.
	lock, err := AcquireDayLock(ctx, db, key)
	if err != nil {
		return err
	}
	defer lock.Release()

	return db.WithContext(ctx).Transaction(fn)
}

func acquirePostgresDayLock(tx *gorm.DB, key string, timeout time.Duration) (*DayLock, error) {
	if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())).Error; err != nil {
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(key)).Error; err != nil {
		if isLockTimeout(err) {
			return nil, &ServiceError{Code: CodeConcurrencyTimeout, Message: fmt.Sprintf("timed out waiting for lock %s", key), Err: err}
		}
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	// Released by PostgreSQL when the transaction ends.
	return &DayLock{key: key}, nil
}
