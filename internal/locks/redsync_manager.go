// Package locks provides distributed locking on top of go-redsync/redsync/v4.
//
// Workers use it for the at-most-once guarantees of the pipeline: one lock per
// dataset id so identical uploads are enriched once, and one lock around the
// bulk population of the geocode map.
package locks

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"grant-insights/internal/common/errors"
	"grant-insights/internal/redis"
)

// Lock is a held distributed lock
type Lock interface {
	Key() string
	Release(ctx context.Context) error
	IsHeld() bool
}

// Locker acquires named locks. AcquireLock waits until the lock is free or
// ctx is done.
type Locker interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error)
}

// RedsyncManager implements Locker with the Redlock algorithm. Held locks are
// extended in the background at a third of their expiry until released.
type RedsyncManager struct {
	redsync    *redsync.Redsync
	retryDelay time.Duration
	localLocks map[string]*RedsyncLock
	mutex      sync.Mutex
}

// RedsyncLock wraps a redsync.Mutex
type RedsyncLock struct {
	mutex      *redsync.Mutex
	key        string
	expiration time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	manager    *RedsyncManager
	once       sync.Once
}

// NewRedsyncManager creates a lock manager sharing redisClient's connection pool
func NewRedsyncManager(redisClient *redis.Client) (*RedsyncManager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())
	return &RedsyncManager{
		redsync:    redsync.New(pool),
		retryDelay: 100 * time.Millisecond,
		localLocks: make(map[string]*RedsyncLock),
	}, nil
}

// AcquireLock blocks until key is locked by this process or ctx ends
func (rm *RedsyncManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := rm.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(expiration),
		redsync.WithTries(math.MaxInt32),
		redsync.WithRetryDelay(rm.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError(fmt.Sprintf("waiting for lock %s", key))
		}
		return nil, errors.CacheBackendError("lock", err)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &RedsyncLock{
		mutex:      mutex,
		key:        key,
		expiration: expiration,
		ctx:        lockCtx,
		cancel:     cancel,
		manager:    rm,
	}

	rm.mutex.Lock()
	rm.localLocks[key] = lock
	rm.mutex.Unlock()

	go rm.renewLock(lock)
	return lock, nil
}

func (rm *RedsyncManager) renewLock(lock *RedsyncLock) {
	interval := lock.expiration / 3
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := lock.mutex.ExtendContext(ctx)
			cancel()
			if err != nil || !ok {
				// lost it; stop renewing and mark as not held
				rm.forget(lock)
				lock.cancel()
				return
			}
		}
	}
}

func (rm *RedsyncManager) forget(lock *RedsyncLock) {
	rm.mutex.Lock()
	if rm.localLocks[lock.key] == lock {
		delete(rm.localLocks, lock.key)
	}
	rm.mutex.Unlock()
}

// Close releases every lock still held by this manager
func (rm *RedsyncManager) Close() error {
	rm.mutex.Lock()
	held := make([]*RedsyncLock, 0, len(rm.localLocks))
	for _, lock := range rm.localLocks {
		held = append(held, lock)
	}
	rm.mutex.Unlock()

	for _, lock := range held {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = lock.Release(ctx)
		cancel()
	}
	return nil
}

// Key returns the lock name without the lock: prefix
func (rl *RedsyncLock) Key() string {
	return rl.key
}

// Release stops renewal and unlocks in Redis. Calling it twice is a no-op.
func (rl *RedsyncLock) Release(ctx context.Context) error {
	var err error
	rl.once.Do(func() {
		rl.cancel()
		rl.manager.forget(rl)
		if _, unlockErr := rl.mutex.UnlockContext(ctx); unlockErr != nil {
			err = errors.CacheBackendError("unlock", unlockErr)
		}
	})
	return err
}

// IsHeld reports whether the lock has been neither released nor lost
func (rl *RedsyncLock) IsHeld() bool {
	select {
	case <-rl.ctx.Done():
		return false
	default:
		return true
	}
}

var _ Locker = (*RedsyncManager)(nil)
