package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/utils"
)

// stagingBudget covers validation and image ingest before the render starts.
const stagingBudget = 60 * time.Second

// quotationLockTTL outlasts a full write: staging, commit and a render that
// runs up to the configured timeout.
func quotationLockTTL() time.Duration {
	return stagingBudget + config.GetPDFConfig().RenderTimeout + postCommitSlack
}

// Locker serializes writers on one key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// NewLocker picks Redis on every Lock call when it is connected, so a
// Locker built before Redis comes up starts sharing locks once it does.
func NewLocker(logger *logrus.Logger) Locker {
	return &switchingLocker{local: NewKeyedMutex(), logger: logger}
}

type switchingLocker struct {
	local  *KeyedMutex
	logger *logrus.Logger
}

func (l *switchingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if client := config.GetRedisLock(); client != nil {
		return (&RedisLocker{client: client, ttl: quotationLockTTL(), logger: l.logger}).Lock(ctx, key)
	}
	return l.local.Lock(ctx, key)
}

func quotationLockKey(id string) string {
	return fmt.Sprintf("lock:quotation:%s", id)
}

type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogWarn(l.logger, "workflow", "RedisLocker.Lock", "could not obtain lock", key, err)
		return nil, utils.Conflict("quotation is being modified, try again", 1)
	}
	if err != nil {
		config.LogError(l.logger, "workflow", "RedisLocker.Lock", "Obtain", key, err)
		return nil, err
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(context.WithoutCancel(ctx), lock, key, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				config.LogWarn(l.logger, "workflow", "RedisLocker.Lock", "release failed", key, err)
			}
		})
	}, nil
}

// keepAlive extends the lock every half TTL until stop is closed.
func (l *RedisLocker) keepAlive(ctx context.Context, lock *redislock.Lock, key string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx, l.ttl, nil); err != nil {
				config.LogWarn(l.logger, "workflow", "RedisLocker.keepAlive", "refresh failed", key, err)
				return
			}
		}
	}
}

// KeyedMutex is a process-local Locker. Entries are dropped once no
// goroutine holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, entry, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(key, entry, true) })
	}, nil
}

func (k *KeyedMutex) release(key string, entry *keyedEntry, held bool) {
	if held {
		<-entry.ch
	}
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
