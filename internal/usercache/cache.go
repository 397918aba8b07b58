// Package usercache is a bounded write-back cache of user records.
//
// Counter mutations go through Update, under the cache lock, and reach the
// store in batches: when the cache fills up, the least-recently-used records
// are persisted and dropped together, so a burst of chat commands does not
// turn into a write per command.
package usercache

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"pixelbot/internal/model"
	"pixelbot/pkg/logx"
)

const (
	DefaultSize  = 5
	DefaultBatch = 2
)

// UserStore is the slice of the entity store the cache needs.
type UserStore interface {
	FindUser(ctx context.Context, uid int64) (*model.User, bool, error)
	UpsertUser(ctx context.Context, u *model.User) error
}

// Cache is safe for concurrent use. The lock is held across store calls so
// the capacity check and its eviction stay atomic.
type Cache struct {
	mu    sync.Mutex
	size  int
	batch int
	order *list.List // front = least recently used
	index map[int64]*list.Element
	store UserStore
	log   logx.Logger
}

func New(size, batch int, store UserStore, log logx.Logger) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if batch <= 0 || batch > size {
		batch = DefaultBatch
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{
		size:  size,
		batch: batch,
		order: list.New(),
		index: make(map[int64]*list.Element),
		store: store,
		log:   log,
	}
}

// GetOrCreate returns a copy of the record for uid, loading it from the
// store on a miss and constructing a default record when the store has never
// seen the actor. The record is promoted to most recently used either way.
// Changes made to the copy are lost; mutate counters through Update.
func (c *Cache) GetOrCreate(ctx context.Context, uid int64, name string) (model.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := c.getOrCreate(ctx, uid, name)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// Update applies fn to the cached record under the cache lock and returns a
// copy of the result. Concurrent updates never lose increments and a
// concurrent flush never observes a half-applied record.
func (c *Cache) Update(ctx context.Context, uid int64, name string, fn func(u *model.User)) (model.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := c.getOrCreate(ctx, uid, name)
	if err != nil {
		return model.User{}, err
	}
	fn(u)
	return *u, nil
}

// getOrCreate returns the live cached record. Caller holds c.mu.
func (c *Cache) getOrCreate(ctx context.Context, uid int64, name string) (*model.User, error) {
	if el, ok := c.index[uid]; ok {
		c.order.MoveToBack(el)
		return el.Value.(*model.User), nil
	}

	u, ok, err := c.store.FindUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		u = model.NewUser(uid, name)
		c.log.Debug("new user created", logx.Int64("uid", uid), logx.String("name", name))
	}
	c.insert(ctx, u)
	return u, nil
}

func (c *Cache) insert(ctx context.Context, u *model.User) {
	c.index[u.UID] = c.order.PushBack(u)
	if c.order.Len() >= c.size {
		c.evict(ctx)
	}
}

// evict persists and drops LRU records until the cache is size-batch big.
// A record whose upsert fails goes back to the LRU end and the pass stops;
// the next eviction or flush retries it. Write-back must not lose counters,
// so a failing store grows the cache until it recovers.
func (c *Cache) evict(ctx context.Context) {
	count := 0
	for c.order.Len() > c.size-c.batch {
		front := c.order.Front()
		if front == nil {
			break
		}
		u := front.Value.(*model.User)
		c.order.Remove(front)
		delete(c.index, u.UID)
		if err := c.store.UpsertUser(ctx, u); err != nil {
			c.index[u.UID] = c.order.PushFront(u)
			c.log.Error("evicted user not persisted, kept in cache", logx.Int64("uid", u.UID), logx.Err(err))
			return
		}
		count++
	}
	c.log.Debug("users evicted and persisted", logx.Int("count", count))
}

// FlushAll persists every cached record. Used at shutdown and on the flush
// schedule; records stay cached.
func (c *Cache) FlushAll(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	count := 0
	for el := c.order.Front(); el != nil; el = el.Next() {
		u := el.Value.(*model.User)
		if err := c.store.UpsertUser(ctx, u); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}
	if len(errs) > 0 {
		return count, errors.Join(errs...)
	}
	c.log.Info("all cached users persisted", logx.Int("count", count))
	return count, nil
}

// Len reports the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
