// Package ratelimit tracks per-actor draw cooldowns.
//
// The buffer is an explicit list+map LRU keyed by actor id and ordered by
// most recent activity: front is the stalest entry, back the freshest.
// Touching an actor promotes it to the back, so eviction only ever needs to
// look at the front.
package ratelimit

import (
	"container/list"
	"sync"
	"time"

	"pixelbot/pkg/logx"
)

// DefaultWindow is the minimum gap between two accepted draws by one actor.
const DefaultWindow = 3 * time.Second

type entry struct {
	actor int64
	at    time.Time
}

// Buffer is safe for concurrent use.
type Buffer struct {
	mu     sync.Mutex
	window time.Duration
	order  *list.List // front = least recently active
	index  map[int64]*list.Element
	log    logx.Logger
}

func New(window time.Duration, log logx.Logger) *Buffer {
	if window <= 0 {
		window = DefaultWindow
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Buffer{
		window: window,
		order:  list.New(),
		index:  make(map[int64]*list.Element),
		log:    log,
	}
}

// Attempt admits or rejects a draw by actor at time now. On rejection the
// second return value is how long the actor still has to wait. On admission
// the actor is recorded as most recently active and stale entries are
// dropped from the front.
func (b *Buffer) Attempt(actor int64, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.index[actor]; ok {
		age := now.Sub(el.Value.(*entry).at)
		if age < b.window {
			left := b.window - age
			b.log.Debug("draw throttled", logx.Int64("actor", actor), logx.Duration("left", left))
			return false, left
		}
	}
	b.evictStale(now)
	b.touch(actor, now)
	return true, 0
}

// Force records the actor's activity without checking the cooldown. Used by
// batch operations that have already performed their own admission check.
func (b *Buffer) Force(actor int64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictStale(now)
	b.touch(actor, now)
}

// Len reports the number of tracked actors.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}

// evictStale drops entries from the front until it meets one that is still
// inside the cooldown window. Promotion on every touch keeps the list
// ordered, so stopping early is correct.
func (b *Buffer) evictStale(now time.Time) {
	count := 0
	for front := b.order.Front(); front != nil; front = b.order.Front() {
		e := front.Value.(*entry)
		if now.Sub(e.at) < b.window {
			break
		}
		delete(b.index, e.actor)
		b.order.Remove(front)
		count++
	}
	if count > 0 {
		b.log.Debug("stale cooldown entries dropped", logx.Int("count", count))
	}
}

func (b *Buffer) touch(actor int64, now time.Time) {
	if el, ok := b.index[actor]; ok {
		el.Value.(*entry).at = now
		b.order.MoveToBack(el)
		return
	}
	b.index[actor] = b.order.PushBack(&entry{actor: actor, at: now})
}
