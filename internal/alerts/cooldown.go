package alerts

import (
	"hash/fnv"
	"sync"
	"time"
)

// CooldownTracker deduplicates repeated alerts for the same (device,
// condition) pair. Allow returns true and records now as the new last-sent
// time only when the previous send is more than one window in the past, or
// when the pair has never alerted. The check-and-set is atomic per key.
type CooldownTracker interface {
	Allow(tagNumber, condition string, now time.Time) bool
	Close() error
}

const cooldownShards = 32

// MemoryCooldown is the in-process tracker. Keys are sharded so unrelated
// devices never contend on the same lock.
//
// Entries are overwritten in place and never evicted; the map grows with
// (distinct devices x distinct conditions). Known limitation, acceptable for
// the fleet sizes this runs against.
type MemoryCooldown struct {
	window time.Duration
	shards [cooldownShards]cooldownShard
}

type cooldownShard struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewMemoryCooldown creates an in-memory tracker with the given window
func NewMemoryCooldown(window time.Duration) *MemoryCooldown {
	c := &MemoryCooldown{window: window}
	for i := range c.shards {
		c.shards[i].lastSent = make(map[string]time.Time)
	}
	return c
}

func cooldownKey(tagNumber, condition string) string {
	return tagNumber + "|" + condition
}

func (c *MemoryCooldown) shard(key string) *cooldownShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.shards[h.Sum32()%cooldownShards]
}

// Allow implements CooldownTracker
func (c *MemoryCooldown) Allow(tagNumber, condition string, now time.Time) bool {
	key := cooldownKey(tagNumber, condition)
	sh := c.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	last, ok := sh.lastSent[key]
	if ok && now.Sub(last) <= c.window {
		return false
	}

	sh.lastSent[key] = now
	return true
}

// Close implements CooldownTracker
func (c *MemoryCooldown) Close() error { return nil }
