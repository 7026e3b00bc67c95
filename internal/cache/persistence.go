package cache

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// snapshotEntry is the persisted form of an entry. Times are epoch milliseconds.
type snapshotEntry struct {
	Payload  jsonvalue.Value `json:"payload"`
	StoredAt int64           `json:"storedAt"`
	TTL      int64           `json:"ttl"`
}

// persist writes the newest entries to the store. Failures are logged and dropped.
func (c *Cache) persist() {
	if c.store == nil {
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	data, err := json.Marshal(c.snapshot())
	if err != nil {
		c.log.Debug().Err(err).Msg("Failed to encode cache snapshot")
		return
	}
	if err := c.store.Set(SnapshotKey, data); err != nil {
		c.log.Debug().Err(err).Msg("Failed to persist cache snapshot")
	}
}

// snapshot returns up to persistLimit entries, newest first by storedAt.
func (c *Cache) snapshot() map[string]snapshotEntry {
	type keyed struct {
		key string
		e   entry
	}

	c.mu.Lock()
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{key: k, e: e})
	}
	c.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].e.storedAt.Equal(all[j].e.storedAt) {
			return all[i].e.storedAt.After(all[j].e.storedAt)
		}
		return all[i].key < all[j].key
	})
	if len(all) > c.persistLimit {
		all = all[:c.persistLimit]
	}

	out := make(map[string]snapshotEntry, len(all))
	for _, kv := range all {
		out[kv.key] = snapshotEntry{
			Payload:  kv.e.payload,
			StoredAt: kv.e.storedAt.UnixMilli(),
			TTL:      kv.e.ttl.Milliseconds(),
		}
	}
	return out
}

// load restores unexpired entries from the store. A missing or corrupt
// snapshot leaves the cache empty.
func (c *Cache) load() {
	if c.store == nil {
		return
	}

	data, err := c.store.Get(SnapshotKey)
	if err != nil {
		c.log.Debug().Err(err).Msg("No cache snapshot loaded")
		return
	}

	var snap map[string]snapshotEntry
	if err := json.Unmarshal(data, &snap); err != nil {
		c.log.Debug().Err(err).Msg("Discarding corrupt cache snapshot")
		return
	}

	now := c.clock.Now()
	loaded := 0

	c.mu.Lock()
	for key, se := range snap {
		e := entry{
			payload:  se.Payload,
			storedAt: time.UnixMilli(se.StoredAt),
			ttl:      time.Duration(se.TTL) * time.Millisecond,
		}
		if e.expired(now) {
			continue
		}
		c.entries[key] = e
		loaded++
	}
	c.mu.Unlock()

	c.log.Debug().Int("entries", loaded).Msg("Cache snapshot loaded")
}
