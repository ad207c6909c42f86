package configuration

import (
	"fmt"
	"sync"

	"github.com/mpyw/tmelide/internal/automaton"
)

type cacheKey struct {
	auto *automaton.Automaton
	key  string
}

// Cache holds the canonical configuration instances of one analysis run.
// It is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	table map[cacheKey]*Configuration
	stats *Stats
}

// NewCache creates an empty cache with fresh Stats.
func NewCache() *Cache {
	return &Cache{
		table: make(map[cacheKey]*Configuration),
		stats: newStats(),
	}
}

// Clear drops every canonical instance and replaces Stats. Configurations
// obtained before Clear stay valid but are no longer canonical.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = make(map[cacheKey]*Configuration)
	c.stats = newStats()
}

// Len returns the number of canonical instances.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// Stats returns the counters of the current run.
func (c *Cache) Stats() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) intern(w *working) (*Configuration, error) {
	key := fingerprint(w.cs)

	c.mu.Lock()
	defer c.mu.Unlock()

	k := cacheKey{auto: w.auto, key: key}
	if existing, ok := c.table[k]; ok {
		if got := fingerprint(existing.cs); got != key {
			return nil, fmt.Errorf("%w: canonical %s now reads %s", ErrMutatedInterned, key, got)
		}
		c.stats.internHits.Inc()
		return existing, nil
	}

	c.stats.internMisses.Inc()
	cfg := &Configuration{auto: w.auto, cache: c, cs: w.cs, key: key}
	c.table[k] = cfg
	return cfg, nil
}
