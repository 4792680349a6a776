package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper implements Deduper in-process, for development and tests.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> expiry
	now  func() time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	if expiry, ok := d.seen[key]; ok && expiry.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(ttl)

	// Opportunistic cleanup keeps the map bounded without a background sweep.
	for k, expiry := range d.seen {
		if !expiry.After(now) {
			delete(d.seen, k)
		}
	}

	return false, nil
}
