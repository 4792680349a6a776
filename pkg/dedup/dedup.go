// Package dedup suppresses duplicate trigger dispatches for retried inbound
// events. Producers deliver at least once; without this, a retried webhook
// starts a second execution of the same flow for the same contact.
package dedup

import (
	"context"
	"time"
)

// Deduper records event fingerprints for a window. Seen returns true when the
// key was already recorded inside its TTL.
type Deduper interface {
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
