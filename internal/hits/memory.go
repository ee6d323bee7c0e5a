package hits

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper keeps claimed keys in process memory for ttl.
type MemoryDeduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	expiries  map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

// NewMemoryDeduper creates an in-process deduper retaining keys for ttl.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		ttl:      ttl,
		expiries: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Claim implements Deduper.
func (d *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.After(d.nextSweep) {
		for k, expiry := range d.expiries {
			if !now.Before(expiry) {
				delete(d.expiries, k)
			}
		}
		d.nextSweep = now.Add(d.ttl)
	}

	if expiry, ok := d.expiries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	d.expiries[key] = now.Add(d.ttl)
	return true, nil
}

// Release implements Deduper.
func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.expiries, key)
	d.mu.Unlock()
	return nil
}

// Len returns the number of keys currently retained.
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.expiries)
}
