// Package grounding implements the tool-variant negotiation cache and the
// per-request grounding-mode enforcement state machine.
package grounding

import (
	"sync"
	"time"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

// VariantStatus records which web-tool identifier a (provider, model) pair
// accepted, or that both were definitively rejected.
type VariantStatus string

const (
	StatusWebSearch        VariantStatus = "WEB_SEARCH"
	StatusWebSearchPreview VariantStatus = "WEB_SEARCH_PREVIEW"
	StatusUnsupported      VariantStatus = "UNSUPPORTED"
)

// Variant maps a cached status to the tool identifier it stands for.
func (s VariantStatus) Variant() core.ToolVariant {
	switch s {
	case StatusWebSearch:
		return core.ToolVariantWebSearch
	case StatusWebSearchPreview:
		return core.ToolVariantWebSearchPreview
	default:
		return core.ToolVariantNone
	}
}

// StatusForVariant maps a successful tool identifier back to a cache status.
func StatusForVariant(v core.ToolVariant) (VariantStatus, bool) {
	switch v {
	case core.ToolVariantWebSearch:
		return StatusWebSearch, true
	case core.ToolVariantWebSearchPreview:
		return StatusWebSearchPreview, true
	default:
		return "", false
	}
}

// CacheEntry is the whole-value payload stored per (provider, model).
// Entries are swapped atomically; readers never observe a partial write.
type CacheEntry struct {
	Status     VariantStatus `json:"status"`
	RecordedAt time.Time     `json:"recorded_at"`
	TTL        time.Duration `json:"ttl"`
}

// DefaultUnsupportedTTL bounds how long a definitive rejection suppresses
// re-probing. Successful observations are sticky and never expire.
const DefaultUnsupportedTTL = 15 * time.Minute

type cacheKey struct {
	provider string
	model    string
}

// VariantCache is the process-wide, concurrency-safe record of which
// grounding-tool identifier works per (provider, model). Only the
// orchestrator writes to it, and only after a definitive provider signal:
// an empty or zero-citation success must never downgrade an entry to
// UNSUPPORTED.
type VariantCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]CacheEntry

	unsupportedTTL time.Duration
	now            func() time.Time
}

// CacheOption mutates cache construction.
type CacheOption func(*VariantCache)

// WithUnsupportedTTL overrides the rejection TTL.
func WithUnsupportedTTL(ttl time.Duration) CacheOption {
	return func(c *VariantCache) { c.unsupportedTTL = ttl }
}

// WithClock overrides the time source. For testing only.
func WithClock(now func() time.Time) CacheOption {
	return func(c *VariantCache) { c.now = now }
}

// NewVariantCache constructs an empty cache.
func NewVariantCache(opts ...CacheOption) *VariantCache {
	c := &VariantCache{
		entries:        make(map[cacheKey]CacheEntry),
		unsupportedTTL: DefaultUnsupportedTTL,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the live entry for (provider, model), if any. Expired
// UNSUPPORTED entries are reported as absent so the next request re-probes
// from the primary variant.
func (c *VariantCache) Lookup(provider, model string) (CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey{provider, model}]
	c.mu.RUnlock()
	if !ok {
		return CacheEntry{}, false
	}
	if entry.Status == StatusUnsupported && c.now().Sub(entry.RecordedAt) > entry.TTL {
		return CacheEntry{}, false
	}
	return entry, true
}

// Record stores an authoritative observation. Success statuses are sticky;
// UNSUPPORTED entries carry a bounded TTL.
func (c *VariantCache) Record(provider, model string, status VariantStatus) {
	entry := CacheEntry{Status: status, RecordedAt: c.now()}
	if status == StatusUnsupported {
		entry.TTL = c.unsupportedTTL
	}
	c.mu.Lock()
	c.entries[cacheKey{provider, model}] = entry
	c.mu.Unlock()
}

// Len reports the number of stored entries, including expired ones.
func (c *VariantCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
