package types

import "time"

// CacheEntry is one recorded call to an external market-data provider.
// Entries are immutable once written and append-only per
// (provider, function, param hash) key; refetches after TTL expiry create
// new entries rather than rewriting old ones.
type CacheEntry struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	Function  string `json:"function"`
	ParamHash string `json:"param_hash"`
	// Params is the canonical JSON encoding of the raw request parameters.
	Params string `json:"params"`
	// Payload is the raw response body, opaque to the core.
	Payload   []byte    `json:"payload"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Age returns the entry's age relative to now. A cache hit never rewrites an
// entry; it only computes age at time of use.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// CacheResult is what a cache lookup returns to the caller.
type CacheResult struct {
	EntryID   string        `json:"entry_id"`
	Payload   []byte        `json:"payload"`
	WasCached bool          `json:"was_cached"`
	CacheAge  time.Duration `json:"cache_age"`
	// Degraded marks a stale entry served because a fresh fetch failed and
	// stale-if-error fallback is enabled.
	Degraded bool `json:"degraded"`
}
