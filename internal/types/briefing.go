package types

import "time"

// Briefing is a generated market briefing, traceable back to the cache
// entries it was built from through lineage links.
type Briefing struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// LineageLink ties one briefing to one cache entry it consumed. Freshness is
// the briefing's creation time minus the entry's creation time, fixed at
// briefing generation and never mutated.
type LineageLink struct {
	BriefingID       string    `json:"briefing_id"`
	CacheEntryID     string    `json:"cache_entry_id"`
	FreshnessSeconds float64   `json:"freshness_seconds"`
	CreatedAt        time.Time `json:"created_at"`
}

// FreshnessStats aggregates how old the underlying data was at the moment
// briefings were generated, used to audit how live agent decisions were.
type FreshnessStats struct {
	Count       int     `json:"count"`
	MeanSeconds float64 `json:"mean_seconds"`
	P50Seconds  float64 `json:"p50_seconds"`
	P95Seconds  float64 `json:"p95_seconds"`
	MaxSeconds  float64 `json:"max_seconds"`
}
