package marketcache

import "time"

// TTLPolicy is a pure lookup table from function name to cache TTL with an
// explicit default. Call sites never branch on function names; extending the
// policy means extending the table.
type TTLPolicy struct {
	byFunction map[string]time.Duration
	defaultTTL time.Duration
}

// Built-in TTL classes. Frequently changing data keeps a short window,
// stable reference data lives a day.
const (
	frequentTTL  = 30 * time.Minute
	referenceTTL = 24 * time.Hour
	DefaultTTL   = 30 * time.Minute
)

var builtinTTLs = map[string]time.Duration{
	// Alpha Vantage style functions.
	"NEWS_SENTIMENT":    frequentTTL,
	"GLOBAL_QUOTE":      frequentTTL,
	"TIME_SERIES_DAILY": time.Hour,
	"SYMBOL_SEARCH":     referenceTTL,
	"OVERVIEW":          referenceTTL,
	"TICKER_DETAILS":    referenceTTL,

	// Polygon style endpoints.
	"aggregates":    5 * time.Minute,
	"last_trade":    10 * time.Second,
	"last_quote":    10 * time.Second,
	"snapshot":      time.Minute,
	"market_status": 5 * time.Minute,
	"macd":          time.Hour,
	"rsi":           time.Hour,
	"sma":           time.Hour,
	"financials":    referenceTTL,
}

// NewTTLPolicy builds the policy from the built-in table with the given
// overrides merged on top. Overrides win over built-ins.
func NewTTLPolicy(overrides map[string]time.Duration) TTLPolicy {
	table := make(map[string]time.Duration, len(builtinTTLs)+len(overrides))

	for function, ttl := range builtinTTLs {
		table[function] = ttl
	}

	for function, ttl := range overrides {
		table[function] = ttl
	}

	return TTLPolicy{
		byFunction: table,
		defaultTTL: DefaultTTL,
	}
}

// TTLFor returns the TTL for a function, falling back to the default for
// unclassified functions.
func (p TTLPolicy) TTLFor(function string) time.Duration {
	if ttl, ok := p.byFunction[function]; ok {
		return ttl
	}

	return p.defaultTTL
}
